package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"seoul-cards/models"
)

// FileStore persistiert jede Collection als JSON-Datei unter dataDir.
// Der Mutex serialisiert Read-Modify-Write innerhalb eines Prozesses;
// prozessübergreifendes Locking ist bewusst nicht abgedeckt.
type FileStore struct {
	dataDir string
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewFileStore erstellt einen Datei-Store.
func NewFileStore(dataDir string, logger *zap.Logger) *FileStore {
	return &FileStore{dataDir: dataDir, logger: logger}
}

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.dataDir, collection+".json")
}

// Load liest eine Collection. Fehlende oder korrupte Dateien ergeben eine
// leere Liste, niemals einen harten Fehler.
func (s *FileStore) Load(collection string) ([]models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path(collection))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("store read failed, treating as empty",
				zap.String("collection", collection), zap.Error(err))
		}
		return []models.Card{}, nil
	}

	var cards []models.Card
	if err := json.Unmarshal(b, &cards); err != nil {
		s.logger.Warn("store file corrupt, treating as empty",
			zap.String("collection", collection), zap.Error(err))
		return []models.Card{}, nil
	}
	return cards, nil
}

// Save schreibt eine Collection und legt fehlende Verzeichnisse an.
func (s *FileStore) Save(collection string, cards []models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	b, err := json.MarshalIndent(cards, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(collection), b, 0o644)
}
