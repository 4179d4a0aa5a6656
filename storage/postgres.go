package storage

import (
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"seoul-cards/models"
)

// cardRecord bettet eine Card in eine Zeile mit Collection-Zuordnung ein.
type cardRecord struct {
	RowID      uint   `gorm:"primaryKey;autoIncrement"`
	Collection string `gorm:"index"`
	Position   int
	models.Card `gorm:"embedded"`
}

func (cardRecord) TableName() string {
	return "cards"
}

// PostgresStore ist das alternative CardStore-Backend auf gorm-Basis.
// Die Semantik bleibt load-all/save-all, damit Datei- und DB-Backend
// austauschbar sind.
type PostgresStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPostgresStore verbindet und migriert das Karten-Schema.
func NewPostgresStore(dsn string, log *zap.Logger) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&cardRecord{}); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db, logger: log}, nil
}

// Load liest eine Collection in gespeicherter Reihenfolge.
// Lesefehler degradieren zu einer leeren Liste wie beim FileStore.
func (s *PostgresStore) Load(collection string) ([]models.Card, error) {
	var records []cardRecord
	if err := s.db.Where("collection = ?", collection).
		Order("position asc").Find(&records).Error; err != nil {
		s.logger.Warn("store query failed, treating as empty",
			zap.String("collection", collection), zap.Error(err))
		return []models.Card{}, nil
	}
	cards := make([]models.Card, 0, len(records))
	for _, r := range records {
		cards = append(cards, r.Card)
	}
	return cards, nil
}

// Save ersetzt eine Collection atomar in einer Transaktion.
func (s *PostgresStore) Save(collection string, cards []models.Card) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection = ?", collection).Delete(&cardRecord{}).Error; err != nil {
			return err
		}
		if len(cards) == 0 {
			return nil
		}
		records := make([]cardRecord, 0, len(cards))
		for i, c := range cards {
			records = append(records, cardRecord{Collection: collection, Position: i, Card: c})
		}
		return tx.Create(&records).Error
	})
}
