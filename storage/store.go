package storage

import "seoul-cards/models"

// Collection-Namen der drei persistierten Listen.
const (
	CollectionInbox = "inbox"
	CollectionToday = "today"
	CollectionWeek  = "week"
)

// CardStore isoliert die Load-all/Save-all-Persistenz, damit die
// Pipeline-Logik nicht an ein konkretes Backend gebunden ist.
// Lesefehler (fehlende/korrupte Daten) liefern eine leere Liste,
// damit die Pipeline aus dem Nichts bootstrappen kann.
type CardStore interface {
	Load(collection string) ([]models.Card, error)
	Save(collection string, cards []models.Card) error
}
