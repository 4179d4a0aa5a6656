package models

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Category ist die feste Themen-Einteilung einer Card.
type Category string

const (
	CategoryNewsIssue Category = "news-issue"
	CategoryPopup     Category = "pop-up"
	CategoryTraffic   Category = "traffic-congestion"
	CategoryLocalTip  Category = "local-tip"
	CategoryWeather   Category = "weather"
	CategoryHotspot   Category = "hotspot"
	CategoryDensity   Category = "population-density"
)

// CardStatus beschreibt den Pipeline-Zustand einer Card.
type CardStatus string

const (
	StatusPending     CardStatus = "pending"
	StatusApproved    CardStatus = "approved"
	StatusGenerated   CardStatus = "generated"
	StatusPublished   CardStatus = "published"
	StatusNeedsReview CardStatus = "needs_review"
)

// legalTransitions: pending → approved → generated → published,
// needs_review nur aus approved erreichbar. published und needs_review sind terminal.
var legalTransitions = map[CardStatus][]CardStatus{
	StatusPending:   {StatusApproved},
	StatusApproved:  {StatusGenerated, StatusNeedsReview},
	StatusGenerated: {StatusPublished},
}

// Transition prüft und setzt einen Statuswechsel.
func (c *Card) Transition(to CardStatus) error {
	for _, allowed := range legalTransitions[c.Status] {
		if allowed == to {
			c.Status = to
			now := time.Now()
			switch to {
			case StatusApproved:
				c.ApprovedAt = &now
			case StatusGenerated:
				c.GeneratedAt = &now
			}
			return nil
		}
	}
	return fmt.Errorf("illegal status transition %s -> %s", c.Status, to)
}

// CardSource ist ein unveränderlicher Quellverweis.
type CardSource struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Publisher string `json:"publisher,omitempty"`
}

// GeoPoint ist eine aufgelöste Viertel-/Stadtreferenz.
type GeoPoint struct {
	Area string  `json:"area"`
	Lat  float64 `json:"lat,omitempty"`
	Lng  float64 `json:"lng,omitempty"`
}

// Translation bündelt die Felder einer Zielsprache.
type Translation struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Body    string   `json:"body,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Card ist der zentrale Datensatz, der alle Pipeline-Stufen durchläuft.
type Card struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Category Category `json:"category" gorm:"index"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary" gorm:"type:text"`
	Body     string   `json:"body,omitempty" gorm:"type:text"`

	Tags    []string     `json:"tags,omitempty" gorm:"serializer:json"`
	Geo     *GeoPoint    `json:"geo,omitempty" gorm:"serializer:json"`
	Sources []CardSource `json:"sources" gorm:"serializer:json"`

	// Zeitstempel der Quelle (lokale Zeitzone der Quelle).
	LastUpdated time.Time `json:"last_updated"`

	Score float64 `json:"score,omitempty"`

	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`

	Translations map[string]Translation `json:"translations,omitempty" gorm:"serializer:json"`

	Status      CardStatus `json:"status" gorm:"index"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	Originality float64    `json:"originality,omitempty"`
}

// DedupKey ist der Deduplizierungs-Schlüssel (category, lowercased title).
func (c *Card) DedupKey() string {
	return string(c.Category) + "|" + strings.ToLower(strings.TrimSpace(c.Title))
}

// PrimaryDomain liefert die Domain der ersten Quelle, falls vorhanden.
func (c *Card) PrimaryDomain() string {
	if len(c.Sources) == 0 {
		return ""
	}
	u := c.Sources[0].URL
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	if idx := strings.IndexAny(u, "/?#"); idx >= 0 {
		u = u[:idx]
	}
	return strings.TrimPrefix(strings.ToLower(u), "www.")
}

var idSeq atomic.Uint64

// NewCardID erzeugt eine eindeutige ID, lesbar nach Kategorie gruppiert.
func NewCardID(cat Category) string {
	return fmt.Sprintf("%s-%d-%d", cat, time.Now().UnixMilli(), idSeq.Add(1))
}
