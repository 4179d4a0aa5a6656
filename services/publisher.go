package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"seoul-cards/models"
	"seoul-cards/storage"
)

// Fehlerklassen für Einzel-Generierungen; der Operator bekommt sie als
// explizite Ablehnungsgründe zurück.
var (
	ErrLowOriginality = errors.New("rewrite below originality threshold")
	ErrNeedsReview    = errors.New("generation failed, card flagged for manual review")
)

// PublisherService führt approved Cards durch Rewrite, Übersetzung und
// Publikation in die today/week-Collections.
type PublisherService struct {
	rewrite   *RewriteService
	translate *TranslationChain
	store     storage.CardStore
	logger    *zap.Logger
}

// NewPublisherService erstellt den Publisher.
func NewPublisherService(rewrite *RewriteService, translate *TranslationChain, store storage.CardStore, logger *zap.Logger) *PublisherService {
	return &PublisherService{rewrite: rewrite, translate: translate, store: store, logger: logger}
}

// RunPending generiert alle approved Cards der Inbox. Fehler einzelner
// Cards stoppen den Batch nicht; zurück kommt (generiert, fehlgeschlagen).
func (p *PublisherService) RunPending(ctx context.Context) (int, int) {
	cards, err := p.store.Load(storage.CollectionInbox)
	if err != nil {
		p.logger.Error("inbox load failed", zap.Error(err))
		return 0, 0
	}

	var ids []string
	for _, card := range cards {
		if card.Status == models.StatusApproved {
			ids = append(ids, card.ID)
		}
	}

	generated, failed := 0, 0
	for _, id := range ids {
		if err := p.GenerateOne(ctx, id); err != nil {
			failed++
			p.logger.Warn("generation failed for card", zap.String("id", id), zap.Error(err))
			continue
		}
		generated++
	}

	p.logger.Info("generation pass finished",
		zap.Int("generated", generated), zap.Int("failed", failed))
	return generated, failed
}

// GenerateOne führt eine einzelne approved Card bis in den Publication
// Store. Bei Fehlern wird die Card mit gesetzten Flags in die Inbox
// zurückgeschrieben, niemals halb publiziert.
func (p *PublisherService) GenerateOne(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("card id is required")
	}
	inbox, err := p.store.Load(storage.CollectionInbox)
	if err != nil {
		return err
	}

	idx := -1
	for i := range inbox {
		if inbox[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("card %s not found in inbox", id)
	}
	card := inbox[idx]
	if card.Status != models.StatusApproved {
		return fmt.Errorf("card %s is %s, needs approval first", id, card.Status)
	}

	result := p.rewrite.Rewrite(ctx, &card, 0)

	if result.Fallback {
		// Template-Inhalt: nicht publizieren, Mensch muss ran.
		if err := card.Transition(models.StatusNeedsReview); err != nil {
			return err
		}
		inbox[idx] = card
		if err := p.store.Save(storage.CollectionInbox, inbox); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrNeedsReview, id)
	}

	if result.Originality < OriginalityThreshold() {
		// Zu nah am Original: Card bleibt approved in der Inbox.
		p.logger.Warn("rewrite too close to source, requeueing",
			zap.String("id", id), zap.Float64("originality", result.Originality))
		return fmt.Errorf("%w: %.2f", ErrLowOriginality, result.Originality)
	}

	// Quellen bleiben durch jede Transformation erhalten.
	card.Title = result.Title
	card.Summary = result.Summary
	card.Body = result.Body
	card.Tags = mergeTags(card.Tags, result.Tags)
	card.Originality = result.Originality
	card.LastUpdated = time.Now()
	if err := card.Transition(models.StatusGenerated); err != nil {
		return err
	}

	// Innerhalb einer Card ist die Kette sequenziell:
	// erst Rewrite, dann Titel/Summary/Body-Übersetzung.
	card.Translations = map[string]models.Translation{
		"fr": {
			Title:   p.translate.Translate(ctx, card.Title, "en", "fr"),
			Summary: p.translate.Translate(ctx, card.Summary, "en", "fr"),
			Body:    p.translate.Translate(ctx, card.Body, "en", "fr"),
			Tags:    card.Tags,
		},
	}

	collection := RouteCollection(&card)
	published, err := p.store.Load(collection)
	if err != nil {
		return err
	}
	if err := card.Transition(models.StatusPublished); err != nil {
		return err
	}
	published = DedupCards(append([]models.Card{card}, published...))
	if err := p.store.Save(collection, published); err != nil {
		return err
	}

	// Erst nach erfolgreicher Publikation verlässt die Card die Inbox.
	inbox = append(inbox[:idx], inbox[idx+1:]...)
	if err := p.store.Save(storage.CollectionInbox, inbox); err != nil {
		return err
	}

	p.logger.Info("card published",
		zap.String("id", card.ID),
		zap.String("collection", collection),
		zap.Float64("originality", card.Originality))
	return nil
}

// weeklyTags routen in die week-Collection, unabhängig von der Kategorie.
var weeklyTags = map[string]bool{
	"festival": true,
	"weekend":  true,
	"popup":    true,
}

// RouteCollection wählt die Ziel-Collection: Popups und Hotspots (und
// Wochenend-Tags) erscheinen in der Wochenansicht, alles andere heute.
func RouteCollection(card *models.Card) string {
	if card.Category == models.CategoryPopup || card.Category == models.CategoryHotspot {
		return storage.CollectionWeek
	}
	for _, tag := range card.Tags {
		if weeklyTags[tag] {
			return storage.CollectionWeek
		}
	}
	return storage.CollectionToday
}

// DedupCards entfernt Duplikate nach (category, lowercased title).
// Der erste Eintrag gewinnt; die Operation ist idempotent.
func DedupCards(cards []models.Card) []models.Card {
	seen := map[string]bool{}
	out := make([]models.Card, 0, len(cards))
	for _, card := range cards {
		key := card.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, card)
	}
	return out
}

func mergeTags(existing, extra []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range append(existing, extra...) {
		t = strings.TrimSpace(strings.ToLower(t))
		if t == "" || seen[t] || len(out) >= maxTags {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
