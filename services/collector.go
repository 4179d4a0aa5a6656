package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"seoul-cards/models"
	"seoul-cards/providers"
	"seoul-cards/storage"
)

// CollectorConfig ist die injizierte Konfiguration eines Sammel-Laufs.
type CollectorConfig struct {
	Topics      []models.Topic
	Window      time.Duration // trailing window für Kandidaten
	Target      int           // Zielanzahl über alle Topics
	InboxTarget int           // Zielgröße des aktuellen Inbox-Fensters
}

// CollectorService orchestriert den Sammel-Pass:
// Feeds abrufen, normalisieren, bewerten, auswählen, Inbox mergen.
type CollectorService struct {
	cfg       CollectorConfig
	providers []providers.Provider
	scoring   ScoringTable
	geo       *GeoResolver
	store     storage.CardStore
	logger    *zap.Logger
}

// NewCollectorService erstellt den Collector.
func NewCollectorService(cfg CollectorConfig, provs []providers.Provider, scoring ScoringTable, geo *GeoResolver, store storage.CardStore, logger *zap.Logger) *CollectorService {
	return &CollectorService{
		cfg:       cfg,
		providers: provs,
		scoring:   scoring,
		geo:       geo,
		store:     store,
		logger:    logger,
	}
}

// Run führt einen vollständigen Sammel-Lauf aus und gibt die Zahl neu
// aufgenommener Cards zurück. Ein kaputter Feed bricht niemals den Batch ab.
func (c *CollectorService) Run(ctx context.Context) (int, error) {
	now := time.Now()
	cutoff := now.Add(-c.cfg.Window)

	groups := map[string][]models.Card{}
	for _, topic := range c.cfg.Topics {
		log := c.logger.With(zap.String("topic", topic.Tag))
		for _, provider := range c.providers {
			cards, err := provider.Fetch(ctx, topic)
			if err != nil {
				log.Warn("feed fetch failed, skipping source",
					zap.String("provider", provider.Name()), zap.Error(err))
				continue
			}
			for _, card := range cards {
				if card.LastUpdated.Before(cutoff) {
					continue
				}
				card.ID = models.NewCardID(topic.Category)
				card.Category = Classify(card.Title, card.Summary)
				card.Geo = c.geo.Resolve(card.Title + " " + card.Summary)
				card.Score = c.scoring.Score(card.Title, card.Summary, card.Tags, card.PrimaryDomain(), card.Geo != nil)
				card.CreatedAt = now
				card.UpdatedAt = now
				groups[topic.Tag] = append(groups[topic.Tag], card)
			}
		}
		log.Info("topic collected", zap.Int("candidates", len(groups[topic.Tag])))
	}

	selected := SelectCandidates(groups, c.cfg.Target)

	existing, err := c.store.Load(storage.CollectionInbox)
	if err != nil {
		return 0, err
	}
	merged := MergeInbox(existing, selected, c.cfg.Window, c.cfg.InboxTarget, now)
	if err := c.store.Save(storage.CollectionInbox, merged); err != nil {
		return 0, err
	}

	// Neu ist, was nach dem Merge unter einem bisher unbekannten
	// Dedup-Schlüssel in der Inbox steht; ein reiner Längenvergleich
	// würde bei Ersetzungen und Fenster-Kürzungen danebenzählen.
	existingKeys := map[string]bool{}
	for i := range existing {
		existingKeys[existing[i].DedupKey()] = true
	}
	added := 0
	for i := range merged {
		if !existingKeys[merged[i].DedupKey()] {
			added++
		}
	}
	c.logger.Info("collection run finished",
		zap.Int("selected", len(selected)), zap.Int("inbox_size", len(merged)))
	return added, nil
}

// SelectCandidates verteilt eine Zielanzahl über Topic-Gruppen:
// Basisquote pro Topic, Rest an die Topics mit dem größten Angebot,
// danach Backfill aus den global bestbewerteten Kandidaten.
func SelectCandidates(groups map[string][]models.Card, total int) []models.Card {
	if total <= 0 || len(groups) == 0 {
		return nil
	}

	tags := make([]string, 0, len(groups))
	for tag := range groups {
		sort.Slice(groups[tag], func(i, j int) bool {
			return groups[tag][i].Score > groups[tag][j].Score
		})
		tags = append(tags, tag)
	}
	// Reihenfolge deterministisch halten: größtes Angebot zuerst, dann Name.
	sort.Slice(tags, func(i, j int) bool {
		if len(groups[tags[i]]) != len(groups[tags[j]]) {
			return len(groups[tags[i]]) > len(groups[tags[j]])
		}
		return tags[i] < tags[j]
	})

	base := total / len(groups)
	remainder := total % len(groups)

	quotas := map[string]int{}
	for i, tag := range tags {
		quotas[tag] = base
		if i < remainder {
			quotas[tag]++
		}
	}

	var selected []models.Card
	taken := map[string]bool{} // lowercased title, fensterübergreifend
	for _, tag := range tags {
		count := 0
		for _, card := range groups[tag] {
			if count >= quotas[tag] {
				break
			}
			key := strings.ToLower(strings.TrimSpace(card.Title))
			if taken[key] {
				continue
			}
			taken[key] = true
			selected = append(selected, card)
			count++
		}
	}

	// Backfill: unerfüllte Quoten aus dem globalen Rest auffüllen.
	if len(selected) < total {
		var rest []models.Card
		for _, tag := range tags {
			rest = append(rest, groups[tag]...)
		}
		sort.Slice(rest, func(i, j int) bool { return rest[i].Score > rest[j].Score })
		for _, card := range rest {
			if len(selected) >= total {
				break
			}
			key := strings.ToLower(strings.TrimSpace(card.Title))
			if taken[key] {
				continue
			}
			taken[key] = true
			selected = append(selected, card)
		}
	}

	return selected
}

// MergeInbox mischt einen frischen Sammel-Lauf in die bestehende Inbox.
// Dedup-Schlüssel ist (category, lowercased title); neue Einträge gewinnen.
// Das aktuelle Fenster wird nach Score neu sortiert und auf target gekürzt,
// Einträge außerhalb des Fensters bleiben unverändert erhalten.
func MergeInbox(existing, incoming []models.Card, window time.Duration, target int, now time.Time) []models.Card {
	cutoff := now.Add(-window)

	byKey := map[string]models.Card{}
	order := []string{}
	for _, card := range existing {
		key := card.DedupKey()
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = card
	}
	for _, card := range incoming {
		key := card.DedupKey()
		if prev, seen := byKey[key]; seen {
			// Fortschritt einer bereits begutachteten Card nie zurücksetzen.
			if prev.Status != models.StatusPending {
				continue
			}
		} else {
			order = append(order, key)
		}
		byKey[key] = card
	}

	var current, older []models.Card
	for _, key := range order {
		card := byKey[key]
		if card.LastUpdated.Before(cutoff) {
			older = append(older, card)
		} else {
			current = append(current, card)
		}
	}

	sort.SliceStable(current, func(i, j int) bool { return current[i].Score > current[j].Score })
	if target > 0 && len(current) > target {
		current = current[:target]
	}

	return append(current, older...)
}
