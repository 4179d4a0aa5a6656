package customrss

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"seoul-cards/models"
	"seoul-cards/providers"
)

// Fetcher liest feste, pro Topic konfigurierte Feed-URLs
// (z.B. Bezirks-Blogs oder städtische Pressefeeds).
type Fetcher struct {
	feeds  map[string]string // topic tag -> feed URL
	client *http.Client
	logger *zap.Logger
}

// NewFetcher erstellt einen Fetcher aus der "tag=url,tag=url"-Konfiguration.
func NewFetcher(feedSpec string, client *http.Client, logger *zap.Logger) *Fetcher {
	feeds := map[string]string{}
	for _, pair := range strings.Split(feedSpec, ",") {
		tag, u, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || tag == "" || u == "" {
			continue
		}
		feeds[tag] = u
	}
	return &Fetcher{feeds: feeds, client: client, logger: logger}
}

func (f *Fetcher) Name() string {
	return "customrss"
}

// Fetch liefert die Einträge des für das Topic hinterlegten Feeds.
// Topics ohne hinterlegten Feed liefern eine leere Liste, keinen Fehler.
func (f *Fetcher) Fetch(ctx context.Context, topic models.Topic) ([]models.Card, error) {
	feedURL, ok := f.feeds[topic.Tag]
	if !ok {
		return nil, nil
	}

	feed, err := providers.FetchFeed(ctx, f.client, feedURL)
	if err != nil {
		return nil, fmt.Errorf("customrss fetch %q: %w", topic.Tag, err)
	}

	now := time.Now()
	cards := make([]models.Card, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := providers.CleanText(item.Title)
		link := providers.StripTracking(strings.TrimSpace(item.Link))
		if title == "" || link == "" {
			continue
		}

		cards = append(cards, models.Card{
			Title:   title,
			Summary: providers.CleanText(item.Description),
			Sources: []models.CardSource{{
				Title:     title,
				URL:       link,
				Publisher: providers.CleanText(feed.Title),
			}},
			LastUpdated: providers.ItemTime(item, now),
			Category:    topic.Category,
			Tags:        []string{topic.Tag},
			Status:      models.StatusPending,
		})
	}

	f.logger.Debug("customrss feed parsed",
		zap.String("topic", topic.Tag), zap.Int("items", len(cards)))
	return cards, nil
}
