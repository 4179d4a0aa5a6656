package googlenews

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"seoul-cards/models"
	"seoul-cards/providers"
)

// Fetcher holt Kandidaten über die Google-News-RSS-Suche.
type Fetcher struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewFetcher erstellt einen neuen Google-News-Fetcher.
func NewFetcher(client *http.Client, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		baseURL: "https://news.google.com/rss/search",
		client:  client,
		logger:  logger,
	}
}

func (f *Fetcher) Name() string {
	return "googlenews"
}

// Fetch führt die Feed-Suche für ein Topic aus und normalisiert die Einträge.
func (f *Fetcher) Fetch(ctx context.Context, topic models.Topic) ([]models.Card, error) {
	feedURL := fmt.Sprintf("%s?q=%s&hl=ko&gl=KR&ceid=KR:ko", f.baseURL, url.QueryEscape(topic.Query))

	feed, err := providers.FetchFeed(ctx, f.client, feedURL)
	if err != nil {
		return nil, fmt.Errorf("googlenews fetch %q: %w", topic.Tag, err)
	}

	now := time.Now()
	cards := make([]models.Card, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := providers.CleanText(item.Title)
		link := providers.StripTracking(strings.TrimSpace(item.Link))
		// Einträge ohne Titel oder auflösbare Quelle werden verworfen.
		if title == "" || link == "" {
			continue
		}

		publisher := feed.Title
		// Google News hängt den Herausgeber mit " - " an den Titel an.
		if idx := strings.LastIndex(title, " - "); idx > 0 {
			publisher = strings.TrimSpace(title[idx+3:])
			title = strings.TrimSpace(title[:idx])
		}

		cards = append(cards, models.Card{
			Title:   title,
			Summary: providers.CleanText(item.Description),
			Sources: []models.CardSource{{
				Title:     title,
				URL:       link,
				Publisher: publisher,
			}},
			LastUpdated: providers.ItemTime(item, now),
			Category:    topic.Category,
			Tags:        []string{topic.Tag},
			Status:      models.StatusPending,
		})
	}

	f.logger.Debug("googlenews feed parsed",
		zap.String("topic", topic.Tag), zap.Int("items", len(cards)))
	return cards, nil
}
