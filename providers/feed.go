package providers

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// CustomTransport fügt jeder Anfrage einen User-Agent-Header hinzu.
// Einige Feed-Hosts liefern ohne Browser-UA nur Fehlerseiten.
type CustomTransport struct {
	Transport http.RoundTripper
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	return t.Transport.RoundTrip(req)
}

// NewHTTPClient erstellt den gemeinsamen Client für Feed-Abrufe.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &CustomTransport{
			Transport: http.DefaultTransport,
		},
	}
}

// FetchFeed lädt und parst einen RSS-/Atom-Feed.
func FetchFeed(ctx context.Context, client *http.Client, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	fp := gofeed.NewParser()
	return fp.Parse(resp.Body)
}

var (
	reTags   = regexp.MustCompile(`<[^>]*>`)
	reSpaces = regexp.MustCompile(`\s+`)
)

// CleanText entfernt HTML-Tags und kollabiert Whitespace.
func CleanText(s string) string {
	s = reTags.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// StripTracking entfernt UTM-Parameter aus Artikel-URLs.
func StripTracking(u string) string {
	if idx := strings.Index(u, "?utm_"); idx > 0 {
		return u[:idx]
	}
	return u
}

// ItemTime liefert den Veröffentlichungszeitpunkt eines Feed-Items.
// Unparsebare Zeitstempel werden als "jetzt" behandelt, damit dünn
// bestückte Feeds nicht leer ausgehen.
func ItemTime(item *gofeed.Item, now time.Time) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return now
}
