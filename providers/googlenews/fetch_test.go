package googlenews

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seoul-cards/models"
)

const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>"서울 팝업스토어" - Google 뉴스</title>
<item>
  <title>성수동에 대형 팝업 오픈 - 연합뉴스</title>
  <link>https://news.google.com/rss/articles/abc123</link>
  <description>성수동 소식</description>
  <pubDate>%s</pubDate>
</item>
<item>
  <title></title>
  <link>https://news.google.com/rss/articles/empty</link>
</item>
</channel></rss>`

func TestFetchParsesGoogleNewsItems(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprintf(w, feedBody, time.Now().Format(time.RFC1123Z))
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), zap.NewNop())
	f.baseURL = server.URL

	topic := models.Topic{Tag: "popup", Query: "서울 팝업스토어", Category: models.CategoryPopup}
	cards, err := f.Fetch(context.Background(), topic)
	require.NoError(t, err)
	require.Len(t, cards, 1, "items without title are dropped")

	got := cards[0]
	// Der Herausgeber-Suffix wird vom Titel abgetrennt.
	assert.Equal(t, "성수동에 대형 팝업 오픈", got.Title)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "연합뉴스", got.Sources[0].Publisher)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, []string{"popup"}, got.Tags)

	assert.Contains(t, gotQuery, "hl=ko")
	assert.Contains(t, gotQuery, "gl=KR")
}

func TestFetchUnreachableFeed(t *testing.T) {
	f := NewFetcher(&http.Client{Timeout: 50 * time.Millisecond}, zap.NewNop())
	f.baseURL = "http://127.0.0.1:1/rss/search"

	_, err := f.Fetch(context.Background(), models.Topic{Tag: "popup", Query: "x"})
	assert.Error(t, err)
}
