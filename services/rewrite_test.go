package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seoul-cards/models"
)

func TestParseStrictSections(t *testing.T) {
	raw := `TITLE: A brand new popup week in Seongsu
SUMMARY: Something fun is coming. Mark your calendar.
CONTENT: The neighborhood gets a fresh popup this weekend with free entry for everyone.
TAGS: popup, seongsu, #Weekend
END_OF_CARD leftover noise`

	d, fallback := parseDraft(raw)
	assert.False(t, fallback)
	assert.Equal(t, "A brand new popup week in Seongsu", d.title)
	assert.Equal(t, "Something fun is coming. Mark your calendar.", d.summary)
	assert.Contains(t, d.body, "fresh popup this weekend")
	assert.NotContains(t, d.body, "leftover noise", "sentinel must cut the tail")
	assert.Equal(t, []string{"popup", "seongsu", "weekend"}, d.tags)
	assert.Equal(t, 0.9, d.confidence)
}

func TestParseStrictSectionsMarkdownBold(t *testing.T) {
	raw := "**TITLE:** Bold title here\n**SUMMARY:** Bold summary.\n**CONTENT:** Bold body text.\n**TAGS:** a, b"

	d, fallback := parseDraft(raw)
	assert.False(t, fallback)
	// Die schließenden Sterne hinter dem Doppelpunkt gehören zum Header,
	// nicht zum Abschnittswert.
	assert.Equal(t, "Bold title here", d.title)
	assert.Equal(t, "Bold summary.", d.summary)
	assert.Equal(t, "Bold body text.", d.body)
	assert.Equal(t, []string{"a", "b"}, d.tags)
}

func TestParseStrictSectionsBoldBeforeColon(t *testing.T) {
	raw := "**TITLE**: Other bold style\n**SUMMARY**: S.\n**CONTENT**: C."

	d, fallback := parseDraft(raw)
	assert.False(t, fallback)
	assert.Equal(t, "Other bold style", d.title)
	assert.Equal(t, "C.", d.body)
}

func TestParseOpeningPhraseFallback(t *testing.T) {
	raw := `Sure, here is the article you asked for:

Hey guys! There is a new exhibition opening in Euljiro. It runs through Sunday and entry is free.`

	d, fallback := parseDraft(raw)
	assert.True(t, fallback, "missing headers must be flagged as fallback parse")
	assert.True(t, strings.HasPrefix(d.body, "Hey guys!"))
	assert.NotContains(t, d.body, "Sure, here is")
	assert.Equal(t, 0.5, d.confidence)
}

func TestParseLongestSentencesLastResort(t *testing.T) {
	raw := "Short. The city announced a longer pedestrian zone along the stream for the holiday period. Ok. Another fairly long sentence about where to find the quietest viewing spots."

	d, fallback := parseDraft(raw)
	assert.True(t, fallback)
	assert.NotEmpty(t, d.body)
	assert.Contains(t, d.body, "pedestrian zone")
}

func TestRewriteHappyPath(t *testing.T) {
	answer := `TITLE: Fresh weekend plans around the east side
SUMMARY: A brand new venue opens its doors. Locals get first access on Saturday.
CONTENT: If wandering around industrial-chic streets sounds appealing, clear your Saturday. A brand new venue opens its doors with limited daily capacity, so arriving early matters. Locals get first access, visitors follow from noon.
TAGS: weekend, venue
END_OF_CARD`

	var gotReq RewriteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{"response": answer, "done": true})
	}))
	defer server.Close()

	svc := NewRewriteService(server.URL, "llama3.1:8b", zap.NewNop())
	card := &models.Card{
		ID:       "c1",
		Category: models.CategoryPopup,
		Title:    "성수동 팝업스토어 오픈",
		Summary:  "성수동에 새 팝업이 열립니다",
		Sources:  []models.CardSource{{URL: "https://www.seoul.go.kr/news/1"}},
	}

	result := svc.Rewrite(context.Background(), card, 0)
	assert.False(t, result.Fallback)
	assert.Equal(t, "Fresh weekend plans around the east side", result.Title)
	assert.Contains(t, result.Tags, "weekend")
	assert.Greater(t, result.Originality, 0.7, "fully rewritten english text must clear the threshold")

	// Request-Form prüfen: kein Streaming, Sentinel als Stop-Token.
	assert.Equal(t, "llama3.1:8b", gotReq.Model)
	assert.False(t, gotReq.Stream)
	assert.Contains(t, gotReq.Options.Stop, "END_OF_CARD")
	assert.Contains(t, gotReq.Prompt, "성수동 팝업스토어 오픈")
}

func TestRewriteBackendDownUsesTemplates(t *testing.T) {
	svc := NewRewriteService("http://127.0.0.1:1", "m", zap.NewNop())
	svc.client = &http.Client{Transport: offlineTransport{}}

	card := &models.Card{ID: "c1", Title: "제목", Summary: "요약", Tags: []string{"popup"}}
	result := svc.Rewrite(context.Background(), card, 0)

	assert.True(t, result.Fallback)
	assert.Equal(t, templateTitle, result.Title)
	assert.NotEmpty(t, result.Summary)
	assert.NotEmpty(t, result.Body)
	assert.Equal(t, []string{"popup"}, result.Tags)
}

func TestRewriteServerErrorUsesTemplates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewRewriteService(server.URL, "m", zap.NewNop())
	result := svc.Rewrite(context.Background(), &models.Card{ID: "c1", Title: "t"}, 0)
	assert.True(t, result.Fallback)
	assert.Equal(t, templateTitle, result.Title)
}

func TestOriginalityBounds(t *testing.T) {
	assert.Equal(t, 0.0, Originality("same words here", "same words here"))
	assert.Equal(t, 0.0, Originality("", ""))
	assert.Equal(t, 1.0, Originality("completely different tokens", ""))
	assert.Equal(t, 1.0, Originality("alpha beta gamma", "delta epsilon zeta"))

	mixed := Originality("the popup opens saturday", "the popup closes sunday")
	assert.Greater(t, mixed, 0.0)
	assert.Less(t, mixed, 1.0)
}

func TestOriginalityIgnoresCaseAndPunctuation(t *testing.T) {
	assert.Equal(t, 0.0, Originality("Hello, World!", "hello world"))
}

func TestOriginalityThresholdValue(t *testing.T) {
	assert.Equal(t, 0.7, OriginalityThreshold())
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First one. Second one! Third one? Trailing")
	require.Len(t, got, 4)
	assert.Equal(t, "First one.", got[0])
	assert.Equal(t, "Trailing", got[3])

	assert.Nil(t, splitSentences("   "))
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"popup", "weekend"}, splitTags(" #Popup , WEEKEND ,, "))
	assert.Nil(t, splitTags(""))
}
