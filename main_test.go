package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seoul-cards/models"
	"seoul-cards/services"
	"seoul-cards/storage"
)

func newTestRouter(t *testing.T) (*gin.Engine, storage.CardStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewFileStore(t.TempDir(), zap.NewNop())
	client := &http.Client{Timeout: 50 * time.Millisecond}
	geo := services.NewGeoResolver(services.DefaultGazetteer, client, zap.NewNop())
	approval := services.NewApprovalService(services.DefaultApprovalRules(), services.DefaultScoringTable(), geo, store, zap.NewNop())
	rewriter := services.NewRewriteService("http://127.0.0.1:1", "m", zap.NewNop())
	translator := services.NewTranslationChainWith(nil, zap.NewNop())
	publisher := services.NewPublisherService(rewriter, translator, store, zap.NewNop())

	router := gin.New()
	setupInboxRoutes(router, store, approval, publisher, zap.NewNop())
	setupCardRoutes(router, store, zap.NewNop())
	return router, store
}

func TestInboxListAnswersWithoutRedirect(t *testing.T) {
	router, store := newTestRouter(t)
	require.NoError(t, store.Save(storage.CollectionInbox, []models.Card{{ID: "a", Title: "x"}}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/inbox", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestInboxCreateAnswersWithoutRedirect(t *testing.T) {
	router, store := newTestRouter(t)

	body := `{"title":"연남동 새 카페","sources":[{"url":"https://blog.example/1"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/inbox", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	inbox, err := store.Load(storage.CollectionInbox)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.StatusPending, inbox[0].Status)
}

func TestCardsTodayRoute(t *testing.T) {
	router, store := newTestRouter(t)
	require.NoError(t, store.Save(storage.CollectionToday, []models.Card{{ID: "t1", Title: "heute"}}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cards/today", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "heute")
}

func TestFindCard(t *testing.T) {
	cards := []models.Card{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, 1, findCard(cards, "b"))
	assert.Equal(t, -1, findCard(cards, "missing"))
	assert.Equal(t, -1, findCard(nil, "a"))
}

func TestApplyCardUpdatesOnlyTouchesGivenFields(t *testing.T) {
	card := models.Card{
		Title:    "Old title",
		Summary:  "Old summary",
		Category: models.CategoryNewsIssue,
		Tags:     []string{"old"},
	}

	applyCardUpdates(&card, map[string]interface{}{
		"title": "  New title ",
		"tags":  []interface{}{"fresh", " ", "second"},
	})

	assert.Equal(t, "New title", card.Title)
	assert.Equal(t, "Old summary", card.Summary)
	assert.Equal(t, models.CategoryNewsIssue, card.Category)
	assert.Equal(t, []string{"fresh", "second"}, card.Tags)
}

func TestApplyCardUpdatesRejectsEmptyTitle(t *testing.T) {
	card := models.Card{Title: "Keep me"}
	applyCardUpdates(&card, map[string]interface{}{"title": "   "})
	assert.Equal(t, "Keep me", card.Title)
}
