package main

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"seoul-cards/config"
	"seoul-cards/models"
	"seoul-cards/providers"
	"seoul-cards/providers/customrss"
	"seoul-cards/providers/googlenews"
	"seoul-cards/services"
	"seoul-cards/storage"
)

var (
	cardsCollectedCounter    prometheus.Counter
	cardsAutoApprovedCounter prometheus.Counter
	cardsGeneratedCounter    prometheus.Counter
	generationFailureCounter prometheus.Counter
)

func init() {
	cardsCollectedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cards_collected_total",
		Help: "Total number of new cards added to the inbox.",
	})
	cardsAutoApprovedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cards_auto_approved_total",
		Help: "Total number of cards auto-approved by the gate.",
	})
	cardsGeneratedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cards_generated_total",
		Help: "Total number of cards rewritten and published.",
	})
	generationFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cards_generation_failures_total",
		Help: "Total number of per-card generation failures.",
	})
	prometheus.MustRegister(cardsCollectedCounter, cardsAutoApprovedCounter,
		cardsGeneratedCounter, generationFailureCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Persistenz-Backend wählen
	var store storage.CardStore
	switch cfg.StoreBackend {
	case "postgres":
		pgStore, err := storage.NewPostgresStore(cfg.DSN(), logging)
		if err != nil {
			logging.Fatal("Failed to connect to card database", zap.Error(err))
		}
		store = pgStore
		logging.Info("Using postgres card store.")
	default:
		store = storage.NewFileStore(cfg.DataDir, logging)
		logging.Info("Using file card store.", zap.String("data_dir", cfg.DataDir))
	}

	// Setup Providers
	feedClient := providers.NewHTTPClient(time.Duration(cfg.FeedTimeout) * time.Second)
	enabledProviderNames := strings.Split(cfg.EnabledProviders, ",")
	var enabledProviders []providers.Provider
	for _, name := range enabledProviderNames {
		switch strings.TrimSpace(name) {
		case "googlenews":
			enabledProviders = append(enabledProviders, googlenews.NewFetcher(feedClient, logging))
		case "customrss":
			enabledProviders = append(enabledProviders, customrss.NewFetcher(cfg.CustomFeeds, feedClient, logging))
		default:
			logging.Warn("Unknown provider in config", zap.String("provider_name", name))
		}
	}
	if len(enabledProviders) == 0 {
		logging.Fatal("No valid providers enabled. Check ENABLED_PROVIDERS in .env")
	}
	logging.Info("Active providers loaded", zap.Strings("providers", enabledProviderNames))

	// Setup Services
	scoring := services.DefaultScoringTable()
	geo := services.NewGeoResolver(services.DefaultGazetteer, feedClient, logging)
	collector := services.NewCollectorService(services.CollectorConfig{
		Topics:      models.DefaultTopics,
		Window:      time.Duration(cfg.CollectWindow) * 24 * time.Hour,
		Target:      cfg.CollectTarget,
		InboxTarget: cfg.InboxTarget,
	}, enabledProviders, scoring, geo, store, logging)
	approval := services.NewApprovalService(services.DefaultApprovalRules(), scoring, geo, store, logging)
	rewriter := services.NewRewriteService(cfg.LLMBaseURL, cfg.LLMModel, logging)
	translator := services.NewTranslationChain(cfg.LibreTranslateURL, logging)
	publisher := services.NewPublisherService(rewriter, translator, store, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	setupInboxRoutes(router, store, approval, publisher, logging)
	setupCardRoutes(router, store, logging)
	setupPipelineRoutes(router, collector, approval, publisher, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CollectSchedule, func() {
		logging.Info("Running scheduled collection run...")
		count, err := collector.Run(context.Background())
		if err != nil {
			logging.Error("Collection cron job failed", zap.Error(err))
		} else {
			cardsCollectedCounter.Add(float64(count))
			logging.Info("Collection cron job completed", zap.Int("new_cards", count))
		}
	})
	cronScheduler.AddFunc(cfg.ApproveSchedule, func() {
		logging.Info("Running scheduled auto-approval pass...")
		count, err := approval.RunAutoApproval(context.Background())
		if err != nil {
			logging.Error("Approval cron job failed", zap.Error(err))
		} else {
			cardsAutoApprovedCounter.Add(float64(count))
		}
	})
	cronScheduler.AddFunc(cfg.GenerateSchedule, func() {
		logging.Info("Running scheduled generation pass...")
		generated, failed := publisher.RunPending(context.Background())
		cardsGeneratedCounter.Add(float64(generated))
		generationFailureCounter.Add(float64(failed))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupInboxRoutes(router *gin.Engine, store storage.CardStore, approval *services.ApprovalService, publisher *services.PublisherService, log *zap.Logger) {
	rg := router.Group("/inbox")

	// GET - paginierte Inbox-Liste mit Text- und Kategorie-Filter
	rg.GET("", func(c *gin.Context) {
		cards, err := store.Load(storage.CollectionInbox)
		if err != nil {
			log.Error("Inbox load failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}

		query := strings.ToLower(strings.TrimSpace(c.Query("q")))
		category := strings.TrimSpace(c.Query("category"))

		filtered := make([]models.Card, 0, len(cards))
		for _, card := range cards {
			if category != "" && string(card.Category) != category {
				continue
			}
			if query != "" &&
				!strings.Contains(strings.ToLower(card.Title), query) &&
				!strings.Contains(strings.ToLower(card.Summary), query) {
				continue
			}
			filtered = append(filtered, card)
		}

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
		if page < 1 {
			page = 1
		}
		if pageSize < 1 || pageSize > 100 {
			pageSize = 20
		}
		start := (page - 1) * pageSize
		if start > len(filtered) {
			start = len(filtered)
		}
		end := start + pageSize
		if end > len(filtered) {
			end = len(filtered)
		}

		c.JSON(http.StatusOK, gin.H{
			"items":    filtered[start:end],
			"total":    len(filtered),
			"page":     page,
			"pageSize": pageSize,
		})
	})

	// POST - manuelle Card-Anlage
	rg.POST("", func(c *gin.Context) {
		var card models.Card
		if err := c.ShouldBindJSON(&card); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		card.Title = strings.TrimSpace(card.Title)
		if card.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}
		if len(card.Sources) == 0 || strings.TrimSpace(card.Sources[0].URL) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "at least one source with url is required"})
			return
		}

		if card.Category == "" {
			card.Category = services.Classify(card.Title, card.Summary)
		}
		card.ID = models.NewCardID(card.Category)
		card.Status = models.StatusPending
		card.CreatedAt = time.Now()
		card.UpdatedAt = card.CreatedAt
		if card.LastUpdated.IsZero() {
			card.LastUpdated = card.CreatedAt
		}

		cards, err := store.Load(storage.CollectionInbox)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}
		cards = services.DedupCards(append([]models.Card{card}, cards...))
		if err := store.Save(storage.CollectionInbox, cards); err != nil {
			log.Error("Inbox save failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}
		c.JSON(http.StatusCreated, card)
	})

	// PUT - partielles Update einzelner Felder
	rg.PUT("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var updates map[string]interface{}
		if err := c.ShouldBindJSON(&updates); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		cards, err := store.Load(storage.CollectionInbox)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}
		idx := findCard(cards, id)
		if idx < 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
			return
		}

		applyCardUpdates(&cards[idx], updates)
		cards[idx].UpdatedAt = time.Now()
		if err := store.Save(storage.CollectionInbox, cards); err != nil {
			log.Error("Inbox save failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}
		c.JSON(http.StatusOK, cards[idx])
	})

	// DELETE - Card aus der Inbox entfernen
	rg.DELETE("/:id", func(c *gin.Context) {
		id := c.Param("id")
		cards, err := store.Load(storage.CollectionInbox)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}
		idx := findCard(cards, id)
		if idx < 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
			return
		}
		cards = append(cards[:idx], cards[idx+1:]...)
		if err := store.Save(storage.CollectionInbox, cards); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	})

	// POST - manuelle Freigabe einer Card
	rg.POST("/:id/approve", func(c *gin.Context) {
		card, err := approval.Approve(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, card)
	})

	// POST - Generierung für eine einzelne Card anstoßen
	rg.POST("/:id/generate", func(c *gin.Context) {
		if err := publisher.GenerateOne(c.Request.Context(), c.Param("id")); err != nil {
			generationFailureCounter.Inc()
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		cardsGeneratedCounter.Inc()
		c.JSON(http.StatusOK, gin.H{"generated": c.Param("id")})
	})

	// POST - Card in der Inbox nach oben/unten schieben
	rg.POST("/:id/reorder", func(c *gin.Context) {
		var req struct {
			Direction string `json:"direction" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "direction (up|down) is required"})
			return
		}
		if req.Direction != "up" && req.Direction != "down" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be up or down"})
			return
		}

		cards, err := store.Load(storage.CollectionInbox)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}
		idx := findCard(cards, c.Param("id"))
		if idx < 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
			return
		}

		swap := idx - 1
		if req.Direction == "down" {
			swap = idx + 1
		}
		// Außerhalb des Randes ist Reorder ein No-op.
		if swap >= 0 && swap < len(cards) {
			cards[idx], cards[swap] = cards[swap], cards[idx]
			if err := store.Save(storage.CollectionInbox, cards); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"items": cards})
	})
}

func setupCardRoutes(router *gin.Engine, store storage.CardStore, log *zap.Logger) {
	rg := router.Group("/cards")
	for _, collection := range []string{storage.CollectionToday, storage.CollectionWeek} {
		collection := collection
		rg.GET("/"+collection, func(c *gin.Context) {
			cards, err := store.Load(collection)
			if err != nil {
				log.Error("Publication load failed", zap.String("collection", collection), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
				return
			}
			c.JSON(http.StatusOK, cards)
		})
	}
}

func setupPipelineRoutes(router *gin.Engine, collector *services.CollectorService, approval *services.ApprovalService, publisher *services.PublisherService, log *zap.Logger) {
	rg := router.Group("/pipeline")

	rg.POST("/collect", func(c *gin.Context) {
		go func() {
			count, err := collector.Run(context.Background())
			if err != nil {
				log.Error("Async collection run failed", zap.Error(err))
				return
			}
			cardsCollectedCounter.Add(float64(count))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Collection run triggered."})
	})

	rg.POST("/auto-approve", func(c *gin.Context) {
		go func() {
			count, err := approval.RunAutoApproval(context.Background())
			if err != nil {
				log.Error("Async auto-approval pass failed", zap.Error(err))
				return
			}
			cardsAutoApprovedCounter.Add(float64(count))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Auto-approval pass triggered."})
	})

	rg.POST("/generate", func(c *gin.Context) {
		go func() {
			generated, failed := publisher.RunPending(context.Background())
			cardsGeneratedCounter.Add(float64(generated))
			generationFailureCounter.Add(float64(failed))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Generation pass triggered."})
	})
}

func findCard(cards []models.Card, id string) int {
	for i := range cards {
		if cards[i].ID == id {
			return i
		}
	}
	return -1
}

// applyCardUpdates übernimmt nur die explizit mitgesendeten Felder.
func applyCardUpdates(card *models.Card, updates map[string]interface{}) {
	if v, ok := updates["title"].(string); ok && strings.TrimSpace(v) != "" {
		card.Title = strings.TrimSpace(v)
	}
	if v, ok := updates["summary"].(string); ok {
		card.Summary = v
	}
	if v, ok := updates["body"].(string); ok {
		card.Body = v
	}
	if v, ok := updates["category"].(string); ok && v != "" {
		card.Category = models.Category(v)
	}
	if v, ok := updates["tags"].([]interface{}); ok {
		tags := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
				tags = append(tags, strings.TrimSpace(s))
			}
		}
		card.Tags = tags
	}
}
