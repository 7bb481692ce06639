package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/inboxpilot/core/internal/api/handlers"
	"github.com/inboxpilot/core/internal/api/middleware"
	"github.com/inboxpilot/core/internal/config"
	"github.com/inboxpilot/core/internal/llm"
	"github.com/inboxpilot/core/internal/services"
	"gorm.io/gorm"
)

// SetupRouter initializes the Gin router with all routes configured. The
// returned scheduler is already started; callers stop it on shutdown.
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *services.PollScheduler, error) {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     splitOrigins(cfg.CORSOrigins),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	apiKeyManager, err := middleware.NewAPIKeyManager(cfg.DataDir, cfg.APIKey)
	if err != nil {
		return nil, nil, err
	}

	llmClient := llm.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)

	emailService := services.NewEmailService(db)
	draftService := services.NewDraftService(db)
	settingsService := services.NewSettingsService(db)
	ruleService := services.NewRuleService(db)
	activityService := services.NewActivityService(db)
	batchService := services.NewBatchService(db)

	scheduler := services.NewPollScheduler(
		db,
		emailService,
		draftService,
		settingsService,
		ruleService,
		activityService,
		llmClient,
		cfg.PollInterval(),
	)
	scheduler.Start()

	batchHandler := handlers.NewBatchHandler(
		batchService,
		emailService,
		draftService,
		settingsService,
		ruleService,
		activityService,
		llmClient,
	)
	activityHandler := handlers.NewActivityHandler(activityService)
	draftHandler := handlers.NewDraftHandler(db, draftService, activityService)
	pollHandler := handlers.NewPollHandler(db, scheduler)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.Use(middleware.APIKeyMiddleware(apiKeyManager))

		batch := api.Group("/batch-drafts")
		{
			batch.POST("", batchHandler.CreateBatchJob)
			batch.GET("/:id", batchHandler.GetBatchJob)
		}

		drafts := api.Group("/drafts")
		{
			drafts.GET("", draftHandler.ListDrafts)
			drafts.PUT("/:id/approve", draftHandler.ApproveDraft)
			drafts.PUT("/:id/reject", draftHandler.RejectDraft)
			drafts.POST("/:id/send", draftHandler.SendDraft)
		}

		api.GET("/activities", activityHandler.ListActivities)
		api.POST("/accounts/:id/poll", pollHandler.PollAccount)
	}

	return router, scheduler, nil
}

func splitOrigins(origins string) []string {
	if origins == "" || origins == "*" {
		return []string{"*"}
	}

	parts := strings.Split(origins, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return []string{"*"}
	}
	return cleaned
}
