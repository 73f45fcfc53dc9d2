package main

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/costwatch/costwatch/internal/analytics"
	"github.com/costwatch/costwatch/internal/auth"
	"github.com/costwatch/costwatch/internal/budget"
	"github.com/costwatch/costwatch/internal/config"
	"github.com/costwatch/costwatch/internal/dlq"
	"github.com/costwatch/costwatch/internal/forecasting"
	"github.com/costwatch/costwatch/internal/handlers"
	"github.com/costwatch/costwatch/internal/ingestion"
	"github.com/costwatch/costwatch/internal/models"
	"github.com/costwatch/costwatch/internal/pricing"
	"github.com/costwatch/costwatch/internal/ratelimit"
	"github.com/costwatch/costwatch/internal/utils"
	"github.com/costwatch/costwatch/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the
// application.
type appServices struct {
	cfg *config.Config

	limiter      *ratelimit.Limiter
	limiterStop  context.CancelFunc
	dlqProcessor *dlq.Processor
	taskQueue    ingestion.TaskQueue
	worker       *ingestion.Worker
	authService  *auth.Service
	auditService *auth.AuditService

	healthHandler    *handlers.HealthHandler
	usageHandler     *handlers.UsageHandler
	costsHandler     *handlers.CostsHandler
	analyticsHandler *handlers.AnalyticsHandler
	pricingHandler   *handlers.PricingHandler
	budgetHandler    *handlers.BudgetHandler
	apiKeyHandler    *handlers.APIKeyHandler
	auditHandler     *handlers.AuditHandler
	dlqHandler       *handlers.DlqHandler
	authHandler      *handlers.AuthHandler
}

// bootstrap initializes all application dependencies: database, services,
// schedulers, queue and workers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.Auth.JWT.Secret)
	utils.SetJWTIssuerAudience(cfg.Auth.JWT.Issuer, cfg.Auth.JWT.Audience)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}
	db := models.GetDB()

	// Pricing catalog with its copy-on-write snapshot.
	catalog, err := pricing.NewCatalog(db)
	if err != nil {
		logger.Fatalf("Failed to load pricing catalog: %v", err)
	}

	// Per-tenant rate limiter, memory or Redis backed.
	var limiterStore ratelimit.Store
	if cfg.RateLimit.Store == "redis" && cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiterStore = ratelimit.NewRedisStore(client)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("rate limiter using redis store")
	} else {
		limiterStore = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.NewLimiter(limiterStore, &cfg.RateLimit)
	purgeCtx, limiterStop := context.WithCancel(context.Background())
	limiter.StartPurge(purgeCtx, cfg.RateLimit.Window, 10*cfg.RateLimit.Window)

	// Dead-letter queue.
	dlqStore := dlq.NewGormStore(db)
	dlqProcessor := dlq.NewProcessor(dlqStore, &cfg.DLQ)
	if err := dlqProcessor.Start(); err != nil {
		logger.Fatalf("Failed to start DLQ processor: %v", err)
	}

	// Ingestion pipeline and its costing queue.
	taskQueue := ingestion.InitTaskQueue(cfg)
	ingestSvc := ingestion.NewService(db, catalog, taskQueue, dlqProcessor)
	if syncQueue, ok := taskQueue.(*ingestion.SyncQueue); ok {
		syncQueue.SetProcessor(ingestSvc.ProcessCost)
	}
	var worker *ingestion.Worker
	if cfg.Redis.Enabled {
		worker = ingestion.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(ingestSvc.ProcessCost)
			worker.Start()
		}
	}

	// Trust plane.
	apiKeySvc := auth.NewAPIKeyService(db, cfg.Auth.APIKey.Prefix, cfg.Auth.APIKey.KeyLength)
	authSvc := auth.NewService(db, apiKeySvc)
	auditSvc := auth.NewAuditService(db, cfg.Audit.RetentionDays)
	if err := auditSvc.StartPruning(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start audit pruning")
	}
	loginSvc := auth.NewLoginService(db, cfg.Auth.JWT.AccessExpHour, cfg.Auth.JWT.RefreshExpHour, auditSvc)

	// Forecasting and the budget agent.
	registry := forecasting.NewRegistry(cfg.Forecast.ConfidenceLevel)
	decisionStore := budget.NewGormDecisionStore(db)
	agent := budget.NewAgent(registry, decisionStore,
		cfg.Budget.WarningThreshold, cfg.Budget.CriticalThreshold, cfg.Budget.GatingThreshold)

	analyticsSvc := analytics.NewService(db, registry, cfg.Forecast.MinDataPoints)

	return &appServices{
		cfg:          cfg,
		limiter:      limiter,
		limiterStop:  limiterStop,
		dlqProcessor: dlqProcessor,
		taskQueue:    taskQueue,
		worker:       worker,
		authService:  authSvc,
		auditService: auditSvc,

		healthHandler:    handlers.NewHealthHandler(db, version),
		usageHandler:     handlers.NewUsageHandler(ingestSvc),
		costsHandler:     handlers.NewCostsHandler(analyticsSvc),
		analyticsHandler: handlers.NewAnalyticsHandler(analyticsSvc),
		pricingHandler:   handlers.NewPricingHandler(catalog, auditSvc),
		budgetHandler:    handlers.NewBudgetHandler(agent),
		apiKeyHandler:    handlers.NewAPIKeyHandler(apiKeySvc, auditSvc),
		auditHandler:     handlers.NewAuditHandler(auditSvc),
		dlqHandler:       handlers.NewDlqHandler(dlqStore, dlqProcessor),
		authHandler:      handlers.NewAuthHandler(loginSvc),
	}
}

// shutdown gracefully stops schedulers, the worker and the queue.
func (s *appServices) shutdown() {
	s.dlqProcessor.Stop()
	s.auditService.Stop()
	s.limiterStop()
	logger.Info().Msg("schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
