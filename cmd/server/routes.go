package main

import (
	"github.com/gin-gonic/gin"

	"github.com/costwatch/costwatch/internal/auth"
	"github.com/costwatch/costwatch/internal/middleware"
	"github.com/costwatch/costwatch/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinRequestID(), logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Coarse per-IP limiter in front of everything.
	ipLimiter := middleware.NewIPRateLimiter(50, 100)
	r.Use(ipLimiter.Middleware())

	r.GET("/health", svc.healthHandler.Health)
	r.GET("/ready", svc.healthHandler.Ready)

	api := r.Group("/api/v1")
	{
		// Auth routes (public)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", svc.authHandler.Login)
			authGroup.POST("/refresh", svc.authHandler.Refresh)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(svc.authService))
		{
			audit := svc.auditService

			// Ingestion, throttled per tenant
			ingest := protected.Group("", middleware.TenantRateLimit(svc.limiter))
			{
				ingest.POST("/usage",
					middleware.RequirePermission(audit, auth.ResourceUsage, auth.ActionWrite),
					svc.usageHandler.PostUsage)
				ingest.POST("/usage/batch",
					middleware.RequirePermission(audit, auth.ResourceUsage, auth.ActionWrite),
					svc.usageHandler.PostUsageBatch)
			}

			// Costs and analytics
			protected.GET("/costs",
				middleware.RequirePermission(audit, auth.ResourceCosts, auth.ActionRead),
				svc.costsHandler.GetCosts)
			protected.GET("/costs/records",
				middleware.RequirePermission(audit, auth.ResourceCosts, auth.ActionRead),
				svc.costsHandler.ListCosts)
			protected.GET("/analytics",
				middleware.RequirePermission(audit, auth.ResourceAnalytics, auth.ActionRead),
				svc.analyticsHandler.GetAnalytics)
			protected.GET("/analytics/anomalies",
				middleware.RequirePermission(audit, auth.ResourceAnalytics, auth.ActionRead),
				svc.analyticsHandler.GetAnomalies)
			protected.GET("/analytics/forecast",
				middleware.RequirePermission(audit, auth.ResourceForecast, auth.ActionRead),
				svc.analyticsHandler.GetForecast)

			// Pricing catalog
			protected.GET("/pricing",
				middleware.RequirePermission(audit, auth.ResourcePricing, auth.ActionRead),
				svc.pricingHandler.ListPricing)
			protected.POST("/pricing",
				middleware.RequirePermission(audit, auth.ResourcePricing, auth.ActionWrite),
				svc.pricingHandler.CreatePricing)

			// Budget agent
			protected.POST("/agents/budget-enforcement/analyze",
				middleware.RequirePermission(audit, auth.ResourceBudget, auth.ActionRead),
				svc.budgetHandler.AnalyzeBudget)

			// Admin surface
			admin := protected.Group("/admin")
			{
				admin.POST("/api-keys",
					middleware.RequirePermission(audit, auth.ResourceAdmin, auth.ActionWrite),
					svc.apiKeyHandler.CreateKey)
				admin.GET("/api-keys",
					middleware.RequirePermission(audit, auth.ResourceAdmin, auth.ActionRead),
					svc.apiKeyHandler.ListKeys)
				admin.DELETE("/api-keys/:id",
					middleware.RequirePermission(audit, auth.ResourceAdmin, auth.ActionDelete),
					svc.apiKeyHandler.RevokeKey)

				admin.GET("/audit",
					middleware.RequirePermission(audit, auth.ResourceAudit, auth.ActionRead),
					svc.auditHandler.ListAudit)

				admin.GET("/dlq",
					middleware.RequirePermission(audit, auth.ResourceAdmin, auth.ActionRead),
					svc.dlqHandler.ListItems)
				admin.POST("/dlq/:id/retry",
					middleware.RequirePermission(audit, auth.ResourceAdmin, auth.ActionWrite),
					svc.dlqHandler.RetryItem)
			}
		}
	}
}
