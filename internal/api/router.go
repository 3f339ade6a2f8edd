package api

import (
	"github.com/gin-gonic/gin"
	"github.com/resellerdesk/resellerdesk/internal/api/cron"
	v1 "github.com/resellerdesk/resellerdesk/internal/api/v1"
	"github.com/resellerdesk/resellerdesk/internal/config"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/rest/middleware"
)

type Handlers struct {
	Health          *v1.HealthHandler
	Webhook         *v1.WebhookHandler
	Portal          *v1.PortalHandler
	Admin           *v1.AdminHandler
	CronFulfillment *cron.FulfillmentCronHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.SentryTagsMiddleware,
		middleware.PyroscopeMiddleware(cfg),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)

	v1Group := router.Group("/v1")

	// Provider pushes, authenticated by signature
	webhooks := v1Group.Group("/webhooks")
	{
		webhooks.POST("/payments/:tenant_id", handlers.Webhook.HandlePaymentWebhook)
	}

	// Client portal, authenticated by the session token in the body
	portal := v1Group.Group("/portal")
	portal.Use(middleware.CORSMiddleware)
	{
		portal.POST("/renewals/status", handlers.Portal.GetRenewalStatus)
		portal.OPTIONS("/renewals/status", func(c *gin.Context) {})
	}

	// Operator routes
	admin := v1Group.Group("/admin")
	admin.Use(middleware.APIKeyMiddleware(cfg, logger))
	{
		admin.POST("/payments/:tenant_id/:payment_id/retry", handlers.Admin.RetryFulfillment)
	}

	cronGroup := v1Group.Group("/cron")
	cronGroup.Use(middleware.APIKeyMiddleware(cfg, logger))
	{
		cronGroup.POST("/fulfillment/recover", handlers.CronFulfillment.RecoverStale)
	}

	return router
}
