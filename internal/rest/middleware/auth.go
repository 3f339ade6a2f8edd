package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resellerdesk/resellerdesk/internal/auth"
	"github.com/resellerdesk/resellerdesk/internal/config"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/resellerdesk/resellerdesk/internal/types"
)

// APIKeyMiddleware guards the operator routes (admin retry, cron sweeps).
// Requests pass only with the configured key in the x-api-key header and run
// as the system user.
func APIKeyMiddleware(cfg *config.Configuration, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.ValidateAPIKey(cfg, c.GetHeader(types.HeaderAPIKey)) {
			logger.Debugw("rejected operator request", "path", c.FullPath())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}

		ctx := types.SetUserID(c.Request.Context(), types.SystemUserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
