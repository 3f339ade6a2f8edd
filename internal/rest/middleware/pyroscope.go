package middleware

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/grafana/pyroscope-go"
	"github.com/resellerdesk/resellerdesk/internal/config"
)

// PyroscopeMiddleware labels profiles with the matched route
func PyroscopeMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	if !cfg.Pyroscope.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		labels := pyroscope.Labels(
			"method", c.Request.Method,
			"endpoint", route,
			"handler", fmt.Sprintf("%s %s", c.Request.Method, route),
		)

		pyroscope.TagWrapper(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
