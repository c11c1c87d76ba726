package observability

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// routeOf prefers the registered route template so per-stream paths share one label.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// quiet routes are polled by health checks and scrapers.
func quiet(route string) bool {
	switch route {
	case "/health", "/ready", "/metrics":
		return true
	}
	return false
}

// RequestLogger logs one line per admin request. Health check and scrape traffic is
// logged at debug; sync upgrades are logged when the session ends.
func RequestLogger(node string, logger zerolog.Logger) gin.HandlerFunc {
	logger = logger.With().Str("node", node).Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := routeOf(c)

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case quiet(route):
			event = logger.Debug()
		default:
			event = logger.Info()
		}
		if stream := c.Param("stream"); stream != "" {
			event = event.Str("stream", stream)
		}
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			event = event.Bool("upgrade", true)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("admin_request")
	}
}

// RequestMetricsMiddleware feeds treesync_http_* with the matched route template.
func RequestMetricsMiddleware(node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := routeOf(c)
		if route == "/metrics" {
			return
		}
		RecordHTTPRequest(node, c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
