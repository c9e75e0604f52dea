package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/expenseflow-go/pkg/logger"
	"github.com/expenseflow-go/pkg/metrics"
	"github.com/expenseflow-go/pkg/ratelimit"
	"github.com/expenseflow-go/pkg/telemetry"
)

const serviceName = "rbac-agent"

// NewRouter exposes the store for inspection and local tooling. limiter, when
// set, throttles the endpoints that change or reload the role.
func NewRouter(h *Handlers, log logger.Logger, tel *telemetry.Telemetry, limiter ratelimit.RateLimiter) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	if tel != nil {
		router.Use(tel.HTTPMiddleware())
	}
	router.Use(loggingMiddleware(log))

	router.GET("/health/live", h.Health)
	router.GET("/health/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/role", h.GetRole)
		v1.GET("/role/stream", h.StreamRole)

		mutating := v1.Group("")
		if limiter != nil {
			mutating.Use(ratelimit.Middleware(limiter, ratelimit.IPKeyFunc))
		}
		mutating.PUT("/role", h.SetRole)
		mutating.DELETE("/role", h.ClearRole)
		mutating.POST("/role/reload", h.ReloadRole)
		mutating.POST("/role/invalidate", h.InvalidateRole)

		v1.GET("/check/permission", h.CheckPermission)
		v1.GET("/check/action", h.CheckAction)
		v1.GET("/check/role", h.CheckRole)
	}

	return router
}

func loggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(serviceName, c.Request.Method, route, strconv.Itoa(statusCode))
		metrics.RecordHTTPDuration(serviceName, c.Request.Method, route, latency.Seconds())

		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"status", statusCode,
			"latency", latency,
			"ip", c.ClientIP(),
		)
	}
}
