package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/flowsync/flowsync-api/pkg/metrics"
)

// redactedQueryParams never reach the logs.
var redactedQueryParams = map[string]bool{
	"token": true, "access_token": true, "code": true, "secret": true,
	"key": true, "api_key": true, "signature": true,
}

// quietRoutes are probed constantly; successful hits are logged at debug.
var quietRoutes = map[string]bool{
	"/api/healthcheck": true,
	"/api/metrics":     true,
}

// ObservabilityMiddleware records HTTP metrics and one log line per request.
// Metrics use the route template so sync run and integration IDs do not
// become label values.
func ObservabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		metrics.ActiveRequests.WithLabelValues(method).Inc()
		defer metrics.ActiveRequests.WithLabelValues(method).Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		duration := metrics.MeasureDuration(start)
		status := c.Writer.Status()
		statusLabel := strconv.Itoa(status)

		metrics.HTTPRequestDuration.WithLabelValues(method, route, statusLabel).Observe(duration)
		metrics.HTTPRequestTotal.WithLabelValues(method, route, statusLabel).Inc()

		if quietRoutes[route] && status < 400 {
			logger.Debug("HTTP probe", zap.String("path", route), zap.Int("status", status))
			return
		}
		logger.LogHTTPRequest(method, c.Request.URL.Path, status, duration, requestFields(c, status)...)
	}
}

func requestFields(c *gin.Context, status int) []zap.Field {
	fields := []zap.Field{
		zap.String("client_ip", c.ClientIP()),
		zap.Int("response_size", c.Writer.Size()),
	}
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	// Integration and run IDs are what operators search by
	for _, key := range []string{"id", "integrationId", "runId"} {
		if v := c.Param(key); v != "" {
			fields = append(fields, zap.String(key, v))
		}
	}
	if status < 400 {
		return fields
	}

	fields = append(fields, zap.String("user_agent", c.Request.UserAgent()))
	if query := c.Request.URL.Query(); len(query) > 0 {
		kept := make(map[string]string, len(query))
		for k, v := range query {
			if !redactedQueryParams[strings.ToLower(k)] && len(v) > 0 {
				kept[k] = v[0]
			}
		}
		if len(kept) > 0 {
			fields = append(fields, zap.Any("query_params", kept))
		}
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.String("error", c.Errors.String()))
	}
	return fields
}
