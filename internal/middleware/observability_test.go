package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/flowsync/flowsync-api/pkg/metrics"
)

func observedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	previous := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = previous })

	router := gin.New()
	router.Use(ObservabilityMiddleware())
	router.GET("/api/healthcheck", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/integrations/:id/sync-runs/:runId", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})
	return router, logs
}

func TestObservabilityMiddleware_UsesRouteTemplate(t *testing.T) {
	router, logs := observedRouter(t)
	counter := metrics.HTTPRequestTotal.WithLabelValues("GET", "/api/v1/integrations/:id/sync-runs/:runId", "404")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations/int-1/sync-runs/run-9?token=abc&verbose=1", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "int-1", fields["id"])
	assert.Equal(t, "run-9", fields["runId"])
	query, ok := fields["query_params"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "1", query["verbose"])
	assert.NotContains(t, query, "token")
}

func TestObservabilityMiddleware_QuietHealthcheck(t *testing.T) {
	router, logs := observedRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/healthcheck", nil))

	assert.Zero(t, logs.Len())
}

func TestObservabilityMiddleware_UnmatchedRoute(t *testing.T) {
	router, _ := observedRouter(t)
	counter := metrics.HTTPRequestTotal.WithLabelValues("GET", "unmatched", "404")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
