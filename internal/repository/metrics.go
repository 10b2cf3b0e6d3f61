package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/flowsync/flowsync-api/pkg/metrics"
)

// recordMetrics records database operation metrics
func recordMetrics(operation, status string, duration float64) {
	metrics.DBOperationDuration.WithLabelValues(operation, status).Observe(duration)
	metrics.DBOperationTotal.WithLabelValues(operation, status).Inc()
}

// observe records the outcome of one query. pgx.ErrNoRows is reported as
// not_found rather than an error.
func observe(operation string, duration float64, err error) {
	switch {
	case err == nil:
		recordMetrics(operation, "success", duration)
	case errors.Is(err, pgx.ErrNoRows):
		recordMetrics(operation, "not_found", duration)
	default:
		recordMetrics(operation, "error", duration)
		logger.LogAPICall("postgres", operation, "error", duration, zap.Error(err))
	}
}
