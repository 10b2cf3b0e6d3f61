package circuitbreaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/flowsync/flowsync-api/pkg/metrics"
)

// Config holds circuit breaker configuration
type Config struct {
	Name        string
	MaxRequests uint32        // probes allowed while half-open
	Interval    time.Duration // closed-state window for failure counts
	Timeout     time.Duration // how long the breaker stays open
	MinRequests uint32
	MaxFailures float64 // failure ratio that trips the breaker
}

// DefaultConfig returns the breaker settings used for Webflow and Notion
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		MinRequests: 5,
		MaxFailures: 0.6,
	}
}

// NewCircuitBreaker creates a breaker that only counts upstream outages as
// failures. Validation rejections and conflicts are per-item outcomes.
func NewCircuitBreaker(cfg Config) *gobreaker.CircuitBreaker {
	minRequests, maxFailures := cfg.MinRequests, cfg.MaxFailures
	if minRequests == 0 {
		minRequests = 1
	}
	if maxFailures <= 0 {
		maxFailures = 1
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return !apperrors.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Execute runs fn through cb. A nil result is returned as the zero value.
func Execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return zero, FormatError(cb.Name(), err)
	}
	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, apperrors.InternalError(fmt.Sprintf("circuit breaker %q returned %T", cb.Name(), result))
	}
	return typed, nil
}

// FormatError marks breaker rejections as upstream failures. They are not
// transient, so callers stop retrying while the breaker is open.
func FormatError(breakerName string, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return fmt.Errorf("%w: circuit breaker %q is open: %w", apperrors.ErrUpstream, breakerName, err)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: circuit breaker %q is probing: %w", apperrors.ErrUpstream, breakerName, err)
	default:
		return err
	}
}
