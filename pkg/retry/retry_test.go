package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
)

func fastConfig() Config {
	return Config{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestDoWithResult_RetriesTransient(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(), "test", func() (string, error) {
		calls++
		if calls < 3 {
			return "", apperrors.UpstreamError("notion", 503, "service_unavailable", "down")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDoWithResult_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := DoWithResult(context.Background(), fastConfig(), "test", func() (int, error) {
		calls++
		return 0, apperrors.UpstreamError("notion", 400, "validation_error", "bad")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestDo_ConfigurationIsNeverRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), "test", func() error {
		calls++
		return apperrors.ConfigurationError("notion token")
	})

	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), "test", func() error {
		calls++
		return apperrors.UpstreamError("webflow", 429, "too_many_requests", "slow down")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.True(t, apperrors.Is(err, apperrors.ErrRateLimited))
}

func TestDo_ConflictRetriedOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), ConflictConfig(time.Millisecond), "create", func() error {
		calls++
		return apperrors.UpstreamError("notion", 409, "conflict_error", "collision")
	})

	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(), "test", func() error {
		t.Fatal("operation must not run")
		return nil
	})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCalculateDelay(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, calculateDelay(0, cfg))
	assert.Equal(t, 200*time.Millisecond, calculateDelay(1, cfg))
	assert.Equal(t, 300*time.Millisecond, calculateDelay(2, cfg))

	cfg.Jitter = true
	for i := 0; i < 20; i++ {
		d := calculateDelay(0, cfg)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestDo_HonoursRetryAfterUpToMaxDelay(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 1
	cfg.MaxDelay = 20 * time.Millisecond

	start := time.Now()
	calls := 0
	_ = Do(context.Background(), cfg, "test", func() error {
		calls++
		return &apperrors.APIError{Service: "webflow", Status: 429, RetryAfter: time.Hour}
	})

	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
}
