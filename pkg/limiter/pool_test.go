package limiter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_CapsInFlight(t *testing.T) {
	pool := NewPool("test", 2, 0)
	var inFlight, peak int32

	items := make([]int, 10)
	errs := Settle(context.Background(), 0, items, func(ctx context.Context, _ int) error {
		return pool.Do(ctx, func(context.Context) error {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return nil
		})
	})

	assert.Equal(t, 0, CountFailed(errs))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPool_DoPacedHoldsSlotForDelay(t *testing.T) {
	pool := NewPool("paced", 1, 30*time.Millisecond)
	start := time.Now()

	errs := Settle(context.Background(), 0, []int{1, 2}, func(ctx context.Context, _ int) error {
		return pool.DoPaced(ctx, func(context.Context) error { return nil })
	})

	assert.Equal(t, 0, CountFailed(errs))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestPool_DoPacedReturnsFnError(t *testing.T) {
	pool := NewPool("paced", 1, time.Millisecond)
	boom := errors.New("boom")
	err := pool.DoPaced(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestPool_CanceledContext(t *testing.T) {
	pool := NewPool("busy", 1, 0)
	release := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func(context.Context) error {
			<-release
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}

func TestSettle_IsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	errs := Settle(context.Background(), 2, []int{1, 2, 3, 4}, func(_ context.Context, n int) error {
		if n%2 == 0 {
			return boom
		}
		if n == 3 {
			panic("bad item")
		}
		return nil
	})

	require.Len(t, errs, 4)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], boom)
	assert.ErrorIs(t, errs[2], ErrPanic)
	assert.ErrorIs(t, errs[3], boom)
	assert.Equal(t, 3, CountFailed(errs))
}

func TestNewPool_MinimumSize(t *testing.T) {
	assert.Equal(t, 1, NewPool("zero", 0, 0).Size())
}
