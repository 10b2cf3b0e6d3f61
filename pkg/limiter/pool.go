package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/flowsync/flowsync-api/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrPanic is recorded for a settled task that panicked.
var ErrPanic = errors.New("task panicked")

// Pool caps the number of in-flight calls to one external API. Paced calls
// hold their slot for an extra delay after they finish, which spreads bursts
// of creates out over time.
type Pool struct {
	name  string
	size  int64
	sem   *semaphore.Weighted
	delay time.Duration
}

// NewPool creates a pool with the given cap and post-operation delay. A cap
// below one is treated as one.
func NewPool(name string, size int, delay time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		name:  name,
		size:  int64(size),
		sem:   semaphore.NewWeighted(int64(size)),
		delay: delay,
	}
}

// Name returns the pool name used in logs.
func (p *Pool) Name() string { return p.name }

// Size returns the concurrency cap.
func (p *Pool) Size() int { return int(p.size) }

// Do runs fn while holding one slot.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// DoPaced runs fn while holding one slot and keeps the slot for the pool's
// delay afterwards, whether fn failed or not.
func (p *Pool) DoPaced(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	err := fn(ctx)
	if p.delay > 0 {
		t := time.NewTimer(p.delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
	return err
}

// Settle runs fn for every element with at most limit running at once and
// returns when all of them have finished. Failures are reported through the
// returned slice, indexed like items, and never stop siblings.
func Settle[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) error) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Recovered panic in settled task", zap.Any("panic", r), zap.Int("index", i))
					errs[i] = ErrPanic
				}
			}()
			errs[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// CountFailed returns the number of non-nil errors.
func CountFailed(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}
