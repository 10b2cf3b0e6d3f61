// Package scheduler re-runs mapped collection syncs on a cron schedule so
// drift from missed webhook deliveries is repaired.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/flowsync/flowsync-api/internal/models"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/logger"
)

// IntegrationLister lists integrations that opted into scheduled re-sync.
type IntegrationLister interface {
	ListAutoSync(ctx context.Context) ([]*models.Integration, error)
}

// Resyncer starts a re-sync of everything an integration has mapped.
type Resyncer interface {
	ResyncMapped(ctx context.Context, integration *models.Integration) (*models.SyncRun, error)
}

// Scheduler owns the cron instance.
type Scheduler struct {
	integrations IntegrationLister
	syncs        Resyncer
	cron         *cron.Cron
	timeout      time.Duration
}

// New creates a scheduler for spec. An empty spec yields a scheduler whose
// Start and Stop are no-ops.
func New(spec string, integrations IntegrationLister, syncs Resyncer) (*Scheduler, error) {
	s := &Scheduler{
		integrations: integrations,
		syncs:        syncs,
		timeout:      time.Minute,
	}
	if spec == "" {
		return s, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, s.Tick); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	s.cron = c
	return s, nil
}

// Start begins running scheduled ticks in the background.
func (s *Scheduler) Start() {
	if s.cron == nil {
		return
	}
	s.cron.Start()
	logger.Info("Sync scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop prevents new ticks and waits for a running tick to return or ctx to
// end. Sync runs the tick started keep going in the sync service.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Tick starts a re-sync for every auto-sync integration. Integrations that
// already have a run in flight are skipped.
func (s *Scheduler) Tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	integrations, err := s.integrations.ListAutoSync(ctx)
	if err != nil {
		logger.Error("Failed to list auto-sync integrations", zap.Error(err))
		return
	}

	started := 0
	for _, integration := range integrations {
		run, err := s.syncs.ResyncMapped(ctx, integration)
		switch {
		case apperrors.IsConflict(err):
			logger.Info("Skipping scheduled sync, run in flight", zap.String("integration_id", integration.ID))
		case err != nil:
			logger.Error("Failed to start scheduled sync",
				zap.String("integration_id", integration.ID), zap.Error(err))
		case run != nil:
			started++
		}
	}
	logger.Info("Scheduled sync tick",
		zap.Int("integrations", len(integrations)),
		zap.Int("runs_started", started))
}
