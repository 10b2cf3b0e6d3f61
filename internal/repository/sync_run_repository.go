package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowsync/flowsync-api/internal/models"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/metrics"
)

// SyncRunRepository handles sync run records
type SyncRunRepository struct {
	pool *pgxpool.Pool
}

// NewSyncRunRepository creates a new sync run repository
func NewSyncRunRepository(pool *pgxpool.Pool) *SyncRunRepository {
	return &SyncRunRepository{
		pool: pool,
	}
}

// Create inserts a run in the running state.
func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	start := time.Now()
	query := `
		INSERT INTO sync_runs (id, integration_id, trigger, status, collection_ids, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query, run.ID, run.IntegrationID, run.Trigger, run.Status, run.CollectionIDs, run.StartedAt)
	observe("create_sync_run", metrics.MeasureDuration(start), err)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// Finish stores the result and the status derived from it.
func (r *SyncRunRepository) Finish(ctx context.Context, runID string, result *models.SyncResult) error {
	start := time.Now()
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode sync result: %w", err)
	}
	query := `
		UPDATE sync_runs
		SET status = $2, result = $3, finished_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, runID, result.Status(), payload)
	observe("finish_sync_run", metrics.MeasureDuration(start), err)
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundError("sync run")
	}
	return nil
}

// GetByID fetches a run of the given integration.
func (r *SyncRunRepository) GetByID(ctx context.Context, integrationID, runID string) (*models.SyncRun, error) {
	start := time.Now()
	query := `
		SELECT id, integration_id, trigger, status, collection_ids, result, started_at, finished_at
		FROM sync_runs
		WHERE id = $1 AND integration_id = $2
	`

	var run models.SyncRun
	var result []byte
	err := r.pool.QueryRow(ctx, query, runID, integrationID).Scan(
		&run.ID, &run.IntegrationID, &run.Trigger, &run.Status,
		&run.CollectionIDs, &result, &run.StartedAt, &run.FinishedAt,
	)
	observe("get_sync_run", metrics.MeasureDuration(start), err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundError("sync run")
		}
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	if len(result) > 0 {
		run.Result = &models.SyncResult{}
		if err := json.Unmarshal(result, run.Result); err != nil {
			return nil, fmt.Errorf("failed to decode sync result: %w", err)
		}
	}
	return &run, nil
}
