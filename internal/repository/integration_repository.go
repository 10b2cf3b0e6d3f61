package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowsync/flowsync-api/internal/models"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/metrics"
)

const integrationColumns = `id, user_id, webflow_site_id, notion_parent_page, auto_sync, created_at, updated_at`

// IntegrationRepository handles integration data access
type IntegrationRepository struct {
	pool *pgxpool.Pool
}

// NewIntegrationRepository creates a new integration repository
func NewIntegrationRepository(pool *pgxpool.Pool) *IntegrationRepository {
	return &IntegrationRepository{
		pool: pool,
	}
}

func scanIntegration(row pgx.Row) (*models.Integration, error) {
	var i models.Integration
	err := row.Scan(&i.ID, &i.UserID, &i.WebflowSiteID, &i.NotionParentPageID, &i.AutoSync, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// GetByID fetches an integration by ID.
func (r *IntegrationRepository) GetByID(ctx context.Context, id string) (*models.Integration, error) {
	start := time.Now()
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE id = $1`

	integration, err := scanIntegration(r.pool.QueryRow(ctx, query, id))
	observe("get_integration", metrics.MeasureDuration(start), err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundError("integration")
		}
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return integration, nil
}

// GetForUser fetches an integration owned by userID. Integrations of other
// users are reported as not found.
func (r *IntegrationRepository) GetForUser(ctx context.Context, userID, id string) (*models.Integration, error) {
	start := time.Now()
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE id = $1 AND user_id = $2`

	integration, err := scanIntegration(r.pool.QueryRow(ctx, query, id, userID))
	observe("get_user_integration", metrics.MeasureDuration(start), err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundError("integration")
		}
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return integration, nil
}

// ListAutoSync returns the integrations the scheduler re-syncs.
func (r *IntegrationRepository) ListAutoSync(ctx context.Context) ([]*models.Integration, error) {
	start := time.Now()
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE auto_sync ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		observe("list_auto_sync", metrics.MeasureDuration(start), err)
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer rows.Close()

	var out []*models.Integration
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			observe("list_auto_sync", metrics.MeasureDuration(start), err)
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		out = append(out, integration)
	}
	err = rows.Err()
	observe("list_auto_sync", metrics.MeasureDuration(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	return out, nil
}
