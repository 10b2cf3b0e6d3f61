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

// MappingRepository stores which database belongs to which collection and
// which page belongs to which item.
type MappingRepository struct {
	pool *pgxpool.Pool
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(pool *pgxpool.Pool) *MappingRepository {
	return &MappingRepository{
		pool: pool,
	}
}

func (r *MappingRepository) GetCollectionMapping(ctx context.Context, integrationID, collectionID string) (*models.CollectionMapping, error) {
	start := time.Now()
	query := `
		SELECT integration_id, collection_id, collection_name, notion_database_id, created_at
		FROM collection_mappings
		WHERE integration_id = $1 AND collection_id = $2
	`

	var m models.CollectionMapping
	err := r.pool.QueryRow(ctx, query, integrationID, collectionID).
		Scan(&m.IntegrationID, &m.CollectionID, &m.CollectionName, &m.DatabaseID, &m.CreatedAt)
	observe("get_collection_mapping", metrics.MeasureDuration(start), err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundError("collection mapping")
		}
		return nil, fmt.Errorf("failed to get collection mapping: %w", err)
	}
	return &m, nil
}

func (r *MappingRepository) ListCollectionMappings(ctx context.Context, integrationID string) ([]models.CollectionMapping, error) {
	start := time.Now()
	query := `
		SELECT integration_id, collection_id, collection_name, notion_database_id, created_at
		FROM collection_mappings
		WHERE integration_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, integrationID)
	if err != nil {
		observe("list_collection_mappings", metrics.MeasureDuration(start), err)
		return nil, fmt.Errorf("failed to list collection mappings: %w", err)
	}
	defer rows.Close()

	var out []models.CollectionMapping
	for rows.Next() {
		var m models.CollectionMapping
		if err := rows.Scan(&m.IntegrationID, &m.CollectionID, &m.CollectionName, &m.DatabaseID, &m.CreatedAt); err != nil {
			observe("list_collection_mappings", metrics.MeasureDuration(start), err)
			return nil, fmt.Errorf("failed to scan collection mapping: %w", err)
		}
		out = append(out, m)
	}
	err = rows.Err()
	observe("list_collection_mappings", metrics.MeasureDuration(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection mappings: %w", err)
	}
	return out, nil
}

// SaveCollectionMapping inserts the mapping, or renames it if the collection
// is already mapped. The database ID of an existing mapping is never replaced.
func (r *MappingRepository) SaveCollectionMapping(ctx context.Context, m *models.CollectionMapping) error {
	start := time.Now()
	query := `
		INSERT INTO collection_mappings (integration_id, collection_id, collection_name, notion_database_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (integration_id, collection_id)
		DO UPDATE SET collection_name = EXCLUDED.collection_name
	`

	_, err := r.pool.Exec(ctx, query, m.IntegrationID, m.CollectionID, m.CollectionName, m.DatabaseID)
	observe("save_collection_mapping", metrics.MeasureDuration(start), err)
	if err != nil {
		return fmt.Errorf("failed to save collection mapping: %w", err)
	}
	return nil
}

func (r *MappingRepository) GetItemMapping(ctx context.Context, integrationID, itemID string) (*models.ItemMapping, error) {
	start := time.Now()
	query := `
		SELECT integration_id, webflow_item_id, collection_id, notion_page_id, updated_at
		FROM item_mappings
		WHERE integration_id = $1 AND webflow_item_id = $2
	`

	var m models.ItemMapping
	err := r.pool.QueryRow(ctx, query, integrationID, itemID).
		Scan(&m.IntegrationID, &m.WebflowItemID, &m.CollectionID, &m.NotionPageID, &m.UpdatedAt)
	observe("get_item_mapping", metrics.MeasureDuration(start), err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundError("item mapping")
		}
		return nil, fmt.Errorf("failed to get item mapping: %w", err)
	}
	return &m, nil
}

// SaveItemMapping upserts the page of an item.
func (r *MappingRepository) SaveItemMapping(ctx context.Context, m *models.ItemMapping) error {
	start := time.Now()
	query := `
		INSERT INTO item_mappings (integration_id, webflow_item_id, collection_id, notion_page_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (integration_id, webflow_item_id)
		DO UPDATE SET notion_page_id = EXCLUDED.notion_page_id,
		              collection_id = EXCLUDED.collection_id,
		              updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, m.IntegrationID, m.WebflowItemID, m.CollectionID, m.NotionPageID)
	observe("save_item_mapping", metrics.MeasureDuration(start), err)
	if err != nil {
		return fmt.Errorf("failed to save item mapping: %w", err)
	}
	return nil
}

// DeleteItemMapping removes the mapping. Deleting a missing mapping is not an error.
func (r *MappingRepository) DeleteItemMapping(ctx context.Context, integrationID, itemID string) error {
	start := time.Now()
	query := `DELETE FROM item_mappings WHERE integration_id = $1 AND webflow_item_id = $2`

	_, err := r.pool.Exec(ctx, query, integrationID, itemID)
	observe("delete_item_mapping", metrics.MeasureDuration(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete item mapping: %w", err)
	}
	return nil
}

// GetItemMappingByPage returns the mapping that points at a Notion page.
func (r *MappingRepository) GetItemMappingByPage(ctx context.Context, integrationID, pageID string) (*models.ItemMapping, error) {
	start := time.Now()
	query := `
		SELECT integration_id, webflow_item_id, collection_id, notion_page_id, updated_at
		FROM item_mappings
		WHERE integration_id = $1 AND notion_page_id = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var m models.ItemMapping
	err := r.pool.QueryRow(ctx, query, integrationID, pageID).
		Scan(&m.IntegrationID, &m.WebflowItemID, &m.CollectionID, &m.NotionPageID, &m.UpdatedAt)
	observe("get_item_mapping_by_page", metrics.MeasureDuration(start), err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFoundError("item mapping")
		}
		return nil, fmt.Errorf("failed to get item mapping by page: %w", err)
	}
	return &m, nil
}

// DeleteItemMappingByPage removes every mapping that points at a Notion page.
func (r *MappingRepository) DeleteItemMappingByPage(ctx context.Context, integrationID, pageID string) error {
	start := time.Now()
	query := `DELETE FROM item_mappings WHERE integration_id = $1 AND notion_page_id = $2`

	_, err := r.pool.Exec(ctx, query, integrationID, pageID)
	observe("delete_item_mapping_by_page", metrics.MeasureDuration(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete item mapping by page: %w", err)
	}
	return nil
}
