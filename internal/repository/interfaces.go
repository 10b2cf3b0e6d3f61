package repository

import (
	"context"

	"github.com/flowsync/flowsync-api/internal/models"
)

// IntegrationRepositoryInterface reads the Webflow site / Notion page pairs
// users have configured.
type IntegrationRepositoryInterface interface {
	// GetByID fetches an integration regardless of owner (webhook path)
	GetByID(ctx context.Context, id string) (*models.Integration, error)

	// GetForUser fetches an integration only if userID owns it
	GetForUser(ctx context.Context, userID, id string) (*models.Integration, error)

	// ListAutoSync returns every integration with scheduled re-sync enabled
	ListAutoSync(ctx context.Context) ([]*models.Integration, error)
}

// TokenRepositoryInterface reads stored OAuth access tokens.
type TokenRepositoryInterface interface {
	GetToken(ctx context.Context, userID string, provider models.Provider) (string, error)
}

// MappingRepositoryInterface persists collection→database and item→page pairs.
type MappingRepositoryInterface interface {
	GetCollectionMapping(ctx context.Context, integrationID, collectionID string) (*models.CollectionMapping, error)
	ListCollectionMappings(ctx context.Context, integrationID string) ([]models.CollectionMapping, error)
	SaveCollectionMapping(ctx context.Context, m *models.CollectionMapping) error

	GetItemMapping(ctx context.Context, integrationID, itemID string) (*models.ItemMapping, error)
	SaveItemMapping(ctx context.Context, m *models.ItemMapping) error
	DeleteItemMapping(ctx context.Context, integrationID, itemID string) error
	GetItemMappingByPage(ctx context.Context, integrationID, pageID string) (*models.ItemMapping, error)
	DeleteItemMappingByPage(ctx context.Context, integrationID, pageID string) error
}

// SyncRunRepositoryInterface records orchestrated sync runs.
type SyncRunRepositoryInterface interface {
	Create(ctx context.Context, run *models.SyncRun) error
	Finish(ctx context.Context, runID string, result *models.SyncResult) error
	GetByID(ctx context.Context, integrationID, runID string) (*models.SyncRun, error)
}

var (
	_ IntegrationRepositoryInterface = (*IntegrationRepository)(nil)
	_ TokenRepositoryInterface       = (*TokenRepository)(nil)
	_ MappingRepositoryInterface     = (*MappingRepository)(nil)
	_ SyncRunRepositoryInterface     = (*SyncRunRepository)(nil)
)
