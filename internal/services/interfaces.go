package services

import (
	"context"

	"github.com/jomei/notionapi"

	"github.com/flowsync/flowsync-api/internal/linker"
	"github.com/flowsync/flowsync-api/internal/models"
	"github.com/flowsync/flowsync-api/internal/resolver"
	"github.com/flowsync/flowsync-api/pkg/notion"
	"github.com/flowsync/flowsync-api/pkg/webflow"
)

// NotionAPI is everything the sync pipeline does against Notion
type NotionAPI interface {
	CreateDatabase(ctx context.Context, parentPageID, title string, props notionapi.PropertyConfigs) (*notionapi.Database, error)
	GetDatabase(ctx context.Context, databaseID string) (*notionapi.Database, error)
	UpdateDatabaseProperties(ctx context.Context, databaseID string, props notionapi.PropertyConfigs) (*notionapi.Database, error)
	CreatePage(ctx context.Context, databaseID string, props notionapi.Properties, children []notionapi.Block) (*notionapi.Page, error)
	UpdatePageProperties(ctx context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error)
	ArchivePage(ctx context.Context, pageID string) error
	AppendBlocks(ctx context.Context, blockID string, blocks []notionapi.Block) error
	ReplaceContent(ctx context.Context, pageID string, blocks []notionapi.Block) error
	QueryByRichText(ctx context.Context, databaseID, property, value string) ([]notionapi.Page, error)
}

// WebflowAPI is everything the sync pipeline does against Webflow
type WebflowAPI interface {
	ListCollections(ctx context.Context, siteID string) ([]models.CollectionSummary, error)
	GetCollection(ctx context.Context, collectionID string) (*models.Collection, error)
	ListItems(ctx context.Context, collectionID string) ([]models.Item, error)
	GetItem(ctx context.Context, collectionID, itemID string) (*models.Item, error)
	CreateItem(ctx context.Context, collectionID string, fieldData map[string]any, isDraft bool) (*models.Item, error)
	UpdateItem(ctx context.Context, collectionID, itemID string, fieldData map[string]any) (*models.Item, error)
	DeleteItem(ctx context.Context, collectionID, itemID string) error
	CreateField(ctx context.Context, collectionID string, spec models.FieldSpec) (*models.Field, error)
}

// SyncServiceInterface defines the orchestrated sync operations
type SyncServiceInterface interface {
	StartSync(ctx context.Context, userID, integrationID string, collectionIDs []string, trigger string) (*models.SyncRun, error)
	RunSelectedCollectionsSync(ctx context.Context, userID, integrationID string, collectionIDs []string) (*models.SyncResult, error)
	GetRun(ctx context.Context, userID, integrationID, runID string) (*models.SyncRun, error)
	ResyncMapped(ctx context.Context, integration *models.Integration) (*models.SyncRun, error)
}

// WebhookServiceInterface defines the incremental, per-item sync path
type WebhookServiceInterface interface {
	Dispatch(ctx context.Context, integrationID string, event *models.WebhookEvent) (*models.WebhookResult, error)
	HandleItemCreated(ctx context.Context, integration *models.Integration, payload *models.WebhookPayload) *models.WebhookResult
	HandleItemUpdated(ctx context.Context, integration *models.Integration, payload *models.WebhookPayload) *models.WebhookResult
	HandleItemDeleted(ctx context.Context, integration *models.Integration, payload *models.WebhookPayload) *models.WebhookResult
}

// Ensure implementations satisfy their interfaces
var (
	_ NotionAPI               = (*notion.Client)(nil)
	_ WebflowAPI              = (*webflow.Client)(nil)
	_ linker.NotionAPI        = (NotionAPI)(nil)
	_ linker.WebflowAPI       = (WebflowAPI)(nil)
	_ resolver.NotionAPI      = (NotionAPI)(nil)
	_ SyncServiceInterface    = (*SyncService)(nil)
	_ WebhookServiceInterface = (*WebhookService)(nil)
)
