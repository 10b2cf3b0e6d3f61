package services

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"

	"github.com/flowsync/flowsync-api/internal/cache"
	"github.com/flowsync/flowsync-api/internal/mapping"
	"github.com/flowsync/flowsync-api/internal/models"
	"github.com/flowsync/flowsync-api/internal/repository"
	"github.com/flowsync/flowsync-api/internal/resolver"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/flowsync/flowsync-api/pkg/metrics"
)

// WebhookService applies single-item Webflow events to Notion. Handlers are
// idempotent for repeated deliveries of the same event.
type WebhookService struct {
	integrations repository.IntegrationRepositoryInterface
	mappings     repository.MappingRepositoryInterface
	factory      ClientFactory
	schemaCache  *cache.SchemaCache
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	integrations repository.IntegrationRepositoryInterface,
	mappings repository.MappingRepositoryInterface,
	factory ClientFactory,
	schemaCache *cache.SchemaCache,
) *WebhookService {
	return &WebhookService{
		integrations: integrations,
		mappings:     mappings,
		factory:      factory,
		schemaCache:  schemaCache,
	}
}

// Dispatch routes a verified delivery to its handler. The error is only set
// when the integration cannot be loaded; handler failures are reported in
// the result.
func (s *WebhookService) Dispatch(ctx context.Context, integrationID string, event *models.WebhookEvent) (*models.WebhookResult, error) {
	integration, err := s.integrations.GetByID(ctx, integrationID)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(event.TriggerType, "error").Inc()
		return nil, err
	}

	var result *models.WebhookResult
	switch event.TriggerType {
	case models.TriggerItemCreated:
		result = s.HandleItemCreated(ctx, integration, &event.Payload)
	case models.TriggerItemChanged, models.TriggerItemUnpublished:
		result = s.HandleItemUpdated(ctx, integration, &event.Payload)
	case models.TriggerItemDeleted:
		result = s.HandleItemDeleted(ctx, integration, &event.Payload)
	default:
		metrics.WebhookEvents.WithLabelValues(event.TriggerType, "ignored").Inc()
		return &models.WebhookResult{Success: true, Message: "trigger type ignored"}, nil
	}

	status := "success"
	if !result.Success {
		status = "failure"
		logger.Warn("Webhook event failed",
			zap.String("integration_id", integrationID),
			zap.String("trigger_type", event.TriggerType),
			zap.String("item_id", event.Payload.ItemRef()),
			zap.String("error", result.Error))
	}
	metrics.WebhookEvents.WithLabelValues(event.TriggerType, status).Inc()
	return result, nil
}

func webhookFailure(message string, err error) *models.WebhookResult {
	return &models.WebhookResult{Success: false, Message: message, Error: err.Error()}
}

// itemContext is what every item handler needs once the item's collection
// is known to be synced.
type itemContext struct {
	sess       *Session
	collection *models.Collection
	databaseID string
	properties notionapi.PropertyConfigs
}

func (c *itemContext) target() pageTarget {
	return pageTarget{collection: c.collection, databaseID: c.databaseID, properties: c.properties}
}

// load resolves the session and the cached schemas for a payload. When the
// event needs no further work, or cannot be handled, the returned result is
// final.
func (s *WebhookService) load(ctx context.Context, integration *models.Integration, payload *models.WebhookPayload) (*itemContext, *models.WebhookResult) {
	if payload.ItemRef() == "" || payload.CollectionID == "" {
		return nil, webhookFailure("invalid payload", apperrors.InvalidInputError("payload", "item and collection IDs are required"))
	}
	if payload.SiteID != "" && integration.WebflowSiteID != "" && payload.SiteID != integration.WebflowSiteID {
		return nil, &models.WebhookResult{Success: true, Message: "site not linked to integration"}
	}

	cm, err := s.mappings.GetCollectionMapping(ctx, integration.ID, payload.CollectionID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, &models.WebhookResult{Success: true, Message: "collection not synced"}
	}
	if err != nil {
		return nil, webhookFailure("failed to load collection mapping", err)
	}

	sess, err := s.factory.NewSession(ctx, integration)
	if err != nil {
		return nil, webhookFailure("failed to initialize clients", err)
	}

	collection, err := s.schemaCache.Collection(ctx, integration.ID, payload.CollectionID, func(ctx context.Context) (*models.Collection, error) {
		return sess.Webflow.GetCollection(ctx, payload.CollectionID)
	})
	if err != nil {
		return nil, webhookFailure("failed to load collection", err)
	}
	properties, err := s.schemaCache.Database(ctx, cm.DatabaseID, func(ctx context.Context) (notionapi.PropertyConfigs, error) {
		db, err := sess.Notion.GetDatabase(ctx, cm.DatabaseID)
		if err != nil {
			return nil, err
		}
		return db.Properties, nil
	})
	if err != nil {
		return nil, webhookFailure("failed to load database", err)
	}

	return &itemContext{
		sess:       sess,
		collection: collection,
		databaseID: cm.DatabaseID,
		properties: properties,
	}, nil
}

// HandleItemCreated creates a page holding only the title, item ID and
// status. Field values and content follow with the next update event. An
// item that already has a page is left alone.
func (s *WebhookService) HandleItemCreated(ctx context.Context, integration *models.Integration, payload *models.WebhookPayload) *models.WebhookResult {
	itemID := payload.ItemRef()
	if itemID != "" {
		if m, err := s.mappings.GetItemMapping(ctx, integration.ID, itemID); err == nil {
			return &models.WebhookResult{Success: true, Message: fmt.Sprintf("item already synced to page %s", m.NotionPageID)}
		}
	}

	ic, res := s.load(ctx, integration, payload)
	if res != nil {
		return res
	}

	item := payload.Item()
	props, warnings := mapping.MapItemProperties(&item, nil, ic.properties)
	recordWarnings(warnings, zap.String("integration_id", integration.ID), zap.String("item_id", item.ID))

	out, err := upsertPage(ctx, ic.sess, s.mappings, ic.target(), &item, props, nil)
	if err != nil {
		s.schemaCache.Invalidate(integration.ID, ic.collection.ID, ic.databaseID)
		return webhookFailure("failed to create page", err)
	}
	if out.linkFailed {
		return &models.WebhookResult{Success: true, Message: "page created, back-reference not written"}
	}
	return &models.WebhookResult{Success: true, Message: "page created"}
}

// HandleItemUpdated re-maps every field and the page body and overwrites the
// page, creating it when the item has none yet.
func (s *WebhookService) HandleItemUpdated(ctx context.Context, integration *models.Integration, payload *models.WebhookPayload) *models.WebhookResult {
	ic, res := s.load(ctx, integration, payload)
	if res != nil {
		return res
	}

	item := payload.Item()
	fields := ic.collection.Fields
	props, warnings := mapping.MapItemProperties(&item, fields, ic.properties)

	bindings := mapping.BuildDatabaseSchema(fields).Bindings
	relations, w, _ := resolver.RelationProperties(bindings, ic.properties, &item, storedPages(ctx, s.mappings, integration.ID))
	warnings = append(warnings, w...)
	options, w, _ := resolver.OptionProperties(bindings, ic.properties, &item)
	warnings = append(warnings, w...)
	for name, p := range relations {
		props[name] = p
	}
	for name, p := range options {
		props[name] = p
	}
	recordWarnings(warnings, zap.String("integration_id", integration.ID), zap.String("item_id", item.ID))

	out, err := upsertPage(ctx, ic.sess, s.mappings, ic.target(), &item, props, itemBlocks(fields, &item))
	if err != nil {
		s.schemaCache.Invalidate(integration.ID, ic.collection.ID, ic.databaseID)
		return webhookFailure("failed to update page", err)
	}
	msg := "page updated"
	if out.created {
		msg = "page created"
	}
	if out.linkFailed {
		msg += ", back-reference not written"
	}
	return &models.WebhookResult{Success: true, Message: msg}
}

// HandleItemDeleted archives the item's page and drops its mapping. The
// mapping is removed even when archiving fails.
func (s *WebhookService) HandleItemDeleted(ctx context.Context, integration *models.Integration, payload *models.WebhookPayload) *models.WebhookResult {
	itemID := payload.ItemRef()
	if itemID == "" {
		return webhookFailure("invalid payload", apperrors.InvalidInputError("payload", "item ID is required"))
	}

	m, err := s.mappings.GetItemMapping(ctx, integration.ID, itemID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return &models.WebhookResult{Success: true, Message: "item not synced"}
	}
	if err != nil {
		return webhookFailure("failed to load item mapping", err)
	}

	archiveErr := s.archive(ctx, integration, m.NotionPageID)
	if archiveErr != nil {
		logger.Error("Failed to archive page of deleted item",
			zap.String("item_id", itemID),
			zap.String("page_id", m.NotionPageID),
			zap.Error(archiveErr))
	}

	if err := s.mappings.DeleteItemMapping(ctx, integration.ID, itemID); err != nil {
		return webhookFailure("failed to delete item mapping", err)
	}
	if archiveErr != nil {
		return &models.WebhookResult{Success: true, Message: "mapping removed, page not archived", Error: archiveErr.Error()}
	}
	return &models.WebhookResult{Success: true, Message: "page archived"}
}

func (s *WebhookService) archive(ctx context.Context, integration *models.Integration, pageID string) error {
	sess, err := s.factory.NewSession(ctx, integration)
	if err != nil {
		return err
	}
	err = sess.Notion.ArchivePage(ctx, pageID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return err
}
