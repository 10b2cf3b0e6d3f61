package services

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"

	"github.com/flowsync/flowsync-api/internal/content"
	"github.com/flowsync/flowsync-api/internal/linker"
	"github.com/flowsync/flowsync-api/internal/mapping"
	"github.com/flowsync/flowsync-api/internal/models"
	"github.com/flowsync/flowsync-api/internal/repository"
	"github.com/flowsync/flowsync-api/internal/resolver"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/flowsync/flowsync-api/pkg/metrics"
)

// pageTarget is the destination of one collection's items.
type pageTarget struct {
	collection *models.Collection
	databaseID string
	properties notionapi.PropertyConfigs
}

type itemOutcome struct {
	pageID     string
	created    bool
	linkFailed bool
}

// itemSections returns the rich text fields of an item in schema order.
func itemSections(fields []models.Field, item *models.Item) []content.Section {
	var sections []content.Section
	for _, f := range fields {
		if f.Type != models.FieldTypeRichText || mapping.IsReserved(f.DisplayName) {
			continue
		}
		html, _ := item.FieldData[f.Slug].(string)
		sections = append(sections, content.Section{Title: f.DisplayName, HTML: html})
	}
	return sections
}

// itemBlocks converts an item's rich text fields into the page body. The
// result is never nil, so an empty body still clears old content.
func itemBlocks(fields []models.Field, item *models.Item) []notionapi.Block {
	blocks := content.ConvertSections(itemSections(fields, item))
	if blocks == nil {
		blocks = []notionapi.Block{}
	}
	return blocks
}

func recordWarnings(warnings []mapping.Warning, fields ...zap.Field) {
	for _, w := range warnings {
		metrics.MappingWarnings.WithLabelValues(w.Reason).Inc()
		logger.Warn("Mapping warning", append(fields[:len(fields):len(fields)],
			zap.String("field", w.Field),
			zap.String("reason", w.Reason),
			zap.String("detail", w.Detail))...)
	}
}

func warningStrings(warnings []mapping.Warning) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.String())
	}
	return out
}

// findPage returns the page already paired with item: the stored mapping
// first, then the back-references. "" means the item has no page. A
// back-reference to a page mapped to another item is ignored; duplicating a
// Webflow item copies its page ID field.
func findPage(ctx context.Context, sess *Session, mappings repository.MappingRepositoryInterface, target pageTarget, item *models.Item) (string, error) {
	m, err := mappings.GetItemMapping(ctx, sess.Integration.ID, item.ID)
	switch {
	case err == nil:
		return m.NotionPageID, nil
	case !apperrors.Is(err, apperrors.ErrNotFound):
		logger.Warn("Item mapping lookup failed, falling back to back-references",
			zap.String("item_id", item.ID), zap.Error(err))
	}
	pageID, err := sess.Linker.FindPage(ctx, target.databaseID, target.collection, item)
	if err != nil || pageID == "" {
		return pageID, err
	}
	owner, err := mappings.GetItemMappingByPage(ctx, sess.Integration.ID, pageID)
	if err == nil && owner.WebflowItemID != item.ID {
		logger.Warn("Back-reference points at a page of another item",
			zap.String("item_id", item.ID),
			zap.String("owner_item_id", owner.WebflowItemID),
			zap.String("page_id", pageID))
		return "", nil
	}
	return pageID, nil
}

// upsertPage writes props to the item's page, creating the page when the item
// has none or its page is gone. blocks replace the page body unless nil. The
// item mapping and the Webflow back-reference are refreshed afterwards; a
// failed back-reference write is reported through the outcome, not the error.
func upsertPage(
	ctx context.Context,
	sess *Session,
	mappings repository.MappingRepositoryInterface,
	target pageTarget,
	item *models.Item,
	props notionapi.Properties,
	blocks []notionapi.Block,
) (itemOutcome, error) {
	var out itemOutcome
	pageID, err := findPage(ctx, sess, mappings, target, item)
	if err != nil {
		return out, fmt.Errorf("failed to look up page of item %s: %w", item.ID, err)
	}

	if pageID != "" {
		_, err := sess.Notion.UpdatePageProperties(ctx, pageID, props)
		switch {
		case err == nil:
			if blocks != nil {
				if err := sess.Notion.ReplaceContent(ctx, pageID, blocks); err != nil {
					return itemOutcome{pageID: pageID}, fmt.Errorf("failed to replace content of page %s: %w", pageID, err)
				}
			}
		case apperrors.Is(err, apperrors.ErrNotFound):
			logger.Info("Paired page no longer exists, creating a new one",
				zap.String("item_id", item.ID), zap.String("page_id", pageID))
			if err := mappings.DeleteItemMappingByPage(ctx, sess.Integration.ID, pageID); err != nil {
				logger.Warn("Failed to drop mappings of missing page",
					zap.String("page_id", pageID), zap.Error(err))
			}
			pageID = ""
		default:
			return out, fmt.Errorf("failed to update page %s: %w", pageID, err)
		}
	}

	if pageID == "" {
		page, err := sess.Notion.CreatePage(ctx, target.databaseID, props, blocks)
		if page == nil {
			return out, fmt.Errorf("failed to create page for item %s: %w", item.ID, err)
		}
		if err != nil {
			logger.Warn("Page created with partial content",
				zap.String("item_id", item.ID), zap.String("page_id", string(page.ID)), zap.Error(err))
		}
		pageID = string(page.ID)
		out.created = true
	}
	out.pageID = pageID

	if err := mappings.SaveItemMapping(ctx, &models.ItemMapping{
		IntegrationID: sess.Integration.ID,
		WebflowItemID: item.ID,
		CollectionID:  target.collection.ID,
		NotionPageID:  pageID,
	}); err != nil {
		logger.Warn("Failed to save item mapping",
			zap.String("item_id", item.ID), zap.String("page_id", pageID), zap.Error(err))
	}

	if _, ok := props[mapping.SourceIDProperty]; !ok {
		if err := writeDestinationRef(ctx, sess, target.databaseID, pageID, item.ID); err != nil {
			logger.Error("Failed to write item ID to Notion page",
				zap.String("database_id", target.databaseID),
				zap.String("item_id", item.ID),
				zap.String("page_id", pageID),
				zap.Error(err))
			out.linkFailed = true
		}
	}

	if linker.SourceRef(target.collection, item) != pageID {
		if err := sess.Linker.WriteSourceRef(ctx, target.collection.ID, item.ID, pageID); err != nil {
			logger.Error("Failed to write back-reference to Webflow item",
				zap.String("collection_id", target.collection.ID),
				zap.String("item_id", item.ID),
				zap.String("page_id", pageID),
				zap.Error(err))
			out.linkFailed = true
		}
	}
	return out, nil
}

// writeDestinationRef restores the item ID property on the database and
// stores the ID on the page.
func writeDestinationRef(ctx context.Context, sess *Session, databaseID, pageID, itemID string) error {
	if err := sess.Linker.EnsureDestinationField(ctx, databaseID); err != nil {
		return err
	}
	return sess.Linker.WriteDestinationRef(ctx, pageID, itemID)
}

// storedPages looks item IDs up in the stored item mappings. Results are
// memoized for the lifetime of the returned function, which is not safe for
// concurrent use.
func storedPages(ctx context.Context, mappings repository.MappingRepositoryInterface, integrationID string) resolver.PageLookup {
	seen := map[string]string{}
	return func(itemID string) (string, bool) {
		if pageID, ok := seen[itemID]; ok {
			return pageID, pageID != ""
		}
		m, err := mappings.GetItemMapping(ctx, integrationID, itemID)
		switch {
		case err == nil:
			seen[itemID] = m.NotionPageID
		case apperrors.Is(err, apperrors.ErrNotFound):
			seen[itemID] = ""
		default:
			logger.Warn("Item mapping lookup failed",
				zap.String("item_id", itemID), zap.Error(err))
			return "", false
		}
		return seen[itemID], seen[itemID] != ""
	}
}
