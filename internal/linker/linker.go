package linker

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowsync/flowsync-api/internal/content"
	"github.com/flowsync/flowsync-api/internal/mapping"
	"github.com/flowsync/flowsync-api/internal/models"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/jomei/notionapi"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// NotionAPI is the part of the Notion client the linker needs.
type NotionAPI interface {
	GetDatabase(ctx context.Context, databaseID string) (*notionapi.Database, error)
	UpdateDatabaseProperties(ctx context.Context, databaseID string, props notionapi.PropertyConfigs) (*notionapi.Database, error)
	UpdatePageProperties(ctx context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error)
	QueryByRichText(ctx context.Context, databaseID, property, value string) ([]notionapi.Page, error)
}

// WebflowAPI is the part of the Webflow client the linker needs.
type WebflowAPI interface {
	GetCollection(ctx context.Context, collectionID string) (*models.Collection, error)
	CreateField(ctx context.Context, collectionID string, spec models.FieldSpec) (*models.Field, error)
	UpdateItem(ctx context.Context, collectionID, itemID string, fieldData map[string]any) (*models.Item, error)
}

// Linker keeps the two back-references between an item and its page.
type Linker struct {
	notion  NotionAPI
	webflow WebflowAPI
	group   singleflight.Group
}

// New creates a linker over one user's clients.
func New(notion NotionAPI, webflow WebflowAPI) *Linker {
	return &Linker{notion: notion, webflow: webflow}
}

// EnsureDestinationField makes sure the database has the rich text property
// that stores the Webflow item ID. Concurrent calls for the same database
// share one check.
func (l *Linker) EnsureDestinationField(ctx context.Context, databaseID string) error {
	_, err, _ := l.group.Do("notion:"+databaseID, func() (any, error) {
		db, err := l.notion.GetDatabase(ctx, databaseID)
		if err != nil {
			return nil, fmt.Errorf("failed to load database %s: %w", databaseID, err)
		}
		switch mapping.PropertyType(db.Properties, mapping.SourceIDProperty) {
		case notionapi.PropertyConfigTypeRichText:
			return nil, nil
		case "":
		default:
			return nil, apperrors.InvalidInputError(mapping.SourceIDProperty, "property exists with a non rich_text type")
		}

		logger.Info("Creating back-reference property",
			zap.String("database_id", databaseID),
			zap.String("property", mapping.SourceIDProperty))
		_, err = l.notion.UpdateDatabaseProperties(ctx, databaseID, notionapi.PropertyConfigs{
			mapping.SourceIDProperty: &notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText},
		})
		return nil, err
	})
	return err
}

// EnsureSourceField makes sure the collection has the plain text field that
// stores the Notion page ID and returns it.
func (l *Linker) EnsureSourceField(ctx context.Context, collectionID string) (models.Field, error) {
	v, err, _ := l.group.Do("webflow:"+collectionID, func() (any, error) {
		collection, err := l.webflow.GetCollection(ctx, collectionID)
		if err != nil {
			return models.Field{}, fmt.Errorf("failed to load collection %s: %w", collectionID, err)
		}
		if field, ok := collection.FieldByDisplayName(mapping.SourceRefFieldName); ok {
			return field, nil
		}

		logger.Info("Creating back-reference field",
			zap.String("collection_id", collectionID),
			zap.String("field", mapping.SourceRefFieldName))
		field, err := l.webflow.CreateField(ctx, collectionID, models.FieldSpec{
			Type:        models.FieldTypePlainText,
			DisplayName: mapping.SourceRefFieldName,
			HelpText:    "Managed by flowsync. Do not edit.",
		})
		if err != nil {
			return models.Field{}, err
		}
		return *field, nil
	})
	if err != nil {
		return models.Field{}, err
	}
	return v.(models.Field), nil
}

// WriteDestinationRef stores the item ID on the page.
func (l *Linker) WriteDestinationRef(ctx context.Context, pageID, itemID string) error {
	_, err := l.notion.UpdatePageProperties(ctx, pageID, notionapi.Properties{
		mapping.SourceIDProperty: &notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: content.SplitText(itemID),
		},
	})
	return err
}

// WriteSourceRef stores the page ID on the item. The field slug is looked up
// by display name on every call since it can change independently of the
// name.
func (l *Linker) WriteSourceRef(ctx context.Context, collectionID, itemID, pageID string) error {
	collection, err := l.webflow.GetCollection(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("failed to resolve back-reference field: %w", err)
	}
	field, ok := collection.FieldByDisplayName(mapping.SourceRefFieldName)
	if !ok {
		field, err = l.EnsureSourceField(ctx, collectionID)
		if err != nil {
			return err
		}
	}
	_, err = l.webflow.UpdateItem(ctx, collectionID, itemID, map[string]any{field.Slug: pageID})
	return err
}

// SourceRef returns the page ID stored on the item, if any.
func SourceRef(collection *models.Collection, item *models.Item) string {
	field, ok := collection.FieldByDisplayName(mapping.SourceRefFieldName)
	if !ok {
		return ""
	}
	ref, _ := item.FieldData[field.Slug].(string)
	return strings.TrimSpace(ref)
}

// FindPage locates the page of an item: the item's own back-reference first,
// then a query on the database's item ID property. It returns "" when the
// item has no page yet, including when the database has lost that property.
func (l *Linker) FindPage(ctx context.Context, databaseID string, collection *models.Collection, item *models.Item) (string, error) {
	if ref := SourceRef(collection, item); ref != "" {
		return ref, nil
	}
	pages, err := l.notion.QueryByRichText(ctx, databaseID, mapping.SourceIDProperty, item.ID)
	if apperrors.Is(err, apperrors.ErrInvalidInput) {
		logger.Warn("Database cannot be queried by item ID",
			zap.String("database_id", databaseID), zap.Error(err))
		return "", nil
	}
	if err != nil {
		return "", err
	}
	for _, p := range pages {
		if !p.Archived {
			return string(p.ID), nil
		}
	}
	return "", nil
}
