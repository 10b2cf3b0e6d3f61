// Package resolver runs the second pass of a sync: it converts reference
// placeholders into relations once every database exists, then fills relation
// and option values once every page exists.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"

	"github.com/flowsync/flowsync-api/internal/mapping"
	"github.com/flowsync/flowsync-api/internal/models"
	"github.com/flowsync/flowsync-api/pkg/limiter"
	"github.com/flowsync/flowsync-api/pkg/logger"
)

// MaxRelationsPerProperty is the most page references one relation value may hold.
const MaxRelationsPerProperty = 100

// NotionAPI is the part of the Notion client the resolver needs.
type NotionAPI interface {
	GetDatabase(ctx context.Context, databaseID string) (*notionapi.Database, error)
	UpdateDatabaseProperties(ctx context.Context, databaseID string, props notionapi.PropertyConfigs) (*notionapi.Database, error)
	UpdatePageProperties(ctx context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error)
}

// Resolver runs the relation and option passes against one user's workspace.
type Resolver struct {
	notion      NotionAPI
	concurrency int
}

// New creates a resolver. concurrency bounds the page updates in flight.
func New(notion NotionAPI, concurrency int) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{notion: notion, concurrency: concurrency}
}

// SchemaStats is the outcome of relation schema conversion.
type SchemaStats struct {
	Converted int
	Failed    int
	Warnings  []mapping.Warning
}

// ValueStats is the outcome of a value pass.
type ValueStats struct {
	Updated int
	Failed  int
	// Missing counts dropped relation targets or unmatched options.
	Missing  int
	Warnings []mapping.Warning
}

type collector struct {
	mu sync.Mutex
}

func (c *collector) with(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// LinkRelationSchemas converts every placeholder property whose target
// collection has a database into a relation, one schema patch per database.
// Only properties that are still rich_text are touched, so a second run is a
// no-op. Placeholders whose target has no database stay as they are and are
// counted failed. Each plan's live properties are refreshed afterwards.
func (r *Resolver) LinkRelationSchemas(ctx context.Context, plans []*CollectionPlan, databaseByCollection map[string]string) SchemaStats {
	var stats SchemaStats
	var c collector

	_ = limiter.Settle(ctx, r.concurrency, plans, func(ctx context.Context, plan *CollectionPlan) error {
		if plan.State() != DatabaseCreated {
			logger.Warn("Skipping relation schema for collection not in database_created state",
				zap.String("collection_id", plan.Collection.ID),
				zap.String("state", plan.State().String()))
			return nil
		}

		patch := notionapi.PropertyConfigs{}
		var warnings []mapping.Warning
		failed := 0
		for _, b := range plan.Schema.Bindings {
			if !b.Placeholder {
				continue
			}
			if mapping.PropertyType(plan.Properties, b.PropertyName) != notionapi.PropertyConfigTypeRichText {
				continue
			}
			target := databaseByCollection[b.Field.TargetCollectionID()]
			if target == "" {
				failed++
				warnings = append(warnings, mapping.Warning{
					Field:  b.PropertyName,
					Reason: mapping.ReasonMissingTarget,
					Detail: "no database for collection " + b.Field.TargetCollectionID(),
				})
				continue
			}
			patch[b.PropertyName] = mapping.RelationConfig(target)
		}

		converted := 0
		if len(patch) > 0 {
			if _, err := r.notion.UpdateDatabaseProperties(ctx, plan.DatabaseID, patch); err != nil {
				logger.Error("Failed to convert relation placeholders",
					zap.String("database_id", plan.DatabaseID),
					zap.Int("properties", len(patch)),
					zap.Error(err))
				failed += len(patch)
			} else {
				converted = len(patch)
			}
		}

		if db, err := r.notion.GetDatabase(ctx, plan.DatabaseID); err != nil {
			logger.Warn("Failed to refresh database schema, keeping previous view",
				zap.String("database_id", plan.DatabaseID),
				zap.Error(err))
		} else {
			plan.Properties = db.Properties
		}

		c.with(func() {
			stats.Converted += converted
			stats.Failed += failed
			stats.Warnings = append(stats.Warnings, warnings...)
		})
		return plan.Advance(RelationsLinked)
	})
	return stats
}

type pageUpdate struct {
	pageID string
	itemID string
	props  notionapi.Properties
}

// PageLookup maps a Webflow item ID to its Notion page.
type PageLookup func(itemID string) (string, bool)

// ResolveRelationValues writes relation values for every synced item of every
// plan. Targets are looked up in ids first, then in stored, which covers
// items synced by earlier runs of other collections. stored may be nil.
// Targets found in neither are dropped with a warning and the item still
// counts as updated.
func (r *Resolver) ResolveRelationValues(ctx context.Context, plans []*CollectionPlan, ids *IDMap, stored PageLookup) ValueStats {
	lookup := func(itemID string) (string, bool) {
		if pageID, ok := ids.Lookup(itemID); ok {
			return pageID, true
		}
		if stored == nil {
			return "", false
		}
		return stored(itemID)
	}
	return r.resolve(ctx, "relation", plans, ids, func(plan *CollectionPlan, item *models.Item) (notionapi.Properties, []mapping.Warning, int) {
		return RelationProperties(plan.Schema.Bindings, plan.Properties, item, lookup)
	})
}

// ResolveOptionValues writes select and multi-select values for every synced
// item of every plan.
func (r *Resolver) ResolveOptionValues(ctx context.Context, plans []*CollectionPlan, ids *IDMap) ValueStats {
	return r.resolve(ctx, "option", plans, ids, func(plan *CollectionPlan, item *models.Item) (notionapi.Properties, []mapping.Warning, int) {
		return OptionProperties(plan.Schema.Bindings, plan.Properties, item)
	})
}

func (r *Resolver) resolve(
	ctx context.Context,
	pass string,
	plans []*CollectionPlan,
	ids *IDMap,
	build func(plan *CollectionPlan, item *models.Item) (notionapi.Properties, []mapping.Warning, int),
) ValueStats {
	var stats ValueStats
	var updates []pageUpdate
	for _, plan := range plans {
		if plan.State() != ItemsSynced {
			continue
		}
		for i := range plan.Items {
			item := &plan.Items[i]
			pageID, ok := ids.Lookup(item.ID)
			if !ok {
				continue
			}
			props, warnings, missing := build(plan, item)
			stats.Warnings = append(stats.Warnings, warnings...)
			stats.Missing += missing
			if len(props) == 0 {
				continue
			}
			updates = append(updates, pageUpdate{pageID: pageID, itemID: item.ID, props: props})
		}
	}

	errs := limiter.Settle(ctx, r.concurrency, updates, func(ctx context.Context, u pageUpdate) error {
		_, err := r.notion.UpdatePageProperties(ctx, u.pageID, u.props)
		if err != nil {
			logger.Error("Failed to write "+pass+" values",
				zap.String("page_id", u.pageID),
				zap.String("item_id", u.itemID),
				zap.Error(err))
		}
		return err
	})
	stats.Failed = limiter.CountFailed(errs)
	stats.Updated = len(updates) - stats.Failed
	return stats
}

// RelationProperties builds the relation values of one item. Only properties
// whose live type is relation are written. lookup maps an item ID to its
// page; IDs it cannot map are dropped and named in a warning. An empty
// reference list clears the relation, but a list none of whose targets
// resolve leaves the property out so the existing value is kept. The last
// return value is the number of dropped IDs.
func RelationProperties(bindings []mapping.Binding, live notionapi.PropertyConfigs, item *models.Item, lookup PageLookup) (notionapi.Properties, []mapping.Warning, int) {
	props := notionapi.Properties{}
	var warnings []mapping.Warning
	dropped := 0

	for _, b := range bindings {
		if !b.Field.Type.IsReference() {
			continue
		}
		if mapping.PropertyType(live, b.PropertyName) != notionapi.PropertyConfigTypeRelation {
			continue
		}
		raw, present := item.FieldData[b.Field.Slug]
		if !present || raw == nil {
			continue
		}
		v := mapping.NormalizeIDs(raw)
		if v.Kind == mapping.KindUnrecognized {
			warnings = append(warnings, mapping.Warning{Field: b.PropertyName, Reason: mapping.ReasonUnparseable, Detail: string(b.Field.Type)})
			continue
		}

		relations := []notionapi.Relation{}
		var missing []string
		seen := map[string]bool{}
		for _, id := range v.List {
			pageID, ok := lookup(id)
			if !ok {
				missing = append(missing, id)
				continue
			}
			if seen[pageID] {
				continue
			}
			seen[pageID] = true
			relations = append(relations, notionapi.Relation{ID: notionapi.PageID(pageID)})
		}
		if len(relations) > MaxRelationsPerProperty {
			logger.Warn("Truncating relation value",
				zap.String("property", b.PropertyName),
				zap.String("item_id", item.ID),
				zap.Int("targets", len(relations)))
			relations = relations[:MaxRelationsPerProperty]
		}
		if len(missing) > 0 {
			dropped += len(missing)
			warnings = append(warnings, mapping.Warning{
				Field:  b.PropertyName,
				Reason: mapping.ReasonMissingTarget,
				Detail: fmt.Sprintf("item %s: %s", item.ID, strings.Join(missing, ", ")),
			})
		}
		if len(v.List) > 0 && len(relations) == 0 {
			continue
		}
		props[b.PropertyName] = &notionapi.RelationProperty{
			Type:     notionapi.PropertyTypeRelation,
			Relation: relations,
		}
	}
	return props, warnings, dropped
}

// OptionProperties builds the select and multi-select values of one item.
// The last return value is the number of unmatched option names.
func OptionProperties(bindings []mapping.Binding, live notionapi.PropertyConfigs, item *models.Item) (notionapi.Properties, []mapping.Warning, int) {
	props := notionapi.Properties{}
	var warnings []mapping.Warning
	unmatched := 0

	for _, b := range bindings {
		if !b.Field.Type.IsChoice() {
			continue
		}
		cfg, ok := live[b.PropertyName]
		if !ok || cfg == nil {
			continue
		}
		raw, present := item.FieldData[b.Field.Slug]
		if !present || raw == nil {
			continue
		}
		prop, w := mapping.ChoiceProperty(b.Field, raw, cfg)
		for _, warning := range w {
			if warning.Reason == mapping.ReasonUnmatchedOption {
				unmatched++
			}
		}
		warnings = append(warnings, w...)
		if prop != nil {
			props[b.PropertyName] = prop
		}
	}
	return props, warnings, unmatched
}
