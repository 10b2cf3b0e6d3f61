package synctest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/flowsync/flowsync-api/internal/models"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
)

// Webflow is an in-memory Webflow site.
type Webflow struct {
	mu          sync.Mutex
	seq         int
	siteID      string
	order       []string
	collections map[string]*models.Collection
	items       map[string][]*models.Item
	calls       map[string]int

	// FailUpdateItem, when set, is consulted before every item update.
	FailUpdateItem func(collectionID, itemID string) error
	// FailListItems, when set, is consulted before every item listing.
	FailListItems func(collectionID string) error
}

// NewWebflow creates a site with no collections.
func NewWebflow(siteID string) *Webflow {
	return &Webflow{
		siteID:      siteID,
		collections: map[string]*models.Collection{},
		items:       map[string][]*models.Item{},
		calls:       map[string]int{},
	}
}

// Calls returns how many times the named method ran.
func (w *Webflow) Calls(method string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[method]
}

// AddCollection registers a collection and its items.
func (w *Webflow) AddCollection(c models.Collection, items ...models.Item) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := c
	cp.Fields = append([]models.Field(nil), c.Fields...)
	if _, exists := w.collections[c.ID]; !exists {
		w.order = append(w.order, c.ID)
	}
	w.collections[c.ID] = &cp
	for i := range items {
		it := cloneItem(items[i])
		w.items[c.ID] = append(w.items[c.ID], &it)
	}
}

// Item returns a snapshot of an item.
func (w *Webflow) Item(collectionID, itemID string) (models.Item, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, it := range w.items[collectionID] {
		if it.ID == itemID {
			return cloneItem(*it), true
		}
	}
	return models.Item{}, false
}

func (w *Webflow) ListCollections(_ context.Context, siteID string) ([]models.CollectionSummary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls["ListCollections"]++
	if siteID != w.siteID {
		return nil, apperrors.UpstreamError("webflow", 404, "resource_not_found", "site not found")
	}
	out := make([]models.CollectionSummary, 0, len(w.order))
	for _, id := range w.order {
		c := w.collections[id]
		out = append(out, models.CollectionSummary{
			ID: c.ID, DisplayName: c.DisplayName, SingularName: c.SingularName, Slug: c.Slug,
		})
	}
	return out, nil
}

func (w *Webflow) GetCollection(_ context.Context, collectionID string) (*models.Collection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls["GetCollection"]++
	c, ok := w.collections[collectionID]
	if !ok {
		return nil, apperrors.UpstreamError("webflow", 404, "resource_not_found", "collection not found")
	}
	cp := *c
	cp.Fields = append([]models.Field(nil), c.Fields...)
	return &cp, nil
}

func (w *Webflow) ListItems(_ context.Context, collectionID string) ([]models.Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls["ListItems"]++
	if w.FailListItems != nil {
		if err := w.FailListItems(collectionID); err != nil {
			return nil, err
		}
	}
	if _, ok := w.collections[collectionID]; !ok {
		return nil, apperrors.UpstreamError("webflow", 404, "resource_not_found", "collection not found")
	}
	out := make([]models.Item, 0, len(w.items[collectionID]))
	for _, it := range w.items[collectionID] {
		out = append(out, cloneItem(*it))
	}
	return out, nil
}

func (w *Webflow) GetItem(_ context.Context, collectionID, itemID string) (*models.Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls["GetItem"]++
	for _, it := range w.items[collectionID] {
		if it.ID == itemID {
			cp := cloneItem(*it)
			return &cp, nil
		}
	}
	return nil, apperrors.UpstreamError("webflow", 404, "resource_not_found", "item not found")
}

func (w *Webflow) CreateItem(_ context.Context, collectionID string, fieldData map[string]any, isDraft bool) (*models.Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls["CreateItem"]++
	if _, ok := w.collections[collectionID]; !ok {
		return nil, apperrors.UpstreamError("webflow", 404, "resource_not_found", "collection not found")
	}
	w.seq++
	it := &models.Item{ID: fmt.Sprintf("item-%d", w.seq), IsDraft: isDraft, FieldData: map[string]any{}}
	for k, v := range fieldData {
		it.FieldData[k] = v
	}
	w.items[collectionID] = append(w.items[collectionID], it)
	cp := cloneItem(*it)
	return &cp, nil
}

func (w *Webflow) UpdateItem(_ context.Context, collectionID, itemID string, fieldData map[string]any) (*models.Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls["UpdateItem"]++
	if w.FailUpdateItem != nil {
		if err := w.FailUpdateItem(collectionID, itemID); err != nil {
			return nil, err
		}
	}
	c, ok := w.collections[collectionID]
	if !ok {
		return nil, apperrors.UpstreamError("webflow", 404, "resource_not_found", "collection not found")
	}
	for slug := range fieldData {
		if !hasSlug(c, slug) {
			return nil, apperrors.UpstreamError("webflow", 400, "validation_error", "unknown field "+slug)
		}
	}
	for _, it := range w.items[collectionID] {
		if it.ID == itemID {
			if it.FieldData == nil {
				it.FieldData = map[string]any{}
			}
			for k, v := range fieldData {
				it.FieldData[k] = v
			}
			cp := cloneItem(*it)
			return &cp, nil
		}
	}
	return nil, apperrors.UpstreamError("webflow", 404, "resource_not_found", "item not found")
}

func (w *Webflow) DeleteItem(_ context.Context, collectionID, itemID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls["DeleteItem"]++
	items := w.items[collectionID]
	for i, it := range items {
		if it.ID == itemID {
			w.items[collectionID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return apperrors.UpstreamError("webflow", 404, "resource_not_found", "item not found")
}

// CreateField assigns a slug derived from the display name, suffixed when the
// slug is taken, the way Webflow does.
func (w *Webflow) CreateField(_ context.Context, collectionID string, spec models.FieldSpec) (*models.Field, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls["CreateField"]++
	c, ok := w.collections[collectionID]
	if !ok {
		return nil, apperrors.UpstreamError("webflow", 404, "resource_not_found", "collection not found")
	}
	for _, f := range c.Fields {
		if f.DisplayName == spec.DisplayName {
			return nil, apperrors.UpstreamError("webflow", 409, "duplicate_field", "field name already in use")
		}
	}
	base := strings.ToLower(strings.Join(strings.Fields(spec.DisplayName), "-"))
	slug := base
	for i := 2; hasSlug(c, slug); i++ {
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	w.seq++
	field := models.Field{
		ID:          fmt.Sprintf("field-%d", w.seq),
		DisplayName: spec.DisplayName,
		Slug:        slug,
		Type:        spec.Type,
		IsRequired:  spec.IsRequired,
		IsEditable:  true,
	}
	c.Fields = append(c.Fields, field)
	return &field, nil
}

func hasSlug(c *models.Collection, slug string) bool {
	for _, f := range c.Fields {
		if f.Slug == slug {
			return true
		}
	}
	return false
}

func cloneItem(in models.Item) models.Item {
	out := in
	out.FieldData = make(map[string]any, len(in.FieldData))
	keys := make([]string, 0, len(in.FieldData))
	for k := range in.FieldData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.FieldData[k] = in.FieldData[k]
	}
	return out
}
