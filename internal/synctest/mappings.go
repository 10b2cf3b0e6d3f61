package synctest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flowsync/flowsync-api/internal/models"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
)

// Mappings is an in-memory mapping store with the upsert rules of the
// Postgres repository.
type Mappings struct {
	mu          sync.Mutex
	collections map[string]models.CollectionMapping
	items       map[string]models.ItemMapping
}

// NewMappings creates an empty store.
func NewMappings() *Mappings {
	return &Mappings{
		collections: map[string]models.CollectionMapping{},
		items:       map[string]models.ItemMapping{},
	}
}

func key(integrationID, id string) string {
	return integrationID + "/" + id
}

func (m *Mappings) GetCollectionMapping(_ context.Context, integrationID, collectionID string) (*models.CollectionMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cm, ok := m.collections[key(integrationID, collectionID)]
	if !ok {
		return nil, apperrors.NotFoundError("collection mapping")
	}
	return &cm, nil
}

func (m *Mappings) ListCollectionMappings(_ context.Context, integrationID string) ([]models.CollectionMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CollectionMapping
	for _, cm := range m.collections {
		if cm.IntegrationID == integrationID {
			out = append(out, cm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollectionID < out[j].CollectionID })
	return out, nil
}

// SaveCollectionMapping keeps the first database ID stored for a collection.
func (m *Mappings) SaveCollectionMapping(_ context.Context, cm *models.CollectionMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(cm.IntegrationID, cm.CollectionID)
	if existing, ok := m.collections[k]; ok {
		existing.CollectionName = cm.CollectionName
		m.collections[k] = existing
		return nil
	}
	stored := *cm
	stored.CreatedAt = time.Now().UTC()
	m.collections[k] = stored
	return nil
}

func (m *Mappings) GetItemMapping(_ context.Context, integrationID, itemID string) (*models.ItemMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	im, ok := m.items[key(integrationID, itemID)]
	if !ok {
		return nil, apperrors.NotFoundError("item mapping")
	}
	return &im, nil
}

func (m *Mappings) SaveItemMapping(_ context.Context, im *models.ItemMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *im
	stored.UpdatedAt = time.Now().UTC()
	m.items[key(im.IntegrationID, im.WebflowItemID)] = stored
	return nil
}

func (m *Mappings) DeleteItemMapping(_ context.Context, integrationID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key(integrationID, itemID))
	return nil
}

// GetItemMappingByPage returns the most recently saved mapping of a page.
func (m *Mappings) GetItemMappingByPage(_ context.Context, integrationID, pageID string) (*models.ItemMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.ItemMapping
	for _, im := range m.items {
		if im.IntegrationID != integrationID || im.NotionPageID != pageID {
			continue
		}
		if found == nil || im.UpdatedAt.After(found.UpdatedAt) {
			cp := im
			found = &cp
		}
	}
	if found == nil {
		return nil, apperrors.NotFoundError("item mapping")
	}
	return found, nil
}

func (m *Mappings) DeleteItemMappingByPage(_ context.Context, integrationID, pageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, im := range m.items {
		if im.IntegrationID == integrationID && im.NotionPageID == pageID {
			delete(m.items, k)
		}
	}
	return nil
}

// ItemCount returns the number of stored item mappings.
func (m *Mappings) ItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
