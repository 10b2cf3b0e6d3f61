package resolver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jomei/notionapi"

	"github.com/flowsync/flowsync-api/internal/mapping"
	"github.com/flowsync/flowsync-api/internal/models"
)

// SchemaState is the lifecycle position of one collection within a sync run.
type SchemaState int

const (
	Uncreated SchemaState = iota
	DatabaseCreated
	RelationsLinked
	ItemsSynced
	ValuesResolved
)

var stateNames = [...]string{"uncreated", "database_created", "relations_linked", "items_synced", "values_resolved"}

func (s SchemaState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ErrOutOfOrder is returned when a plan is moved anywhere but to the next state.
var ErrOutOfOrder = errors.New("schema state transition out of order")

// CollectionPlan carries one collection through the sync phases.
type CollectionPlan struct {
	Collection *models.Collection
	DatabaseID string
	Schema     *mapping.DatabaseSchema
	// Properties is the live destination schema, refreshed after relation
	// conversion. Value passes only trust this, never Schema.Properties.
	Properties notionapi.PropertyConfigs
	Items      []models.Item

	mu    sync.Mutex
	state SchemaState
}

// NewPlan creates a plan in the Uncreated state.
func NewPlan(collection *models.Collection, items []models.Item) *CollectionPlan {
	return &CollectionPlan{
		Collection: collection,
		Schema:     mapping.BuildDatabaseSchema(collection.Fields),
		Items:      items,
	}
}

// State returns the current state.
func (p *CollectionPlan) State() SchemaState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Advance moves the plan to the next state.
func (p *CollectionPlan) Advance(to SchemaState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if to != p.state+1 {
		return fmt.Errorf("%w: %s -> %s", ErrOutOfOrder, p.state, to)
	}
	p.state = to
	return nil
}

// IDMap maps Webflow item IDs to Notion page IDs across every collection of a
// run. Safe for concurrent use.
type IDMap struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewIDMap creates an empty map.
func NewIDMap() *IDMap {
	return &IDMap{ids: map[string]string{}}
}

func (m *IDMap) Set(itemID, pageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[itemID] = pageID
}

func (m *IDMap) Lookup(itemID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ids[itemID]
	return id, ok
}

func (m *IDMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}
