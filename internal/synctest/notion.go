// Package synctest provides in-memory Webflow and Notion fakes that behave
// like the real APIs closely enough to drive the sync pipeline in tests.
package synctest

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/jomei/notionapi"
)

// Page is a page held by the fake Notion.
type Page struct {
	ID         string
	DatabaseID string
	Properties notionapi.Properties
	Children   []notionapi.Block
	Archived   bool
}

// Notion is an in-memory Notion workspace. Writes are validated against the
// database schema the way the API does: unknown properties and values whose
// type differs from the property type are rejected.
type Notion struct {
	mu        sync.Mutex
	seq       int
	databases map[string]*notionapi.Database
	pages     map[string]*Page
	calls     map[string]int

	// FailCreatePage, when set, is consulted before every page create.
	FailCreatePage func(props notionapi.Properties) error
	// FailUpdatePage, when set, is consulted before every page update.
	FailUpdatePage func(pageID string, props notionapi.Properties) error
	// FailCreateDatabase, when set, is consulted before every database create.
	FailCreateDatabase func(title string) error
}

// NewNotion creates an empty workspace.
func NewNotion() *Notion {
	return &Notion{
		databases: map[string]*notionapi.Database{},
		pages:     map[string]*Page{},
		calls:     map[string]int{},
	}
}

func (n *Notion) nextID(prefix string) string {
	n.seq++
	return fmt.Sprintf("%s-%d", prefix, n.seq)
}

// Calls returns how many times the named method ran.
func (n *Notion) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// AddDatabase registers an existing database.
func (n *Notion) AddDatabase(id string, props notionapi.PropertyConfigs) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.databases[id] = &notionapi.Database{ID: notionapi.ObjectID(id), Properties: copyConfigs(props)}
}

// Database returns a snapshot of a database's properties.
func (n *Notion) Database(id string) (notionapi.PropertyConfigs, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	db, ok := n.databases[id]
	if !ok {
		return nil, false
	}
	return copyConfigs(db.Properties), true
}

// DatabaseIDs returns the IDs of all databases.
func (n *Notion) DatabaseIDs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.databases))
	for id := range n.databases {
		ids = append(ids, id)
	}
	return ids
}

// Page returns a snapshot of a page.
func (n *Notion) Page(id string) (Page, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.pages[id]
	if !ok {
		return Page{}, false
	}
	out := *p
	out.Properties = copyProps(p.Properties)
	out.Children = append([]notionapi.Block(nil), p.Children...)
	return out, true
}

// PagesIn returns snapshots of the live pages of a database.
func (n *Notion) PagesIn(databaseID string) []Page {
	n.mu.Lock()
	ids := []string{}
	for id, p := range n.pages {
		if p.DatabaseID == databaseID && !p.Archived {
			ids = append(ids, id)
		}
	}
	n.mu.Unlock()

	out := make([]Page, 0, len(ids))
	for _, id := range ids {
		p, _ := n.Page(id)
		out = append(out, p)
	}
	return out
}

// AddPage registers an existing page.
func (n *Notion) AddPage(p Page) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := p
	cp.Properties = copyProps(p.Properties)
	n.pages[p.ID] = &cp
}

func (n *Notion) CreateDatabase(_ context.Context, parentPageID, title string, props notionapi.PropertyConfigs) (*notionapi.Database, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["CreateDatabase"]++
	if n.FailCreateDatabase != nil {
		if err := n.FailCreateDatabase(title); err != nil {
			return nil, err
		}
	}
	if parentPageID == "" {
		return nil, apperrors.UpstreamError("notion", 400, "validation_error", "parent page is required")
	}
	titles := 0
	for _, cfg := range props {
		if cfg.GetType() == notionapi.PropertyConfigTypeTitle {
			titles++
		}
	}
	if titles != 1 {
		return nil, apperrors.UpstreamError("notion", 400, "validation_error", "database needs exactly one title property")
	}
	id := n.nextID("db")
	db := &notionapi.Database{
		ID:         notionapi.ObjectID(id),
		Title:      []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: title}}},
		Properties: copyConfigs(props),
	}
	n.databases[id] = db
	out := *db
	out.Properties = copyConfigs(db.Properties)
	return &out, nil
}

func (n *Notion) GetDatabase(_ context.Context, databaseID string) (*notionapi.Database, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["GetDatabase"]++
	db, ok := n.databases[databaseID]
	if !ok {
		return nil, apperrors.UpstreamError("notion", 404, "object_not_found", "database not found")
	}
	out := *db
	out.Properties = copyConfigs(db.Properties)
	return &out, nil
}

func (n *Notion) UpdateDatabaseProperties(_ context.Context, databaseID string, props notionapi.PropertyConfigs) (*notionapi.Database, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["UpdateDatabaseProperties"]++
	db, ok := n.databases[databaseID]
	if !ok {
		return nil, apperrors.UpstreamError("notion", 404, "object_not_found", "database not found")
	}
	for name, cfg := range props {
		if rel, isRel := cfg.(*notionapi.RelationPropertyConfig); isRel {
			if _, exists := n.databases[string(rel.Relation.DatabaseID)]; !exists {
				return nil, apperrors.UpstreamError("notion", 400, "validation_error", "relation target not found")
			}
		}
		db.Properties[name] = cfg
	}
	out := *db
	out.Properties = copyConfigs(db.Properties)
	return &out, nil
}

func (n *Notion) validate(databaseID string, props notionapi.Properties) error {
	db, ok := n.databases[databaseID]
	if !ok {
		return apperrors.UpstreamError("notion", 404, "object_not_found", "database not found")
	}
	for name, p := range props {
		cfg, ok := db.Properties[name]
		if !ok {
			return apperrors.UpstreamError("notion", 400, "validation_error", name+" is not a property that exists.")
		}
		if string(cfg.GetType()) != string(p.GetType()) {
			return apperrors.UpstreamError("notion", 400, "validation_error",
				fmt.Sprintf("%s is expected to be %s.", name, cfg.GetType()))
		}
	}
	return nil
}

func (n *Notion) CreatePage(_ context.Context, databaseID string, props notionapi.Properties, children []notionapi.Block) (*notionapi.Page, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["CreatePage"]++
	if n.FailCreatePage != nil {
		if err := n.FailCreatePage(props); err != nil {
			return nil, err
		}
	}
	if err := n.validate(databaseID, props); err != nil {
		return nil, err
	}
	id := n.nextID("page")
	n.pages[id] = &Page{
		ID:         id,
		DatabaseID: databaseID,
		Properties: copyProps(props),
		Children:   append([]notionapi.Block(nil), children...),
	}
	return &notionapi.Page{ID: notionapi.ObjectID(id), Properties: copyProps(props)}, nil
}

func (n *Notion) UpdatePageProperties(_ context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["UpdatePageProperties"]++
	if n.FailUpdatePage != nil {
		if err := n.FailUpdatePage(pageID, props); err != nil {
			return nil, err
		}
	}
	p, ok := n.pages[pageID]
	if !ok || p.Archived {
		return nil, apperrors.UpstreamError("notion", 404, "object_not_found", "page not found")
	}
	if err := n.validate(p.DatabaseID, props); err != nil {
		return nil, err
	}
	for name, v := range props {
		p.Properties[name] = v
	}
	return &notionapi.Page{ID: notionapi.ObjectID(pageID), Properties: copyProps(p.Properties)}, nil
}

func (n *Notion) ArchivePage(_ context.Context, pageID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["ArchivePage"]++
	p, ok := n.pages[pageID]
	if !ok {
		return apperrors.UpstreamError("notion", 404, "object_not_found", "page not found")
	}
	p.Archived = true
	return nil
}

func (n *Notion) AppendBlocks(_ context.Context, blockID string, blocks []notionapi.Block) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["AppendBlocks"]++
	p, ok := n.pages[blockID]
	if !ok {
		return apperrors.UpstreamError("notion", 404, "object_not_found", "block not found")
	}
	p.Children = append(p.Children, blocks...)
	return nil
}

func (n *Notion) ReplaceContent(_ context.Context, pageID string, blocks []notionapi.Block) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["ReplaceContent"]++
	p, ok := n.pages[pageID]
	if !ok {
		return apperrors.UpstreamError("notion", 404, "object_not_found", "page not found")
	}
	p.Children = append([]notionapi.Block(nil), blocks...)
	return nil
}

func (n *Notion) QueryByRichText(_ context.Context, databaseID, property, value string) ([]notionapi.Page, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls["QueryByRichText"]++
	db, ok := n.databases[databaseID]
	if !ok {
		return nil, apperrors.UpstreamError("notion", 404, "object_not_found", "database not found")
	}
	if _, ok := db.Properties[property]; !ok {
		return nil, apperrors.UpstreamError("notion", 400, "validation_error", "Could not find property with name or id: "+property)
	}
	var out []notionapi.Page
	for id, p := range n.pages {
		if p.DatabaseID != databaseID || p.Archived {
			continue
		}
		rt, ok := p.Properties[property].(*notionapi.RichTextProperty)
		if !ok {
			continue
		}
		text := ""
		for _, r := range rt.RichText {
			if r.Text != nil {
				text += r.Text.Content
			}
		}
		if text == value {
			out = append(out, notionapi.Page{ID: notionapi.ObjectID(id), Properties: copyProps(p.Properties)})
		}
	}
	return out, nil
}

func copyConfigs(in notionapi.PropertyConfigs) notionapi.PropertyConfigs {
	out := make(notionapi.PropertyConfigs, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyProps(in notionapi.Properties) notionapi.Properties {
	out := make(notionapi.Properties, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
