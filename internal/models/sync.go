package models

import (
	"time"
)

// Integration links one user's Webflow site to a Notion parent page.
type Integration struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	WebflowSiteID      string    `json:"webflowSiteId"`
	NotionParentPageID string    `json:"notionParentPageId"`
	AutoSync           bool      `json:"autoSync"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Provider names an OAuth token owner.
type Provider string

const (
	ProviderWebflow Provider = "webflow"
	ProviderNotion  Provider = "notion"
)

// CollectionMapping pairs a Webflow collection with the Notion database
// created for it.
type CollectionMapping struct {
	IntegrationID  string    `json:"integrationId"`
	CollectionID   string    `json:"collectionId"`
	CollectionName string    `json:"collectionName"`
	DatabaseID     string    `json:"databaseId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ItemMapping pairs a Webflow item with its Notion page.
type ItemMapping struct {
	IntegrationID string    `json:"integrationId"`
	WebflowItemID string    `json:"webflowItemId"`
	CollectionID  string    `json:"collectionId"`
	NotionPageID  string    `json:"notionPageId"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Sync run triggers
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
)

// Sync run statuses
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// SyncRun is the persisted record of one orchestrated sync.
type SyncRun struct {
	ID            string      `json:"id"`
	IntegrationID string      `json:"integrationId"`
	Trigger       string      `json:"trigger"`
	Status        string      `json:"status"`
	CollectionIDs []string    `json:"collectionIds"`
	Result        *SyncResult `json:"result,omitempty"`
	StartedAt     time.Time   `json:"startedAt"`
	FinishedAt    *time.Time  `json:"finishedAt,omitempty"`
}

// SyncResult is the structured outcome of a sync run. Callers must look at
// the per-stage stats: Success only says no stage failed outright.
type SyncResult struct {
	Success           bool              `json:"success"`
	Message           string            `json:"message,omitempty"`
	Error             string            `json:"error,omitempty"`
	DatabasesCreated  int               `json:"databasesCreated"`
	DatabasesReused   int               `json:"databasesReused"`
	PageSyncStats     PageSyncStats     `json:"pageSyncStats"`
	RelationSyncStats RelationSyncStats `json:"relationSyncStats"`
	OptionSyncStats   OptionSyncStats   `json:"optionSyncStats"`
	SkippedPhases     []string          `json:"skippedPhases,omitempty"`
	Warnings          []string          `json:"warnings,omitempty"`
}

// Status folds the result into a run status.
func (r *SyncResult) Status() string {
	switch {
	case !r.Success:
		return RunStatusFailed
	case r.PageSyncStats.Failed > 0 || r.PageSyncStats.FailedLinkUpdate > 0 ||
		r.RelationSyncStats.SchemaFailed > 0 || r.RelationSyncStats.ItemsFailed > 0 ||
		r.OptionSyncStats.ItemsFailed > 0 || len(r.SkippedPhases) > 0:
		return RunStatusPartial
	default:
		return RunStatusSucceeded
	}
}

// PageSyncStats counts the page create/update phase.
type PageSyncStats struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
	// FailedLinkUpdate counts pages that exist but whose back-reference
	// write to Webflow failed.
	FailedLinkUpdate int `json:"failedLinkUpdate"`
}

// RelationSyncStats counts schema conversion and relation value writes.
type RelationSyncStats struct {
	SchemaConverted int `json:"schemaConverted"`
	SchemaFailed    int `json:"schemaFailed"`
	ItemsUpdated    int `json:"itemsUpdated"`
	ItemsFailed     int `json:"itemsFailed"`
	MissingTargets  int `json:"missingTargets"`
}

// OptionSyncStats counts select/multi-select value writes.
type OptionSyncStats struct {
	ItemsUpdated     int `json:"itemsUpdated"`
	ItemsFailed      int `json:"itemsFailed"`
	UnmatchedOptions int `json:"unmatchedOptions"`
}

// RunSyncRequest is the body of the sync trigger endpoint.
type RunSyncRequest struct {
	CollectionIDs []string `json:"collectionIds" binding:"required,min=1,dive,required,max=64"`
}

// RunSyncResponse acknowledges an accepted sync run.
type RunSyncResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}
