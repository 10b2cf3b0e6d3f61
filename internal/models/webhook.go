package models

import (
	"time"
)

// Webflow webhook trigger types handled by the incremental path.
const (
	TriggerItemCreated     = "collection_item_created"
	TriggerItemChanged     = "collection_item_changed"
	TriggerItemUnpublished = "collection_item_unpublished"
	TriggerItemDeleted     = "collection_item_deleted"
)

// WebhookEvent is a Webflow webhook delivery.
type WebhookEvent struct {
	TriggerType string         `json:"triggerType" binding:"required"`
	Payload     WebhookPayload `json:"payload" binding:"required"`
}

// WebhookPayload is the item snapshot carried by collection item triggers.
// Delete deliveries only carry the identifiers.
type WebhookPayload struct {
	ID            string         `json:"id"`
	ItemID        string         `json:"itemId,omitempty"`
	SiteID        string         `json:"siteId"`
	CollectionID  string         `json:"collectionId"`
	CMSLocaleID   string         `json:"cmsLocaleId,omitempty"`
	LastPublished *time.Time     `json:"lastPublished"`
	LastUpdated   *time.Time     `json:"lastUpdated"`
	CreatedOn     *time.Time     `json:"createdOn,omitempty"`
	IsArchived    bool           `json:"isArchived"`
	IsDraft       bool           `json:"isDraft"`
	FieldData     map[string]any `json:"fieldData"`
}

// ItemRef returns the item ID, whichever key the delivery used.
func (p WebhookPayload) ItemRef() string {
	if p.ID != "" {
		return p.ID
	}
	return p.ItemID
}

// Item converts the payload into the item shape the mapper consumes.
func (p WebhookPayload) Item() Item {
	return Item{
		ID:            p.ItemRef(),
		CMSLocaleID:   p.CMSLocaleID,
		LastPublished: p.LastPublished,
		LastUpdated:   p.LastUpdated,
		CreatedOn:     p.CreatedOn,
		IsArchived:    p.IsArchived,
		IsDraft:       p.IsDraft,
		FieldData:     p.FieldData,
	}
}

// WebhookResult is returned by every webhook handler.
type WebhookResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
