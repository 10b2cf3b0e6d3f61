package mapping

import (
	"time"

	"github.com/jomei/notionapi"
)

// Status is the publishing state written to the Status property.
type Status string

const (
	StatusDraft           Status = "Draft"
	StatusDraftChanges    Status = "Draft Changes"
	StatusPublished       Status = "Published"
	StatusQueuedToPublish Status = "Queued to Publish"
)

func statusOptions() []notionapi.Option {
	return []notionapi.Option{
		{Name: string(StatusDraft), Color: "gray"},
		{Name: string(StatusDraftChanges), Color: "yellow"},
		{Name: string(StatusPublished), Color: "green"},
		{Name: string(StatusQueuedToPublish), Color: "blue"},
	}
}

// DeriveStatus maps item lifecycle metadata onto a Status.
//
//	draft, never published           -> Draft
//	draft, published before          -> Draft Changes
//	live, never published            -> Published
//	live, updated after last publish -> Queued to Publish
//	live, otherwise                  -> Published
func DeriveStatus(isDraft bool, lastPublished, lastUpdated *time.Time) Status {
	published := lastPublished != nil && !lastPublished.IsZero()
	if isDraft {
		if published {
			return StatusDraftChanges
		}
		return StatusDraft
	}
	if !published {
		return StatusPublished
	}
	if lastUpdated != nil && lastUpdated.After(*lastPublished) {
		return StatusQueuedToPublish
	}
	return StatusPublished
}

// StatusPropertyValue builds the Status select value. When the derived status
// is not one of the options of cfg it falls back to Draft and returns a
// warning. A missing or non-select Status property yields no value at all.
func StatusPropertyValue(status Status, cfg notionapi.PropertyConfig) (notionapi.Property, *Warning) {
	sel, ok := cfg.(*notionapi.SelectPropertyConfig)
	if !ok || sel == nil {
		return nil, &Warning{Field: StatusProperty, Reason: ReasonTypeMismatch, Detail: string(status)}
	}
	if opt, ok := MatchOption(string(status), sel.Select.Options); ok {
		return selectValue(opt.Name), nil
	}
	return selectValue(string(StatusDraft)), &Warning{Field: StatusProperty, Reason: ReasonStatusFallback, Detail: string(status)}
}

func selectValue(name string) notionapi.Property {
	return &notionapi.SelectProperty{
		Type:   notionapi.PropertyTypeSelect,
		Select: notionapi.Option{Name: name},
	}
}
