package models

import (
	"time"
)

// FieldType is the Webflow CMS field type tag.
type FieldType string

const (
	FieldTypePlainText      FieldType = "PlainText"
	FieldTypeRichText       FieldType = "RichText"
	FieldTypeImage          FieldType = "Image"
	FieldTypeMultiImage     FieldType = "MultiImage"
	FieldTypeVideoLink      FieldType = "VideoLink"
	FieldTypeLink           FieldType = "Link"
	FieldTypeEmail          FieldType = "Email"
	FieldTypePhone          FieldType = "Phone"
	FieldTypeNumber         FieldType = "Number"
	FieldTypeDateTime       FieldType = "DateTime"
	FieldTypeDate           FieldType = "Date"
	FieldTypeSwitch         FieldType = "Switch"
	FieldTypeBoolean        FieldType = "Boolean"
	FieldTypeColor          FieldType = "Color"
	FieldTypeOption         FieldType = "Option"
	FieldTypeSet            FieldType = "Set"
	FieldTypeMultiOption    FieldType = "MultiOption"
	FieldTypeFile           FieldType = "File"
	FieldTypeReference      FieldType = "Reference"
	FieldTypeMultiReference FieldType = "MultiReference"
)

// IsReference reports whether values of t are item IDs in another collection.
func (t FieldType) IsReference() bool {
	return t == FieldTypeReference || t == FieldTypeMultiReference
}

// IsChoice reports whether values of t are option IDs.
func (t FieldType) IsChoice() bool {
	return t == FieldTypeOption || t == FieldTypeSet || t == FieldTypeMultiOption
}

// IsMulti reports whether t holds a list of values.
func (t FieldType) IsMulti() bool {
	switch t {
	case FieldTypeSet, FieldTypeMultiOption, FieldTypeMultiReference, FieldTypeMultiImage:
		return true
	}
	return false
}

// CollectionSummary is one entry of a site's collection list.
type CollectionSummary struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	SingularName string `json:"singularName"`
	Slug         string `json:"slug"`
}

// Collection is a Webflow collection with its field schema.
type Collection struct {
	ID           string  `json:"id"`
	DisplayName  string  `json:"displayName"`
	SingularName string  `json:"singularName"`
	Slug         string  `json:"slug"`
	Fields       []Field `json:"fields"`
}

// FieldByDisplayName looks a field up by its display name (case-sensitive).
func (c *Collection) FieldByDisplayName(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.DisplayName == name {
			return f, true
		}
	}
	return Field{}, false
}

// Field is one field definition of a collection schema.
type Field struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"displayName"`
	Slug        string            `json:"slug"`
	Type        FieldType         `json:"type"`
	IsRequired  bool              `json:"isRequired"`
	IsEditable  bool              `json:"isEditable"`
	Validations *FieldValidations `json:"validations,omitempty"`
}

// Options returns the field's enumerated choices, if any.
func (f Field) Options() []FieldOption {
	if f.Validations == nil {
		return nil
	}
	return f.Validations.Options
}

// TargetCollectionID returns the referenced collection for reference fields.
func (f Field) TargetCollectionID() string {
	if f.Validations == nil {
		return ""
	}
	return f.Validations.CollectionID
}

// FieldValidations carries the type-specific payload of a field.
type FieldValidations struct {
	Options      []FieldOption `json:"options,omitempty"`
	CollectionID string        `json:"collectionId,omitempty"`
	Format       string        `json:"format,omitempty"`
	Precision    int           `json:"precision,omitempty"`
}

// FieldOption is one choice of an Option/Set field.
type FieldOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FieldSpec is the body used to create a field.
type FieldSpec struct {
	Type        FieldType `json:"type"`
	DisplayName string    `json:"displayName"`
	IsRequired  bool      `json:"isRequired"`
	HelpText    string    `json:"helpText,omitempty"`
}

// Item is one CMS item. FieldData is keyed by field slug and its values keep
// whatever shape the API returned.
type Item struct {
	ID            string         `json:"id"`
	CMSLocaleID   string         `json:"cmsLocaleId,omitempty"`
	LastPublished *time.Time     `json:"lastPublished"`
	LastUpdated   *time.Time     `json:"lastUpdated"`
	CreatedOn     *time.Time     `json:"createdOn,omitempty"`
	IsArchived    bool           `json:"isArchived"`
	IsDraft       bool           `json:"isDraft"`
	FieldData     map[string]any `json:"fieldData"`
}

// Name returns the item's name field, which Webflow always stores under "name".
func (i *Item) Name() string {
	if s, ok := i.FieldData["name"].(string); ok {
		return s
	}
	return ""
}
