package mapping

import (
	"fmt"
	"sort"

	"github.com/jomei/notionapi"

	"github.com/flowsync/flowsync-api/internal/models"
)

// Reserved property and field names.
const (
	// TitleProperty is the injected title property, filled from the item's
	// "name" field.
	TitleProperty = "Name"
	// TitleFieldSlug is the Webflow slug every collection uses for the item name.
	TitleFieldSlug = "name"
	// SourceIDProperty holds the Webflow item ID on every page.
	SourceIDProperty = "Webflow Item ID"
	// StatusProperty holds the derived publishing status.
	StatusProperty = "Status"
	// SourceRefFieldName is the Webflow field that holds the Notion page ID.
	SourceRefFieldName = "Notion Page ID"
)

var reservedNames = map[string]bool{
	TitleProperty:      true,
	SourceIDProperty:   true,
	StatusProperty:     true,
	SourceRefFieldName: true,
}

// IsReserved reports whether name is one of the injected property names or
// the Webflow back-reference field.
func IsReserved(name string) bool {
	return reservedNames[name]
}

var optionColors = []notionapi.Color{
	"default", "gray", "brown", "orange", "yellow", "green", "blue", "purple", "pink", "red",
}

// Binding ties one source field to the destination property created for it.
type Binding struct {
	Field        models.Field
	PropertyName string
	PropertyType notionapi.PropertyConfigType
	// Placeholder is set for reference fields whose property is rich_text
	// until the relation pass converts it.
	Placeholder bool
}

// DatabaseSchema is the result of translating a collection schema.
type DatabaseSchema struct {
	Properties notionapi.PropertyConfigs
	Bindings   []Binding
	Warnings   []Warning
}

// Binding returns the binding for the property with the given name.
func (s *DatabaseSchema) Binding(property string) (Binding, bool) {
	for _, b := range s.Bindings {
		if b.PropertyName == property {
			return b, true
		}
	}
	return Binding{}, false
}

// PropertyNames returns the sorted property names, used to compare schemas.
func (s *DatabaseSchema) PropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildDatabaseSchema translates Webflow field definitions into a Notion
// property schema. The title, back-reference and status properties are
// always present. The result depends only on the input, but every call
// that is followed by a create produces a new database: callers check for
// an existing mapping first.
func BuildDatabaseSchema(fields []models.Field) *DatabaseSchema {
	schema := &DatabaseSchema{
		Properties: notionapi.PropertyConfigs{
			TitleProperty: &notionapi.TitlePropertyConfig{
				Type: notionapi.PropertyConfigTypeTitle,
			},
			SourceIDProperty: &notionapi.RichTextPropertyConfig{
				Type: notionapi.PropertyConfigTypeRichText,
			},
			StatusProperty: &notionapi.SelectPropertyConfig{
				Type:   notionapi.PropertyConfigTypeSelect,
				Select: notionapi.Select{Options: statusOptions()},
			},
		},
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Slug == TitleFieldSlug {
			continue
		}
		name := f.DisplayName
		if name == "" {
			name = f.Slug
		}
		if IsReserved(name) {
			if f.DisplayName != SourceRefFieldName {
				schema.warn(f, ReasonReservedName, name)
			}
			continue
		}
		if seen[name] {
			schema.warn(f, ReasonDuplicateName, name)
			continue
		}

		cfg, placeholder := propertyConfig(f)
		if cfg == nil {
			schema.warn(f, ReasonUnsupportedType, string(f.Type))
			continue
		}
		seen[name] = true
		schema.Properties[name] = cfg
		schema.Bindings = append(schema.Bindings, Binding{
			Field:        f,
			PropertyName: name,
			PropertyType: cfg.GetType(),
			Placeholder:  placeholder,
		})
	}
	return schema
}

func (s *DatabaseSchema) warn(f models.Field, reason, detail string) {
	s.Warnings = append(s.Warnings, Warning{Field: f.DisplayName, Reason: reason, Detail: detail})
}

// propertyConfig applies the coercion table for one field.
func propertyConfig(f models.Field) (notionapi.PropertyConfig, bool) {
	switch f.Type {
	case models.FieldTypePlainText, models.FieldTypeColor:
		return richTextConfig(), false
	case models.FieldTypeRichText:
		// The HTML itself goes into the page body.
		return richTextConfig(), false
	case models.FieldTypeReference, models.FieldTypeMultiReference:
		return richTextConfig(), true
	case models.FieldTypeNumber:
		return &notionapi.NumberPropertyConfig{
			Type:   notionapi.PropertyConfigTypeNumber,
			Number: notionapi.NumberFormat{Format: notionapi.FormatNumber},
		}, false
	case models.FieldTypeDateTime, models.FieldTypeDate:
		return &notionapi.DatePropertyConfig{Type: notionapi.PropertyConfigTypeDate}, false
	case models.FieldTypeSwitch, models.FieldTypeBoolean:
		return &notionapi.CheckboxPropertyConfig{Type: notionapi.PropertyConfigTypeCheckbox}, false
	case models.FieldTypeOption:
		return &notionapi.SelectPropertyConfig{
			Type:   notionapi.PropertyConfigTypeSelect,
			Select: notionapi.Select{Options: copyOptions(f.Options())},
		}, false
	case models.FieldTypeSet, models.FieldTypeMultiOption:
		return &notionapi.MultiSelectPropertyConfig{
			Type:        notionapi.PropertyConfigTypeMultiSelect,
			MultiSelect: notionapi.Select{Options: copyOptions(f.Options())},
		}, false
	case models.FieldTypeLink, models.FieldTypeVideoLink:
		return &notionapi.URLPropertyConfig{Type: notionapi.PropertyConfigTypeURL}, false
	case models.FieldTypeEmail:
		return &notionapi.EmailPropertyConfig{Type: notionapi.PropertyConfigTypeEmail}, false
	case models.FieldTypePhone:
		return &notionapi.PhoneNumberPropertyConfig{Type: notionapi.PropertyConfigTypePhoneNumber}, false
	case models.FieldTypeImage, models.FieldTypeMultiImage, models.FieldTypeFile:
		return &notionapi.FilesPropertyConfig{Type: notionapi.PropertyConfigTypeFiles}, false
	}
	return nil, false
}

func richTextConfig() notionapi.PropertyConfig {
	return &notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText}
}

// copyOptions copies option names in source order. Duplicate names collapse
// because Notion rejects them.
func copyOptions(src []models.FieldOption) []notionapi.Option {
	out := make([]notionapi.Option, 0, len(src))
	seen := make(map[string]bool, len(src))
	for _, o := range src {
		key := foldKey(o.Name)
		if o.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, notionapi.Option{
			Name:  o.Name,
			Color: optionColors[len(out)%len(optionColors)],
		})
	}
	return out
}

// RelationConfig is the property patch that turns a placeholder into a
// one-way relation to databaseID.
func RelationConfig(databaseID string) notionapi.PropertyConfig {
	return &notionapi.RelationPropertyConfig{
		Type: notionapi.PropertyConfigTypeRelation,
		Relation: notionapi.RelationConfig{
			DatabaseID:     notionapi.DatabaseID(databaseID),
			Type:           notionapi.RelationSingleProperty,
			SingleProperty: &notionapi.SingleProperty{},
		},
	}
}

// PropertyType returns the type of the named property in cfgs, or "" when
// the property is absent.
func PropertyType(cfgs notionapi.PropertyConfigs, name string) notionapi.PropertyConfigType {
	cfg, ok := cfgs[name]
	if !ok || cfg == nil {
		return ""
	}
	return cfg.GetType()
}

// Warning records a mapping ambiguity. Warnings never fail an item.
type Warning struct {
	Field  string
	Reason string
	Detail string
}

// Warning reasons
const (
	ReasonUnsupportedType = "unsupported_type"
	ReasonDuplicateName   = "duplicate_name"
	ReasonReservedName    = "reserved_name"
	ReasonUnparseable     = "unparseable_value"
	ReasonUnmatchedOption = "unmatched_option"
	ReasonMissingTarget   = "missing_relation_target"
	ReasonStatusFallback  = "status_fallback"
	ReasonTypeMismatch    = "property_type_mismatch"
)

func (w Warning) String() string {
	if w.Detail == "" {
		return fmt.Sprintf("%s: %s", w.Field, w.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", w.Field, w.Reason, w.Detail)
}
