package mapping

import (
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/flowsync/flowsync-api/internal/content"
	"github.com/flowsync/flowsync-api/internal/models"
)

// MaxFileNameLength caps the name of a files property entry.
const MaxFileNameLength = 100

// MapItemProperties translates one item into Notion property values using the
// destination schema dest. Rich text, reference and choice fields are left
// out: their content goes to the page body and the resolver passes. A
// property whose value cannot be translated is omitted and reported as a
// warning, so a partial re-sync never overwrites good data with a guess.
// The item ID is included only when dest has it as rich text.
func MapItemProperties(item *models.Item, fields []models.Field, dest notionapi.PropertyConfigs) (notionapi.Properties, []Warning) {
	props := notionapi.Properties{
		TitleProperty: &notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: content.SplitText(item.Name()),
		},
	}
	// the linker writes the item ID separately when the database lacks a
	// rich text property for it
	if PropertyType(dest, SourceIDProperty) == notionapi.PropertyConfigTypeRichText {
		props[SourceIDProperty] = &notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: content.SplitText(item.ID),
		}
	}

	var warnings []Warning
	status := DeriveStatus(item.IsDraft, item.LastPublished, item.LastUpdated)
	statusValue, w := StatusPropertyValue(status, dest[StatusProperty])
	if statusValue != nil {
		props[StatusProperty] = statusValue
	}
	if w != nil {
		warnings = append(warnings, *w)
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		name := f.DisplayName
		if f.Slug == TitleFieldSlug || IsReserved(name) || seen[name] {
			continue
		}
		seen[name] = true
		if f.Type == models.FieldTypeRichText || f.Type.IsReference() || f.Type.IsChoice() {
			continue
		}
		cfg, ok := dest[name]
		if !ok || cfg == nil {
			continue
		}

		raw := item.FieldData[f.Slug]
		if raw == nil && cfg.GetType() == notionapi.PropertyConfigTypeCheckbox {
			props[name] = checkboxValue(false)
			continue
		}
		v := Normalize(f.Type, raw)
		if v.Kind == KindEmpty {
			continue
		}
		if !v.Recognized() {
			warnings = append(warnings, Warning{Field: name, Reason: ReasonUnparseable, Detail: string(f.Type)})
			continue
		}
		prop, ok := propertyValue(cfg.GetType(), v)
		if !ok {
			warnings = append(warnings, Warning{Field: name, Reason: ReasonTypeMismatch, Detail: string(cfg.GetType())})
			continue
		}
		if prop != nil {
			props[name] = prop
		}
	}
	return props, warnings
}

// propertyValue converts a normalized value into a property of the given
// destination type. A nil property with ok=true means nothing to write.
func propertyValue(t notionapi.PropertyConfigType, v Value) (notionapi.Property, bool) {
	switch t {
	case notionapi.PropertyConfigTypeRichText:
		return &notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: content.SplitText(valueText(v)),
		}, true

	case notionapi.PropertyConfigTypeNumber:
		if v.Kind == KindText {
			v = NormalizeNumber(v.Text)
		}
		if v.Kind != KindNumber {
			return nil, false
		}
		return &notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: v.Number}, true

	case notionapi.PropertyConfigTypeDate:
		if v.Kind == KindText {
			v = NormalizeDate(v.Text)
		}
		if v.Kind != KindDate {
			return nil, false
		}
		start := notionapi.Date(v.Time)
		return &notionapi.DateProperty{
			Type: notionapi.PropertyTypeDate,
			Date: &notionapi.DateObject{Start: &start},
		}, true

	case notionapi.PropertyConfigTypeCheckbox:
		if v.Kind != KindBool {
			v = NormalizeBool(valueText(v))
		}
		return checkboxValue(v.Bool), true

	case notionapi.PropertyConfigTypeURL:
		u := firstText(v)
		if u == "" {
			return nil, false
		}
		return &notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: u}, true

	case notionapi.PropertyConfigTypeEmail:
		if v.Kind != KindText {
			return nil, false
		}
		return &notionapi.EmailProperty{Type: notionapi.PropertyTypeEmail, Email: strings.TrimSpace(v.Text)}, true

	case notionapi.PropertyConfigTypePhoneNumber:
		if v.Kind != KindText {
			return nil, false
		}
		return &notionapi.PhoneNumberProperty{Type: notionapi.PropertyTypePhoneNumber, PhoneNumber: strings.TrimSpace(v.Text)}, true

	case notionapi.PropertyConfigTypeFiles:
		var urls []string
		switch v.Kind {
		case KindList:
			urls = v.List
		case KindText:
			urls = []string{v.Text}
		default:
			return nil, false
		}
		return FilesValue(urls), true
	}
	return nil, false
}

func checkboxValue(b bool) notionapi.Property {
	return &notionapi.CheckboxProperty{Type: notionapi.PropertyTypeCheckbox, Checkbox: b}
}

func valueText(v Value) string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindDate:
		return v.Time.Format(time.RFC3339)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindList:
		return strings.Join(v.List, ", ")
	}
	return ""
}

func firstText(v Value) string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindList:
		if len(v.List) > 0 {
			return v.List[0]
		}
	}
	return ""
}

// FilesValue builds an external files property, one entry per URL.
func FilesValue(urls []string) notionapi.Property {
	files := make([]notionapi.File, 0, len(urls))
	for _, u := range urls {
		files = append(files, notionapi.File{
			Name:     FileName(u),
			Type:     notionapi.FileTypeExternal,
			External: &notionapi.FileObject{URL: u},
		})
	}
	return &notionapi.FilesProperty{Type: notionapi.PropertyTypeFiles, Files: files}
}

// FileName derives a display name from the last path segment of rawURL.
func FileName(rawURL string) string {
	name := ""
	if parsed, err := url.Parse(rawURL); err == nil {
		name = path.Base(parsed.Path)
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	if r := []rune(name); len(r) > MaxFileNameLength {
		name = string(r[:MaxFileNameLength])
	}
	return name
}
