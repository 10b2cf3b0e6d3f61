package mapping

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/flowsync/flowsync-api/internal/models"
)

// Kind tags the shape a raw field value was normalized into.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindEmpty
	KindText
	KindNumber
	KindDate
	KindBool
	KindList
)

// Value is the normalized form of one raw Webflow field value. Exactly the
// member matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Text   string
	Number float64
	Time   time.Time
	Bool   bool
	List   []string
}

// Recognized reports whether normalization produced a usable value.
func (v Value) Recognized() bool {
	return v.Kind != KindUnrecognized && v.Kind != KindEmpty
}

// Normalize converts a raw value into a typed Value according to the source
// field type. The API does not guarantee one shape per type, so each
// normalizer accepts plain scalars, wrapped objects and arrays.
func Normalize(fieldType models.FieldType, raw any) Value {
	if raw == nil {
		return Value{Kind: KindEmpty}
	}
	switch fieldType {
	case models.FieldTypePlainText, models.FieldTypeRichText, models.FieldTypeColor,
		models.FieldTypeEmail, models.FieldTypePhone:
		return NormalizeText(raw)
	case models.FieldTypeLink, models.FieldTypeVideoLink:
		return NormalizeLink(raw)
	case models.FieldTypeNumber:
		return NormalizeNumber(raw)
	case models.FieldTypeDateTime, models.FieldTypeDate:
		return NormalizeDate(raw)
	case models.FieldTypeSwitch, models.FieldTypeBoolean:
		return NormalizeBool(raw)
	case models.FieldTypeImage, models.FieldTypeMultiImage, models.FieldTypeFile:
		return NormalizeURLs(raw)
	case models.FieldTypeOption, models.FieldTypeSet, models.FieldTypeMultiOption,
		models.FieldTypeReference, models.FieldTypeMultiReference:
		return NormalizeIDs(raw)
	}
	return Value{}
}

// unwrap digs the scalar out of {value}/{url}/{id}-style wrapper objects.
func unwrap(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// NormalizeText accepts strings, numbers and {value}/{text} wrappers.
func NormalizeText(raw any) Value {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return Value{Kind: KindEmpty}
		}
		return Value{Kind: KindText, Text: v}
	case float64:
		return Value{Kind: KindText, Text: strconv.FormatFloat(v, 'f', -1, 64)}
	case json.Number:
		return Value{Kind: KindText, Text: v.String()}
	case bool:
		return Value{Kind: KindText, Text: strconv.FormatBool(v)}
	case map[string]any:
		if inner, ok := unwrap(v, "value", "text", "name"); ok {
			return NormalizeText(inner)
		}
	}
	return Value{}
}

// NormalizeLink accepts a URL string or a {url}/{value} wrapper.
func NormalizeLink(raw any) Value {
	switch v := raw.(type) {
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return Value{Kind: KindEmpty}
		}
		return Value{Kind: KindText, Text: v}
	case map[string]any:
		if inner, ok := unwrap(v, "url", "value"); ok {
			return NormalizeLink(inner)
		}
	}
	return Value{}
}

// NormalizeNumber accepts numbers, numeric strings and {value} wrappers.
func NormalizeNumber(raw any) Value {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return Value{}
		}
		f = parsed
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if s == "" {
			return Value{Kind: KindEmpty}
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}
		}
		f = parsed
	case map[string]any:
		if inner, ok := unwrap(v, "value", "number"); ok {
			return NormalizeNumber(inner)
		}
		return Value{}
	default:
		return Value{}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{Kind: KindNumber, Number: f}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NormalizeDate accepts ISO-8601 strings, time values and {value}/{date}
// wrappers.
func NormalizeDate(raw any) Value {
	switch v := raw.(type) {
	case time.Time:
		return Value{Kind: KindDate, Time: v}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Value{Kind: KindEmpty}
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return Value{Kind: KindDate, Time: t}
			}
		}
	case map[string]any:
		if inner, ok := unwrap(v, "value", "date", "start"); ok {
			return NormalizeDate(inner)
		}
	}
	return Value{}
}

// NormalizeBool treats true, 1, "true", "1" and any non-empty object as true.
// Everything else is false, so the result is always recognized.
func NormalizeBool(raw any) Value {
	b := false
	switch v := raw.(type) {
	case bool:
		b = v
	case float64:
		b = v == 1
	case int:
		b = v == 1
	case json.Number:
		b = v.String() == "1"
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		b = s == "true" || s == "1"
	case map[string]any:
		b = len(v) > 0
	}
	return Value{Kind: KindBool, Bool: b}
}

// NormalizeURLs collects file URLs from a string, a {url} object or an array
// of either.
func NormalizeURLs(raw any) Value {
	var urls []string
	var collect func(any)
	collect = func(x any) {
		switch v := x.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				urls = append(urls, s)
			}
		case map[string]any:
			if inner, ok := unwrap(v, "url", "value", "src"); ok {
				collect(inner)
			}
		case []any:
			for _, e := range v {
				collect(e)
			}
		}
	}
	collect(raw)
	if len(urls) == 0 {
		if _, isList := raw.([]any); isList {
			return Value{Kind: KindEmpty}
		}
		return Value{}
	}
	return Value{Kind: KindList, List: urls}
}

// NormalizeIDs collects option or item IDs from a string, an {id} object or
// an array of either.
func NormalizeIDs(raw any) Value {
	var ids []string
	var collect func(any)
	collect = func(x any) {
		switch v := x.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				ids = append(ids, s)
			}
		case map[string]any:
			if inner, ok := unwrap(v, "id", "_id", "value"); ok {
				collect(inner)
			}
		case []any:
			for _, e := range v {
				collect(e)
			}
		case []string:
			for _, e := range v {
				collect(e)
			}
		}
	}
	collect(raw)
	if len(ids) == 0 {
		switch raw.(type) {
		case []any, []string, string:
			return Value{Kind: KindEmpty}
		}
		return Value{}
	}
	return Value{Kind: KindList, List: ids}
}
