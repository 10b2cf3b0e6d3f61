package mapping

import (
	"strings"

	"github.com/jomei/notionapi"
	"golang.org/x/text/cases"

	"github.com/flowsync/flowsync-api/internal/models"
)

// foldKey returns the case-folded form used for option name comparison.
// A Caser keeps state, so each call gets its own.
func foldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// MatchOption finds the option whose name equals name ignoring case. It never
// invents an option.
func MatchOption(name string, options []notionapi.Option) (notionapi.Option, bool) {
	key := foldKey(name)
	if key == "" {
		return notionapi.Option{}, false
	}
	for _, o := range options {
		if foldKey(o.Name) == key {
			return o, true
		}
	}
	return notionapi.Option{}, false
}

// OptionNames resolves raw option values to option names using the field's
// own option list. Values that are not an option ID are taken as names.
func OptionNames(field models.Field, raw []string) []string {
	byID := make(map[string]string, len(field.Options()))
	for _, o := range field.Options() {
		byID[o.ID] = o.Name
	}
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		if name, ok := byID[v]; ok {
			names = append(names, name)
			continue
		}
		names = append(names, v)
	}
	return names
}

// ChoiceProperty resolves a choice field's raw value against the destination
// property config. It returns nil when the value is empty, the property is not
// a select or multi-select, or no option matched. Unmatched names come back in
// the warning list.
func ChoiceProperty(field models.Field, raw any, cfg notionapi.PropertyConfig) (notionapi.Property, []Warning) {
	v := NormalizeIDs(raw)
	if !v.Recognized() {
		if v.Kind == KindUnrecognized {
			return nil, []Warning{{Field: field.DisplayName, Reason: ReasonUnparseable}}
		}
		return nil, nil
	}
	names := OptionNames(field, v.List)

	var warnings []Warning
	match := func(options []notionapi.Option) []notionapi.Option {
		var out []notionapi.Option
		seen := map[string]bool{}
		for _, n := range names {
			opt, ok := MatchOption(n, options)
			if !ok {
				warnings = append(warnings, Warning{Field: field.DisplayName, Reason: ReasonUnmatchedOption, Detail: n})
				continue
			}
			if seen[opt.Name] {
				continue
			}
			seen[opt.Name] = true
			out = append(out, notionapi.Option{Name: opt.Name})
		}
		return out
	}

	switch c := cfg.(type) {
	case *notionapi.SelectPropertyConfig:
		matched := match(c.Select.Options)
		if len(matched) == 0 {
			return nil, warnings
		}
		return &notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: matched[0]}, warnings
	case *notionapi.MultiSelectPropertyConfig:
		matched := match(c.MultiSelect.Options)
		if len(matched) == 0 {
			return nil, warnings
		}
		return &notionapi.MultiSelectProperty{Type: notionapi.PropertyTypeMultiSelect, MultiSelect: matched}, warnings
	}
	return nil, []Warning{{Field: field.DisplayName, Reason: ReasonTypeMismatch}}
}
