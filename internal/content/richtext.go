package content

import (
	"strings"
	"unicode/utf8"

	"github.com/jomei/notionapi"
)

const (
	// MaxTextLength is Notion's per-run content limit.
	MaxTextLength = 2000
	// MaxRunsPerBlock is Notion's cap on rich text entries in one block.
	MaxRunsPerBlock = 100
)

// style is the annotation set inherited down the DOM while collecting runs.
type style struct {
	bold          bool
	italic        bool
	underline     bool
	strikethrough bool
	code          bool
	color         notionapi.Color
	link          string
}

func (s style) annotations() *notionapi.Annotations {
	color := s.color
	if color == "" {
		color = notionapi.Color("default")
	}
	return &notionapi.Annotations{
		Bold:          s.bold,
		Italic:        s.italic,
		Underline:     s.underline,
		Strikethrough: s.strikethrough,
		Code:          s.code,
		Color:         color,
	}
}

func newRun(text string, s style) notionapi.RichText {
	rt := notionapi.RichText{
		Type:        notionapi.ObjectTypeText,
		Text:        &notionapi.Text{Content: text},
		Annotations: s.annotations(),
	}
	if s.link != "" {
		rt.Text.Link = &notionapi.Link{Url: s.link}
	}
	return rt
}

// Text builds a single unannotated run.
func Text(content string) notionapi.RichText {
	return newRun(content, style{})
}

func isNewline(rt notionapi.RichText) bool {
	return rt.Text != nil && rt.Text.Content == "\n"
}

func runContent(rt notionapi.RichText) string {
	if rt.Text == nil {
		return ""
	}
	return rt.Text.Content
}

func linkOf(rt notionapi.RichText) string {
	if rt.Text == nil || rt.Text.Link == nil {
		return ""
	}
	return rt.Text.Link.Url
}

func sameAnnotations(a, b *notionapi.Annotations) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mergeable(a, b notionapi.RichText) bool {
	if a.Text == nil || b.Text == nil || isNewline(a) || isNewline(b) {
		return false
	}
	return sameAnnotations(a.Annotations, b.Annotations) && linkOf(a) == linkOf(b)
}

// Consolidate merges adjacent runs with identical annotations and link.
// A run that is exactly "\n" never merges with a neighbour.
func Consolidate(runs []notionapi.RichText) []notionapi.RichText {
	out := make([]notionapi.RichText, 0, len(runs))
	for _, r := range runs {
		if r.Text == nil || r.Text.Content == "" {
			continue
		}
		if n := len(out); n > 0 && mergeable(out[n-1], r) {
			merged := *out[n-1].Text
			merged.Content += r.Text.Content
			out[n-1].Text = &merged
			continue
		}
		out = append(out, r)
	}
	return out
}

var zeroWidth = strings.NewReplacer("\u200d", "", "\u200b", "", "\ufeff", "")

func isBlank(s string) bool {
	return strings.TrimSpace(zeroWidth.Replace(s)) == ""
}

// TrimEdges drops whitespace-only runs at either end of the sequence (an
// intentional "\n" run survives) and trims spaces off the outermost runs.
func TrimEdges(runs []notionapi.RichText) []notionapi.RichText {
	start, end := 0, len(runs)
	for start < end && !isNewline(runs[start]) && isBlank(runContent(runs[start])) {
		start++
	}
	for end > start && !isNewline(runs[end-1]) && isBlank(runContent(runs[end-1])) {
		end--
	}
	out := append([]notionapi.RichText(nil), runs[start:end]...)
	if len(out) == 0 {
		return out
	}
	if first := out[0]; !isNewline(first) {
		t := *first.Text
		t.Content = strings.TrimLeft(t.Content, " \t")
		out[0].Text = &t
	}
	if last := out[len(out)-1]; !isNewline(last) {
		t := *last.Text
		t.Content = strings.TrimRight(t.Content, " \t")
		out[len(out)-1].Text = &t
	}
	return out
}

// splitLong breaks runs over MaxTextLength runes into several runs with the
// same annotations.
func splitLong(runs []notionapi.RichText) []notionapi.RichText {
	out := make([]notionapi.RichText, 0, len(runs))
	for _, r := range runs {
		text := runContent(r)
		if utf8.RuneCountInString(text) <= MaxTextLength {
			out = append(out, r)
			continue
		}
		runes := []rune(text)
		for i := 0; i < len(runes); i += MaxTextLength {
			j := i + MaxTextLength
			if j > len(runes) {
				j = len(runes)
			}
			piece := r
			t := *r.Text
			t.Content = string(runes[i:j])
			piece.Text = &t
			out = append(out, piece)
		}
	}
	return out
}

// finalize turns the raw runs of one block into the sequence sent to Notion.
func finalize(runs []notionapi.RichText) []notionapi.RichText {
	runs = TrimEdges(Consolidate(runs))
	runs = splitLong(runs)
	if len(runs) > MaxRunsPerBlock {
		runs = runs[:MaxRunsPerBlock]
	}
	return runs
}

// SplitText turns plain text into unannotated runs of at most MaxTextLength
// runes. Empty text yields an empty, non-nil slice, which clears a property.
func SplitText(s string) []notionapi.RichText {
	if s == "" {
		return []notionapi.RichText{}
	}
	return splitLong([]notionapi.RichText{Text(s)})
}
