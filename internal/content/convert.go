// Package content converts Webflow rich text HTML into Notion blocks.
//
// Conversion is a depth-first walk over the parsed fragment. Every element is
// either a block producer, an annotation contributor, a transparent
// container or ignored. Malformed markup never fails: the parser is
// permissive and anything it cannot place is dropped.
package content

import (
	"regexp"
	"strings"

	"github.com/jomei/notionapi"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "br": true, "cite": true,
	"code": true, "data": true, "del": true, "dfn": true, "em": true, "font": true, "i": true,
	"ins": true, "kbd": true, "mark": true, "q": true, "s": true, "samp": true, "small": true,
	"span": true, "strike": true, "strong": true, "sub": true, "sup": true, "time": true,
	"tt": true, "u": true, "var": true, "wbr": true,
}

var ignoredTags = map[string]bool{
	"head": true, "script": true, "style": true, "noscript": true, "template": true,
	"meta": true, "link": true, "title": true, "svg": true, "form": true, "button": true,
	"input": true, "select": true, "textarea": true, "object": true, "canvas": true,
	"figcaption": true,
}

var whitespace = regexp.MustCompile(`[ \t\n\r\f]+`)

// Convert parses an HTML fragment and returns its blocks in document order.
func Convert(fragment string) []notionapi.Block {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil
	}
	return dropEmptyParagraphs(convertNodes(nodes))
}

func isInline(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return true
	case html.ElementNode:
		return inlineTags[n.Data]
	}
	return false
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// convertNodes converts a sibling sequence. Consecutive inline nodes are
// grouped into one synthetic paragraph.
func convertNodes(nodes []*html.Node) []notionapi.Block {
	var out []notionapi.Block
	var pending []*html.Node

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if rt := finalize(collectRuns(pending, style{})); len(rt) > 0 {
			out = append(out, paragraphBlock(rt))
		}
		out = append(out, hoistMedia(pending)...)
		pending = nil
	}

	for _, n := range nodes {
		if isInline(n) {
			pending = append(pending, n)
			continue
		}
		flush()
		out = append(out, convertBlock(n)...)
	}
	flush()
	return out
}

func convertBlock(n *html.Node) []notionapi.Block {
	if n.Type != html.ElementNode || ignoredTags[n.Data] {
		return nil
	}

	switch n.Data {
	case "p":
		var out []notionapi.Block
		if rt := finalize(collectRuns(children(n), style{})); len(rt) > 0 {
			out = append(out, paragraphBlock(rt))
		}
		return append(out, hoistMedia(children(n))...)
	case "h1":
		return textBlock(n, func(rt []notionapi.RichText) notionapi.Block { return headingBlock(1, rt) })
	case "h2":
		return textBlock(n, func(rt []notionapi.RichText) notionapi.Block { return headingBlock(2, rt) })
	case "h3", "h4", "h5", "h6":
		return textBlock(n, func(rt []notionapi.RichText) notionapi.Block { return headingBlock(3, rt) })
	case "ul", "ol":
		return convertList(n)
	case "li":
		// stray list item outside a list
		return []notionapi.Block{convertListItem(n, false)}
	case "blockquote":
		return textBlock(n, quoteBlock)
	case "pre":
		return []notionapi.Block{convertCode(n)}
	case "hr":
		return []notionapi.Block{dividerBlock()}
	case "img":
		if b := convertImage(n, nil); b != nil {
			return []notionapi.Block{b}
		}
		return nil
	case "figure":
		if b := convertFigure(n); b != nil {
			return []notionapi.Block{b}
		}
		return convertNodes(children(n))
	case "iframe", "video":
		if b := convertMedia(n, nil); b != nil {
			return []notionapi.Block{b}
		}
		return nil
	case "details":
		return []notionapi.Block{convertDetails(n)}
	}

	if hasClass(n, "callout") {
		return []notionapi.Block{convertCallout(n)}
	}

	// transparent container: div, section, article, table and anything unknown
	return convertNodes(children(n))
}

func textBlock(n *html.Node, build func([]notionapi.RichText) notionapi.Block) []notionapi.Block {
	rt := finalize(collectRuns(children(n), style{}))
	if len(rt) == 0 {
		return nil
	}
	return []notionapi.Block{build(rt)}
}

// collectRuns walks inline content, inheriting annotations from ancestors.
// Nested lists and media are skipped; the caller places them.
func collectRuns(nodes []*html.Node, s style) []notionapi.RichText {
	var runs []notionapi.RichText
	var walk func(n *html.Node, s style)
	walk = func(n *html.Node, s style) {
		switch n.Type {
		case html.TextNode:
			text := whitespace.ReplaceAllString(n.Data, " ")
			if len(runs) > 0 && endsInSpace(runContent(runs[len(runs)-1])) {
				// whitespace collapses across element boundaries too
				text = strings.TrimLeft(text, " ")
			}
			if text != "" {
				runs = append(runs, newRun(text, s))
			}
			return
		case html.ElementNode:
		default:
			return
		}

		switch n.Data {
		case "br":
			runs = append(runs, newRun("\n", s))
			return
		case "ul", "ol", "img", "iframe", "video", "figure", "pre", "hr":
			return
		case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "section":
			// block inside inline context: separate from preceding text
			if len(runs) > 0 && !isNewline(runs[len(runs)-1]) && !isBlank(runContent(runs[len(runs)-1])) {
				runs = append(runs, newRun("\n", style{}))
			}
		}
		if ignoredTags[n.Data] {
			return
		}

		s = applyTag(n, s)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, s)
		}
	}
	for _, n := range nodes {
		walk(n, s)
	}
	return runs
}

func endsInSpace(s string) bool {
	return strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n")
}

// hoistMedia lifts images nested inside inline content into their own blocks.
func hoistMedia(nodes []*html.Node) []notionapi.Block {
	var out []notionapi.Block
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if n.Data == "img" {
			if b := convertImage(n, nil); b != nil {
				out = append(out, b)
			}
			return
		}
		if n.Data == "ul" || n.Data == "ol" {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out
}

func convertList(list *html.Node) []notionapi.Block {
	ordered := list.Data == "ol"
	var out []notionapi.Block
	for c := list.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if c.Data == "li" {
			out = append(out, convertListItem(c, ordered))
			continue
		}
		// a list directly inside a list attaches to the previous item
		if (c.Data == "ul" || c.Data == "ol") && len(out) > 0 {
			attachChildren(out[len(out)-1], convertList(c))
			continue
		}
		out = append(out, convertBlock(c)...)
	}
	return out
}

// convertListItem keeps the item's immediate nested lists as its children.
func convertListItem(li *html.Node, ordered bool) notionapi.Block {
	var inline []*html.Node
	var nested []notionapi.Block
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			switch c.Data {
			case "ul", "ol":
				nested = append(nested, convertList(c)...)
				continue
			case "pre", "blockquote", "figure", "hr", "details":
				nested = append(nested, convertBlock(c)...)
				continue
			}
		}
		inline = append(inline, c)
	}
	nested = append(hoistMedia(inline), nested...)
	return listItemBlock(ordered, finalize(collectRuns(inline, style{})), nested)
}

func attachChildren(b notionapi.Block, extra []notionapi.Block) {
	switch v := b.(type) {
	case *notionapi.BulletedListItemBlock:
		v.BulletedListItem.Children = append(v.BulletedListItem.Children, extra...)
	case *notionapi.NumberedListItemBlock:
		v.NumberedListItem.Children = append(v.NumberedListItem.Children, extra...)
	}
}

func convertCode(pre *html.Node) notionapi.Block {
	text := strings.TrimRight(rawText(pre), "\n")
	text = truncateCode(text)
	var rt []notionapi.RichText
	if text != "" {
		rt = splitLong([]notionapi.RichText{Text(text)})
	}
	return codeBlock(rt, codeLanguage(pre))
}

func imageSource(img *html.Node) string {
	for _, key := range []string{"src", "data-src"} {
		if src := normalizeLink(attr(img, key)); strings.HasPrefix(src, "http") {
			return src
		}
	}
	return ""
}

func convertImage(img *html.Node, caption []notionapi.RichText) notionapi.Block {
	src := imageSource(img)
	if src == "" {
		return nil
	}
	return imageBlock(src, caption)
}

var videoHosts = []string{"youtube.com", "youtu.be", "vimeo.com", "loom.com", "wistia"}

func isVideoURL(u string) bool {
	lower := strings.ToLower(u)
	for _, h := range videoHosts {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return strings.HasSuffix(lower, ".mp4") || strings.HasSuffix(lower, ".webm") || strings.HasSuffix(lower, ".mov")
}

// convertMedia handles iframe and video elements.
func convertMedia(n *html.Node, caption []notionapi.RichText) notionapi.Block {
	src := normalizeLink(attr(n, "src"))
	if src == "" && n.Data == "video" {
		for c := n.FirstChild; c != nil && src == ""; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "source" {
				src = normalizeLink(attr(c, "src"))
			}
		}
	}
	if src == "" {
		return nil
	}
	if n.Data == "video" || isVideoURL(src) {
		return videoBlock(src, caption)
	}
	return embedBlock(src, caption)
}

// convertFigure covers Webflow's w-richtext-figure-type-image/video wrappers.
func convertFigure(fig *html.Node) notionapi.Block {
	var caption []notionapi.RichText
	var media *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "figcaption":
			caption = finalize(collectRuns(children(n), style{}))
			return
		case "img", "iframe", "video":
			if media == nil {
				media = n
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(fig)

	if media == nil {
		// video figures sometimes carry only the page URL
		if page := normalizeLink(attr(fig, "data-page-url")); page != "" {
			return videoBlock(page, caption)
		}
		return nil
	}
	if media.Data == "img" {
		return convertImage(media, caption)
	}
	return convertMedia(media, caption)
}

func convertDetails(details *html.Node) notionapi.Block {
	var summary []notionapi.RichText
	var rest []*html.Node
	for c := details.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "summary" && summary == nil {
			summary = finalize(collectRuns(children(c), style{}))
			continue
		}
		rest = append(rest, c)
	}
	return toggleBlock(summary, dropEmptyParagraphs(convertNodes(rest)))
}

func convertCallout(n *html.Node) notionapi.Block {
	emoji := attr(n, "data-emoji")
	if emoji == "" {
		emoji = attr(n, "data-icon")
	}
	if emoji == "" {
		emoji = "💡"
	}
	return calloutBlock(finalize(collectRuns(children(n), style{})), emoji)
}

// dropEmptyParagraphs removes paragraphs whose text is blank or only
// zero-width artifacts. Children of list items and toggles are cleaned too.
func dropEmptyParagraphs(blocks []notionapi.Block) []notionapi.Block {
	out := blocks[:0]
	for _, b := range blocks {
		if p, ok := b.(*notionapi.ParagraphBlock); ok && isBlank(PlainText(p.Paragraph.RichText)) {
			continue
		}
		switch v := b.(type) {
		case *notionapi.BulletedListItemBlock:
			v.BulletedListItem.Children = dropEmptyParagraphs(v.BulletedListItem.Children)
		case *notionapi.NumberedListItemBlock:
			v.NumberedListItem.Children = dropEmptyParagraphs(v.NumberedListItem.Children)
		case *notionapi.ToggleBlock:
			v.Toggle.Children = dropEmptyParagraphs(v.Toggle.Children)
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Section is one named HTML fragment of an item.
type Section struct {
	Title string
	HTML  string
}

// ConvertSections converts the fragments of an item into one body. When more
// than one section has content, each starts with a heading carrying its title.
func ConvertSections(sections []Section) []notionapi.Block {
	type converted struct {
		title  string
		blocks []notionapi.Block
	}
	var parts []converted
	for _, s := range sections {
		if blocks := Convert(s.HTML); len(blocks) > 0 {
			parts = append(parts, converted{title: s.Title, blocks: blocks})
		}
	}
	if len(parts) == 1 {
		return parts[0].blocks
	}

	var out []notionapi.Block
	for _, p := range parts {
		out = append(out, headingBlock(2, SplitText(p.title)))
		out = append(out, p.blocks...)
	}
	return out
}
