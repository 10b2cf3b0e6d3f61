package content

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
	"golang.org/x/net/html"
)

// palette is matched by substring against the lowercased CSS value, in order.
var palette = []string{"red", "blue", "green", "yellow", "orange", "pink", "purple", "gray", "brown"}

// matchColor maps a CSS color value onto a Notion color name.
func matchColor(value string, background bool) notionapi.Color {
	v := strings.ToLower(value)
	v = strings.ReplaceAll(v, "grey", "gray")
	for _, name := range palette {
		if strings.Contains(v, name) {
			if background {
				return notionapi.Color(name + "_background")
			}
			return notionapi.Color(name)
		}
	}
	return notionapi.Color("default")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, fragment string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if strings.Contains(strings.ToLower(c), fragment) {
			return true
		}
	}
	return false
}

// parseStyle splits an inline style attribute into lowercased declarations.
func parseStyle(s string) map[string]string {
	decls := map[string]string{}
	for _, part := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		decls[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	return decls
}

// applyTag folds the annotation an inline element contributes into s.
func applyTag(n *html.Node, s style) style {
	switch n.Data {
	case "strong", "b":
		s.bold = true
	case "em", "i", "cite", "dfn":
		s.italic = true
	case "u", "ins":
		s.underline = true
	case "s", "strike", "del":
		s.strikethrough = true
	case "code", "kbd", "samp", "tt":
		s.code = true
	case "a":
		if href := normalizeLink(attr(n, "href")); href != "" {
			s.link = href
		}
	case "mark":
		s.color = notionapi.Color("yellow_background")
	case "font":
		if c := attr(n, "color"); c != "" {
			s.color = matchColor(c, false)
		}
	}

	if raw := attr(n, "style"); raw != "" {
		decls := parseStyle(raw)
		if isBoldWeight(decls["font-weight"]) {
			s.bold = true
		}
		if decls["font-style"] == "italic" {
			s.italic = true
		}
		if td := decls["text-decoration"] + " " + decls["text-decoration-line"]; td != " " {
			if strings.Contains(td, "underline") {
				s.underline = true
			}
			if strings.Contains(td, "line-through") {
				s.strikethrough = true
			}
		}
		if c, ok := decls["color"]; ok {
			s.color = matchColor(c, false)
		}
		if c, ok := decls["background-color"]; ok {
			if bg := matchColor(c, true); bg != "default" {
				s.color = bg
			}
		}
	}
	return s
}

func isBoldWeight(w string) bool {
	if w == "bold" || w == "bolder" {
		return true
	}
	n, err := strconv.Atoi(w)
	return err == nil && n >= 600
}

// normalizeLink keeps absolute http(s), mailto and tel targets. Relative
// site paths have no meaning inside Notion and are dropped.
func normalizeLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return ""
		}
		return u.String()
	case "mailto", "tel":
		return href
	}
	return ""
}
