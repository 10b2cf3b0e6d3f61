package content

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	defaultLanguage = "plain text"
	truncationMark  = "..."
)

var languageAliases = map[string]string{
	"js":         "javascript",
	"jsx":        "javascript",
	"ts":         "typescript",
	"tsx":        "typescript",
	"py":         "python",
	"rb":         "ruby",
	"sh":         "shell",
	"zsh":        "shell",
	"console":    "shell",
	"golang":     "go",
	"yml":        "yaml",
	"md":         "markdown",
	"cpp":        "c++",
	"cs":         "c#",
	"csharp":     "c#",
	"fsharp":     "f#",
	"objc":       "objective-c",
	"dockerfile": "docker",
	"text":       defaultLanguage,
	"plaintext":  defaultLanguage,
	"txt":        defaultLanguage,
	"htm":        "html",
	"rs":         "rust",
	"kt":         "kotlin",
	"ps1":        "powershell",
	"proto":      "protobuf",
	"tex":        "latex",
}

// Languages accepted by the Notion code block.
var supportedLanguages = map[string]struct{}{}

func init() {
	for _, l := range []string{
		"abap", "arduino", "bash", "basic", "c", "clojure", "coffeescript", "c++", "c#", "css",
		"dart", "diff", "docker", "elixir", "elm", "erlang", "flow", "fortran", "f#", "gherkin",
		"glsl", "go", "graphql", "groovy", "haskell", "html", "java", "javascript", "json", "julia",
		"kotlin", "latex", "less", "lisp", "livescript", "lua", "makefile", "markdown", "markup",
		"matlab", "mermaid", "nix", "objective-c", "ocaml", "pascal", "perl", "php", "plain text",
		"powershell", "prolog", "protobuf", "python", "r", "reason", "ruby", "rust", "sass", "scala",
		"scheme", "scss", "shell", "sql", "swift", "typescript", "vb.net", "verilog", "vhdl",
		"visual basic", "webassembly", "xml", "yaml",
	} {
		supportedLanguages[l] = struct{}{}
	}
}

// codeLanguage reads a language-X (or lang-X) class from the pre element or
// its first code child.
func codeLanguage(pre *html.Node) string {
	candidates := []*html.Node{pre}
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "code" {
			candidates = append(candidates, c)
			break
		}
	}
	for _, n := range candidates {
		for _, class := range strings.Fields(attr(n, "class")) {
			class = strings.ToLower(class)
			for _, prefix := range []string{"language-", "lang-"} {
				if strings.HasPrefix(class, prefix) {
					return NormalizeLanguage(strings.TrimPrefix(class, prefix))
				}
			}
		}
	}
	return defaultLanguage
}

// NormalizeLanguage maps a source language tag onto a Notion language name.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if alias, ok := languageAliases[lang]; ok {
		lang = alias
	}
	if _, ok := supportedLanguages[lang]; ok {
		return lang
	}
	return defaultLanguage
}

// truncateCode caps code content at MaxTextLength runes, replacing the tail
// with "..." when it had to cut.
func truncateCode(s string) string {
	if utf8.RuneCountInString(s) <= MaxTextLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxTextLength-len(truncationMark)]) + truncationMark
}

// rawText concatenates every descendant text node without whitespace collapsing.
func rawText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
