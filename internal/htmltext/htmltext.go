// Package htmltext converts the drafted resume HTML for terminal display and
// cleans editor HTML before it is sent back to the engine.
package htmltext

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	editorPolicy = newEditorPolicy()
	blankLines   = regexp.MustCompile(`\n{3,}`)
	spaces       = regexp.MustCompile(`[ \t\r\f\v]+`)
)

// newEditorPolicy allows the formatting a rich-text resume editor produces
// and nothing executable.
func newEditorPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("style").OnElements("span", "p", "div")
	return p
}

// Sanitize strips scripts, event handlers and unknown elements from editor
// HTML.
func Sanitize(s string) string {
	return strings.TrimSpace(editorPolicy.Sanitize(s))
}

var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"object": true, "embed": true, "head": true, "meta": true, "link": true,
}

var blocks = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "header": true,
	"footer": true, "main": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "ul": true, "ol": true, "table": true,
	"tr": true, "blockquote": true,
}

// ToText returns readable plain text: one line per block element, list items
// prefixed with "- ".
func ToText(s string) (string, error) {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipped[n.Data] {
				return
			}
			switch {
			case n.Data == "br":
				b.WriteString("\n")
			case n.Data == "li":
				b.WriteString("\n- ")
			case blocks[n.Data]:
				b.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(spaces.ReplaceAllString(strings.ReplaceAll(n.Data, "\n", " "), " "))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blocks[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(doc)

	return tidy(b.String()), nil
}

// ToMarkdown converts headings, paragraphs, lists, emphasis and links to
// markdown. Other elements contribute their text only.
func ToMarkdown(s string) (string, error) {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return "", err
	}

	var md strings.Builder
	var convert func(*html.Node)
	convert = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipped[n.Data] {
				return
			}
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				md.WriteString("\n" + strings.Repeat("#", int(n.Data[1]-'0')) + " ")
			case "p", "div", "section", "ul", "ol":
				md.WriteString("\n\n")
			case "br":
				md.WriteString("  \n")
			case "hr":
				md.WriteString("\n---\n")
			case "strong", "b":
				md.WriteString("**")
			case "em", "i":
				md.WriteString("*")
			case "li":
				md.WriteString("\n- ")
			case "a":
				if attr(n, "href") != "" {
					md.WriteString("[")
				}
			}
		}

		if n.Type == html.TextNode {
			md.WriteString(spaces.ReplaceAllString(strings.ReplaceAll(n.Data, "\n", " "), " "))
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			convert(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6", "p":
				md.WriteString("\n")
			case "strong", "b":
				md.WriteString("**")
			case "em", "i":
				md.WriteString("*")
			case "a":
				if href := attr(n, "href"); href != "" {
					md.WriteString("](" + href + ")")
				}
			}
		}
	}
	convert(doc)

	return tidy(md.String()), nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// tidy trims each line and collapses runs of blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	out := strings.Join(lines, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
