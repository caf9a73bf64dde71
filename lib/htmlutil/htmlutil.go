package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText concatenates every text node under the given raw node.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var spaceBeforePunct = regexp.MustCompile(`\s+([.,;!?])`)

// ExtractText concatenates the selection's text fragments with single
// spaces, collapsing whitespace runs and removing any space left before
// sentence punctuation. an absent selection yields `def`. idempotent.
func ExtractText(sel *goquery.Selection, def string) string {
	if sel == nil || sel.Length() == 0 {
		return def
	}
	fragments := make([]string, len(sel.Nodes))
	for i, node := range sel.Nodes {
		fragments[i] = GetText(node)
	}
	text := strings.Join(strings.Fields(strings.Join(fragments, " ")), " ")
	return spaceBeforePunct.ReplaceAllString(text, "$1")
}

// ExtractURL returns the named attribute of the selection's first node,
// resolved against `base` when relative. `def` is returned when the node
// or attribute is missing, or when the resolved value is not a full URL.
func ExtractURL(sel *goquery.Selection, attr, def string, base *url.URL) string {
	if sel == nil || sel.Length() == 0 {
		return def
	}
	raw, ok := sel.Attr(attr)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return def
	}

	link, err := url.Parse(raw)
	if err != nil {
		return def
	}
	if link.Host == "" && base != nil {
		link = base.ResolveReference(link)
	}

	resolved := link.String()
	if !IsValidURL(resolved) {
		return def
	}
	return resolved
}

// IsValidURL reports whether the string parses with both a scheme and a
// network location.
func IsValidURL(raw string) bool {
	if raw == "" {
		return false
	}
	link, err := url.Parse(raw)
	return err == nil && link.Scheme != "" && link.Host != ""
}
