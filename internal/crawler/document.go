package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document is a parsed HTML page queryable by CSS selector and XPath. The
// zero value (see EmptyDocument) is the exhausted-retries sentinel: every
// query on it yields nothing.
type Document struct {
	URL  string
	root *html.Node
	doc  *goquery.Document
}

// EmptyDocument returns the sentinel document.
func EmptyDocument(url string) *Document {
	return &Document{URL: url}
}

// ParseDocument parses body into a Document.
func ParseDocument(url string, body []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{
		URL:  url,
		root: root,
		doc:  goquery.NewDocumentFromNode(root),
	}, nil
}

// Empty reports whether d is the sentinel.
func (d *Document) Empty() bool {
	return d == nil || d.root == nil
}

// Find runs a CSS selector against the document.
func (d *Document) Find(selector string) *goquery.Selection {
	if d.Empty() {
		return &goquery.Selection{}
	}
	return d.doc.Find(selector)
}

// XPath returns the inner text of every node matched by expr. Attribute
// expressions (e.g. //a/@href) yield the attribute values.
func (d *Document) XPath(expr string) []string {
	if d.Empty() {
		return nil
	}
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, htmlquery.InnerText(n))
	}
	return out
}

// XPathFirst returns the trimmed text of the first match, or "".
func (d *Document) XPathFirst(expr string) string {
	for _, v := range d.XPath(expr) {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
