// Package dom is the in-memory page substrate the rest of the pipeline works
// on: parse an HTML snapshot, query it with CSS selectors, read and mutate
// text in place, and address nodes by XPath so mutations can be replayed
// against the live page. Node identity is *html.Node pointer identity; maps
// keyed by it are scoped to one page session and die with it.
package dom

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document wraps a parsed HTML tree together with its source URL. The goquery
// view shares the same underlying nodes, so selector results keep pointer
// identity with the tree.
type Document struct {
	root *html.Node
	sel  *goquery.Document
	url  string
}

// Parse reads an HTML document from r. pageURL may be empty.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{
		root: root,
		sel:  goquery.NewDocumentFromNode(root),
		url:  pageURL,
	}, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(s), pageURL)
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// URL returns the source URL the document was loaded from.
func (d *Document) URL() string { return d.url }

// Body returns the <body> element, or the root when the tree has none.
func (d *Document) Body() *html.Node {
	if n := findElement(d.root, atom.Body); n != nil {
		return n
	}
	return d.root
}

// Title returns the trimmed <title> text.
func (d *Document) Title() string {
	if n := findElement(d.root, atom.Title); n != nil {
		return strings.TrimSpace(Text(n))
	}
	return ""
}

// Find returns all nodes matching a CSS selector, in document order.
func (d *Document) Find(selector string) []*html.Node {
	return d.sel.Find(selector).Nodes
}

// FindFirst returns the first node matching selector, or nil.
func (d *Document) FindFirst(selector string) *html.Node {
	nodes := d.sel.Find(selector).Nodes
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Selection exposes the goquery view for callers that need chained queries.
func (d *Document) Selection() *goquery.Document { return d.sel }

// Meta returns the content attribute of the first <meta> whose name or
// property matches one of the given keys.
func (d *Document) Meta(keys ...string) string {
	for _, key := range keys {
		for _, attr := range []string{"name", "property"} {
			sel := fmt.Sprintf(`meta[%s=%q]`, attr, key)
			if n := d.FindFirst(sel); n != nil {
				if v := Attr(n, "content"); v != "" {
					return strings.TrimSpace(v)
				}
			}
		}
	}
	return ""
}

// Hostname returns the host part of the document URL without a leading
// "www." label, or "" when the URL is absent or unparseable.
func (d *Document) Hostname() string {
	if d.url == "" {
		return ""
	}
	u, err := url.Parse(d.url)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// Render serialises the whole document back to HTML.
func (d *Document) Render(w io.Writer) error {
	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("dom: render: %w", err)
	}
	return nil
}

// HTML returns the serialised document as a string.
func (d *Document) HTML() (string, error) {
	var b strings.Builder
	if err := d.Render(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func findElement(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

// Walk traverses the subtree rooted at n in document order. fn returning
// false prunes the node's children.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}
