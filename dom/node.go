package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// TagName returns the lowercase tag name of an element node, "" otherwise.
func TagName(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Attr returns the value of the named attribute, "" when absent.
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the named attribute is present.
func HasAttr(n *html.Node, name string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces an attribute on n.
func SetAttr(n *html.Node, name, value string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr deletes an attribute if present.
func RemoveAttr(n *html.Node, name string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Text returns the concatenated text content of the subtree with whitespace
// runs collapsed to single spaces and the result trimmed.
func Text(n *html.Node) string {
	var b strings.Builder
	Walk(n, func(c *html.Node) bool {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			switch c.DataAtom.String() {
			case "script", "style", "noscript", "template":
				return false
			}
		}
		return true
	})
	return CollapseSpace(b.String())
}

// DirectText returns the text held in n's direct child text nodes only,
// ignoring nested elements.
func DirectText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return CollapseSpace(b.String())
}

// FirstTextNode returns n's first direct child text node with non-blank
// content, or nil.
func FirstTextNode(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return c
		}
	}
	return nil
}

// HasChildElements reports whether n has at least one element child.
func HasChildElements(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

// SetText replaces the element's visible text with s while preserving child
// markup: the first non-blank direct text node takes the new value and the
// remaining direct text nodes are blanked. An element with no direct text
// node gets s appended as a new text node.
func SetText(n *html.Node, s string) {
	first := FirstTextNode(n)
	if first == nil {
		if HasChildElements(n) {
			n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
			return
		}
		// Leaf element: drop whatever is there and install the text.
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
		return
	}
	first.Data = s
	for c := first.NextSibling; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			c.Data = ""
		}
	}
}

// InnerHTML serialises n's children to HTML.
func InnerHTML(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return b.String()
		}
	}
	return b.String()
}

// SetInnerHTML replaces n's children with the parsed fragment. n must be an
// element node so the fragment parses in the right context.
func SetInnerHTML(n *html.Node, fragment string) error {
	if !IsElement(n) {
		return fmt.Errorf("dom: set inner html: not an element")
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), n)
	if err != nil {
		return fmt.Errorf("dom: parse fragment: %w", err)
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// CollapseSpace squeezes all whitespace runs to single spaces and trims.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// ClassList returns the element's class attribute split into tokens.
func ClassList(n *html.Node) []string {
	return strings.Fields(Attr(n, "class"))
}

// Ancestors calls fn for each ancestor element of n, nearest first, stopping
// when fn returns false.
func Ancestors(n *html.Node, fn func(*html.Node) bool) {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if !fn(p) {
			return
		}
	}
}
