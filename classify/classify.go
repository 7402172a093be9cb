// Package classify assigns a semantic category, length class, and rewrite
// priority to a single DOM node. Classification is an explicit ordered table
// of (predicate, category) rules evaluated first-match-wins, so the mapping
// is inspectable and testable on its own.
package classify

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/rebrand/dom"
)

// TagClass is the structural bucket of a node, derived from its tag alone.
type TagClass string

const (
	Heading      TagClass = "heading"
	Paragraph    TagClass = "paragraph"
	ListItem     TagClass = "list-item"
	Link         TagClass = "link"
	Button       TagClass = "button"
	ContentBlock TagClass = "content-block"
	ShortContent TagClass = "short-content"
)

// Category is the semantic bucket the rule table assigns.
type Category string

const (
	CategoryHeadline    Category = "headline"
	CategoryCTA         Category = "cta"
	CategoryFeature     Category = "feature"
	CategoryAbout       Category = "about"
	CategoryTestimonial Category = "testimonial"
	CategoryProduct     Category = "product"
	CategoryNavigation  Category = "navigation"
	CategoryBody        Category = "body"
)

// LengthClass buckets a node's text volume; the planner and engine use it to
// budget replacement length.
type LengthClass string

const (
	LengthBrand  LengthClass = "brand"
	LengthMicro  LengthClass = "micro"
	LengthShort  LengthClass = "short"
	LengthMedium LengthClass = "medium"
	LengthLong   LengthClass = "long"
)

// Record is the classified view of one eligible node.
type Record struct {
	Node     *html.Node
	Text     string
	Tag      string
	TagClass TagClass
	Category Category
	Length   LengthClass
	Section  string
	Priority int
	Words    int
	IsBrand  bool
	XPath    string
}

// Limits bounds which text volumes are eligible at all.
type Limits struct {
	MinTextLen int
	MaxTextLen int
}

// DefaultLimits matches the detector sweep bounds.
func DefaultLimits() Limits { return Limits{MinTextLen: 3, MaxTextLen: 2000} }

// Context carries the page-level inputs classification needs.
type Context struct {
	Brand  *BrandProfile
	Limits Limits

	// Position maps a node to its vertical fraction of the page in
	// [0,1], 0 at the top. A static tree has no layout, so callers
	// supply a document-order approximation; nil means 0.5.
	Position func(*html.Node) float64
}

// Classify inspects one node and returns its record, or ok=false when the
// node is not an eligible rewrite target.
func Classify(n *html.Node, cx Context) (Record, bool) {
	if cx.Limits.MaxTextLen == 0 {
		cx.Limits = Limits{MinTextLen: cx.Limits.MinTextLen, MaxTextLen: DefaultLimits().MaxTextLen}
	}
	if !Eligible(n, cx.Limits) {
		return Record{}, false
	}

	text := dom.Text(n)
	pos := 0.5
	if cx.Position != nil {
		pos = cx.Position(n)
	}

	f := features{
		text:  strings.ToLower(text),
		class: strings.ToLower(dom.Attr(n, "class")),
		id:    strings.ToLower(dom.Attr(n, "id")),
		tag:   dom.TagName(n),
		node:  n,
	}
	f.tagClass = tagClassOf(f.tag, len(text))

	rec := Record{
		Node:     n,
		Text:     text,
		Tag:      f.tag,
		TagClass: f.tagClass,
		Category: categorize(f),
		Words:    dom.WordCount(text),
		XPath:    dom.XPath(n),
	}
	if cx.Brand != nil && cx.Brand.Matches(text) {
		rec.IsBrand = true
	}
	rec.Length = lengthClass(rec)
	rec.Section = sectionOf(n, pos)
	rec.Priority = priority(rec, text, pos)
	return rec, true
}

// structural tags whose subtree never holds rewritable copy.
var deniedAncestors = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"iframe": true, "object": true, "embed": true, "svg": true,
	"code": true, "pre": true, "form": true, "select": true,
	"textarea": true, "nav": true, "footer": true,
}

var deniedClassTokens = []string{
	"navbar", "menu", "breadcrumb", "pagination", "copyright",
	"cookie", "consent", "dropdown", "no-transform",
}

// Eligible applies the structural filter: visible element, not inside an
// excluded ancestor, not already rewritten, text volume within bounds.
func Eligible(n *html.Node, lim Limits) bool {
	if !dom.IsElement(n) {
		return false
	}
	tag := dom.TagName(n)
	if deniedAncestors[tag] || tag == "html" || tag == "head" || tag == "body" {
		return false
	}
	if dom.Marked(n) {
		return false
	}
	if deniedClass(n) || editLocked(n) {
		return false
	}
	blocked := false
	dom.Ancestors(n, func(p *html.Node) bool {
		if deniedAncestors[dom.TagName(p)] || deniedClass(p) || editLocked(p) {
			blocked = true
			return false
		}
		return true
	})
	if blocked {
		return false
	}
	if !dom.Visible(n) {
		return false
	}
	text := dom.Text(n)
	if len(text) < lim.MinTextLen || len(text) > lim.MaxTextLen {
		return false
	}
	// Containers are handled through their leaf children.
	if hasEligibleChildBlocks(n) {
		return false
	}
	return true
}

// editLocked reports an explicit contenteditable="false" lock; the page
// author has frozen that subtree.
func editLocked(n *html.Node) bool {
	return strings.EqualFold(dom.Attr(n, "contenteditable"), "false")
}

func deniedClass(n *html.Node) bool {
	class := strings.ToLower(dom.Attr(n, "class"))
	if class == "" {
		return false
	}
	for _, tok := range deniedClassTokens {
		if strings.Contains(class, tok) {
			return true
		}
	}
	return false
}

// hasEligibleChildBlocks reports whether n contains nested block-level text
// holders, which means n is a wrapper rather than a rewrite target itself.
func hasEligibleChildBlocks(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch dom.TagName(c) {
		case "h1", "h2", "h3", "h4", "h5", "h6", "p", "li", "ul", "ol",
			"div", "section", "article", "blockquote", "table":
			if len(dom.Text(c)) > 0 {
				return true
			}
		}
	}
	return false
}

func tagClassOf(tag string, textLen int) TagClass {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return Heading
	case "p":
		return Paragraph
	case "li":
		return ListItem
	case "a":
		return Link
	case "button":
		return Button
	case "div", "section", "article", "blockquote":
		return ContentBlock
	}
	if textLen <= 80 {
		return ShortContent
	}
	return ContentBlock
}

func lengthClass(rec Record) LengthClass {
	switch {
	case rec.IsBrand && rec.Words <= 3:
		return LengthBrand
	case rec.Words <= 3:
		return LengthMicro
	case rec.Words <= 12:
		return LengthShort
	case rec.Words <= 40:
		return LengthMedium
	default:
		return LengthLong
	}
}

var categoryWeights = map[Category]int{
	CategoryHeadline:    10,
	CategoryCTA:         9,
	CategoryFeature:     8,
	CategoryProduct:     7,
	CategoryAbout:       6,
	CategoryBody:        5,
	CategoryTestimonial: 3,
	CategoryNavigation:  1,
}

func priority(rec Record, text string, pos float64) int {
	p := categoryWeights[rec.Category]
	if rec.IsBrand {
		p = categoryWeights[CategoryHeadline]
	}
	// Earlier on the page means more visible, so a small bonus.
	p += int((1 - pos) * 3)
	switch {
	case len(text) > 200:
		p += 3
	case len(text) > 100:
		p += 2
	case len(text) > 50:
		p++
	}
	return p
}

var sectionTokens = []struct {
	token   string
	section string
}{
	{"hero", "hero"}, {"banner", "hero"}, {"jumbotron", "hero"},
	{"masthead", "hero"},
	{"feature", "features"}, {"benefit", "features"}, {"service", "features"},
	{"about", "about"}, {"story", "about"}, {"mission", "about"},
	{"testimonial", "testimonials"}, {"review", "testimonials"},
	{"pricing", "products"}, {"product", "products"}, {"plan", "products"},
	{"footer", "footer"},
}

func sectionOf(n *html.Node, pos float64) string {
	section := ""
	scan := func(p *html.Node) bool {
		hay := strings.ToLower(dom.Attr(p, "class") + " " + dom.Attr(p, "id"))
		if dom.TagName(p) == "footer" {
			section = "footer"
			return false
		}
		for _, st := range sectionTokens {
			if strings.Contains(hay, st.token) {
				section = st.section
				return false
			}
		}
		return true
	}
	if !scan(n) {
		return section
	}
	dom.Ancestors(n, scan)
	if section != "" {
		return section
	}
	// No structural hint: fall back to page position.
	switch {
	case pos < 0.2:
		return "hero"
	case pos < 0.75:
		return "content"
	default:
		return "footer"
	}
}
