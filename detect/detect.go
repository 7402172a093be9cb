// Package detect finds the transformable content of a page. Detection runs
// up to three tiers, each only when the previous one came back empty: a
// document-order walk over the body, a CSS-selector sweep for common
// marketing structures, and a last-resort grab of the first visible text
// blocks so the pipeline always has something to work with.
package detect

import (
	"errors"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/rebrand/classify"
	"github.com/hazyhaar/rebrand/dom"
)

// ErrNoContent means every tier came back empty: the page has nothing the
// pipeline can rewrite.
var ErrNoContent = errors.New("detect: no transformable content")

// Tier names which detection pass produced the result.
type Tier string

const (
	TierWalk      Tier = "walk"
	TierQuery     Tier = "query"
	TierEmergency Tier = "emergency"
)

// Limits caps detection volume.
type Limits struct {
	// MaxElements bounds how many records detection returns; the cap
	// exists to bound downstream completion calls. Default 50.
	MaxElements int
	// MinTextLen / MaxTextLen bound eligible text volume in bytes.
	// Defaults 3 and 2000.
	MinTextLen int
	MaxTextLen int
}

func (l *Limits) defaults() {
	if l.MaxElements <= 0 {
		l.MaxElements = 50
	}
	if l.MinTextLen <= 0 {
		l.MinTextLen = 3
	}
	if l.MaxTextLen <= 0 {
		l.MaxTextLen = 2000
	}
}

// Result is the detected content of one page.
type Result struct {
	Records []classify.Record
	Brand   *classify.BrandProfile
	Tier    Tier
}

// Elements runs the tiered detection over the whole document.
func Elements(doc *dom.Document, lim Limits, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lim.defaults()

	brand := Brand(doc)
	cx := classify.Context{
		Brand:    brand,
		Limits:   classify.Limits{MinTextLen: lim.MinTextLen, MaxTextLen: lim.MaxTextLen},
		Position: positionFn(doc),
	}

	recs := walkTier(doc.Body(), cx, lim.MaxElements)
	tier := TierWalk
	if len(recs) == 0 {
		recs = queryTier(doc, cx, lim.MaxElements)
		tier = TierQuery
	}
	if len(recs) == 0 {
		recs = emergencyTier(doc, cx)
		tier = TierEmergency
	}
	if len(recs) == 0 {
		return nil, ErrNoContent
	}

	logger.Info("detect: page scanned",
		"tier", string(tier),
		"elements", len(recs),
		"brand", brandName(brand))
	return &Result{Records: recs, Brand: brand, Tier: tier}, nil
}

// Subtree classifies the eligible nodes under root only. It is the path the
// watcher uses for content added after the initial pass; position scoring is
// recomputed against the current document.
func Subtree(doc *dom.Document, root *html.Node, brand *classify.BrandProfile, lim Limits) []classify.Record {
	lim.defaults()
	cx := classify.Context{
		Brand:    brand,
		Limits:   classify.Limits{MinTextLen: lim.MinTextLen, MaxTextLen: lim.MaxTextLen},
		Position: positionFn(doc),
	}
	return walkTier(root, cx, lim.MaxElements)
}

func walkTier(root *html.Node, cx classify.Context, max int) []classify.Record {
	var recs []classify.Record
	dom.Walk(root, func(n *html.Node) bool {
		if len(recs) >= max {
			return false
		}
		if rec, ok := classify.Classify(n, cx); ok {
			recs = append(recs, rec)
			// A classified node is a leaf target; don't also take
			// its descendants.
			return false
		}
		return true
	})
	return recs
}

// querySelectors are tried in order during the fallback sweep. They target
// the structures marketing pages are actually built from.
var querySelectors = []string{
	"h1, h2, h3, h4, h5, h6",
	".hero p, .banner p, .jumbotron p",
	"[class*=title], [class*=headline], [class*=tagline]",
	"main p, section p, article p",
	"button, .btn, [class*=button]",
	"main li, section li",
	"p",
}

func queryTier(doc *dom.Document, cx classify.Context, max int) []classify.Record {
	seen := map[*html.Node]bool{}
	var recs []classify.Record
	for _, sel := range querySelectors {
		for _, n := range doc.Find(sel) {
			if len(recs) >= max {
				return recs
			}
			if seen[n] {
				continue
			}
			seen[n] = true
			if rec, ok := classify.Classify(n, cx); ok {
				recs = append(recs, rec)
			}
		}
	}
	return recs
}

// emergencyTier grabs the first few visible text blocks with minimal
// filtering so a page built entirely from unusual markup still yields
// something.
func emergencyTier(doc *dom.Document, cx classify.Context) []classify.Record {
	const maxEmergency = 5
	var recs []classify.Record
	for _, n := range doc.Find("h1, h2, h3, p, div, span") {
		if len(recs) >= maxEmergency {
			break
		}
		text := dom.Text(n)
		if len(text) < cx.Limits.MinTextLen || len(text) > 500 {
			continue
		}
		if !dom.Visible(n) || dom.Marked(n) || dom.HasChildElements(n) {
			continue
		}
		rec, ok := classify.Classify(n, cx)
		if !ok {
			rec = classify.Record{
				Node:     n,
				Text:     text,
				Tag:      dom.TagName(n),
				TagClass: classify.ShortContent,
				Category: classify.CategoryBody,
				Length:   classify.LengthShort,
				Section:  "content",
				Priority: 1,
				Words:    dom.WordCount(text),
				XPath:    dom.XPath(n),
			}
		}
		recs = append(recs, rec)
	}
	return recs
}

// positionFn approximates vertical page position by document order: the
// fraction of elements preceding the node. A static tree has no layout, so
// order is the best available signal.
func positionFn(doc *dom.Document) func(*html.Node) float64 {
	index := map[*html.Node]int{}
	count := 0
	dom.Walk(doc.Body(), func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			index[n] = count
			count++
		}
		return true
	})
	if count == 0 {
		return func(*html.Node) float64 { return 0.5 }
	}
	return func(n *html.Node) float64 {
		i, ok := index[n]
		if !ok {
			return 0.5
		}
		return float64(i) / float64(count)
	}
}

func brandName(b *classify.BrandProfile) string {
	if b == nil {
		return ""
	}
	return b.Name
}
