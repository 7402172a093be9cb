package classify

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/rebrand/dom"
)

// features is the flattened view of a node the rule predicates match on.
type features struct {
	text     string // lowercased full text
	class    string // lowercased class attribute
	id       string // lowercased id attribute
	tag      string
	tagClass TagClass
	node     *html.Node
}

// hint reports whether any of the tokens appears in the class or id.
func (f features) hint(tokens ...string) bool {
	for _, t := range tokens {
		if strings.Contains(f.class, t) || strings.Contains(f.id, t) {
			return true
		}
	}
	return false
}

func (f features) insideTag(tags ...string) bool {
	found := false
	dom.Ancestors(f.node, func(p *html.Node) bool {
		name := dom.TagName(p)
		for _, t := range tags {
			if name == t {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// Rule pairs a named predicate with the category it assigns.
type Rule struct {
	Name     string
	Match    func(features) bool
	Category Category
}

// Rules is the classification table, evaluated in order, first match wins.
// Order is load-bearing: structural signals (buttons, navigation) outrank
// vocabulary hints, and the headline rule outranks the thematic ones so a
// "Features" heading stays a headline.
var Rules = []Rule{
	{
		Name: "button-element",
		Match: func(f features) bool {
			if f.tag == "button" {
				return true
			}
			if f.tag == "input" {
				t := strings.ToLower(dom.Attr(f.node, "type"))
				return t == "submit" || t == "button"
			}
			return dom.Attr(f.node, "role") == "button"
		},
		Category: CategoryCTA,
	},
	{
		Name: "cta-styled",
		Match: func(f features) bool {
			return f.hint("btn", "button", "cta", "call-to-action", "signup", "sign-up", "subscribe")
		},
		Category: CategoryCTA,
	},
	{
		Name: "navigation",
		Match: func(f features) bool {
			return f.hint("nav", "menu") || f.insideTag("nav", "header") && f.tagClass == Link
		},
		Category: CategoryNavigation,
	},
	{
		Name: "headline-structural",
		Match: func(f features) bool {
			return f.tagClass == Heading ||
				f.hint("title", "headline", "tagline", "hero", "banner", "slogan")
		},
		Category: CategoryHeadline,
	},
	{
		Name: "testimonial",
		Match: func(f features) bool {
			return f.hint("testimonial", "review", "quote") || f.tag == "blockquote"
		},
		Category: CategoryTestimonial,
	},
	{
		Name: "feature",
		Match: func(f features) bool {
			return f.hint("feature", "benefit", "service", "advantage", "capability")
		},
		Category: CategoryFeature,
	},
	{
		Name: "product",
		Match: func(f features) bool {
			return f.hint("product", "pricing", "plan", "package", "tier")
		},
		Category: CategoryProduct,
	},
	{
		Name: "about",
		Match: func(f features) bool {
			return f.hint("about", "story", "mission", "team", "company", "who-we-are")
		},
		Category: CategoryAbout,
	},
	{
		Name: "cta-vocabulary",
		Match: func(f features) bool {
			if f.tagClass != Link && f.tagClass != ShortContent {
				return false
			}
			if len(f.text) > 40 {
				return false
			}
			for _, kw := range ctaVocabulary {
				if strings.Contains(f.text, kw) {
					return true
				}
			}
			return false
		},
		Category: CategoryCTA,
	},
}

var ctaVocabulary = []string{
	"get started", "sign up", "try free", "start free", "learn more",
	"buy now", "order now", "contact us", "book a demo", "request a demo",
	"subscribe", "download", "join now",
}

func categorize(f features) Category {
	for _, r := range Rules {
		if r.Match(f) {
			return r.Category
		}
	}
	return CategoryBody
}
