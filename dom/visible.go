package dom

import (
	"regexp"

	"golang.org/x/net/html"
)

// Inline styles that hide an element. A static snapshot carries no computed
// styles, so this is necessarily an approximation over the style attribute.
var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0(\.0*)?\s*(;|$)`),
}

// Hidden reports whether n itself declares itself invisible via the hidden
// attribute, aria-hidden, or an inline hiding style.
func Hidden(n *html.Node) bool {
	if !IsElement(n) {
		return false
	}
	if HasAttr(n, "hidden") {
		return true
	}
	if Attr(n, "aria-hidden") == "true" {
		return true
	}
	style := Attr(n, "style")
	if style != "" {
		for _, re := range hiddenStylePatterns {
			if re.MatchString(style) {
				return true
			}
		}
	}
	return false
}

// Visible reports whether n and all its ancestors are free of hiding
// declarations.
func Visible(n *html.Node) bool {
	if Hidden(n) {
		return false
	}
	ok := true
	Ancestors(n, func(p *html.Node) bool {
		if Hidden(p) {
			ok = false
			return false
		}
		return true
	})
	return ok
}
