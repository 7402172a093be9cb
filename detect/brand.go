package detect

import (
	"strings"

	"github.com/hazyhaar/rebrand/classify"
	"github.com/hazyhaar/rebrand/dom"
)

// generic strings that show up where a brand name would but aren't one.
var genericNames = map[string]bool{
	"home": true, "welcome": true, "index": true, "untitled": true,
	"menu": true, "official site": true, "homepage": true, "website": true,
	"login": true, "dashboard": true,
}

// Brand derives the page's brand profile from four signals: the title (split
// on separator punctuation), logo-ish elements, site-name meta tags, and the
// domain label. Candidates are scored by how many signals agree; ties go to
// the shortest name. Returns nil when nothing plausible is found.
func Brand(doc *dom.Document) *classify.BrandProfile {
	type candidate struct {
		name   string
		source string
		count  int
	}
	byKey := map[string]*candidate{}
	order := []string{}

	add := func(name, source string) {
		name = strings.TrimSpace(name)
		if !plausibleBrand(name) {
			return
		}
		key := strings.ToLower(name)
		if c, ok := byKey[key]; ok {
			c.count++
			return
		}
		byKey[key] = &candidate{name: name, source: source, count: 1}
		order = append(order, key)
	}

	// Title segments: "Acme — cloud widgets" yields "Acme".
	for _, seg := range splitTitle(doc.Title()) {
		add(seg, "title")
	}

	// Logo-ish elements.
	for _, sel := range []string{".logo", ".brand", ".site-title", "[class*=logo]", "header h1", "h1"} {
		if n := doc.FindFirst(sel); n != nil {
			if t := dom.Text(n); t != "" {
				add(t, "logo")
			}
			if alt := dom.Attr(n, "alt"); alt != "" {
				add(alt, "logo")
			}
		}
	}

	// Site-name metadata.
	if v := doc.Meta("og:site_name", "application-name", "apple-mobile-web-app-title"); v != "" {
		add(v, "meta")
	}

	// Domain label: acme.example.com -> Acme.
	if host := doc.Hostname(); host != "" {
		label := strings.SplitN(host, ".", 2)[0]
		if len(label) > 1 {
			add(strings.ToUpper(label[:1])+label[1:], "domain")
		}
	}

	var best *candidate
	for _, key := range order {
		c := byKey[key]
		if best == nil ||
			c.count > best.count ||
			(c.count == best.count && len(c.name) < len(best.name)) {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	return classify.NewBrandProfile(best.name, best.source)
}

var titleSeparators = []string{" - ", " | ", " – ", " — ", " • ", " · "}

func splitTitle(title string) []string {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	parts := []string{title}
	for _, sep := range titleSeparators {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, sep)...)
		}
		parts = next
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func plausibleBrand(name string) bool {
	if len(name) < 2 || len(name) > 30 {
		return false
	}
	if genericNames[strings.ToLower(name)] {
		return false
	}
	// Reject sentence-like fragments.
	if dom.WordCount(name) > 4 {
		return false
	}
	return true
}
