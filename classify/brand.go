package classify

import "strings"

// BrandProfile is the page's detected brand name plus the casing and suffix
// variations used to recognise it in text. The detector builds it; the
// classifier and planner consume it.
type BrandProfile struct {
	Name       string
	Variations []string
	Source     string // "title", "logo", "meta", or "domain"
}

var brandSuffixes = []string{
	".com", ".net", ".org", ".io", ".ai",
	" inc", " inc.", " llc", " ltd", " corp", " corp.", " co", " co.",
	" company", " gmbh",
}

// NewBrandProfile builds the variation set for a detected name: original,
// lower, UPPER, Title case, and each with common company suffixes stripped.
func NewBrandProfile(name, source string) *BrandProfile {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	seen := map[string]bool{}
	var vars []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if len(v) < 2 || seen[strings.ToLower(v)] {
			return
		}
		seen[strings.ToLower(v)] = true
		vars = append(vars, v)
	}

	forms := []string{name, strings.ToLower(name), strings.ToUpper(name), titleCase(name)}
	for _, f := range forms {
		add(f)
		lower := strings.ToLower(f)
		for _, suf := range brandSuffixes {
			if strings.HasSuffix(lower, suf) {
				add(f[:len(f)-len(suf)])
			}
		}
	}
	return &BrandProfile{Name: name, Variations: vars, Source: source}
}

// Matches reports whether text is the brand or is dominated by it: an exact
// variation match, or a variation occupying more than half of the text.
func (b *BrandProfile) Matches(text string) bool {
	if b == nil {
		return false
	}
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	for _, v := range b.Variations {
		lv := strings.ToLower(v)
		if t == lv {
			return true
		}
		if strings.Contains(t, lv) && len(lv)*2 > len(t) {
			return true
		}
	}
	return false
}

// Contains reports whether any variation appears anywhere in text.
func (b *BrandProfile) Contains(text string) bool {
	if b == nil {
		return false
	}
	t := strings.ToLower(text)
	for _, v := range b.Variations {
		if strings.Contains(t, strings.ToLower(v)) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
