package engine

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hazyhaar/rebrand/dom"
)

// Model output arrives dressed up in ways that must never reach the page:
// wrapping quotes, markdown emphasis, stray tags, label prefixes.
var (
	stripTags     = bluemonday.StrictPolicy()
	mdBold        = regexp.MustCompile(`\*\*([^*]*)\*\*`)
	mdItalic      = regexp.MustCompile(`\*([^*]*)\*`)
	mdCode        = regexp.MustCompile("`([^`]*)`")
	labelPrefix   = regexp.MustCompile(`(?i)^(new text|rewritten|replacement|output)\s*:\s*`)
	wrappingQuote = regexp.MustCompile(`^["'\x{201C}\x{2018}](.*)["'\x{201D}\x{2019}]$`)
)

// CleanGenerated normalises generated copy for in-place insertion: strips
// markdown fences and emphasis, any HTML markup, wrapping quotes, and
// collapses whitespace. Returns "" when nothing usable remains.
func CleanGenerated(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// Drop fence lines wholesale.
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	s = strings.Join(kept, " ")

	s = labelPrefix.ReplaceAllString(strings.TrimSpace(s), "")
	s = mdBold.ReplaceAllString(s, "$1")
	s = mdItalic.ReplaceAllString(s, "$1")
	s = mdCode.ReplaceAllString(s, "$1")

	// Strip any markup the model emitted; unescape what sanitisation
	// entity-encoded so plain text survives round-tripping.
	s = html.UnescapeString(stripTags.Sanitize(s))

	s = dom.CollapseSpace(s)
	if m := wrappingQuote.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	return s
}

// TruncateWords trims s to at most n words, n<=0 meaning no limit.
func TruncateWords(s string, n int) string {
	if n <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}
