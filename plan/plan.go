// Package plan turns detected page content plus a product description into
// an ordered list of transformation steps. The primary path asks a
// completion model to analyse the page; any failure on that path degrades to
// a deterministic local plan so the pipeline always produces something
// applicable.
package plan

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/hazyhaar/rebrand/classify"
	"github.com/hazyhaar/rebrand/complete"
	"github.com/hazyhaar/rebrand/dom"
)

// ProductInput is the product the page should be rebranded to.
type ProductInput struct {
	Title       string
	Description string
	Tone        string // e.g. "professional", "playful"; empty = professional
}

// StepType discriminates the plan step variants.
type StepType string

const (
	StepBrand   StepType = "brand_replacement"
	StepButtons StepType = "button_handling"
	StepSection StepType = "section_transformation"
)

// ButtonAction says what to do with one button.
type ButtonAction string

const (
	ButtonPreserve ButtonAction = "preserve" // keep the label as is
	ButtonReplace  ButtonAction = "replace"  // swap in new text
	ButtonFix      ButtonAction = "fix"      // fill an empty label
)

// ButtonDirective is one button-handling instruction.
type ButtonDirective struct {
	Match  string       // current label to match, case-insensitive
	Action ButtonAction
	Text   string // replacement label for replace/fix
}

// Step is one unit of transformation work. Exactly one of the payload
// fields is meaningful, selected by Type.
type Step struct {
	Type     StepType
	Priority int

	// brand_replacement
	From string
	To   string

	// button_handling
	Buttons []ButtonDirective

	// section_transformation
	Section string
}

// Plan is the ordered output of planning. Steps are sorted by descending
// priority: brand first, buttons second, sections after.
type Plan struct {
	Steps    []Step
	Analysis *Analysis
	Source   string // "remote" or "fallback"
}

// Planner builds plans. The zero Chatter disables the remote path entirely.
type Planner struct {
	chat   complete.Chatter
	conv   *converter.Converter
	logger *slog.Logger

	maxAnalyzed int
	temperature float64
	maxTokens   int
}

// New creates a Planner. chat may be nil, in which case every Build degrades
// to the local fallback.
func New(chat complete.Chatter, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		chat: chat,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		logger:      logger,
		maxAnalyzed: 20,
		temperature: 0.7,
		maxTokens:   2000,
	}
}

// Build produces a plan for the detected records. The remote analysis path
// is attempted first; any error there is logged and the deterministic
// fallback takes over. Build itself never fails.
func (p *Planner) Build(ctx context.Context, doc *dom.Document, recs []classify.Record, brand *classify.BrandProfile, input ProductInput) *Plan {
	if p.chat != nil {
		analysis, err := p.analyze(ctx, doc, recs, brand, input)
		if err != nil {
			p.logger.WarnContext(ctx, "plan: remote analysis failed, using fallback", "error", err)
		} else {
			return assemble(analysis, recs, brand, input, "remote")
		}
	}
	return Fallback(recs, brand, input)
}

// Fallback builds a plan from local heuristics alone. The top heading or a
// brand match is replaced outright with the product title; other headings
// and body copy adapt within a clamped word budget; micro text is left
// untouched.
func Fallback(recs []classify.Record, brand *classify.BrandProfile, input ProductInput) *Plan {
	analysis := &Analysis{}
	if brand != nil {
		analysis.DetectedBrand = brand.Name
	}
	const maxFallback = 10
	for i, rec := range recs {
		if i >= maxFallback {
			break
		}
		analysis.Elements = append(analysis.Elements, fallbackGuidance(i, rec, input))
	}
	return assemble(analysis, recs, brand, input, "fallback")
}

func fallbackGuidance(id int, rec classify.Record, input ProductInput) Guidance {
	g := Guidance{
		ID:           id,
		OriginalText: rec.Text,
		Role:         "description",
		Strategy:     "adapt",
		TargetLength: min(rec.Words, 10),
		Priority:     5,
	}
	switch {
	case rec.Tag == "h1" || rec.IsBrand:
		g.Role = "brand"
		g.Strategy = "replace"
		g.TargetLength = 3
		g.Priority = 10
		g.Suggested = input.Title
	case rec.TagClass == classify.Heading:
		g.Role = "headline"
		g.TargetLength = min(rec.Words, 8)
		g.Priority = 8
	case rec.Words <= 3:
		g.Role = "navigation"
		g.Strategy = "keep"
		g.Priority = 1
	}
	return g
}

// assemble turns an analysis into ordered steps: one brand step, one button
// step, then one section step per detected content section.
func assemble(analysis *Analysis, recs []classify.Record, brand *classify.BrandProfile, input ProductInput, source string) *Plan {
	pl := &Plan{Analysis: analysis, Source: source}

	from := ""
	if brand != nil {
		from = brand.Name
	}
	if from == "" && analysis != nil {
		from = analysis.DetectedBrand
	}
	if from != "" && input.Title != "" {
		pl.Steps = append(pl.Steps, Step{
			Type:     StepBrand,
			Priority: 10,
			From:     from,
			To:       input.Title,
		})
	}

	if dirs := buttonDirectives(recs, brand, input); len(dirs) > 0 {
		pl.Steps = append(pl.Steps, Step{
			Type:     StepButtons,
			Priority: 9,
			Buttons:  dirs,
		})
	}

	prio := 8
	for _, section := range contentSections(recs) {
		pl.Steps = append(pl.Steps, Step{
			Type:     StepSection,
			Priority: prio,
			Section:  section,
		})
		if prio > 1 {
			prio--
		}
	}

	sort.SliceStable(pl.Steps, func(i, j int) bool {
		return pl.Steps[i].Priority > pl.Steps[j].Priority
	})
	return pl
}

// DefaultButtonLabel fills buttons that would otherwise end up empty.
const DefaultButtonLabel = "Learn More"

func buttonDirectives(recs []classify.Record, brand *classify.BrandProfile, input ProductInput) []ButtonDirective {
	var dirs []ButtonDirective
	seen := map[string]bool{}
	for _, rec := range recs {
		if rec.Category != classify.CategoryCTA {
			continue
		}
		key := strings.ToLower(rec.Text)
		if seen[key] {
			continue
		}
		seen[key] = true

		switch {
		case strings.TrimSpace(rec.Text) == "":
			dirs = append(dirs, ButtonDirective{Action: ButtonFix, Text: DefaultButtonLabel})
		case brand.Contains(rec.Text):
			dirs = append(dirs, ButtonDirective{
				Match:  rec.Text,
				Action: ButtonReplace,
				Text:   swapBrand(rec.Text, brand, input.Title),
			})
		default:
			// Generic CTAs ("Get Started", "Learn More") work for any
			// product; keep them.
			dirs = append(dirs, ButtonDirective{Match: rec.Text, Action: ButtonPreserve})
		}
	}
	return dirs
}

func swapBrand(text string, brand *classify.BrandProfile, title string) string {
	if brand == nil || title == "" {
		return text
	}
	out := text
	for _, v := range brand.Variations {
		out = replaceFold(out, v, title)
	}
	if strings.TrimSpace(out) == "" {
		return DefaultButtonLabel
	}
	return out
}

// replaceFold replaces every case-insensitive occurrence of old in s.
func replaceFold(s, old, new string) string {
	if old == "" {
		return s
	}
	var b strings.Builder
	lower, lowerOld := strings.ToLower(s), strings.ToLower(old)
	for {
		i := strings.Index(lower, lowerOld)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(new)
		s, lower = s[i+len(old):], lower[i+len(old):]
	}
}

// contentSections returns the sections worth transforming, in the order
// their first element appears. Navigation and footer are never rewritten as
// sections.
func contentSections(recs []classify.Record) []string {
	var sections []string
	seen := map[string]bool{}
	for _, rec := range recs {
		s := rec.Section
		if s == "" || s == "footer" || s == "navigation" || seen[s] {
			continue
		}
		seen[s] = true
		sections = append(sections, s)
	}
	return sections
}

// markdownContext renders the page to markdown for the analysis prompt,
// truncated to keep the request bounded.
func (p *Planner) markdownContext(doc *dom.Document) string {
	const maxContext = 4000
	htmlStr, err := doc.HTML()
	if err != nil {
		return ""
	}
	md, err := p.conv.ConvertString(htmlStr)
	if err != nil {
		p.logger.Debug("plan: markdown conversion failed", "error", err)
		return ""
	}
	md = strings.TrimSpace(md)
	if len(md) > maxContext {
		md = md[:maxContext]
	}
	return md
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
