// Package engine executes a transformation plan against the mirror document
// and, through the Applier seam, against the live page. Every rewrite is
// recorded against node identity, so applying twice is a no-op and Restore
// puts every touched node back byte for byte.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/rebrand/classify"
	"github.com/hazyhaar/rebrand/complete"
	"github.com/hazyhaar/rebrand/dom"
	"github.com/hazyhaar/rebrand/plan"
)

// Strategy records how a node's replacement text was produced.
type Strategy string

const (
	StrategyBrand           Strategy = "brand_replacement"
	StrategyDirect          Strategy = "direct"   // planner-suggested text applied as is
	StrategyAdaptive        Strategy = "adaptive" // generated per element
	StrategyButtonPreserved Strategy = "button_preserved"
	StrategyButtonReplaced  Strategy = "button_replaced"
	StrategyButtonFixed     Strategy = "button_fixed"
)

// Record is the per-node transformation memory: the original content for
// Restore, the replacement, and how it was produced.
type Record struct {
	OriginalText string
	OriginalHTML string
	NewText      string
	Strategy     Strategy
	At           time.Time
}

// Applier replays mirror mutations onto the live page, addressed by XPath.
// A nil Applier means mirror-only operation (tests, offline runs).
type Applier interface {
	SetText(ctx context.Context, xpath, text string) error
	SetAttr(ctx context.Context, xpath, name, value string) error
	RemoveAttr(ctx context.Context, xpath, name string) error
	SetHTML(ctx context.Context, xpath, fragment string) error
	Highlight(ctx context.Context, xpath string) error
}

// Gate is paused around every DOM write so the mutation watcher does not
// react to the engine's own output. A nil Gate is fine.
type Gate interface {
	Pause()
	Resume()
}

// Config wires an Engine.
type Config struct {
	Chat    complete.Chatter // nil disables per-element generation
	Applier Applier
	Gate    Gate
	Logger  *slog.Logger

	// Pace is the delay between consecutive generated rewrites, keeping
	// completion traffic smooth. Default 0.
	Pace time.Duration

	// HighlightFor is how long the transient highlight stays on a fresh
	// rewrite. Default 1s; negative disables highlighting.
	HighlightFor time.Duration

	Temperature float64 // for generation calls; default 0.8
	MaxTokens   int     // per generation call; default 150
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.HighlightFor == 0 {
		c.HighlightFor = time.Second
	}
	if c.Temperature == 0 {
		c.Temperature = 0.8
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 150
	}
}

// Engine applies and reverses transformations on one document. Safe for
// concurrent use; all tree access goes through the internal lock.
type Engine struct {
	doc    *dom.Document
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	records map[*html.Node]Record
	order   []*html.Node
}

// New creates an Engine for a parsed document.
func New(doc *dom.Document, cfg Config) *Engine {
	cfg.defaults()
	return &Engine{
		doc:     doc,
		cfg:     cfg,
		logger:  cfg.Logger,
		records: make(map[*html.Node]Record),
	}
}

// Summary reports what one Apply pass did.
type Summary struct {
	Steps       int              `json:"steps"`
	Transformed int              `json:"transformed"`
	Skipped     int              `json:"skipped"`
	Failed      int              `json:"failed"`
	ByStrategy  map[Strategy]int `json:"by_strategy"`
}

func (s *Summary) count(st Strategy) {
	s.Transformed++
	if s.ByStrategy == nil {
		s.ByStrategy = make(map[Strategy]int)
	}
	s.ByStrategy[st]++
}

// Apply executes the plan's steps in descending priority order. Per-element
// failures are logged and counted, never fatal; the only error returned is
// context cancellation.
func (e *Engine) Apply(ctx context.Context, pl *plan.Plan, input plan.ProductInput) (Summary, error) {
	steps := make([]plan.Step, len(pl.Steps))
	copy(steps, pl.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Priority > steps[j].Priority })

	var sum Summary
	sum.Steps = len(steps)
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("engine: apply: %w", err)
		}
		switch step.Type {
		case plan.StepBrand:
			e.applyBrand(ctx, step, &sum)
		case plan.StepButtons:
			e.applyButtons(ctx, step, &sum)
		case plan.StepSection:
			e.applySection(ctx, step, pl.Analysis, input, &sum)
		default:
			e.logger.Warn("engine: unknown step type", "type", string(step.Type))
		}
	}
	e.logger.Info("engine: plan applied",
		"steps", sum.Steps,
		"transformed", sum.Transformed,
		"failed", sum.Failed,
		"source", pl.Source)
	return sum, nil
}

// brandSelectors finds the elements where a brand name typically lives.
const brandSelectors = "h1, h2, .logo, .brand, .site-title, [class*=logo], [class*=brand], [class*=title]"

func (e *Engine) applyBrand(ctx context.Context, step plan.Step, sum *Summary) {
	if step.From == "" || step.To == "" {
		return
	}
	profile := classify.NewBrandProfile(step.From, "plan")
	for _, n := range e.doc.Find(brandSelectors) {
		if e.Transformed(n) {
			sum.Skipped++
			continue
		}
		text := dom.Text(n)
		switch {
		case profile.Matches(text):
			// The element IS the brand: swap wholesale.
			if err := e.mutate(ctx, n, step.To, StrategyBrand); err != nil {
				e.fail(sum, "brand", err)
				continue
			}
			sum.count(StrategyBrand)
		case profile.Contains(text):
			// Brand appears inside longer copy: replace inline, keep
			// the rest of the sentence.
			replaced := text
			for _, v := range profile.Variations {
				replaced = replaceFold(replaced, v, step.To)
			}
			if err := e.mutate(ctx, n, replaced, StrategyBrand); err != nil {
				e.fail(sum, "brand", err)
				continue
			}
			sum.count(StrategyBrand)
		}
	}
}

const buttonSelectors = "button, .btn, [role=button], input[type=submit], a[class*=btn], a[class*=button], [class*=cta]"

func (e *Engine) applyButtons(ctx context.Context, step plan.Step, sum *Summary) {
	for _, n := range e.doc.Find(buttonSelectors) {
		if e.Transformed(n) {
			sum.Skipped++
			continue
		}
		label := ButtonLabel(n)
		dir, ok := matchDirective(step.Buttons, label)
		if !ok {
			continue
		}

		switch dir.Action {
		case plan.ButtonPreserve:
			// Keep the label, but mark the node so later passes and
			// the watcher leave it alone.
			if err := e.mutate(ctx, n, label, StrategyButtonPreserved); err != nil {
				e.fail(sum, "button", err)
				continue
			}
			sum.count(StrategyButtonPreserved)
		case plan.ButtonReplace, plan.ButtonFix:
			text := strings.TrimSpace(dir.Text)
			if text == "" {
				text = plan.DefaultButtonLabel
			}
			st := StrategyButtonReplaced
			if dir.Action == plan.ButtonFix {
				st = StrategyButtonFixed
			}
			if err := e.mutate(ctx, n, text, st); err != nil {
				e.fail(sum, "button", err)
				continue
			}
			sum.count(st)
		}
	}
}

func matchDirective(dirs []plan.ButtonDirective, label string) (plan.ButtonDirective, bool) {
	trimmed := strings.TrimSpace(label)
	for _, d := range dirs {
		if trimmed == "" {
			if d.Action == plan.ButtonFix {
				return d, true
			}
			continue
		}
		if d.Match != "" && strings.EqualFold(strings.TrimSpace(d.Match), trimmed) {
			return d, true
		}
	}
	// An empty label must never survive, directive or not.
	if trimmed == "" {
		return plan.ButtonDirective{Action: plan.ButtonFix, Text: plan.DefaultButtonLabel}, true
	}
	return plan.ButtonDirective{}, false
}

// ButtonLabel resolves a button's visible label through the fallback chain
// text content, aria-label, title, value.
func ButtonLabel(n *html.Node) string {
	if t := dom.Text(n); t != "" {
		return t
	}
	for _, attr := range []string{"aria-label", "title", "value"} {
		if v := strings.TrimSpace(dom.Attr(n, attr)); v != "" {
			return v
		}
	}
	return ""
}

// sectionSelectors maps a detected section name to the CSS that locates it.
// The mapping is advisory: selectors cast a wide net and the child filter
// decides what actually gets rewritten.
var sectionSelectors = map[string]string{
	"hero":         ".hero, .banner, .jumbotron, .masthead, [class*=hero], header",
	"features":     ".features, .benefits, .services, [class*=feature], [class*=benefit]",
	"about":        ".about, .about-us, .story, .mission, [class*=about]",
	"testimonials": ".testimonials, .reviews, [class*=testimonial], [class*=review]",
	"products":     ".products, .pricing, .plans, [class*=product], [class*=pricing]",
	"content":      "main, section, article",
}

const sectionChildTags = "h1, h2, h3, h4, h5, h6, p, li, blockquote"

func (e *Engine) applySection(ctx context.Context, step plan.Step, analysis *plan.Analysis, input plan.ProductInput, sum *Summary) {
	sel, ok := sectionSelectors[step.Section]
	if !ok {
		sel = sectionSelectors["content"]
	}
	seen := map[*html.Node]bool{}
	for _, container := range e.doc.Find(sel) {
		sq := e.doc.Selection().FindNodes(container).Find(sectionChildTags)
		for _, n := range sq.Nodes {
			if seen[n] {
				continue
			}
			seen[n] = true
			e.transformNode(ctx, n, analysis, input, sum)
		}
	}
}

// transformNode rewrites one content element using planner guidance when
// available, falling back to per-element generation.
func (e *Engine) transformNode(ctx context.Context, n *html.Node, analysis *plan.Analysis, input plan.ProductInput, sum *Summary) {
	if e.Transformed(n) {
		sum.Skipped++
		return
	}
	text := dom.Text(n)
	if len(text) < 3 || !dom.Visible(n) {
		return
	}

	g := analysis.For(text)
	if g != nil && g.Strategy == "keep" {
		sum.Skipped++
		return
	}

	budget := wordBudget(dom.WordCount(text), g)

	var newText string
	var strategy Strategy
	switch {
	case g != nil && strings.TrimSpace(g.Suggested) != "":
		newText = g.Suggested
		strategy = StrategyDirect
	case e.cfg.Chat != nil:
		generated, err := e.generate(ctx, text, g, budget, input)
		if err != nil {
			e.fail(sum, "generate", err)
			return
		}
		newText = generated
		strategy = StrategyAdaptive
		e.pause(ctx)
	default:
		// No guidance and no generator: nothing sensible to write.
		sum.Skipped++
		return
	}

	newText = TruncateWords(CleanGenerated(newText), budget)
	if newText == "" {
		sum.Skipped++
		return
	}
	if err := e.mutate(ctx, n, newText, strategy); err != nil {
		e.fail(sum, "section", err)
		return
	}
	sum.count(strategy)
}

// TransformRecords rewrites already-classified records directly. This is the
// path content added after the initial pass takes: the watcher detects it,
// classifies it, and hands it here.
func (e *Engine) TransformRecords(ctx context.Context, recs []classify.Record, analysis *plan.Analysis, input plan.ProductInput) Summary {
	var sum Summary
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return sum
		}
		if rec.Category == classify.CategoryCTA {
			label := ButtonLabel(rec.Node)
			if strings.TrimSpace(label) == "" {
				if err := e.mutate(ctx, rec.Node, plan.DefaultButtonLabel, StrategyButtonFixed); err == nil {
					sum.count(StrategyButtonFixed)
				}
				continue
			}
			if err := e.mutate(ctx, rec.Node, label, StrategyButtonPreserved); err == nil {
				sum.count(StrategyButtonPreserved)
			}
			continue
		}
		e.transformNode(ctx, rec.Node, analysis, input, &sum)
	}
	return sum
}

// wordBudget bounds replacement length by the original's length class:
// micro copy stays micro, short copy gets a little headroom, longer copy may
// stretch to half again its size.
func wordBudget(origWords int, g *plan.Guidance) int {
	if g != nil && g.TargetLength > 0 {
		return g.TargetLength
	}
	switch {
	case origWords <= 3:
		return origWords
	case origWords <= 12:
		return origWords + 3
	default:
		return origWords * 3 / 2
	}
}

func (e *Engine) fail(sum *Summary, what string, err error) {
	sum.Failed++
	e.logger.Warn("engine: element skipped", "step", what, "error", err)
}

func (e *Engine) pause(ctx context.Context) {
	if e.cfg.Pace <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(e.cfg.Pace):
	}
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
