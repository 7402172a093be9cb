// Package rebrand rewrites a web page's marketing copy in place for a
// different product: detect the page's transformable content, classify it,
// plan replacements (remotely via a completion model, locally as fallback),
// apply them while preserving structure, and keep watching for content that
// arrives later.
//
// All state is held by a per-page Session; nothing is global. A Session's
// lifecycle runs from its first AnalyzeAndTransform to Reset.
package rebrand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/rebrand/classify"
	"github.com/hazyhaar/rebrand/complete"
	"github.com/hazyhaar/rebrand/detect"
	"github.com/hazyhaar/rebrand/dom"
	"github.com/hazyhaar/rebrand/engine"
	"github.com/hazyhaar/rebrand/idgen"
	"github.com/hazyhaar/rebrand/plan"
	"github.com/hazyhaar/rebrand/store"
	"github.com/hazyhaar/rebrand/watch"
)

var (
	// ErrNoSession means the operation needs an active transformation.
	ErrNoSession = errors.New("rebrand: no active transformation")
	// ErrBusy means an analysis pass is already running.
	ErrBusy = errors.New("rebrand: analysis already in progress")
)

// ProductInput aliases the planner's input so callers need one import.
type ProductInput = plan.ProductInput

// Event records an asynchronous outcome for later retrieval.
type Event struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"` // "transformation_complete" or "transformation_error"
	Error       string `json:"error,omitempty"`
	Transformed int    `json:"transformed"`
	At          int64  `json:"at"`
}

const (
	EventComplete = "transformation_complete"
	EventError    = "transformation_error"
)

// Options wires a Session. Everything is optional except the document.
type Options struct {
	Chat    complete.Chatter // nil = local fallback planning only
	Applier engine.Applier   // nil = mirror-only
	Store   *store.Store     // nil = no persistence
	Logger  *slog.Logger
	IDs     idgen.Generator

	Limits       detect.Limits
	Pace         time.Duration // delay between generated rewrites
	Settle       time.Duration // watcher settle after engine writes
	HighlightFor time.Duration
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.IDs == nil {
		o.IDs = idgen.Default
	}
}

// Session owns one page's transformation state.
type Session struct {
	id      string
	doc     *dom.Document
	cfg     Options
	logger  *slog.Logger
	planner *plan.Planner
	eng     *engine.Engine
	watcher *watch.Watcher

	mu        sync.Mutex
	input     plan.ProductInput
	brand     *classify.BrandProfile
	analysis  *plan.Analysis
	detected  int
	active    bool
	analyzing bool
	events    []Event
}

// NewSession creates a Session over a parsed mirror document.
func NewSession(doc *dom.Document, cfg Options) *Session {
	cfg.defaults()
	s := &Session{
		id:  cfg.IDs(),
		doc: doc,
		cfg: cfg,
	}
	s.logger = cfg.Logger.With("session_id", s.id)
	s.watcher = watch.New(s.onAdded, watch.Options{
		Settle: cfg.Settle,
		Logger: s.logger,
	})
	s.planner = plan.New(cfg.Chat, s.logger)
	s.eng = engine.New(doc, engine.Config{
		Chat:         cfg.Chat,
		Applier:      cfg.Applier,
		Gate:         s.watcher,
		Logger:       s.logger,
		Pace:         cfg.Pace,
		HighlightFor: cfg.HighlightFor,
	})
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Ready reports whether the page has anything that looks transformable.
func (s *Session) Ready() bool {
	if s.doc == nil {
		return false
	}
	return s.doc.FindFirst("h1, h2, h3, p, main, section") != nil
}

// AnalyzeAndTransform runs the full pipeline: detect, plan, apply, then
// start watching for late content. Partial failures are reported through
// the Summary; the error return covers empty pages and cancellation.
func (s *Session) AnalyzeAndTransform(ctx context.Context, input ProductInput) (engine.Summary, error) {
	s.mu.Lock()
	if s.analyzing {
		s.mu.Unlock()
		return engine.Summary{}, ErrBusy
	}
	s.analyzing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.analyzing = false
		s.mu.Unlock()
	}()

	res, err := detect.Elements(s.doc, s.cfg.Limits, s.logger)
	if err != nil {
		s.record(Event{Kind: EventError, Error: err.Error()})
		return engine.Summary{}, fmt.Errorf("rebrand: analyze: %w", err)
	}

	pl := s.planner.Build(ctx, s.doc, res.Records, res.Brand, input)

	sum, err := s.eng.Apply(ctx, pl, input)
	if err != nil {
		// Cancellation mid-plan leaves the page half rewritten; put
		// everything back before reporting.
		if _, rerr := s.eng.Restore(context.WithoutCancel(ctx)); rerr != nil {
			s.logger.Error("rebrand: restore after failure", "error", rerr)
		}
		s.record(Event{Kind: EventError, Error: err.Error()})
		return sum, fmt.Errorf("rebrand: transform: %w", err)
	}

	s.mu.Lock()
	s.input = input
	s.brand = res.Brand
	s.analysis = pl.Analysis
	s.detected = len(res.Records)
	s.active = true
	s.mu.Unlock()

	s.watcher.Start(context.WithoutCancel(ctx))
	s.bookkeep(ctx, input, sum)
	s.record(Event{Kind: EventComplete, Transformed: sum.Transformed})
	return sum, nil
}

// Regenerate restores every original, clears the records, and runs the
// pipeline again with the stored input. Stale records never leak into the
// new pass.
func (s *Session) Regenerate(ctx context.Context) (engine.Summary, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return engine.Summary{}, ErrNoSession
	}
	input := s.input
	s.active = false
	s.mu.Unlock()

	if _, err := s.eng.Restore(ctx); err != nil {
		return engine.Summary{}, fmt.Errorf("rebrand: regenerate: %w", err)
	}
	return s.AnalyzeAndTransform(ctx, input)
}

// Reset restores every transformed node byte for byte, stops the watcher,
// and clears all session state. Safe to call at any point.
func (s *Session) Reset(ctx context.Context) error {
	s.watcher.Stop()
	restored, err := s.eng.Restore(ctx)

	s.mu.Lock()
	s.active = false
	s.brand = nil
	s.analysis = nil
	s.detected = 0
	s.input = plan.ProductInput{}
	s.mu.Unlock()

	s.logger.Info("rebrand: reset", "restored", restored)
	if err != nil {
		return fmt.Errorf("rebrand: reset: %w", err)
	}
	return nil
}

// State is a point-in-time view of the session.
type State struct {
	SessionID   string                  `json:"session_id"`
	URL         string                  `json:"url,omitempty"`
	Active      bool                    `json:"active"`
	Analyzing   bool                    `json:"analyzing"`
	Detected    int                     `json:"detected"`
	Transformed int                     `json:"transformed"`
	Brand       string                  `json:"brand,omitempty"`
	ByStrategy  map[engine.Strategy]int `json:"by_strategy,omitempty"`
	Watcher     watch.Stats             `json:"watcher"`
	Events      []Event                 `json:"events,omitempty"`
}

// State returns the current session state, including recent events.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		SessionID:   s.id,
		URL:         s.doc.URL(),
		Active:      s.active,
		Analyzing:   s.analyzing,
		Detected:    s.detected,
		Transformed: s.eng.Count(),
		ByStrategy:  s.eng.ByStrategy(),
		Watcher:     s.watcher.Stats(),
		Events:      append([]Event(nil), s.events...),
	}
	if s.brand != nil {
		st.Brand = s.brand.Name
	}
	return st
}

// Document exposes the mirror document, mainly for rendering the result.
func (s *Session) Document() *dom.Document { return s.doc }

// Graft parses an observed fragment, attaches it under the node at
// parentXPath in the mirror, and offers the new subtrees to the watcher.
// This is how live-page additions enter the pipeline.
func (s *Session) Graft(parentXPath, fragment string) error {
	parent := s.doc.ResolveXPath(parentXPath)
	if parent == nil {
		return fmt.Errorf("rebrand: graft: no node at %s", parentXPath)
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return fmt.Errorf("rebrand: graft: %w", err)
	}
	for _, n := range nodes {
		parent.AppendChild(n)
		s.watcher.Offer(n)
	}
	return nil
}

// onAdded is the watcher handler: classify the new subtree and rewrite
// whatever qualifies, using the session's stored plan guidance.
func (s *Session) onAdded(ctx context.Context, root *html.Node) {
	s.mu.Lock()
	active := s.active
	brand := s.brand
	analysis := s.analysis
	input := s.input
	s.mu.Unlock()
	if !active {
		return
	}

	recs := detect.Subtree(s.doc, root, brand, s.cfg.Limits)
	if len(recs) == 0 {
		return
	}
	s.logger.Info("rebrand: transforming added content", "elements", len(recs))
	sum := s.eng.TransformRecords(ctx, recs, analysis, input)
	if sum.Transformed > 0 {
		s.record(Event{Kind: EventComplete, Transformed: sum.Transformed})
	}
}

// bookkeep updates persistent usage counters; failures are logged only.
func (s *Session) bookkeep(ctx context.Context, input ProductInput, sum engine.Summary) {
	if s.cfg.Store == nil {
		return
	}
	if err := s.cfg.Store.BumpUsage(ctx, sum.Transformed); err != nil {
		s.logger.Warn("rebrand: usage bump failed", "error", err)
	}
	err := s.cfg.Store.AppendHistory(ctx, store.HistoryEntry{
		ID:       s.cfg.IDs(),
		URL:      s.doc.URL(),
		Title:    input.Title,
		Elements: sum.Transformed,
		At:       time.Now().Unix(),
	})
	if err != nil {
		s.logger.Warn("rebrand: history append failed", "error", err)
	}
}

const eventLimit = 20

func (s *Session) record(ev Event) {
	ev.ID = s.cfg.IDs()
	ev.At = time.Now().Unix()
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > eventLimit {
		s.events = s.events[len(s.events)-eventLimit:]
	}
	s.mu.Unlock()
}
