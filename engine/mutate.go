package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/rebrand/dom"
)

// mutate performs the guarded write: pause the watcher, snapshot the
// original once, swap the text while preserving child markup, stamp the
// marker, highlight, replay onto the live page, resume. A node that already
// carries a record is left untouched, which is what makes Apply idempotent.
func (e *Engine) mutate(ctx context.Context, n *html.Node, newText string, st Strategy) error {
	e.mu.Lock()
	if _, done := e.records[n]; done {
		e.mu.Unlock()
		return nil
	}

	if e.cfg.Gate != nil {
		e.cfg.Gate.Pause()
		defer e.cfg.Gate.Resume()
	}

	rec := Record{
		OriginalText: dom.Text(n),
		OriginalHTML: dom.InnerHTML(n),
		NewText:      newText,
		Strategy:     st,
		At:           time.Now(),
	}

	if newText != rec.OriginalText {
		dom.SetText(n, newText)
	}
	dom.SetAttr(n, dom.MarkerAttr, "1")
	e.records[n] = rec
	e.order = append(e.order, n)
	xpath := dom.XPath(n)
	e.mu.Unlock()

	e.highlight(ctx, n, xpath)

	if e.cfg.Applier != nil {
		if newText != rec.OriginalText {
			if err := e.cfg.Applier.SetText(ctx, xpath, newText); err != nil {
				return fmt.Errorf("engine: live set text: %w", err)
			}
		}
		if err := e.cfg.Applier.SetAttr(ctx, xpath, dom.MarkerAttr, "1"); err != nil {
			return fmt.Errorf("engine: live set marker: %w", err)
		}
	}
	return nil
}

// highlight stamps the transient highlight and schedules its removal. The
// live page gets a self-clearing style via the Applier.
func (e *Engine) highlight(ctx context.Context, n *html.Node, xpath string) {
	if e.cfg.HighlightFor < 0 {
		return
	}
	e.mu.Lock()
	dom.SetAttr(n, dom.HighlightAttr, "1")
	e.mu.Unlock()

	time.AfterFunc(e.cfg.HighlightFor, func() {
		e.mu.Lock()
		dom.RemoveAttr(n, dom.HighlightAttr)
		e.mu.Unlock()
	})

	if e.cfg.Applier != nil {
		if err := e.cfg.Applier.Highlight(ctx, xpath); err != nil {
			e.logger.Debug("engine: live highlight failed", "error", err)
		}
	}
}

// Restore reverses every recorded transformation: original inner HTML back
// in, markers stripped, record map cleared. Returns how many nodes were
// restored.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Gate != nil {
		e.cfg.Gate.Pause()
		defer e.cfg.Gate.Resume()
	}

	var firstErr error
	restored := 0
	for _, n := range e.order {
		rec, ok := e.records[n]
		if !ok {
			continue
		}
		if err := dom.SetInnerHTML(n, rec.OriginalHTML); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			e.logger.Warn("engine: restore failed for node", "error", err)
			continue
		}
		dom.RemoveAttr(n, dom.MarkerAttr)
		dom.RemoveAttr(n, dom.HighlightAttr)
		restored++

		if e.cfg.Applier != nil {
			xpath := dom.XPath(n)
			if err := e.cfg.Applier.SetHTML(ctx, xpath, rec.OriginalHTML); err != nil {
				e.logger.Warn("engine: live restore failed", "error", err)
			}
			if err := e.cfg.Applier.RemoveAttr(ctx, xpath, dom.MarkerAttr); err != nil {
				e.logger.Debug("engine: live unmark failed", "error", err)
			}
		}
	}
	e.records = make(map[*html.Node]Record)
	e.order = nil

	e.logger.Info("engine: restored", "nodes", restored)
	if firstErr != nil {
		return restored, fmt.Errorf("engine: restore: %w", firstErr)
	}
	return restored, nil
}

// Transformed reports whether the node was rewritten this session.
func (e *Engine) Transformed(n *html.Node) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.records[n]
	return ok
}

// Count returns how many nodes carry a record.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

// ByStrategy returns per-strategy rewrite counts.
func (e *Engine) ByStrategy() map[Strategy]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[Strategy]int, len(e.records))
	for _, rec := range e.records {
		out[rec.Strategy]++
	}
	return out
}

// RecordOf returns the record for a node, if any.
func (e *Engine) RecordOf(n *html.Node) (Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.records[n]
	return rec, ok
}
