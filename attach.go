package rebrand

import (
	"context"
	"fmt"

	"github.com/hazyhaar/rebrand/browser"
	"github.com/hazyhaar/rebrand/dom"
)

// Attach opens pageURL in the manager's browser, parses its snapshot into
// the mirror, and returns a Session wired both ways: mirror mutations
// replay onto the live page, and live-page additions flow back through the
// observer into the watcher. The returned Page should be closed when the
// session is done.
func Attach(ctx context.Context, mgr *browser.Manager, pageURL string, opts Options) (*Session, *browser.Page, error) {
	opts.defaults()

	page, err := browser.OpenPage(ctx, mgr, pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("rebrand: attach: %w", err)
	}
	snap, err := page.Snapshot(ctx)
	if err != nil {
		page.Close()
		return nil, nil, fmt.Errorf("rebrand: attach: %w", err)
	}
	doc, err := dom.ParseString(snap, pageURL)
	if err != nil {
		page.Close()
		return nil, nil, fmt.Errorf("rebrand: attach: %w", err)
	}

	opts.Applier = page
	s := NewSession(doc, opts)

	err = page.Observe(ctx, func(added browser.AddedSubtree) {
		if gerr := s.Graft(added.ParentXPath, added.HTML); gerr != nil {
			s.logger.Debug("rebrand: graft failed", "error", gerr)
		}
	})
	if err != nil {
		s.logger.Warn("rebrand: observer unavailable, dynamic content will be missed", "error", err)
	}
	return s, page, nil
}
