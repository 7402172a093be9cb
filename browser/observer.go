package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod/lib/proto"
)

//go:embed observer.js
var observerJS string

const bindingName = "__rebrand_binding"

// AddedSubtree is one subtree the injected MutationObserver saw appear,
// serialised with the XPath of its parent so the mirror can graft it in the
// right place.
type AddedSubtree struct {
	ParentXPath string `json:"parent_xpath"`
	HTML        string `json:"html"`
}

// ObserveFunc receives added subtrees, in arrival order, on an internal
// goroutine.
type ObserveFunc func(AddedSubtree)

// Observe injects the MutationObserver into the page and streams its
// batches to fn until ctx is cancelled. Subtrees already carrying the
// rewrite marker are filtered on the JS side before they ever cross the
// binding.
func (p *Page) Observe(ctx context.Context, fn ObserveFunc) error {
	if err := (proto.RuntimeAddBinding{Name: bindingName}.Call(p.page)); err != nil {
		p.logger.Warn("browser: add binding failed (may already exist)", "error", err)
	}

	go p.listenBinding(ctx, fn)

	if _, err := p.page.Eval(observerJS); err != nil {
		return fmt.Errorf("browser: inject observer: %w", err)
	}
	p.logger.Debug("browser: observer injected", "url", p.url)
	return nil
}

func (p *Page) listenBinding(ctx context.Context, fn ObserveFunc) {
	p.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var batch []AddedSubtree
		if err := json.Unmarshal([]byte(e.Payload), &batch); err != nil {
			p.logger.Warn("browser: parse observer payload", "error", err)
			return
		}
		for _, added := range batch {
			fn(added)
		}
	})()
}
