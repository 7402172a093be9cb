package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Page wraps one open tab. It implements the engine's Applier seam: every
// mutation made to the mirror document is replayed here through the same
// XPath that addresses the node in the mirror.
type Page struct {
	page   *rod.Page
	url    string
	logger *slog.Logger
}

// OpenPage opens a tab on the manager's browser, navigates to pageURL, and
// waits for the load event.
func OpenPage(ctx context.Context, mgr *Manager, pageURL string) (*Page, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Page{page: page, url: pageURL, logger: mgr.cfg.Logger}, nil
}

// URL returns the page URL.
func (p *Page) URL() string { return p.url }

// Snapshot serialises the live DOM as HTML. This is what the mirror parses.
func (p *Page) Snapshot(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: snapshot: %w", err)
	}
	return res.Value.Str(), nil
}

// Screenshot captures the viewport as PNG. Collaborator seam for visual
// analysis; nothing in the pipeline depends on it.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := p.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// Close closes the tab.
func (p *Page) Close() error {
	if p.page != nil {
		return p.page.Close()
	}
	return nil
}

// SetText replaces the visible text of the node at xpath, preserving child
// markup the same way the mirror mutation does: first non-blank text node
// takes the value, remaining text nodes are blanked.
func (p *Page) SetText(ctx context.Context, xpath, text string) error {
	_, err := p.page.Context(ctx).Eval(`(xpath, text) => {
		const el = document.evaluate(xpath, document, null,
			XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!el) throw new Error('no node at ' + xpath);
		let first = null;
		for (const c of el.childNodes) {
			if (c.nodeType === Node.TEXT_NODE && c.textContent.trim() !== '') {
				if (first === null) { first = c; } else { c.textContent = ''; }
			}
		}
		if (first !== null) { first.textContent = text; }
		else if (el.children.length > 0) { el.appendChild(document.createTextNode(text)); }
		else { el.textContent = text; }
	}`, xpath, text)
	if err != nil {
		return fmt.Errorf("browser: set text at %s: %w", xpath, err)
	}
	return nil
}

// SetAttr sets an attribute on the node at xpath.
func (p *Page) SetAttr(ctx context.Context, xpath, name, value string) error {
	_, err := p.page.Context(ctx).Eval(`(xpath, name, value) => {
		const el = document.evaluate(xpath, document, null,
			XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!el) throw new Error('no node at ' + xpath);
		el.setAttribute(name, value);
	}`, xpath, name, value)
	if err != nil {
		return fmt.Errorf("browser: set attr at %s: %w", xpath, err)
	}
	return nil
}

// RemoveAttr removes an attribute from the node at xpath.
func (p *Page) RemoveAttr(ctx context.Context, xpath, name string) error {
	_, err := p.page.Context(ctx).Eval(`(xpath, name) => {
		const el = document.evaluate(xpath, document, null,
			XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!el) throw new Error('no node at ' + xpath);
		el.removeAttribute(name);
	}`, xpath, name)
	if err != nil {
		return fmt.Errorf("browser: remove attr at %s: %w", xpath, err)
	}
	return nil
}

// SetHTML replaces the inner HTML of the node at xpath. Restore uses this to
// put originals back byte for byte.
func (p *Page) SetHTML(ctx context.Context, xpath, fragment string) error {
	_, err := p.page.Context(ctx).Eval(`(xpath, html) => {
		const el = document.evaluate(xpath, document, null,
			XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!el) throw new Error('no node at ' + xpath);
		el.innerHTML = html;
	}`, xpath, fragment)
	if err != nil {
		return fmt.Errorf("browser: set html at %s: %w", xpath, err)
	}
	return nil
}

// Highlight flashes a subtle background on the node at xpath, self-clearing
// after about a second.
func (p *Page) Highlight(ctx context.Context, xpath string) error {
	_, err := p.page.Context(ctx).Eval(`(xpath) => {
		const el = document.evaluate(xpath, document, null,
			XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!el) return;
		const prev = el.style.transition;
		el.style.transition = 'background-color 0.3s';
		el.style.backgroundColor = 'rgba(255, 235, 59, 0.45)';
		setTimeout(() => {
			el.style.backgroundColor = '';
			el.style.transition = prev;
		}, 1000);
	}`, xpath)
	if err != nil {
		return fmt.Errorf("browser: highlight at %s: %w", xpath, err)
	}
	return nil
}
