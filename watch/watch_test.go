package watch

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/rebrand/dom"
)

func fragment(t *testing.T, src string) *html.Node {
	t.Helper()
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil || len(nodes) == 0 {
		t.Fatalf("fragment: %v", err)
	}
	return nodes[0]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatcher_RoutesEvents(t *testing.T) {
	var handled atomic.Int32
	w := New(func(_ context.Context, _ *html.Node) {
		handled.Add(1)
	}, Options{Settle: 10 * time.Millisecond})
	w.Start(context.Background())
	defer w.Stop()

	w.Offer(fragment(t, `<div><p>new content block</p></div>`))
	waitFor(t, func() bool { return handled.Load() == 1 })

	st := w.Stats()
	if st.Offered != 1 || st.Handled != 1 || st.Ignored != 0 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestWatcher_IdleDiscardsOffers(t *testing.T) {
	var handled atomic.Int32
	w := New(func(_ context.Context, _ *html.Node) { handled.Add(1) }, Options{})

	w.Offer(fragment(t, `<p>before start</p>`))
	if st := w.Stats(); st.Offered != 0 {
		t.Fatalf("idle watcher accepted an offer: %+v", st)
	}
	if handled.Load() != 0 {
		t.Fatal("idle watcher ran the handler")
	}
}

func TestWatcher_WriteWindowDropsEvents(t *testing.T) {
	var handled atomic.Int32
	w := New(func(_ context.Context, _ *html.Node) { handled.Add(1) }, Options{Settle: 20 * time.Millisecond})
	w.Start(context.Background())
	defer w.Stop()

	w.Pause()
	w.Offer(fragment(t, `<p>engine write echo</p>`))
	w.Resume()
	// Still inside the settle window.
	w.Offer(fragment(t, `<p>trailing observer callback</p>`))

	waitFor(t, func() bool { return w.Stats().Ignored == 2 })
	if handled.Load() != 0 {
		t.Fatal("write-window events reached the handler")
	}

	// After settle the window is closed and events flow again.
	waitFor(t, func() bool { return w.State() == StateObserving })
	w.Offer(fragment(t, `<p>genuinely new content</p>`))
	waitFor(t, func() bool { return handled.Load() == 1 })
}

func TestWatcher_PauseBumpsGeneration(t *testing.T) {
	w := New(nil, Options{Settle: 5 * time.Millisecond})
	g0 := w.Generation()
	w.Pause()
	w.Resume()
	w.Pause()
	w.Resume()
	if got := w.Generation(); got != g0+2 {
		t.Fatalf("generation: got %d, want %d", got, g0+2)
	}
}

func TestWatcher_PauseNests(t *testing.T) {
	var handled atomic.Int32
	w := New(func(_ context.Context, _ *html.Node) { handled.Add(1) }, Options{Settle: 10 * time.Millisecond})
	w.Start(context.Background())
	defer w.Stop()

	w.Pause()
	w.Pause()
	w.Resume()
	// One Pause still outstanding: the window must stay open past the
	// settle delay.
	time.Sleep(30 * time.Millisecond)
	w.Offer(fragment(t, `<p>still inside nested pause</p>`))
	waitFor(t, func() bool { return w.Stats().Ignored == 1 })

	w.Resume()
	waitFor(t, func() bool { return w.State() == StateObserving })
	w.Offer(fragment(t, `<p>after final resume</p>`))
	waitFor(t, func() bool { return handled.Load() == 1 })
}

func TestWatcher_MarkedSubtreeIgnored(t *testing.T) {
	var handled atomic.Int32
	w := New(func(_ context.Context, _ *html.Node) { handled.Add(1) }, Options{Settle: 5 * time.Millisecond})
	w.Start(context.Background())
	defer w.Stop()

	marked := fragment(t, `<div><p `+dom.MarkerAttr+`="1">already rewritten</p></div>`)
	w.Offer(marked)
	waitFor(t, func() bool { return w.Stats().Ignored == 1 })
	if handled.Load() != 0 {
		t.Fatal("marked subtree reached the handler")
	}
}

func TestWatcher_StopDiscardsAndRestarts(t *testing.T) {
	var handled atomic.Int32
	w := New(func(_ context.Context, _ *html.Node) { handled.Add(1) }, Options{Settle: 5 * time.Millisecond})

	w.Start(context.Background())
	w.Stop()
	if w.State() != StateIdle {
		t.Fatalf("state after stop: %v", w.State())
	}

	// Restartable.
	w.Start(context.Background())
	defer w.Stop()
	w.Offer(fragment(t, `<p>after restart</p>`))
	waitFor(t, func() bool { return handled.Load() == 1 })
}

func TestWatcher_StartTwiceIsNoop(t *testing.T) {
	w := New(nil, Options{})
	ctx := context.Background()
	w.Start(ctx)
	defer w.Stop()
	w.Start(ctx)
	if w.State() != StateObserving {
		t.Fatalf("state: %v", w.State())
	}
}

func TestWatcher_BufferOverflowCountsDropped(t *testing.T) {
	block := make(chan struct{})
	w := New(func(_ context.Context, _ *html.Node) {
		<-block
	}, Options{Buffer: 1, Settle: 5 * time.Millisecond})
	w.Start(context.Background())
	defer func() {
		close(block)
		w.Stop()
	}()

	// First event occupies the handler, second fills the buffer, the rest
	// must be dropped without blocking.
	for i := 0; i < 5; i++ {
		w.Offer(fragment(t, `<p>burst event</p>`))
	}
	waitFor(t, func() bool { return w.Stats().Dropped > 0 })
}
