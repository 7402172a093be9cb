// Package watch reacts to content added to the page after the initial
// transformation pass. Mutation events are offered from outside (the browser
// layer's injected MutationObserver, or tests), filtered, then routed to a
// handler that classifies and rewrites the new nodes.
//
// Two gates keep the watcher from reacting to the engine's own writes.
// The primary gate is a monotonic write generation: every engine write
// window bumps the counter via Pause, and any event offered while a window
// is open is dropped. The secondary gate is structural: an added subtree
// that already carries the rewrite marker is engine output by definition and
// is dropped regardless of timing. Resume closes the window only after a
// short settle delay so trailing observer callbacks from the write still
// fall inside it.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/rebrand/dom"
)

// State is the watcher lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateObserving
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateObserving:
		return "observing"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// Event is one added subtree, stamped with the write generation at offer
// time and whether a write window was open.
type Event struct {
	Root        *html.Node
	Generation  uint64
	DuringWrite bool
}

// Handler receives the roots of added subtrees that survived filtering.
type Handler func(ctx context.Context, root *html.Node)

// Options tunes the watcher.
type Options struct {
	// Settle is how long after Resume the write window stays open,
	// absorbing trailing mutation callbacks. Default 100ms.
	Settle time.Duration
	// Buffer is the event channel capacity. Default 256.
	Buffer int
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Settle <= 0 {
		o.Settle = 100 * time.Millisecond
	}
	if o.Buffer <= 0 {
		o.Buffer = 256
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher filters and routes added-subtree events. Safe for concurrent use.
type Watcher struct {
	opts    Options
	handler Handler
	logger  *slog.Logger

	mu          sync.Mutex
	state       State
	pauseDepth  int
	writeOpen   bool
	resumeTimer *time.Timer
	events      chan Event
	cancel      context.CancelFunc
	done        chan struct{}

	gen     atomic.Uint64
	offered atomic.Int64
	ignored atomic.Int64
	handled atomic.Int64
	dropped atomic.Int64
}

// New creates a Watcher. Call Start to begin routing events.
func New(handler Handler, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{
		opts:    opts,
		handler: handler,
		logger:  opts.Logger,
		events:  make(chan Event, opts.Buffer),
	}
}

// Start begins the routing loop. Starting an already observing watcher is a
// no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateIdle {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.state = StateObserving
	go w.loop(ctx)
	w.logger.Info("watch: started", "settle", w.opts.Settle)
}

// Stop halts the loop and returns the watcher to idle. Buffered events are
// discarded.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.state == StateIdle {
		w.mu.Unlock()
		return
	}
	if w.resumeTimer != nil {
		w.resumeTimer.Stop()
		w.resumeTimer = nil
	}
	cancel, done := w.cancel, w.done
	w.state = StateIdle
	w.pauseDepth = 0
	w.writeOpen = false
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	w.logger.Info("watch: stopped")
}

// Pause opens a write window: the generation advances and every event
// offered until the window closes is dropped. Pause nests.
func (w *Watcher) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pauseDepth++
	w.writeOpen = true
	if w.resumeTimer != nil {
		w.resumeTimer.Stop()
		w.resumeTimer = nil
	}
	if w.state == StateObserving {
		w.state = StatePaused
	}
	w.gen.Add(1)
}

// Resume closes the write window after the settle delay, once every nested
// Pause has been matched.
func (w *Watcher) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pauseDepth > 0 {
		w.pauseDepth--
	}
	if w.pauseDepth > 0 {
		return
	}
	if w.resumeTimer != nil {
		w.resumeTimer.Stop()
	}
	w.resumeTimer = time.AfterFunc(w.opts.Settle, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.pauseDepth > 0 {
			return
		}
		w.writeOpen = false
		w.resumeTimer = nil
		if w.state == StatePaused {
			w.state = StateObserving
		}
	})
}

// Offer submits an added subtree. Non-blocking: when the buffer is full the
// event is counted as dropped rather than stalling the observer.
func (w *Watcher) Offer(root *html.Node) {
	if root == nil {
		return
	}
	w.mu.Lock()
	if w.state == StateIdle {
		w.mu.Unlock()
		return
	}
	ev := Event{
		Root:        root,
		Generation:  w.gen.Load(),
		DuringWrite: w.writeOpen,
	}
	w.mu.Unlock()

	w.offered.Add(1)
	select {
	case w.events <- ev:
	default:
		w.dropped.Add(1)
	}
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Generation returns the current write generation.
func (w *Watcher) Generation() uint64 { return w.gen.Load() }

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.events:
			if ev.DuringWrite {
				w.ignored.Add(1)
				w.logger.Debug("watch: ignoring write-window event", "generation", ev.Generation)
				continue
			}
			if dom.SubtreeMarked(ev.Root) {
				w.ignored.Add(1)
				w.logger.Debug("watch: ignoring marked subtree")
				continue
			}
			if w.handler != nil {
				w.handler(ctx, ev.Root)
			}
			w.handled.Add(1)
		}
	}
}

// Stats are point-in-time counters.
type Stats struct {
	Offered int64  `json:"offered"`
	Handled int64  `json:"handled"`
	Ignored int64  `json:"ignored"`
	Dropped int64  `json:"dropped"`
	State   string `json:"state"`
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Offered: w.offered.Load(),
		Handled: w.handled.Load(),
		Ignored: w.ignored.Load(),
		Dropped: w.dropped.Load(),
		State:   w.State().String(),
	}
}
