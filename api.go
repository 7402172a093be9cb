package rebrand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/rebrand/idgen"
	"github.com/hazyhaar/rebrand/shield"
	"github.com/hazyhaar/rebrand/store"
)

// SessionFactory creates a session attached to a page. The server calls it
// when a transform request names a URL.
type SessionFactory func(ctx context.Context, pageURL string) (*Session, error)

// Server exposes the session command vocabulary over HTTP: ping, ready,
// transform, regenerate, reset, state, events, plus the persistence
// surfaces (usage, history, favorites). One session is live at a time; a
// transform with a new URL replaces it.
type Server struct {
	factory SessionFactory
	store   *store.Store
	logger  *slog.Logger

	mu      sync.Mutex
	session *Session
}

// NewServer creates a Server. factory and st may be nil; the corresponding
// operations then answer with an explanatory failure.
func NewServer(factory SessionFactory, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{factory: factory, store: st, logger: logger}
}

// SetSession installs a pre-attached session (one-shot CLI use).
func (srv *Server) SetSession(s *Session) {
	srv.mu.Lock()
	srv.session = s
	srv.mu.Unlock()
}

// Session returns the current session, nil when none is attached.
func (srv *Server) Session() *Session {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.session
}

// TransformRequest is the transform command payload, shared by the HTTP and
// MCP surfaces.
type TransformRequest struct {
	URL         string `json:"url,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Tone        string `json:"tone,omitempty"`
}

// StartTransform resolves the target session (creating one when a URL is
// given) and kicks off the pipeline asynchronously. The completion or error
// lands in the session's event list.
func (srv *Server) StartTransform(ctx context.Context, req TransformRequest) (map[string]any, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("rebrand: transform: title is required")
	}

	sess, err := srv.resolveSession(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	input := ProductInput{Title: req.Title, Description: req.Description, Tone: req.Tone}
	go func() {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Minute)
		defer cancel()
		if _, err := sess.AnalyzeAndTransform(runCtx, input); err != nil {
			srv.logger.Warn("api: transform failed", "error", err)
		}
	}()

	return map[string]any{"status": "started", "session_id": sess.ID()}, nil
}

func (srv *Server) resolveSession(ctx context.Context, pageURL string) (*Session, error) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if pageURL == "" {
		if srv.session == nil {
			return nil, ErrNoSession
		}
		return srv.session, nil
	}
	if srv.factory == nil {
		return nil, fmt.Errorf("rebrand: transform: no browser configured for url %s", pageURL)
	}
	if srv.session != nil {
		if err := srv.session.Reset(ctx); err != nil {
			srv.logger.Warn("api: reset of previous session failed", "error", err)
		}
	}
	sess, err := srv.factory(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("rebrand: open %s: %w", pageURL, err)
	}
	srv.session = sess
	return sess, nil
}

// Regenerate restores and re-runs the current session asynchronously.
func (srv *Server) Regenerate(ctx context.Context) (map[string]any, error) {
	sess := srv.Session()
	if sess == nil {
		return nil, ErrNoSession
	}
	go func() {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Minute)
		defer cancel()
		if _, err := sess.Regenerate(runCtx); err != nil {
			srv.logger.Warn("api: regenerate failed", "error", err)
		}
	}()
	return map[string]any{"status": "started", "session_id": sess.ID()}, nil
}

// Reset restores the current session synchronously.
func (srv *Server) Reset(ctx context.Context) error {
	sess := srv.Session()
	if sess == nil {
		return ErrNoSession
	}
	return sess.Reset(ctx)
}

// CurrentState returns the current session's state.
func (srv *Server) CurrentState() (State, error) {
	sess := srv.Session()
	if sess == nil {
		return State{}, ErrNoSession
	}
	return sess.State(), nil
}

// Router builds the HTTP surface with the standard middleware stack.
func (srv *Server) Router() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: "ready"})
	})

	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		sess := srv.Session()
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"ready":   sess != nil && sess.Ready(),
		})
	})

	r.Post("/transform", func(w http.ResponseWriter, req *http.Request) {
		var tr TransformRequest
		if err := json.NewDecoder(req.Body).Decode(&tr); err != nil {
			fail(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
		resp, err := srv.StartTransform(req.Context(), tr)
		if err != nil {
			fail(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusAccepted, merge(envelope{Success: true}, resp))
	})

	r.Post("/regenerate", func(w http.ResponseWriter, req *http.Request) {
		resp, err := srv.Regenerate(req.Context())
		if err != nil {
			fail(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusAccepted, merge(envelope{Success: true}, resp))
	})

	r.Post("/reset", func(w http.ResponseWriter, req *http.Request) {
		if err := srv.Reset(req.Context()); err != nil {
			fail(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true})
	})

	r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		st, err := srv.CurrentState()
		if err != nil {
			fail(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "state": st})
	})

	r.Get("/events", func(w http.ResponseWriter, _ *http.Request) {
		st, err := srv.CurrentState()
		if err != nil {
			fail(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "events": st.Events})
	})

	srv.mountStoreRoutes(r)
	return r
}

func (srv *Server) mountStoreRoutes(r chi.Router) {
	requireStore := func(w http.ResponseWriter) bool {
		if srv.store == nil {
			fail(w, http.StatusNotImplemented, errors.New("no store configured"))
			return false
		}
		return true
	}

	r.Get("/usage", func(w http.ResponseWriter, req *http.Request) {
		if !requireStore(w) {
			return
		}
		u, err := srv.store.LoadUsage(req.Context())
		if err != nil {
			fail(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "usage": u})
	})

	r.Get("/history", func(w http.ResponseWriter, req *http.Request) {
		if !requireStore(w) {
			return
		}
		h, err := srv.store.History(req.Context())
		if err != nil {
			fail(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "history": h})
	})

	r.Get("/favorites", func(w http.ResponseWriter, req *http.Request) {
		if !requireStore(w) {
			return
		}
		favs, err := srv.store.Favorites(req.Context())
		if err != nil {
			fail(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "favorites": favs})
	})

	r.Post("/favorites", func(w http.ResponseWriter, req *http.Request) {
		if !requireStore(w) {
			return
		}
		var f store.Favorite
		if err := json.NewDecoder(req.Body).Decode(&f); err != nil {
			fail(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
		if f.ID == "" {
			f.ID = idgen.New()
		}
		if err := srv.store.AddFavorite(req.Context(), f); err != nil {
			fail(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": f.ID})
	})

	r.Delete("/favorites/{id}", func(w http.ResponseWriter, req *http.Request) {
		if !requireStore(w) {
			return
		}
		if err := srv.store.RemoveFavorite(req.Context(), chi.URLParam(req, "id")); err != nil {
			fail(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true})
	})
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNoSession):
		return http.StatusConflict
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("api: write response", "error", err)
	}
}

func fail(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, envelope{Success: false, Error: err.Error()})
}

func merge(env envelope, extra map[string]any) map[string]any {
	out := map[string]any{"success": env.Success}
	if env.Message != "" {
		out["message"] = env.Message
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
