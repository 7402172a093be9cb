// Package shield provides reusable HTTP security middleware: security
// headers, body limits, request tracing, in-memory rate limiting, and HEAD
// method handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack() {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// DefaultStack returns the standard middleware stack for a local API
// service, ordered HeadToGet → SecurityHeaders → MaxBody → TraceID →
// RateLimiter.
func DefaultStack() []func(http.Handler) http.Handler {
	rl := NewRateLimiter(RateLimit{MaxRequests: 120, WindowSeconds: 60})
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(256 * 1024),
		TraceID,
		rl.Middleware,
	}
}
