// Package kit holds the transport-neutral building blocks shared by the HTTP
// and MCP surfaces: the Endpoint abstraction, middleware chaining, and the
// context keys request metadata travels under.
package kit

import "context"

// Endpoint is a transport-neutral operation: decoded request in, response
// out. HTTP handlers and MCP tools both terminate in an Endpoint.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left to right: the first argument is the
// outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
