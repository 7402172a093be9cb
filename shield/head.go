package shield

import "net/http"

// HeadToGet rewrites HEAD to GET before routing, so uptime probes hitting
// /ping or /ready see 200 rather than the router's 405 for an unregistered
// method. net/http strips the response body on HEAD by itself.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
