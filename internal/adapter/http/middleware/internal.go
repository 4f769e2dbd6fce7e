package middleware

import "net/http"

// InternalOnly guards service-to-service endpoints with a shared token.
// These routes are never reachable through the public gateway; the token
// is a second fence, not the primary one.
func (h *Middleware) InternalOnly(next http.HandlerFunc, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" || r.Header.Get("X-Internal-Token") != token {
			errorResponse(w, http.StatusUnauthorized, "internal token required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
