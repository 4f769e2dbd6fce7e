package middleware

import (
	"fmt"
	"net/http"

	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
)

// Recover turns handler panics into 500 responses so one bad request
// cannot take the service down.
func (app *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				ctx := wrap.WithAction(r.Context(), "panic_recovered")
				app.log.Error(ctx, "recovered from panic", fmt.Errorf("%v", rec), "path", r.URL.Path)

				w.Header().Set("Connection", "close")
				errorResponse(w, http.StatusInternalServerError, fmt.Errorf("%v", rec))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
