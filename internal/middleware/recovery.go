package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
)

// Recovery converts a handler panic into a 500 response. The panic value
// stays in the logs; the client only sees a generic error.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("Panic handling %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
