package dtoapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Middleware is the standard middleware signature compatible with the entire
// Go middleware ecosystem.
type Middleware func(next http.Handler) http.Handler

// Recovery returns middleware that recovers from panics and responds with a
// 500 problem. Panics are logged to logger, or to slog.Default when none is given.
func Recovery(logger ...*slog.Logger) Middleware {
	log := slog.Default()
	if len(logger) > 0 && logger[0] != nil {
		log = logger[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered",
						"panic", rec,
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
						"request_id", GetRequestID(r),
					)
					w.Header().Set("Content-Type", "application/problem+json")
					w.WriteHeader(http.StatusInternalServerError)
					//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
					json.NewEncoder(w).Encode(&ProblemDetail{
						Type:      "about:blank",
						Title:     http.StatusText(http.StatusInternalServerError),
						Status:    http.StatusInternalServerError,
						RequestID: GetRequestID(r),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
