package dtoapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bjaus/dtoapi/dto"
)

// statusRecorder remembers the status and body size written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Unwrap supports http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// routeNote is filled in by the matched route while Logger waits for it.
type routeNote struct {
	operation string
	data      string
	ret       string
	invalid   []string
}

type routeNoteKey struct{}

func withRouteNote(ctx context.Context) (context.Context, *routeNote) {
	n := &routeNote{}
	return context.WithValue(ctx, routeNoteKey{}, n), n
}

// noteRoute records the route serving r.
func noteRoute(r *http.Request, ri *routeInfo) {
	n, ok := r.Context().Value(routeNoteKey{}).(*routeNote)
	if !ok {
		return
	}
	n.operation = ri.operationID
	if ri.data != nil {
		n.data = ri.data.TransferModelName()
	}
	if ri.ret != nil {
		n.ret = ri.ret.TransferModelName()
	}
}

// noteError records the fields of malformed DTO data.
func noteError(r *http.Request, err error) {
	n, ok := r.Context().Value(routeNoteKey{}).(*routeNote)
	if !ok {
		return
	}
	var ve *dto.ValidationError
	if !errors.As(err, &ve) {
		return
	}
	for _, fe := range ve.Errors {
		path := fe.Path
		if path == "" {
			path = "body"
		}
		n.invalid = append(n.invalid, path)
	}
}

// Logger returns middleware that logs one line per request. Requests served
// by a route carry its operation id and DTO transfer models; rejected DTO
// data lists the offending fields. Client errors are logged at Warn, server
// errors at Error.
func Logger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, note := withRouteNote(r.Context())
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("latency", time.Since(start)),
				slog.Int("size", rec.size),
			}
			if id := GetRequestID(r); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if note.operation != "" {
				attrs = append(attrs, slog.String("operation", note.operation))
			}
			var models []any
			if note.data != "" {
				models = append(models, slog.String("data", note.data))
			}
			if note.ret != "" {
				models = append(models, slog.String("return", note.ret))
			}
			if len(models) > 0 {
				attrs = append(attrs, slog.Group("dto", models...))
			}
			if len(note.invalid) > 0 {
				attrs = append(attrs, slog.Any("invalid", note.invalid))
			}

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "request", attrs...)
		})
	}
}
