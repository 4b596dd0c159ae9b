package dtoapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bjaus/dtoapi/dto"
	"github.com/bjaus/dtoapi/dto/constraint"
	"github.com/bjaus/dtoapi/dto/pgxrow"
)

// Router is the central type that holds routes, middleware, and configuration.
// It implements http.Handler.
type Router struct {
	mux        *http.ServeMux
	middleware []Middleware
	routes     []routeInfo

	title    string
	version  string
	tagDescs map[string]string

	validator    Validator
	errorHandler ErrorHandler

	encoders []Encoder
	decoders []Decoder
	codecs   *codecRegistry

	dtoRegistry *dto.Registry
	dtoDefaults dto.Config
	logger      *slog.Logger

	mu sync.Mutex
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithTitle sets the API title (used in OpenAPI spec).
func WithTitle(title string) RouterOption {
	return func(r *Router) {
		r.title = title
	}
}

// WithVersion sets the API version (used in OpenAPI spec).
func WithVersion(version string) RouterOption {
	return func(r *Router) {
		r.version = version
	}
}

// WithTagDescriptions sets tag descriptions for the OpenAPI spec.
func WithTagDescriptions(descs map[string]string) RouterOption {
	return func(r *Router) {
		r.tagDescs = descs
	}
}

// WithValidator sets a global request validator.
func WithValidator(v Validator) RouterOption {
	return func(r *Router) {
		r.validator = v
	}
}

// ErrorHandler is a custom error response writer.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// WithErrorHandler sets a custom error handler for the router.
func WithErrorHandler(h ErrorHandler) RouterOption {
	return func(r *Router) {
		r.errorHandler = h
	}
}

// WithEncoder registers an additional response encoder.
func WithEncoder(enc Encoder) RouterOption {
	return func(r *Router) {
		r.encoders = append(r.encoders, enc)
	}
}

// WithDecoder registers an additional request body decoder.
func WithDecoder(dec Decoder) RouterOption {
	return func(r *Router) {
		r.decoders = append(r.decoders, dec)
	}
}

// WithDTORegistry sets the model registry DTO backends are built against.
// Routers get a registry of their own by default, detecting constraint
// models, pgx row models and plain structs in that order.
func WithDTORegistry(reg *dto.Registry) RouterOption {
	return func(r *Router) {
		r.dtoRegistry = reg
	}
}

// WithDTODefaults sets the configuration every route DTO starts from.
// Values set on a route win.
func WithDTODefaults(cfg dto.Config) RouterOption {
	return func(r *Router) {
		r.dtoDefaults = cfg
	}
}

// WithLogger sets the logger for DTO synthesis, route registration and
// response encoding failures.
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = l
	}
}

// New creates a new Router with the given options.
func New(opts ...RouterOption) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dtoRegistry == nil {
		r.dtoRegistry = dto.NewRegistry(
			dto.WithRegistryLogger(r.logger),
			dto.WithModelKinds(constraint.Kind{}, pgxrow.Kind{}, dto.StructKind{}),
		)
	}
	r.codecs = newCodecRegistry(r.encoders, r.decoders)
	return r
}

// DTORegistry returns the registry the router builds DTO backends against.
func (r *Router) DTORegistry() *dto.Registry { return r.dtoRegistry }

// Use adds middleware to the router. Middleware is applied in the order added.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.mux)
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	handler.ServeHTTP(w, req)
}

// ListenAndServe starts an HTTP server on the given address.
// It blocks until the context is cancelled, then shuts down gracefully.
func (r *Router) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// addRoute registers a routeInfo with the router's mux and stores it
// for OpenAPI generation. Global middleware is applied in ServeHTTP;
// only group middleware is baked into ri.handler.
func (r *Router) addRoute(ri routeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mux.Handle(ri.method+" "+ri.pattern, ri.handler)
	r.routes = append(r.routes, ri)

	r.logger.Debug("route registered",
		"method", ri.method,
		"pattern", ri.pattern,
		"data_dto", ri.data != nil,
		"return_dto", ri.ret != nil,
	)
}
