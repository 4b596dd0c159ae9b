package dtoapi

import (
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"unicode"

	"github.com/bjaus/dtoapi/dto"
	"github.com/bjaus/dtoapi/dto/constraint"
)

// Registrar is the interface accepted by the registration functions.
// Both *Router and *Group implement it.
type Registrar interface {
	getRouter() *Router
	scope() scope
}

func (r *Router) getRouter() *Router { return r }
func (r *Router) scope() scope       { return scope{} }

// register is the internal generic registration function. It builds the
// route's DTO backends and panics when one cannot be built.
func register[Req, Resp any](reg Registrar, method, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	sc := reg.scope()
	ri := routeInfo{
		method:   method,
		pattern:  sc.prefix + pattern,
		tags:     slices.Clone(sc.tags),
		errors:   slices.Clone(sc.errors),
		reqType:  reflect.TypeFor[Req](),
		respType: reflect.TypeFor[Resp](),
	}

	for _, opt := range opts {
		opt(&ri)
	}

	// Determine default status: Void response → 204, otherwise 200.
	if ri.status == 0 {
		if ri.respType == reflect.TypeFor[Void]() {
			ri.status = http.StatusNoContent
		} else {
			ri.status = http.StatusOK
		}
	}
	if ri.operationID == "" {
		ri.operationID = generateOperationID(method, ri.pattern)
	}

	r := reg.getRouter()
	if err := r.buildBackends(&ri, sc.dto); err != nil {
		panic(fmt.Sprintf("dtoapi: %s %s: %v", method, ri.pattern, err))
	}

	ri.handler = buildHandler(h, &ri, r)
	for i := len(sc.middleware) - 1; i >= 0; i-- {
		ri.handler = sc.middleware[i](ri.handler)
	}

	r.addRoute(ri)
}

// buildBackends builds the data and return backends a route asked for.
// groupDefaults are the enclosing groups' DTO defaults, innermost first.
func (r *Router) buildBackends(ri *routeInfo, groupDefaults []dto.Config) error {
	if ri.dataDTO != nil {
		body := bodyType(ri.reqType)
		if body == nil {
			return fmt.Errorf("%w: %s has no body", ErrDTOConfig, ri.reqType)
		}
		b, err := r.newBackend(body, ri.dataDTO, groupDefaults, true, ri.operationID)
		if err != nil {
			return fmt.Errorf("%w: data: %w", ErrDTOConfig, err)
		}
		ri.data = b
	}

	if ri.returnDTO != nil {
		if ri.respType == reflect.TypeFor[Void]() {
			return fmt.Errorf("%w: void responses have no body", ErrDTOConfig)
		}
		b, err := r.newBackend(ri.respType, ri.returnDTO, groupDefaults, false, ri.operationID)
		if err != nil {
			return fmt.Errorf("%w: return: %w", ErrDTOConfig, err)
		}
		ri.ret = b
	}
	return nil
}

func (r *Router) newBackend(payload reflect.Type, o *dtoOptions, groupDefaults []dto.Config, data bool, handlerID string) (*dto.Backend, error) {
	cfg := o.cfg
	for _, defaults := range append(slices.Clone(groupDefaults), r.dtoDefaults) {
		var err error
		if cfg, err = cfg.WithDefaults(defaults); err != nil {
			return nil, err
		}
	}

	model := o.model
	if model == nil {
		inner := payload
		if o.wrapper != "" {
			if st, ok := structType(payload); ok {
				if sf, ok := st.FieldByName(o.wrapper); ok {
					inner = sf.Type
				}
			}
		}
		model = modelOf(inner)
	}

	return dto.NewBackend(r.dtoRegistry, dto.BackendParams{
		IsDataField:          data,
		FieldDefinition:      dto.FromType(payload),
		ModelType:            model,
		WrapperAttributeName: o.wrapper,
		HandlerID:            handlerID,
		Config:               cfg,
	}, dto.WithLogger(r.logger))
}

// buildHandler wraps a typed Handler into an http.Handler.
func buildHandler[Req, Resp any](h Handler[Req, Resp], ri *routeInfo, rt *Router) http.Handler {
	dec := requestDecoder{cat: classifyRequest(ri.reqType), data: ri.data, codecs: rt.codecs}
	enc := responseEncoder{status: ri.status, ret: ri.ret, codecs: rt.codecs}

	// A body-only DTO model has already validated itself when it was built.
	selfValidated := dec.cat == catBodyOnly && ri.data != nil

	writeErr := func(w http.ResponseWriter, r *http.Request, err error) {
		noteError(r, err)
		if rt.errorHandler != nil {
			rt.errorHandler(w, r, err)
			return
		}
		writeErrorResponse(w, r, err, rt.codecs)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		noteRoute(r, ri)
		req, err := decode[Req](dec, r)
		if err != nil {
			writeErr(w, r, err)
			return
		}

		if dec.cat != catVoid && !selfValidated {
			var skip []string
			if ri.data != nil {
				skip = append(skip, "Body")
			}
			if err := constraint.CheckExcept(req, skip...); err != nil {
				writeErr(w, r, err)
				return
			}
		}

		if sv, ok := any(req).(SelfValidator); ok && !selfValidated {
			if err := sv.Validate(); err != nil {
				writeErr(w, r, err)
				return
			}
		}

		if rt.validator != nil {
			if err := rt.validator.Validate(req); err != nil {
				writeErr(w, r, err)
				return
			}
		}

		resp, err := h(r.Context(), req)
		if err != nil {
			writeErr(w, r, err)
			return
		}

		// Void response.
		if _, ok := any(resp).(*Void); ok || resp == nil {
			w.WriteHeader(ri.status)
			return
		}

		if err := enc.encode(w, r, resp); err != nil {
			rt.logger.Error("response encoding failed",
				"method", r.Method,
				"path", r.URL.Path,
				"error", err,
			)
			writeErr(w, r, Error(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)))
		}
	})
}

// generateOperationID derives an operationId such as "get_users_id" from a
// method and pattern.
func generateOperationID(method, pattern string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	sep := true
	for _, r := range pattern {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep {
				b.WriteByte('_')
				sep = false
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		sep = true
	}
	return b.String()
}

// Get registers a GET handler.
func Get[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodGet, pattern, h, opts...)
}

// Post registers a POST handler.
func Post[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPost, pattern, h, opts...)
}

// Put registers a PUT handler.
func Put[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPut, pattern, h, opts...)
}

// Patch registers a PATCH handler.
func Patch[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPatch, pattern, h, opts...)
}

// Delete registers a DELETE handler.
func Delete[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodDelete, pattern, h, opts...)
}
