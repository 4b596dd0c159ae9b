package dto

import (
	"cmp"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strconv"
	"sync"
)

// Registry is the set of known model types and the cache of nested transfer
// models built for them. A Registry is scoped to one application; Reset
// tears it down. It is safe for concurrent use.
type Registry struct {
	kinds  []ModelKind
	logger *slog.Logger

	mu     sync.RWMutex
	models map[reflect.Type]ModelKind
	nested map[nestedKey]*NestedFieldInfo
	names  map[string]nestedKey
}

type nestedKey struct {
	model  reflect.Type
	dir    ForType
	filter string
	depth  int
	config string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithModelKinds sets the model kinds consulted, in order, by Register.
// The default is a single StructKind.
func WithModelKinds(kinds ...ModelKind) RegistryOption {
	return func(r *Registry) {
		r.kinds = kinds
	}
}

// WithRegistryLogger sets the logger used for registry events.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		kinds:  []ModelKind{StructKind{}},
		logger: slog.New(slog.DiscardHandler),
		models: make(map[reflect.Type]ModelKind),
		nested: make(map[nestedKey]*NestedFieldInfo),
		names:  make(map[string]nestedKey),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds model types. Pointer types register their element type.
// A type no configured kind detects fails with ErrUnsupportedModel.
func (r *Registry) Register(types ...reflect.Type) error {
	for _, t := range types {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		kind := r.detect(t)
		if kind == nil {
			return fmt.Errorf("%w: %s", ErrUnsupportedModel, t)
		}

		r.mu.Lock()
		r.models[t] = kind
		r.mu.Unlock()

		r.logger.Debug("dto model registered", "model", t.String(), "kind", kind.Name())
	}
	return nil
}

// RegisterModel registers T with r.
func RegisterModel[T any](r *Registry) error {
	return r.Register(reflect.TypeFor[T]())
}

func (r *Registry) detect(t reflect.Type) ModelKind {
	for _, k := range r.kinds {
		if k.Detect(t) {
			return k
		}
	}
	return nil
}

// IsModel reports whether t is a registered model type.
func (r *Registry) IsModel(t reflect.Type) bool {
	_, ok := r.KindFor(t)
	return ok
}

// KindFor returns the kind t was registered with.
func (r *Registry) KindFor(t reflect.Type) (ModelKind, bool) {
	if t == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.models[t]
	return k, ok
}

// Models returns the registered model types ordered by name.
func (r *Registry) Models() []reflect.Type {
	r.mu.RLock()
	out := make([]reflect.Type, 0, len(r.models))
	for t := range r.models {
		out = append(out, t)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b reflect.Type) int { return cmp.Compare(a.String(), b.String()) })
	return out
}

// Reset forgets every registered model and cached transfer model.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.models)
	clear(r.nested)
	clear(r.names)
}

func (r *Registry) loadNested(key nestedKey) (*NestedFieldInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.nested[key]
	return info, ok
}

// storeNested caches info under key unless another caller got there first,
// in which case the cached value wins.
func (r *Registry) storeNested(key nestedKey, info *NestedFieldInfo) *NestedFieldInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.nested[key]; ok {
		return existing
	}
	r.nested[key] = info
	return info
}

// reserveName returns base, or base with a numeric suffix when base is
// already taken by a different key.
func (r *Registry) reserveName(base string, key nestedKey) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := base
	for i := 2; ; i++ {
		owner, taken := r.names[name]
		if !taken || owner == key {
			r.names[name] = key
			return name
		}
		name = base + strconv.Itoa(i)
	}
}
