package dto

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// Kind is the shape of an annotation.
type Kind uint8

const (
	KindSimple Kind = iota
	KindCollection
	KindMapping
	KindTuple
	KindUnion
	KindNone
	KindEllipsis
)

func (k Kind) String() string {
	//exhaustive:ignore
	switch k {
	case KindSimple:
		return "simple"
	case KindCollection:
		return "collection"
	case KindMapping:
		return "mapping"
	case KindTuple:
		return "tuple"
	case KindUnion:
		return "union"
	case KindNone:
		return "none"
	case KindEllipsis:
		return "ellipsis"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// FieldDefinition is the normalized description of one annotation: its shape,
// its Go host type, and the ordered definitions of its inner annotations.
//
// Definitions built from an annotation alone (FromType, Of, Union, Optional,
// Tuple, None, Ellipsis) are memoized: equal annotations yield the same
// pointer. The With* methods return unmemoized copies that still compare
// Equal to the annotation they were derived from.
type FieldDefinition struct {
	kind     Kind
	typ      reflect.Type
	inner    []*FieldDefinition
	key      string
	optional bool
	variadic bool
	base     *FieldDefinition

	name           string
	def            any
	hasDefault     bool
	defaultFactory func() any
	metadata       map[string]any
}

var anyType = reflect.TypeFor[any]()

var (
	annotations     sync.Map // string -> *FieldDefinition
	typeAnnotations sync.Map // reflect.Type -> *FieldDefinition
	typeIDs         sync.Map // reflect.Type -> uint64
	nextTypeID      atomic.Uint64
)

// FromType returns the memoized definition of a Go type.
//
// Pointers become optional unions, slices collections ([]byte stays simple),
// arrays fixed tuples and maps mappings. Everything else is simple, as is any
// type that decodes itself from text, such as uuid.UUID.
func FromType(t reflect.Type) *FieldDefinition {
	if t == nil {
		return None()
	}
	if fd, ok := typeAnnotations.Load(t); ok {
		return fd.(*FieldDefinition)
	}
	fd, _ := typeAnnotations.LoadOrStore(t, fromType(t))
	return fd.(*FieldDefinition)
}

// Of returns the memoized definition of T.
func Of[T any]() *FieldDefinition {
	return FromType(reflect.TypeFor[T]())
}

func fromType(t reflect.Type) *FieldDefinition {
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return simple(t)
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.Pointer:
		return intern(&FieldDefinition{
			kind:     KindUnion,
			typ:      t,
			inner:    []*FieldDefinition{FromType(t.Elem()), None()},
			optional: true,
		})
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return simple(t)
		}
		return intern(&FieldDefinition{
			kind:  KindCollection,
			typ:   t,
			inner: []*FieldDefinition{FromType(t.Elem())},
		})
	case reflect.Array:
		elem := FromType(t.Elem())
		inner := make([]*FieldDefinition, t.Len())
		for i := range inner {
			inner[i] = elem
		}
		return intern(&FieldDefinition{kind: KindTuple, typ: t, inner: inner})
	case reflect.Map:
		return intern(&FieldDefinition{
			kind:  KindMapping,
			typ:   t,
			inner: []*FieldDefinition{FromType(t.Key()), FromType(t.Elem())},
		})
	default:
		return simple(t)
	}
}

func simple(t reflect.Type) *FieldDefinition {
	return intern(&FieldDefinition{kind: KindSimple, typ: t})
}

var (
	noneDef     = sync.OnceValue(func() *FieldDefinition { return intern(&FieldDefinition{kind: KindNone}) })
	ellipsisDef = sync.OnceValue(func() *FieldDefinition { return intern(&FieldDefinition{kind: KindEllipsis}) })
)

// None is the annotation of an absent value. It only makes sense as a union member.
func None() *FieldDefinition { return noneDef() }

// Ellipsis marks a variadic tuple when it is the trailing member: Tuple(Of[T](), Ellipsis()).
func Ellipsis() *FieldDefinition { return ellipsisDef() }

// Union returns the union of the given members. The host type is a pointer
// (or the member type itself when it is nilable) for a single member plus
// None, the shared member type when all members agree, and any otherwise.
func Union(members ...*FieldDefinition) *FieldDefinition {
	return UnionOf(nil, members...)
}

// UnionOf is Union with an explicit host type, typically an interface every
// member implements. A nil host picks the default described on Union.
func UnionOf(host reflect.Type, members ...*FieldDefinition) *FieldDefinition {
	inner := annotationsOf(members)

	var concrete []*FieldDefinition
	hasNone := false
	for _, m := range inner {
		if m.kind == KindNone {
			hasNone = true
			continue
		}
		concrete = append(concrete, m)
	}

	optional := hasNone && len(concrete) == 1
	if host == nil {
		switch {
		case len(concrete) == 0:
			host = anyType
		case sameHost(concrete) && hasNone:
			host = optionalHost(concrete[0].hostType())
		case sameHost(concrete):
			host = concrete[0].hostType()
		default:
			host = anyType
		}
	}

	return intern(&FieldDefinition{kind: KindUnion, typ: host, inner: inner, optional: optional})
}

// Optional is shorthand for Union(fd, None()).
func Optional(fd *FieldDefinition) *FieldDefinition {
	return Union(fd, None())
}

// Tuple returns a fixed tuple of the members, or a variadic homogeneous tuple
// when called as Tuple(elem, Ellipsis()). Fixed tuples are hosted by an array
// of the shared member type, or of any when members differ.
//
// Tuple panics if Ellipsis appears anywhere but the second of two members.
func Tuple(members ...*FieldDefinition) *FieldDefinition {
	inner := annotationsOf(members)
	for i, m := range inner {
		if m.kind == KindEllipsis && (i != 1 || len(inner) != 2) {
			panic("dto: Ellipsis must be the trailing member of a two-member tuple")
		}
	}

	if len(inner) == 2 && inner[1].kind == KindEllipsis {
		return intern(&FieldDefinition{
			kind:     KindTuple,
			typ:      reflect.SliceOf(inner[0].hostType()),
			inner:    inner,
			variadic: true,
		})
	}

	elem := anyType
	if len(inner) > 0 && sameHost(inner) {
		elem = inner[0].hostType()
	}
	return intern(&FieldDefinition{kind: KindTuple, typ: reflect.ArrayOf(len(inner), elem), inner: inner})
}

func collectionOf(elem *FieldDefinition) *FieldDefinition {
	elem = elem.Annotation()
	return intern(&FieldDefinition{
		kind:  KindCollection,
		typ:   reflect.SliceOf(elem.hostType()),
		inner: []*FieldDefinition{elem},
	})
}

func mappingOf(key, value *FieldDefinition) (*FieldDefinition, error) {
	key, value = key.Annotation(), value.Annotation()
	if !key.hostType().Comparable() {
		return nil, fmt.Errorf("dto: mapping key %s is not comparable", key)
	}
	return intern(&FieldDefinition{
		kind:  KindMapping,
		typ:   reflect.MapOf(key.hostType(), value.hostType()),
		inner: []*FieldDefinition{key, value},
	}), nil
}

// withInner rebuilds fd with new inner annotations, keeping its origin:
// a variadic tuple stays variadic, an optional stays optional and a union
// hosted on any stays on any. When nothing changed fd itself is returned.
func (fd *FieldDefinition) withInner(inner []*FieldDefinition) (*FieldDefinition, error) {
	if slices.EqualFunc(fd.inner, inner, func(a, b *FieldDefinition) bool { return a.Equal(b) }) {
		return fd, nil
	}

	//exhaustive:ignore
	switch fd.kind {
	case KindCollection:
		return collectionOf(inner[0]), nil
	case KindMapping:
		return mappingOf(inner[0], inner[1])
	case KindTuple:
		return Tuple(inner...), nil
	case KindUnion:
		if fd.typ == anyType {
			return UnionOf(anyType, inner...), nil
		}
		return Union(inner...), nil
	default:
		return nil, fmt.Errorf("dto: %s annotation %s has no inner types", fd.kind, fd)
	}
}

func intern(fd *FieldDefinition) *FieldDefinition {
	fd.key = annotationKey(fd)
	fd.base = fd
	actual, _ := annotations.LoadOrStore(fd.key, fd)
	return actual.(*FieldDefinition)
}

func annotationKey(fd *FieldDefinition) string {
	var b strings.Builder
	b.WriteString(fd.kind.String())
	b.WriteByte('<')
	b.WriteString(typeKey(fd.typ))
	b.WriteByte('>')
	if len(fd.inner) > 0 {
		b.WriteByte('[')
		for i, in := range fd.inner {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(in.key)
		}
		b.WriteByte(']')
	}
	return b.String()
}

// typeKey identifies a Go type. Distinct types that print the same (two
// local "Model" types, say) get distinct keys.
func typeKey(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	id, ok := typeIDs.Load(t)
	if !ok {
		id, _ = typeIDs.LoadOrStore(t, nextTypeID.Add(1))
	}
	return fmt.Sprintf("%s#%d", t, id)
}

func annotationsOf(defs []*FieldDefinition) []*FieldDefinition {
	out := make([]*FieldDefinition, len(defs))
	for i, d := range defs {
		out[i] = d.Annotation()
	}
	return out
}

func sameHost(defs []*FieldDefinition) bool {
	for _, d := range defs[1:] {
		if d.hostType() != defs[0].hostType() {
			return false
		}
	}
	return true
}

func optionalHost(t reflect.Type) reflect.Type {
	if nilable(t) {
		return t
	}
	return reflect.PointerTo(t)
}

func nilable(t reflect.Type) bool {
	//exhaustive:ignore
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	default:
		return false
	}
}

// Kind returns the annotation's shape.
func (fd *FieldDefinition) Kind() Kind { return fd.kind }

// Type returns the Go host type. None and Ellipsis have no host type.
func (fd *FieldDefinition) Type() reflect.Type { return fd.typ }

func (fd *FieldDefinition) hostType() reflect.Type {
	if fd.typ == nil {
		return anyType
	}
	return fd.typ
}

// Inner returns the inner annotations: the element of a collection, key and
// value of a mapping, the positions of a tuple, or the members of a union.
func (fd *FieldDefinition) Inner() []*FieldDefinition { return slices.Clone(fd.inner) }

// IsOptional reports whether fd is a union of exactly one type and None.
func (fd *FieldDefinition) IsOptional() bool { return fd.optional }

// IsVariadic reports whether fd is a Tuple(T, Ellipsis()) annotation.
func (fd *FieldDefinition) IsVariadic() bool { return fd.variadic }

// Annotation returns the memoized annotation fd was built from.
func (fd *FieldDefinition) Annotation() *FieldDefinition { return fd.base }

// Equal reports whether fd and other describe the same annotation.
func (fd *FieldDefinition) Equal(other *FieldDefinition) bool {
	if fd == nil || other == nil {
		return fd == other
	}
	return fd.base == other.base
}

// Name returns the field name the definition was given with WithName.
func (fd *FieldDefinition) Name() string { return fd.name }

// Default returns the default value and whether one was set.
func (fd *FieldDefinition) Default() (any, bool) { return fd.def, fd.hasDefault }

// DefaultFactory returns the default factory, if any.
func (fd *FieldDefinition) DefaultFactory() func() any { return fd.defaultFactory }

// HasDefault reports whether a default value or factory is set.
func (fd *FieldDefinition) HasDefault() bool { return fd.hasDefault || fd.defaultFactory != nil }

// Metadata returns the value stored under key by WithMetadata.
func (fd *FieldDefinition) Metadata(key string) (any, bool) {
	v, ok := fd.metadata[key]
	return v, ok
}

func (fd *FieldDefinition) clone() *FieldDefinition {
	c := *fd
	return &c
}

// WithName returns a copy of fd carrying a field name.
func (fd *FieldDefinition) WithName(name string) *FieldDefinition {
	c := fd.clone()
	c.name = name
	return c
}

// WithDefault returns a copy of fd carrying a default value.
func (fd *FieldDefinition) WithDefault(v any) *FieldDefinition {
	c := fd.clone()
	c.def = v
	c.hasDefault = true
	return c
}

// WithDefaultFactory returns a copy of fd whose default is produced by f.
func (fd *FieldDefinition) WithDefaultFactory(f func() any) *FieldDefinition {
	c := fd.clone()
	c.defaultFactory = f
	return c
}

// WithMetadata returns a copy of fd with key set to v in its metadata.
func (fd *FieldDefinition) WithMetadata(key string, v any) *FieldDefinition {
	c := fd.clone()
	c.metadata = maps.Clone(fd.metadata)
	if c.metadata == nil {
		c.metadata = make(map[string]any, 1)
	}
	c.metadata[key] = v
	return c
}

// defaultValue produces the default for fd, preferring the factory.
func (fd *FieldDefinition) defaultValue() (any, bool) {
	if fd.defaultFactory != nil {
		return fd.defaultFactory(), true
	}
	return fd.def, fd.hasDefault
}

func (fd *FieldDefinition) String() string {
	//exhaustive:ignore
	switch fd.kind {
	case KindNone:
		return "none"
	case KindEllipsis:
		return "..."
	case KindUnion, KindTuple:
		parts := make([]string, len(fd.inner))
		for i, in := range fd.inner {
			parts[i] = in.String()
		}
		return fd.kind.String() + "[" + strings.Join(parts, ", ") + "]"
	default:
		return fd.typ.String()
	}
}
