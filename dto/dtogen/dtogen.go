// Package dtogen renders transfer models as Go source. Backends synthesize
// their transfer models at run time with reflect.StructOf; dtogen emits the
// same shapes as named struct types so they can be committed, documented and
// compiled against.
package dtogen

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"runtime"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"

	"github.com/bjaus/dtoapi/dto"
)

// Generator renders the transfer models of a set of backends.
type Generator struct {
	registry *dto.Registry
	pkg      string
	opts     []dto.BackendOption
}

// Option configures a Generator.
type Option func(*Generator)

// WithBackendOptions passes opts to every backend the generator builds.
func WithBackendOptions(opts ...dto.BackendOption) Option {
	return func(g *Generator) {
		g.opts = append(g.opts, opts...)
	}
}

// New returns a Generator emitting package pkg for models in reg.
func New(reg *dto.Registry, pkg string, opts ...Option) *Generator {
	g := &Generator{registry: reg, pkg: pkg}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backends builds one backend per params concurrently, in params order.
func (g *Generator) Backends(ctx context.Context, params []dto.BackendParams) ([]*dto.Backend, error) {
	backends := make([]*dto.Backend, len(params))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range params {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := dto.NewBackend(g.registry, p, g.opts...)
			if err != nil {
				return fmt.Errorf("backend %s for %s: %w", p.HandlerID, p.ModelType, err)
			}
			backends[i] = b
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return backends, nil
}

// Generate builds the backends for params and renders their transfer models,
// nested ones included, into a single file.
func (g *Generator) Generate(ctx context.Context, params []dto.BackendParams) (*jen.File, error) {
	backends, err := g.Backends(ctx, params)
	if err != nil {
		return nil, err
	}
	return g.File(backends), nil
}

// Render is Generate followed by writing the source to w.
func (g *Generator) Render(ctx context.Context, w io.Writer, params []dto.BackendParams) error {
	f, err := g.Generate(ctx, params)
	if err != nil {
		return err
	}
	return f.Render(w)
}

// File renders the transfer models of backends. Models shared between
// backends are emitted once. Distinct models with identical transfer types
// (reflect.StructOf returns one type for equal field lists) are emitted as
// aliases of the first, which every reference names.
func (g *Generator) File(backends []*dto.Backend) *jen.File {
	f := jen.NewFile(g.pkg)
	f.HeaderComment("Code generated by dtogen. DO NOT EDIT.")

	var models []model
	seen := make(map[string]bool)
	names := make(map[reflect.Type]string)
	add := func(m model) {
		if seen[m.name] {
			return
		}
		seen[m.name] = true
		if _, ok := names[m.typ]; !ok {
			names[m.typ] = m.name
		}
		models = append(models, m)
	}

	for _, b := range backends {
		add(model{
			name:   b.TransferModelName(),
			typ:    b.TransferModelType(),
			source: b.ModelType(),
			dir:    b.Direction(),
		})
		for _, info := range nested(b.FieldDefinitions()) {
			add(model{name: info.Name, typ: info.Model, source: info.ModelType, dir: b.Direction()})
		}
	}

	for _, m := range models {
		f.Commentf("%s is the %s transfer model of %s.", m.name, m.dir, m.source)
		if first := names[m.typ]; first != m.name {
			f.Type().Id(m.name).Op("=").Id(first)
			f.Line()
			continue
		}
		fields := make([]jen.Code, m.typ.NumField())
		for i := range m.typ.NumField() {
			sf := m.typ.Field(i)
			fields[i] = jen.Id(sf.Name).Add(typeCode(sf.Type, names)).Tag(tagMap(sf.Tag))
		}
		f.Type().Id(m.name).Struct(fields...)
		f.Line()
	}
	return f
}

type model struct {
	name   string
	typ    reflect.Type
	source reflect.Type
	dir    dto.ForType
}

// nested returns the nested models reachable from fields, depth first in
// field order.
func nested(fields []*dto.TransferFieldDefinition) []*dto.NestedFieldInfo {
	var out []*dto.NestedFieldInfo
	var walk func(tt dto.TransferType)
	walk = func(tt dto.TransferType) {
		switch t := tt.(type) {
		case *dto.SimpleType:
			if t.NestedFieldInfo != nil {
				out = append(out, t.NestedFieldInfo)
				for _, f := range t.NestedFieldInfo.FieldDefinitions {
					if !f.IsExcluded {
						walk(f.TransferType)
					}
				}
			}
		case *dto.CollectionType:
			walk(t.InnerType)
		case *dto.MappingType:
			walk(t.KeyType)
			walk(t.ValueType)
		case *dto.TupleType:
			for _, in := range t.InnerTypes {
				walk(in)
			}
		case *dto.UnionType:
			for _, in := range t.InnerTypes {
				walk(in)
			}
		}
	}
	for _, f := range fields {
		if !f.IsExcluded {
			walk(f.TransferType)
		}
	}
	return out
}

// typeCode renders t, naming transfer models by names.
func typeCode(t reflect.Type, names map[reflect.Type]string) jen.Code {
	if name, ok := names[t]; ok {
		return jen.Id(name)
	}
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return jen.Id(t.Name())
		}
		return jen.Qual(t.PkgPath(), t.Name())
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.Pointer:
		return jen.Op("*").Add(typeCode(t.Elem(), names))
	case reflect.Slice:
		return jen.Index().Add(typeCode(t.Elem(), names))
	case reflect.Array:
		return jen.Index(jen.Lit(t.Len())).Add(typeCode(t.Elem(), names))
	case reflect.Map:
		return jen.Map(typeCode(t.Key(), names)).Add(typeCode(t.Elem(), names))
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return jen.Any()
		}
		return jen.Interface()
	case reflect.Struct:
		fields := make([]jen.Code, t.NumField())
		for i := range t.NumField() {
			sf := t.Field(i)
			fields[i] = jen.Id(sf.Name).Add(typeCode(sf.Type, names)).Tag(tagMap(sf.Tag))
		}
		return jen.Struct(fields...)
	default:
		return jen.Id(t.String())
	}
}

func tagMap(tag reflect.StructTag) map[string]string {
	out := make(map[string]string)
	for _, key := range []string{"json", "yaml"} {
		if v, ok := tag.Lookup(key); ok {
			out[key] = v
		}
	}
	return out
}
