package dto

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// StructKind is the model kind for plain Go structs.
//
// Field names come from the NameTag struct tag (json by default), falling
// back to the Go field name; "-" skips a field. Embedded structs without a
// name tag have their fields promoted. Two more tags are read:
//
//	dto:"read-only"          mark: private, read-only or write-only
//	dto:"write-only,data"    mark plus direction: data or return
//	default:"42"             default value, JSON-decoded into the field type
//	default:"fast"           string kinds take the tag text verbatim
//
// A model implementing Annotator can override any field's annotation.
type StructKind struct {
	// NameTag is the struct tag that names fields. Empty means "json".
	NameTag string
}

var (
	annotatorType = reflect.TypeFor[Annotator]()
	structFields  sync.Map // structFieldsKey -> []*DTOFieldDefinition
)

type structFieldsKey struct {
	tag string
	t   reflect.Type
}

func (k StructKind) tag() string {
	if k.NameTag == "" {
		return "json"
	}
	return k.NameTag
}

func (k StructKind) Name() string { return "struct" }

// Detect reports whether t is a struct with at least one exported field.
func (k StructKind) Detect(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := range t.NumField() {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

func (k StructKind) FieldDefinitions(t reflect.Type) ([]*DTOFieldDefinition, error) {
	key := structFieldsKey{tag: k.tag(), t: t}
	if cached, ok := structFields.Load(key); ok {
		return cached.([]*DTOFieldDefinition), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrUnsupportedModel, t)
	}

	var overrides map[string]*FieldDefinition
	if reflect.PointerTo(t).Implements(annotatorType) {
		overrides = reflect.New(t).Interface().(Annotator).DTOAnnotations()
	}

	defs, err := k.collect(t, t, nil, overrides)
	if err != nil {
		return nil, err
	}
	actual, _ := structFields.LoadOrStore(key, defs)
	return actual.([]*DTOFieldDefinition), nil
}

// collect walks the fields of t, which is model itself or a struct embedded in it.
func (k StructKind) collect(model, t reflect.Type, index []int, overrides map[string]*FieldDefinition) ([]*DTOFieldDefinition, error) {
	shadowed := make(map[string]bool)
	for i := range t.NumField() {
		sf := t.Field(i)
		if name, ok := k.fieldName(sf); ok && !k.promotes(sf) {
			shadowed[name] = true
		}
	}

	var defs []*DTOFieldDefinition
	for i := range t.NumField() {
		sf := t.Field(i)
		idx := append(append([]int(nil), index...), i)

		if k.promotes(sf) {
			inner, err := k.collect(model, sf.Type, idx, overrides)
			if err != nil {
				return nil, err
			}
			for _, d := range inner {
				if !shadowed[d.Name()] {
					defs = append(defs, d)
				}
			}
			continue
		}

		name, ok := k.fieldName(sf)
		if !ok {
			continue
		}

		def, err := k.fieldDefinition(model, sf, name, overrides[name])
		if err != nil {
			return nil, err
		}
		def.Index = idx
		defs = append(defs, def)
	}
	return defs, nil
}

func (k StructKind) promotes(sf reflect.StructField) bool {
	return sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.Tag.Get(k.tag()) == ""
}

func (k StructKind) fieldName(sf reflect.StructField) (string, bool) {
	if !sf.IsExported() {
		return "", false
	}
	name, _, _ := strings.Cut(sf.Tag.Get(k.tag()), ",")
	switch name {
	case "-":
		return "", false
	case "":
		return sf.Name, true
	default:
		return name, true
	}
}

func (k StructKind) fieldDefinition(model reflect.Type, sf reflect.StructField, name string, override *FieldDefinition) (*DTOFieldDefinition, error) {
	fd := FromType(sf.Type)
	if override != nil {
		var err error
		if fd, err = fitAnnotation(override, sf.Type); err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", ErrUnsupportedModel, model, sf.Name, err)
		}
	}

	if tag, ok := sf.Tag.Lookup("default"); ok && !fd.HasDefault() {
		v, err := parseDefault(tag, sf.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s default: %w", ErrUnsupportedModel, model, sf.Name, err)
		}
		fd = fd.WithDefault(v)
	}

	field, dir, err := parseDTOTag(sf.Tag.Get("dto"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", ErrUnsupportedModel, model, sf.Name, err)
	}

	return &DTOFieldDefinition{
		FieldDefinition: fd.WithName(name),
		ModelName:       model.String(),
		DTOField:        field,
		DTOFor:          dir,
	}, nil
}

// fitAnnotation checks that an override annotation can live in a field of
// type t. Unions are rehosted on t so interface-typed fields keep their type.
func fitAnnotation(fd *FieldDefinition, t reflect.Type) (*FieldDefinition, error) {
	if fd.kind == KindUnion && fd.typ != t {
		base := UnionOf(t, fd.inner...)
		c := fd.clone()
		c.typ, c.key, c.base, c.optional = base.typ, base.key, base, base.optional
		return c, nil
	}
	if fd.typ == nil || !fd.typ.AssignableTo(t) {
		return nil, fmt.Errorf("annotation %s does not fit %s", fd, t)
	}
	return fd, nil
}

func parseDTOTag(tag string) (DTOField, ForType, error) {
	var field DTOField
	var dir ForType
	if tag == "" {
		return field, dir, nil
	}
	for opt := range strings.SplitSeq(tag, ",") {
		switch opt = strings.TrimSpace(opt); Mark(opt) {
		case MarkNone:
			continue
		case MarkPrivate, MarkReadOnly, MarkWriteOnly:
			field.Mark = Mark(opt)
			continue
		}
		switch ForType(opt) {
		case ForData, ForReturn:
			dir = ForType(opt)
		default:
			return field, dir, fmt.Errorf("unknown dto tag option %q", opt)
		}
	}
	return field, dir, nil
}

func parseDefault(tag string, t reflect.Type) (any, error) {
	v := reflect.New(t)
	if t.Kind() == reflect.String {
		v.Elem().SetString(tag)
		return v.Elem().Interface(), nil
	}
	if err := json.Unmarshal([]byte(tag), v.Interface()); err != nil {
		return nil, err
	}
	return v.Elem().Interface(), nil
}

func (k StructKind) Get(model reflect.Value, f *DTOFieldDefinition) reflect.Value {
	for model.Kind() == reflect.Pointer || model.Kind() == reflect.Interface {
		model = model.Elem()
	}
	return model.FieldByIndex(f.Index)
}

func (k StructKind) Build(t reflect.Type, values map[string]reflect.Value) (reflect.Value, error) {
	defs, err := k.FieldDefinitions(t)
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.New(t).Elem()
	for _, def := range defs {
		v, ok := values[def.Name()]
		if !ok {
			d, has := def.defaultValue()
			if !has {
				continue
			}
			v = reflect.ValueOf(d)
		}

		dst := out.FieldByIndex(def.Index)
		fitted, ok := fit(v, dst.Type())
		if !ok {
			return reflect.Value{}, fieldErrorf(def.Name(), valueOf(v), "cannot use %s as %s", typeName(v), dst.Type())
		}
		dst.Set(fitted)
	}
	return out, nil
}
