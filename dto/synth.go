package dto

import (
	"fmt"
	"reflect"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// CreateTransferModelTypeAnnotation resolves the annotation a transfer model
// uses for tt: nested models are replaced by their transfer models and every
// other shape is rebuilt around its resolved inner annotations. A tree
// without nested models resolves to its own memoized annotation.
func CreateTransferModelTypeAnnotation(tt TransferType) (*FieldDefinition, error) {
	switch t := tt.(type) {
	case *SimpleType:
		if t.NestedFieldInfo != nil {
			return FromType(t.NestedFieldInfo.Model), nil
		}
		return t.Field.Annotation(), nil

	case *CollectionType:
		inner, err := CreateTransferModelTypeAnnotation(t.InnerType)
		if err != nil {
			return nil, err
		}
		if t.Field.variadic {
			return t.Field.Annotation().withInner([]*FieldDefinition{inner, Ellipsis()})
		}
		return t.Field.Annotation().withInner([]*FieldDefinition{inner})

	case *MappingType:
		key, err := CreateTransferModelTypeAnnotation(t.KeyType)
		if err != nil {
			return nil, err
		}
		value, err := CreateTransferModelTypeAnnotation(t.ValueType)
		if err != nil {
			return nil, err
		}
		return t.Field.Annotation().withInner([]*FieldDefinition{key, value})

	case *TupleType:
		inner, err := resolveAll(t.InnerTypes)
		if err != nil {
			return nil, err
		}
		return t.Field.Annotation().withInner(inner)

	case *UnionType:
		inner, err := resolveAll(t.InnerTypes)
		if err != nil {
			return nil, err
		}
		return t.Field.Annotation().withInner(inner)

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedTransferType, tt)
	}
}

func resolveAll(types []TransferType) ([]*FieldDefinition, error) {
	out := make([]*FieldDefinition, len(types))
	for i, t := range types {
		fd, err := CreateTransferModelTypeAnnotation(t)
		if err != nil {
			return nil, err
		}
		out[i] = fd
	}
	return out, nil
}

// transferAnnotation is CreateTransferModelTypeAnnotation cached per backend.
func (b *Backend) transferAnnotation(tt TransferType) (*FieldDefinition, error) {
	if fd, ok := b.annotations.Load(tt); ok {
		return fd.(*FieldDefinition), nil
	}
	fd, err := CreateTransferModelTypeAnnotation(tt)
	if err != nil {
		return nil, err
	}
	b.annotations.Store(tt, fd)
	return fd, nil
}

// CreateTransferModelType synthesizes the transfer model for fields. Each
// field that is not excluded gets an exported Go field, in order, tagged with
// its serialization name. Inbound fields that may be absent are pointers so
// absence survives decoding.
func (b *Backend) CreateTransferModelType(name string, fields []*TransferFieldDefinition) (t reflect.Type, err error) {
	used := make(map[string]bool, len(fields))
	sfs := make([]reflect.StructField, 0, len(fields))
	for _, f := range fields {
		if f.IsExcluded {
			continue
		}
		typ, err := b.slotType(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.UniqueName(), err)
		}
		sfs = append(sfs, reflect.StructField{
			Name: goFieldName(f.SerializationName, used),
			Type: typ,
			Tag:  reflect.StructTag("json:" + strconv.Quote(f.SerializationName) + " yaml:" + strconv.Quote(f.SerializationName)),
		})
	}

	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("synthesize transfer model %s: %v", name, r)
		}
	}()
	t = reflect.StructOf(sfs)

	b.logger.Debug("dto transfer model synthesized",
		"name", name, "direction", b.dir.String(), "fields", len(sfs))
	return t, nil
}

// slotType is the transfer model field type for f.
func (b *Backend) slotType(f *TransferFieldDefinition) (reflect.Type, error) {
	fd, err := b.transferAnnotation(f.TransferType)
	if err != nil {
		return nil, err
	}
	typ := fd.hostType()
	if b.mayBeAbsent(f) && !nilable(typ) {
		typ = reflect.PointerTo(typ)
	}
	return typ, nil
}

// mayBeAbsent reports whether an inbound field may be missing from data.
func (b *Backend) mayBeAbsent(f *TransferFieldDefinition) bool {
	return b.dir == ForData && (f.IsPartial || f.HasDefault())
}

// required reports whether an inbound field must be present in data.
func required(f *TransferFieldDefinition) bool {
	return !f.IsPartial && !f.HasDefault() && !f.IsOptional()
}

// goFieldName derives a unique exported Go field name from a serialization name.
func goFieldName(name string, used map[string]bool) string {
	base := identifier(name)
	if r, _ := utf8.DecodeRuneInString(base); !unicode.IsUpper(r) {
		base = "F" + base
	}
	out := base
	for i := 2; used[out]; i++ {
		out = base + strconv.Itoa(i)
	}
	used[out] = true
	return out
}
