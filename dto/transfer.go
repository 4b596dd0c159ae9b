package dto

import (
	"fmt"
	"reflect"
	"strings"
)

// EncodeData converts data, a value of the payload annotation, into transfer
// data ready for a codec. Excluded fields never appear in the result.
func (b *Backend) EncodeData(data any) (any, error) {
	if b.wrapper != nil {
		return b.encodeWrapper(data)
	}
	out, err := b.transferTypeData(reflect.ValueOf(data), b.payload, ForReturn)
	if err != nil {
		return nil, err
	}
	return valueOf(out), nil
}

// TransferToModel converts a value of the payload's transfer annotation, as
// produced by decoding into TransferModelType, into model data.
func (b *Backend) TransferToModel(transfer any) (any, error) {
	out, err := b.transferTypeData(reflect.ValueOf(transfer), b.payload, ForData)
	if err != nil {
		return nil, err
	}
	return valueOf(out), nil
}

// TransferNestedUnionTypeData converts source through the one nested member
// of tt whose type it has exactly: the model type for ForReturn, the
// transfer model type for ForData. Values of a flat member pass through.
func (b *Backend) TransferNestedUnionTypeData(tt *UnionType, forType ForType, source any) (any, error) {
	out, err := b.transferNestedUnion(reflect.ValueOf(source), tt, forType)
	if err != nil {
		return nil, err
	}
	return valueOf(out), nil
}

// transferTypeData converts v through tt: models to transfer models for
// ForReturn, transfer models to models for ForData. Branches without nested
// models are returned as they are.
func (b *Backend) transferTypeData(v reflect.Value, tt TransferType, dir ForType) (reflect.Value, error) {
	if !tt.HasNested() {
		return v, nil
	}

	switch t := tt.(type) {
	case *SimpleType:
		src := deref(v)
		if !src.IsValid() {
			return reflect.Value{}, nil
		}
		if dir == ForReturn {
			return b.transferInstanceData(src, t.NestedFieldInfo)
		}
		return b.modelInstanceData(src, t.NestedFieldInfo)

	case *CollectionType:
		return b.transferCollection(v, t, dir)

	case *TupleType:
		return b.transferTuple(v, t, dir)

	case *MappingType:
		return b.transferMapping(v, t, dir)

	case *UnionType:
		return b.transferNestedUnion(v, t, dir)

	default:
		return reflect.Value{}, fmt.Errorf("%w: %T", ErrUnexpectedTransferType, tt)
	}
}

// targetType is the host type tt converts into for dir.
func (b *Backend) targetType(tt TransferType, dir ForType) (reflect.Type, error) {
	if dir == ForData {
		return tt.Definition().hostType(), nil
	}
	fd, err := b.transferAnnotation(tt)
	if err != nil {
		return nil, err
	}
	return fd.hostType(), nil
}

func (b *Backend) transferCollection(v reflect.Value, t *CollectionType, dir ForType) (reflect.Value, error) {
	target, err := b.targetType(t, dir)
	if err != nil {
		return reflect.Value{}, err
	}
	src := deref(v)
	if !src.IsValid() || (src.Kind() == reflect.Slice && src.IsNil()) {
		return reflect.Zero(target), nil
	}
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return reflect.Value{}, fmt.Errorf("expected a collection for %s, got %s", t.Field, src.Type())
	}

	out := reflect.MakeSlice(target, src.Len(), src.Len())
	var c collector
	for i := range src.Len() {
		elem, err := b.transferTypeData(src.Index(i), t.InnerType, dir)
		if err == nil {
			err = set(out.Index(i), elem)
		}
		if err != nil {
			if err := c.add(indexPath(i), err); err != nil {
				return reflect.Value{}, err
			}
		}
	}
	return out, c.err()
}

func (b *Backend) transferTuple(v reflect.Value, t *TupleType, dir ForType) (reflect.Value, error) {
	target, err := b.targetType(t, dir)
	if err != nil {
		return reflect.Value{}, err
	}
	src := deref(v)
	if !src.IsValid() {
		return reflect.Zero(target), nil
	}
	if (src.Kind() != reflect.Array && src.Kind() != reflect.Slice) || src.Len() != len(t.InnerTypes) {
		return reflect.Value{}, fmt.Errorf("expected %d tuple items for %s, got %s", len(t.InnerTypes), t.Field, src.Type())
	}

	out := reflect.New(target).Elem()
	var c collector
	for i, inner := range t.InnerTypes {
		elem, err := b.transferTypeData(src.Index(i), inner, dir)
		if err == nil {
			err = set(out.Index(i), elem)
		}
		if err != nil {
			if err := c.add(indexPath(i), err); err != nil {
				return reflect.Value{}, err
			}
		}
	}
	return out, c.err()
}

func (b *Backend) transferMapping(v reflect.Value, t *MappingType, dir ForType) (reflect.Value, error) {
	target, err := b.targetType(t, dir)
	if err != nil {
		return reflect.Value{}, err
	}
	src := deref(v)
	if !src.IsValid() || (src.Kind() == reflect.Map && src.IsNil()) {
		return reflect.Zero(target), nil
	}
	if src.Kind() != reflect.Map {
		return reflect.Value{}, fmt.Errorf("expected a mapping for %s, got %s", t.Field, src.Type())
	}

	out := reflect.MakeMapWithSize(target, src.Len())
	var c collector
	iter := src.MapRange()
	for iter.Next() {
		prefix := fmt.Sprintf("[%v]", valueOf(iter.Key()))
		key, err := b.transferTypeData(iter.Key(), t.KeyType, dir)
		if err != nil {
			if err := c.add(prefix, err); err != nil {
				return reflect.Value{}, err
			}
			continue
		}
		value, err := b.transferTypeData(iter.Value(), t.ValueType, dir)
		if err != nil {
			if err := c.add(prefix, err); err != nil {
				return reflect.Value{}, err
			}
			continue
		}

		k, ok := fit(key, target.Key())
		if !ok {
			return reflect.Value{}, mismatch(key, target.Key())
		}
		e, ok := fit(value, target.Elem())
		if !ok {
			return reflect.Value{}, mismatch(value, target.Elem())
		}
		out.SetMapIndex(k, e)
	}
	return out, c.err()
}

func (b *Backend) transferNestedUnion(v reflect.Value, t *UnionType, dir ForType) (reflect.Value, error) {
	members := make([]*SimpleType, len(t.InnerTypes))
	for i, inner := range t.InnerTypes {
		s, ok := inner.(*SimpleType)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%w: %s in %s", ErrUnsupportedUnion, inner.Definition(), t.Field)
		}
		members[i] = s
	}

	target, err := b.targetType(t, dir)
	if err != nil {
		return reflect.Value{}, err
	}
	src := deref(v)
	if !src.IsValid() {
		return reflect.Zero(target), nil
	}

	var matches []*SimpleType
	for _, m := range members {
		if info := m.NestedFieldInfo; info != nil {
			want := info.ModelType
			if dir == ForData {
				want = info.Model
			}
			if src.Type() == want {
				matches = append(matches, m)
			}
		}
	}

	switch len(matches) {
	case 1:
		out, err := b.transferTypeData(src, matches[0], dir)
		if err != nil {
			return reflect.Value{}, err
		}
		fitted, ok := fit(out, target)
		if !ok {
			return reflect.Value{}, mismatch(out, target)
		}
		return fitted, nil

	case 0:
		for _, m := range members {
			if m.NestedFieldInfo != nil || !holds(m.Field.Type(), src.Type()) {
				continue
			}
			if fitted, ok := fit(src, target); ok {
				return fitted, nil
			}
		}
		return reflect.Value{}, fmt.Errorf("%w: %s for %s", ErrUnionNoMatch, src.Type(), t.Field)

	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Field.String()
		}
		return reflect.Value{}, fmt.Errorf("%w: %s matches %s", ErrAmbiguousUnion, src.Type(), strings.Join(names, " and "))
	}
}

// holds reports whether a union member of type member holds values of type t.
func holds(member, t reflect.Type) bool {
	if member == nil {
		return false
	}
	if member == t {
		return true
	}
	return member.Kind() == reflect.Interface && t.Implements(member)
}

// transferInstanceData builds the transfer model instance of the model src.
func (b *Backend) transferInstanceData(src reflect.Value, info *NestedFieldInfo) (reflect.Value, error) {
	if src.Type() != info.ModelType {
		return reflect.Value{}, fmt.Errorf("expected %s, got %s", info.ModelType, src.Type())
	}

	out := reflect.New(info.Model).Elem()
	for _, f := range info.FieldDefinitions {
		if f.IsExcluded {
			continue
		}
		value, err := b.transferTypeData(info.Kind.Get(src, f.DTOFieldDefinition), f.TransferType, ForReturn)
		if err == nil {
			err = set(out.Field(f.slot), value)
		}
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%s: %w", f.UniqueName(), err)
		}
	}
	return out, nil
}

// modelInstanceData rebuilds the model from the transfer model instance src.
func (b *Backend) modelInstanceData(src reflect.Value, info *NestedFieldInfo) (reflect.Value, error) {
	if src.Type() != info.Model {
		return reflect.Value{}, fmt.Errorf("expected transfer model %s, got %s", info.Name, src.Type())
	}

	values := make(map[string]reflect.Value, len(info.FieldDefinitions))
	wire := make(map[string]string, len(info.FieldDefinitions))
	var c collector
	for _, f := range info.FieldDefinitions {
		if f.IsExcluded {
			continue
		}
		wire[f.Name()] = f.SerializationName

		slot := src.Field(f.slot)
		if b.mayBeAbsent(f) {
			if nilable(slot.Type()) && slot.IsNil() {
				continue
			}
			if fd, err := b.transferAnnotation(f.TransferType); err == nil && fd.hostType() != slot.Type() {
				slot = slot.Elem()
			}
		}

		value, err := b.transferTypeData(slot, f.TransferType, ForData)
		if err != nil {
			if err := c.add(f.SerializationName, err); err != nil {
				return reflect.Value{}, err
			}
			continue
		}
		values[f.Name()] = value
	}
	if err := c.err(); err != nil {
		return reflect.Value{}, err
	}

	model, err := info.Kind.Build(info.ModelType, values)
	if err != nil {
		return reflect.Value{}, wirePaths(err, wire)
	}
	return model, nil
}

// wirePaths rewrites the leading model field name of validation error paths
// to the field's serialization name.
func wirePaths(err error, wire map[string]string) error {
	if !isValidation(err) {
		return err
	}
	ve := &ValidationError{}
	appendFieldErrors(ve, "", err)
	for i := range ve.Errors {
		head, rest, dotted := strings.Cut(ve.Errors[i].Path, ".")
		if name, ok := wire[head]; ok {
			ve.Errors[i].Path = name
			if dotted {
				ve.Errors[i].Path += "." + rest
			}
		}
	}
	return ve
}

type wrapper struct {
	model    reflect.Type
	transfer reflect.Type
	fields   []int
	attrSlot int
}

func wrapperAttribute(t reflect.Type, name string) (reflect.Type, reflect.StructField, error) {
	if t == nil {
		return nil, reflect.StructField{}, fmt.Errorf("%w: no wrapper type", ErrInvalidWrapper)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, reflect.StructField{}, fmt.Errorf("%w: %s is not a struct", ErrInvalidWrapper, t)
	}
	sf, ok := t.FieldByName(name)
	if !ok || len(sf.Index) != 1 || !sf.IsExported() {
		return nil, reflect.StructField{}, fmt.Errorf("%w: %s has no exported field %s", ErrInvalidWrapper, t, name)
	}
	return t, sf, nil
}

// newWrapper synthesizes a copy of the wrapper type w whose attr field holds
// transfer data.
func (b *Backend) newWrapper(w reflect.Type, attr reflect.StructField) (out *wrapper, err error) {
	fd, err := b.transferAnnotation(b.payload)
	if err != nil {
		return nil, err
	}

	out = &wrapper{model: w}
	var sfs []reflect.StructField
	for i := range w.NumField() {
		sf := w.Field(i)
		if !sf.IsExported() {
			continue
		}
		field := reflect.StructField{Name: sf.Name, Type: sf.Type, Tag: sf.Tag}
		if i == attr.Index[0] {
			field.Type = fd.hostType()
			out.attrSlot = len(sfs)
		}
		sfs = append(sfs, field)
		out.fields = append(out.fields, i)
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %s: %v", ErrInvalidWrapper, w, r)
		}
	}()
	out.transfer = reflect.StructOf(sfs)
	return out, nil
}

func (b *Backend) encodeWrapper(data any) (any, error) {
	src := deref(reflect.ValueOf(data))
	if !src.IsValid() {
		return nil, nil
	}
	if src.Type() != b.wrapper.model {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidWrapper, b.wrapper.model, src.Type())
	}

	out := reflect.New(b.wrapper.transfer).Elem()
	for slot, i := range b.wrapper.fields {
		if slot != b.wrapper.attrSlot {
			out.Field(slot).Set(src.Field(i))
			continue
		}
		value, err := b.transferTypeData(src.Field(i), b.payload, ForReturn)
		if err == nil {
			err = set(out.Field(slot), value)
		}
		if err != nil {
			return nil, err
		}
	}
	return out.Interface(), nil
}

// fit adapts v to type to: nil becomes the zero value, pointers are added or
// removed, interfaces are unwrapped and scalar named types converted.
func fit(v reflect.Value, to reflect.Type) (reflect.Value, bool) {
	if !v.IsValid() {
		return reflect.Zero(to), true
	}
	if v.Type().AssignableTo(to) {
		return v, true
	}

	switch {
	case v.Kind() == reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(to), true
		}
		return fit(v.Elem(), to)

	case to.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer:
		inner, ok := fit(v, to.Elem())
		if !ok {
			return reflect.Value{}, false
		}
		p := reflect.New(to.Elem())
		p.Elem().Set(inner)
		return p, true

	case v.Kind() == reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(to), true
		}
		return fit(v.Elem(), to)

	case v.Kind() == to.Kind() && isScalar(to.Kind()) && v.Type().ConvertibleTo(to):
		return v.Convert(to), true

	default:
		return reflect.Value{}, false
	}
}

func set(dst, v reflect.Value) error {
	fitted, ok := fit(v, dst.Type())
	if !ok {
		return mismatch(v, dst.Type())
	}
	dst.Set(fitted)
	return nil
}

func mismatch(v reflect.Value, to reflect.Type) error {
	return fmt.Errorf("cannot use %s as %s", typeName(v), to)
}

func isScalar(k reflect.Kind) bool {
	//exhaustive:ignore
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	default:
		return false
	}
}

// deref follows pointers and interfaces. It returns the invalid Value for nil.
func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func valueOf(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

func typeName(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	return v.Type().String()
}

func indexPath(i int) string {
	return fmt.Sprintf("[%d]", i)
}
