package dto

import (
	"bytes"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"time"
)

// Decoder turns raw bytes into builtins: maps, slices, strings, numbers,
// booleans and nil. Maps keyed by any (as YAML produces for integer keys)
// are read with their keys formatted as strings.
type Decoder interface {
	Unmarshal(data []byte, v any) error
}

// ConnectionContext carries what a conversion needs to know about the
// request it serves.
type ConnectionContext struct {
	HandlerID   string
	ContentType string

	// Decoder decodes raw bodies. Nil means JSON with numbers kept exact.
	Decoder Decoder
}

// ParseRaw decodes raw into builtins and then into model data.
// Malformed input fails with a *ValidationError.
func (b *Backend) ParseRaw(raw []byte, cc ConnectionContext) (any, error) {
	var builtins any
	var err error
	if cc.Decoder != nil {
		err = cc.Decoder.Unmarshal(raw, &builtins)
	} else {
		err = unmarshalJSON(raw, &builtins)
	}
	if err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Message: "malformed body: " + err.Error()}}}
	}
	return b.ParseBuiltins(builtins, cc)
}

// ParseBuiltins converts decoded builtins into a transfer instance, then
// into model data. Every malformed value is reported in one *ValidationError.
func (b *Backend) ParseBuiltins(builtins any, cc ConnectionContext) (any, error) {
	transfer, err := b.coerce(builtins, b.payload)
	if err != nil {
		b.logger.Debug("dto data rejected",
			"handler", cc.HandlerID, "model", b.params.ModelType.String(), "error", err)
		return nil, asValidationError(err)
	}
	return b.TransferToModel(valueOf(transfer))
}

var errTrailingData = errors.New("trailing data after JSON value")

// unmarshalJSON decodes exactly one JSON value with numbers kept exact.
func unmarshalJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

func asValidationError(err error) error {
	if !isValidation(err) {
		return err
	}
	ve := &ValidationError{}
	appendFieldErrors(ve, "", err)
	return ve
}

// coerce converts raw into a value of tt's transfer annotation.
func (b *Backend) coerce(raw any, tt TransferType) (reflect.Value, error) {
	fd, err := b.transferAnnotation(tt)
	if err != nil {
		return reflect.Value{}, err
	}
	target := fd.hostType()

	switch t := tt.(type) {
	case *SimpleType:
		if t.NestedFieldInfo != nil {
			return b.coerceModel(raw, t.NestedFieldInfo)
		}
		return coerceValue(raw, target)
	case *CollectionType:
		return b.coerceCollection(raw, t, target)
	case *TupleType:
		return b.coerceTuple(raw, t, target)
	case *MappingType:
		return b.coerceMapping(raw, t, target)
	case *UnionType:
		return b.coerceUnion(raw, t, target)
	default:
		return reflect.Value{}, fmt.Errorf("%w: %T", ErrUnexpectedTransferType, tt)
	}
}

// coerceInto coerces raw through tt and fits the result into a value of type to.
func (b *Backend) coerceInto(raw any, tt TransferType, to reflect.Type) (reflect.Value, error) {
	if raw == nil && nilable(to) {
		return reflect.Zero(to), nil
	}
	v, err := b.coerce(raw, tt)
	if err != nil {
		return reflect.Value{}, err
	}
	fitted, ok := fit(v, to)
	if !ok {
		return reflect.Value{}, mismatch(v, to)
	}
	return fitted, nil
}

func (b *Backend) coerceModel(raw any, info *NestedFieldInfo) (reflect.Value, error) {
	obj, ok := object(raw)
	if !ok {
		return reflect.Value{}, fieldErrorf("", raw, "must be an object")
	}

	out := reflect.New(info.Model).Elem()
	known := make(map[string]bool, len(info.FieldDefinitions))
	var c collector
	for _, f := range info.FieldDefinitions {
		if f.IsExcluded {
			continue
		}
		name := f.SerializationName
		known[name] = true

		value, present := obj[name]
		if !present {
			if required(f) {
				_ = c.add(name, fieldErrorf("", nil, "is required"))
			}
			continue
		}

		slot := out.Field(f.slot)
		v, err := b.coerceInto(value, f.TransferType, slot.Type())
		if err != nil {
			if err := c.add(name, err); err != nil {
				return reflect.Value{}, err
			}
			continue
		}
		slot.Set(v)
	}

	if b.cfg.ForbidUnknownFields {
		for _, key := range slices.Sorted(maps.Keys(obj)) {
			if !known[key] {
				_ = c.add(key, fieldErrorf("", obj[key], "unknown field"))
			}
		}
	}
	return out, c.err()
}

func (b *Backend) coerceCollection(raw any, t *CollectionType, target reflect.Type) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(target), nil
	}
	items, ok := raw.([]any)
	if !ok {
		return reflect.Value{}, fieldErrorf("", raw, "must be an array")
	}

	out := reflect.MakeSlice(target, len(items), len(items))
	var c collector
	for i, item := range items {
		v, err := b.coerceInto(item, t.InnerType, target.Elem())
		if err != nil {
			if err := c.add(indexPath(i), err); err != nil {
				return reflect.Value{}, err
			}
			continue
		}
		out.Index(i).Set(v)
	}
	return out, c.err()
}

func (b *Backend) coerceTuple(raw any, t *TupleType, target reflect.Type) (reflect.Value, error) {
	items, ok := raw.([]any)
	if !ok {
		return reflect.Value{}, fieldErrorf("", raw, "must be an array")
	}
	if len(items) != len(t.InnerTypes) {
		return reflect.Value{}, fieldErrorf("", raw, "must have exactly %d items", len(t.InnerTypes))
	}

	out := reflect.New(target).Elem()
	var c collector
	for i, item := range items {
		v, err := b.coerceInto(item, t.InnerTypes[i], target.Elem())
		if err != nil {
			if err := c.add(indexPath(i), err); err != nil {
				return reflect.Value{}, err
			}
			continue
		}
		out.Index(i).Set(v)
	}
	return out, c.err()
}

func (b *Backend) coerceMapping(raw any, t *MappingType, target reflect.Type) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(target), nil
	}
	obj, ok := object(raw)
	if !ok {
		return reflect.Value{}, fieldErrorf("", raw, "must be an object")
	}
	if _, ok := t.KeyType.(*SimpleType); !ok || t.KeyType.HasNested() {
		return reflect.Value{}, fieldErrorf("", raw, "keys of type %s cannot be decoded", t.KeyType.Definition())
	}

	out := reflect.MakeMapWithSize(target, len(obj))
	var c collector
	for _, key := range slices.Sorted(maps.Keys(obj)) {
		k, err := coerceKey(key, target.Key())
		if err != nil {
			_ = c.add("["+key+"]", err)
			continue
		}
		v, err := b.coerceInto(obj[key], t.ValueType, target.Elem())
		if err != nil {
			if err := c.add("["+key+"]", err); err != nil {
				return reflect.Value{}, err
			}
			continue
		}
		out.SetMapIndex(k, v)
	}
	return out, c.err()
}

// coerceUnion tries each member in declared order and keeps the first that
// accepts raw.
func (b *Backend) coerceUnion(raw any, t *UnionType, target reflect.Type) (reflect.Value, error) {
	if raw == nil {
		for _, m := range t.InnerTypes {
			if m.Definition().Kind() == KindNone {
				return reflect.Zero(target), nil
			}
		}
		return reflect.Value{}, fieldErrorf("", nil, "must not be null")
	}

	for _, m := range t.InnerTypes {
		if m.Definition().Kind() == KindNone {
			continue
		}
		v, err := b.coerce(raw, m)
		if err != nil {
			if !isValidation(err) {
				return reflect.Value{}, err
			}
			continue
		}
		if fitted, ok := fit(v, target); ok {
			return fitted, nil
		}
	}
	return reflect.Value{}, fieldErrorf("", raw, "does not match any of %s", t.Field)
}

var (
	durationType        = reflect.TypeFor[time.Duration]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// coerceValue converts a builtin into a value of a simple type.
func coerceValue(raw any, target reflect.Type) (reflect.Value, error) {
	if raw == nil {
		if nilable(target) {
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, fieldErrorf("", nil, "must not be null")
	}

	out := reflect.New(target).Elem()
	if target.Kind() == reflect.Interface {
		if target.NumMethod() > 0 {
			return reflect.Value{}, fieldErrorf("", raw, "cannot decode into %s", target)
		}
		out.Set(reflect.ValueOf(normalize(raw)))
		return out, nil
	}

	if target == durationType {
		if s, ok := raw.(string); ok {
			d, err := time.ParseDuration(s)
			if err != nil {
				return reflect.Value{}, fieldErrorf("", raw, "must be a duration")
			}
			out.SetInt(int64(d))
			return out, nil
		}
	}

	if s, ok := raw.(string); ok && target.Kind() != reflect.String && reflect.PointerTo(target).Implements(textUnmarshalerType) {
		if err := out.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, fieldErrorf("", raw, "invalid %s: %v", target, err)
		}
		return out, nil
	}

	//exhaustive:ignore
	switch target.Kind() {
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return reflect.Value{}, fieldErrorf("", raw, "must be a string")
		}
		out.SetString(s)

	case reflect.Bool:
		v, ok := raw.(bool)
		if !ok {
			return reflect.Value{}, fieldErrorf("", raw, "must be a boolean")
		}
		out.SetBool(v)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := toInt(raw)
		if !ok {
			return reflect.Value{}, fieldErrorf("", raw, "must be an integer")
		}
		if out.OverflowInt(n) {
			return reflect.Value{}, fieldErrorf("", raw, "is out of range for %s", target)
		}
		out.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := toInt(raw)
		if !ok || n < 0 {
			return reflect.Value{}, fieldErrorf("", raw, "must be a non-negative integer")
		}
		if out.OverflowUint(uint64(n)) {
			return reflect.Value{}, fieldErrorf("", raw, "is out of range for %s", target)
		}
		out.SetUint(uint64(n))

	case reflect.Float32, reflect.Float64:
		f, ok := toFloat(raw)
		if !ok {
			return reflect.Value{}, fieldErrorf("", raw, "must be a number")
		}
		if out.OverflowFloat(f) {
			return reflect.Value{}, fieldErrorf("", raw, "is out of range for %s", target)
		}
		out.SetFloat(f)

	case reflect.Slice:
		s, ok := raw.(string)
		if !ok || target.Elem().Kind() != reflect.Uint8 {
			return coerceJSON(raw, target)
		}
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return reflect.Value{}, fieldErrorf("", raw, "must be base64")
		}
		out.SetBytes(data)

	default:
		return coerceJSON(raw, target)
	}
	return out, nil
}

// coerceJSON decodes raw into target through a JSON round trip.
func coerceJSON(raw any, target reflect.Type) (reflect.Value, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return reflect.Value{}, fieldErrorf("", raw, "cannot decode into %s", target)
	}
	out := reflect.New(target)
	if err := json.Unmarshal(data, out.Interface()); err != nil {
		return reflect.Value{}, fieldErrorf("", raw, "cannot decode into %s", target)
	}
	return out.Elem(), nil
}

func coerceKey(key string, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	if target.Kind() != reflect.String && reflect.PointerTo(target).Implements(textUnmarshalerType) {
		if err := out.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(key)); err != nil {
			return reflect.Value{}, fieldErrorf("", key, "invalid key: %v", err)
		}
		return out, nil
	}

	//exhaustive:ignore
	switch target.Kind() {
	case reflect.String:
		out.SetString(key)
	case reflect.Interface:
		if target.NumMethod() > 0 {
			return reflect.Value{}, fieldErrorf("", key, "cannot decode key into %s", target)
		}
		out.Set(reflect.ValueOf(key))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(key, 10, target.Bits())
		if err != nil {
			return reflect.Value{}, fieldErrorf("", key, "key must be an integer")
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(key, 10, target.Bits())
		if err != nil {
			return reflect.Value{}, fieldErrorf("", key, "key must be a non-negative integer")
		}
		out.SetUint(n)
	case reflect.Bool:
		v, err := strconv.ParseBool(key)
		if err != nil {
			return reflect.Value{}, fieldErrorf("", key, "key must be a boolean")
		}
		out.SetBool(v)
	default:
		return reflect.Value{}, fieldErrorf("", key, "cannot decode key into %s", target)
	}
	return out, nil
}

func toInt(raw any) (int64, bool) {
	switch n := raw.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return toInt(f)
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// object returns raw as a string-keyed map.
func object(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[fmt.Sprint(k)] = e
		}
		return out, true
	default:
		return nil, false
	}
}

// normalize replaces json.Number with int64 or float64 and any-keyed maps
// with string-keyed ones, recursively.
func normalize(raw any) any {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	default:
		return raw
	}
}
