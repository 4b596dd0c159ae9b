// Package constraint provides a model kind for structs whose fields carry
// validation tags. Models built from inbound data are checked after
// construction and every violation is reported as a dto.FieldError.
//
// Supported tags:
//
//	minLength:"3"      strings
//	maxLength:"64"     strings
//	pattern:"^[a-z]+$" strings
//	enum:"a,b,c"       strings
//	minimum:"0"        numbers
//	maximum:"100"      numbers
//	minItems:"1"       slices, arrays and maps
//	maxItems:"10"      slices, arrays and maps
//
// A model implementing SelfValidator is validated by its Validate method once
// the tag checks pass.
package constraint

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/bjaus/dtoapi/dto"
)

// SelfValidator is implemented by models that validate themselves.
type SelfValidator interface {
	Validate() error
}

var (
	selfValidatorType = reflect.TypeFor[SelfValidator]()
	patterns          sync.Map // string -> *regexp.Regexp
)

var tags = []string{"minLength", "maxLength", "pattern", "enum", "minimum", "maximum", "minItems", "maxItems"}

// Kind is dto.StructKind with constraint checks at Build. It detects structs
// that declare at least one constraint tag or implement SelfValidator, so it
// can be listed ahead of a plain StructKind.
type Kind struct {
	dto.StructKind
}

func (k Kind) Name() string { return "constraint" }

func (k Kind) Detect(t reflect.Type) bool {
	if !k.StructKind.Detect(t) {
		return false
	}
	return reflect.PointerTo(t).Implements(selfValidatorType) || hasConstraints(t)
}

func hasConstraints(t reflect.Type) bool {
	for i := range t.NumField() {
		sf := t.Field(i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && hasConstraints(sf.Type) {
			return true
		}
		for _, tag := range tags {
			if _, ok := sf.Tag.Lookup(tag); ok {
				return true
			}
		}
	}
	return false
}

// Build constructs the model and checks it. Violations come back as a
// *dto.ValidationError with paths naming model fields.
func (k Kind) Build(t reflect.Type, values map[string]reflect.Value) (reflect.Value, error) {
	out, err := k.StructKind.Build(t, values)
	if err != nil {
		return reflect.Value{}, err
	}

	defs, err := k.FieldDefinitions(t)
	if err != nil {
		return reflect.Value{}, err
	}

	var merr *multierror.Error
	for _, def := range defs {
		// Fields left out of partial data keep their zero value unchecked.
		if _, ok := values[def.Name()]; !ok && !def.HasDefault() {
			continue
		}
		for _, fe := range checkField(t.FieldByIndex(def.Index), out.FieldByIndex(def.Index), def.Name()) {
			merr = multierror.Append(merr, &fe)
		}
	}
	if merr.ErrorOrNil() == nil {
		if sv, ok := out.Addr().Interface().(SelfValidator); ok {
			if err := sv.Validate(); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
	}
	if err := validationError(merr); err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

// Check validates the constraint tags of v, a struct or pointer to one,
// descending into nested structs. Paths use the json field names.
func Check(v any) error {
	return CheckExcept(v)
}

// CheckExcept is Check without the top-level fields of v named in skip.
func CheckExcept(v any, skip ...string) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	var merr *multierror.Error
	collect(rv, "", skip, &merr)
	return validationError(merr)
}

func collect(rv reflect.Value, prefix string, skip []string, merr **multierror.Error) {
	t := rv.Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		fv := rv.Field(i)
		if slices.Contains(skip, sf.Name) {
			continue
		}
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.Tag.Get("json") == "" {
			collect(fv, prefix, skip, merr)
			continue
		}
		name, ok := fieldName(sf)
		if !ok {
			continue
		}

		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		for _, fe := range checkField(sf, fv, path) {
			*merr = multierror.Append(*merr, &fe)
		}

		for fv.Kind() == reflect.Pointer && !fv.IsNil() {
			fv = fv.Elem()
		}
		if fv.Kind() == reflect.Struct && fv.NumField() > 0 {
			collect(fv, path, nil, merr)
		}
	}
}

// fieldName is the json name of an exported field.
func fieldName(sf reflect.StructField) (string, bool) {
	if !sf.IsExported() {
		return "", false
	}
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	switch name {
	case "-":
		return "", false
	case "":
		return sf.Name, true
	default:
		return name, true
	}
}

func checkField(sf reflect.StructField, fv reflect.Value, path string) []dto.FieldError {
	for fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}

	var errs []dto.FieldError
	fail := func(value any, format string, args ...any) {
		errs = append(errs, dto.FieldError{Path: path, Message: fmt.Sprintf(format, args...), Value: value})
	}

	if fv.Kind() == reflect.String {
		val := fv.String()
		if n, ok := intTag(sf, "minLength"); ok && len(val) < n {
			fail(val, "must be at least %d characters", n)
		}
		if n, ok := intTag(sf, "maxLength"); ok && len(val) > n {
			fail(val, "must be at most %d characters", n)
		}
		if tag := sf.Tag.Get("pattern"); tag != "" {
			if re, err := compile(tag); err == nil && !re.MatchString(val) {
				fail(val, "must match pattern %s", tag)
			}
		}
		if tag := sf.Tag.Get("enum"); tag != "" && !slices.Contains(strings.Split(tag, ","), val) {
			fail(val, "must be one of [%s]", tag)
		}
	}

	if f, ok := number(fv); ok {
		if tag := sf.Tag.Get("minimum"); tag != "" {
			if lower, err := strconv.ParseFloat(tag, 64); err == nil && f < lower {
				fail(f, "must be at least %s", tag)
			}
		}
		if tag := sf.Tag.Get("maximum"); tag != "" {
			if upper, err := strconv.ParseFloat(tag, 64); err == nil && f > upper {
				fail(f, "must be at most %s", tag)
			}
		}
	}

	//exhaustive:ignore
	switch fv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		length := fv.Len()
		if n, ok := intTag(sf, "minItems"); ok && length < n {
			fail(length, "must have at least %d items", n)
		}
		if n, ok := intTag(sf, "maxItems"); ok && length > n {
			fail(length, "must have at most %d items", n)
		}
	}
	return errs
}

func intTag(sf reflect.StructField, name string) (int, bool) {
	tag := sf.Tag.Get(name)
	if tag == "" {
		return 0, false
	}
	n, err := strconv.Atoi(tag)
	return n, err == nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patterns.Store(pattern, re)
	return re, nil
}

func number(v reflect.Value) (float64, bool) {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

// validationError flattens merr into a *dto.ValidationError.
func validationError(merr *multierror.Error) error {
	if merr.ErrorOrNil() == nil {
		return nil
	}
	ve := &dto.ValidationError{}
	for _, err := range merr.WrappedErrors() {
		var fe *dto.FieldError
		var nested *dto.ValidationError
		switch {
		case errors.As(err, &nested):
			ve.Errors = append(ve.Errors, nested.Errors...)
		case errors.As(err, &fe):
			ve.Errors = append(ve.Errors, *fe)
		default:
			ve.Errors = append(ve.Errors, dto.FieldError{Message: err.Error()})
		}
	}
	return ve
}
