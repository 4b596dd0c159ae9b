package dtoapi

import (
	"reflect"
	"strings"
)

// paramTags are the struct tags used for binding request parameters.
var paramTags = []string{"path", "query", "header", "cookie"}

func structType(t reflect.Type) (reflect.Type, bool) {
	if t == nil {
		return nil, false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, t.Kind() == reflect.Struct
}

// hasParamTags reports whether the given type has any fields with
// parameter binding tags (path, query, header, cookie).
func hasParamTags(t reflect.Type) bool {
	t, ok := structType(t)
	if !ok {
		return false
	}
	for i := range t.NumField() {
		if f := t.Field(i); f.IsExported() && isParamField(f) {
			return true
		}
	}
	return false
}

// isParamField reports whether a struct field has parameter binding tags.
func isParamField(f reflect.StructField) bool {
	for _, tag := range paramTags {
		if f.Tag.Get(tag) != "" {
			return true
		}
	}
	return false
}

// hasBodyField reports whether the given type has an exported "Body" field.
func hasBodyField(t reflect.Type) bool {
	t, ok := structType(t)
	if !ok {
		return false
	}
	f, ok := t.FieldByName("Body")
	return ok && f.IsExported()
}

// bodyType returns the type decoded from the request body of a request
// type t, or nil when t carries no body.
func bodyType(t reflect.Type) reflect.Type {
	//exhaustive:ignore
	switch classifyRequest(t) {
	case catBodyOnly:
		return t
	case catMixed:
		st, _ := structType(t)
		f, _ := st.FieldByName("Body")
		return f.Type
	default:
		return nil
	}
}

// modelOf finds the model type inside a payload type by unwrapping
// pointers, slices, arrays and map values.
func modelOf(t reflect.Type) reflect.Type {
	for {
		//exhaustive:ignore
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
			t = t.Elem()
		default:
			return t
		}
	}
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	name, _ := tagOptions(f.Tag.Get("json"))
	if name == "" {
		return f.Name
	}
	return name
}

// tagOptions splits a struct tag value on comma and returns
// the name and remaining options.
func tagOptions(tag string) (string, string) {
	name, opts, _ := strings.Cut(tag, ",")
	return name, opts
}

// tagContains reports whether a comma-separated list of options
// contains a particular option.
func tagContains(opts string, name string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == name {
			return true
		}
	}
	return false
}
