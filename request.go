package dtoapi

import (
	"encoding"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/bjaus/dtoapi/dto"
)

// requestCategory describes how a request type should be decoded.
type requestCategory int

const (
	catVoid     requestCategory = iota // Void: no params, no body
	catBodyOnly                        // entire struct is the body (no param tags, no Body field)
	catParams                          // has param tags but no Body field
	catMixed                           // has Body field (params from tagged fields, body from Body)
)

// classifyRequest determines how a request type should be decoded.
func classifyRequest(t reflect.Type) requestCategory {
	if t == nil || t == reflect.TypeFor[Void]() {
		return catVoid
	}
	if hasBodyField(t) {
		return catMixed
	}
	if hasParamTags(t) {
		return catParams
	}
	return catBodyOnly
}

// requestDecoder decodes one route's requests.
type requestDecoder struct {
	cat    requestCategory
	data   *dto.Backend
	codecs *codecRegistry
}

// decode creates a new Req value and populates it from the HTTP request.
// Parameter and body failures are *HTTPError values; malformed DTO bodies
// are returned as the backend reports them.
func decode[Req any](d requestDecoder, r *http.Request) (*Req, error) {
	req := new(Req)
	if d.cat == catVoid {
		return req, nil
	}

	if err := bindParams(req, r); err != nil {
		return nil, Error(http.StatusBadRequest, err.Error())
	}

	var body reflect.Value
	//exhaustive:ignore
	switch d.cat {
	case catBodyOnly:
		body = reflect.ValueOf(req).Elem()
	case catMixed:
		body = reflect.ValueOf(req).Elem().FieldByName("Body")
	default:
		return req, nil
	}

	contentType := r.Header.Get("Content-Type")
	dec, ok := d.codecs.decoderFor(contentType)
	if !ok {
		return nil, Errorf(http.StatusUnsupportedMediaType, "unsupported content type %q", contentType)
	}

	if d.data == nil {
		if err := decodeBody(r, dec, body.Addr().Interface()); err != nil {
			return nil, Error(http.StatusBadRequest, fmt.Errorf("%w: %w", ErrBindBody, err).Error())
		}
		return req, nil
	}

	raw, err := readBody(r)
	if err != nil {
		return nil, Error(http.StatusBadRequest, fmt.Errorf("%w: %w", ErrBindBody, err).Error())
	}
	data, err := d.data.ParseRaw(raw, dto.ConnectionContext{
		HandlerID:   r.Pattern,
		ContentType: contentType,
		Decoder:     dtoDecoder(dec),
	})
	if err != nil {
		return nil, err
	}
	if err := assign(body, data); err != nil {
		return nil, err
	}
	return req, nil
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(r.Body)
}

// decodeBody decodes the request body into target with dec.
// An empty body leaves target untouched.
func decodeBody(r *http.Request, dec Decoder, target any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return dec.Decode(r.Body, target)
}

// assign stores model data produced by a backend in dst, adding or removing
// one level of pointer.
func assign(dst reflect.Value, data any) error {
	if data == nil {
		return nil
	}
	v := reflect.ValueOf(data)
	switch {
	case v.Type().AssignableTo(dst.Type()):
		dst.Set(v)
	case dst.Kind() == reflect.Pointer && v.Type().AssignableTo(dst.Type().Elem()):
		p := reflect.New(dst.Type().Elem())
		p.Elem().Set(v)
		dst.Set(p)
	case v.Kind() == reflect.Pointer && v.Type().Elem().AssignableTo(dst.Type()):
		if !v.IsNil() {
			dst.Set(v.Elem())
		}
	default:
		return fmt.Errorf("%w: cannot assign %s to %s", ErrBindBody, v.Type(), dst.Type())
	}
	return nil
}

// bindParams binds path, query, header, and cookie values to struct fields.
func bindParams(target any, r *http.Request) error {
	v := reflect.ValueOf(target)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || f.Name == "Body" {
			continue
		}
		field := v.Field(i)

		if tag := f.Tag.Get("path"); tag != "" {
			name, _ := tagOptions(tag)
			if err := bindValue(field, r.PathValue(name), "", false); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrBindPath, name, err)
			}
		}

		if tag := f.Tag.Get("query"); tag != "" {
			name, opts := tagOptions(tag)
			val := r.URL.Query().Get(name)
			if err := bindValue(field, val, f.Tag.Get("default"), tagContains(opts, "required")); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrBindQuery, name, err)
			}
		}

		if tag := f.Tag.Get("header"); tag != "" {
			name, opts := tagOptions(tag)
			val := r.Header.Get(name)
			if err := bindValue(field, val, f.Tag.Get("default"), tagContains(opts, "required")); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrBindHeader, name, err)
			}
		}

		if tag := f.Tag.Get("cookie"); tag != "" {
			name, opts := tagOptions(tag)
			var val string
			if c, err := r.Cookie(name); err == nil {
				val = c.Value
			}
			if err := bindValue(field, val, f.Tag.Get("default"), tagContains(opts, "required")); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrBindCookie, name, err)
			}
		}
	}

	return nil
}

var errMissing = errors.New("is required")

func bindValue(field reflect.Value, val, def string, required bool) error {
	if val == "" {
		val = def
	}
	if val == "" {
		if required {
			return errMissing
		}
		return nil
	}
	return setFieldValue(field, val)
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// setFieldValue sets a reflect.Value from a string, supporting common types
// and anything that decodes itself from text, such as uuid.UUID.
func setFieldValue(field reflect.Value, value string) error {
	if field.Kind() == reflect.Pointer {
		p := reflect.New(field.Type().Elem())
		if err := setFieldValue(p.Elem(), value); err != nil {
			return err
		}
		field.Set(p)
		return nil
	}

	if field.Type() == reflect.TypeFor[time.Duration]() {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(d))
		return nil
	}

	if reflect.PointerTo(field.Type()).Implements(textUnmarshalerType) {
		return field.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value))
	}

	//exhaustive:ignore
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported type: %s", field.Type())
	}
	return nil
}
