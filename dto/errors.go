package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Sentinel errors. Construction failures surface when a Backend is built,
// conversion failures at request time.
var (
	ErrAmbiguousUnion         = errors.New("ambiguous union")
	ErrUnsupportedUnion       = errors.New("unsupported union member")
	ErrUnionNoMatch           = errors.New("no union member matches value")
	ErrUnexpectedTransferType = errors.New("unexpected transfer type")
	ErrUnsupportedModel       = errors.New("unsupported model type")
	ErrInvalidWrapper         = errors.New("invalid wrapper")
)

// FieldError is one malformed value in inbound data.
type FieldError struct {
	Path    string
	Message string
	Value   any
}

func (e *FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationError collects every FieldError found while parsing inbound data.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i := range e.Errors {
		msgs[i] = e.Errors[i].Error()
	}
	return "invalid data: " + strings.Join(msgs, "; ")
}

func fieldErrorf(path string, value any, format string, args ...any) *FieldError {
	return &FieldError{Path: path, Message: fmt.Sprintf(format, args...), Value: value}
}

// validationError flattens merr into a *ValidationError. It returns nil when
// merr holds no errors.
func validationError(merr *multierror.Error) error {
	if merr.ErrorOrNil() == nil {
		return nil
	}
	ve := &ValidationError{}
	for _, err := range merr.WrappedErrors() {
		appendFieldErrors(ve, "", err)
	}
	return ve
}

// appendFieldErrors adds err to ve, prefixing nested paths with prefix.
func appendFieldErrors(ve *ValidationError, prefix string, err error) {
	var nested *ValidationError
	var fe *FieldError
	switch {
	case errors.As(err, &nested):
		for _, e := range nested.Errors {
			e.Path = joinPath(prefix, e.Path)
			ve.Errors = append(ve.Errors, e)
		}
	case errors.As(err, &fe):
		e := *fe
		e.Path = joinPath(prefix, e.Path)
		ve.Errors = append(ve.Errors, e)
	default:
		ve.Errors = append(ve.Errors, FieldError{Path: prefix, Message: err.Error()})
	}
}

func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	case strings.HasPrefix(path, "["):
		return prefix + path
	default:
		return prefix + "." + path
	}
}

func isValidation(err error) bool {
	var fe *FieldError
	var ve *ValidationError
	return errors.As(err, &fe) || errors.As(err, &ve)
}

// collector aggregates validation errors while a conversion keeps going.
// Any other error is returned to the caller, which should stop.
type collector struct {
	merr *multierror.Error
}

func (c *collector) add(prefix string, err error) error {
	if !isValidation(err) {
		return err
	}
	ve := &ValidationError{}
	appendFieldErrors(ve, prefix, err)
	c.merr = multierror.Append(c.merr, ve)
	return nil
}

func (c *collector) err() error {
	return validationError(c.merr)
}
