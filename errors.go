package dtoapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bjaus/dtoapi/dto"
)

// Sentinel errors for request binding.
var (
	ErrBindPath   = errors.New("bind path")
	ErrBindQuery  = errors.New("bind query")
	ErrBindHeader = errors.New("bind header")
	ErrBindCookie = errors.New("bind cookie")
	ErrBindBody   = errors.New("bind body")
)

// ErrDTOConfig is wrapped by the panic raised when a route's DTO cannot be built.
var ErrDTOConfig = errors.New("dto configuration")

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ProblemDetail is an RFC 9457 problem details response.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string            `json:"type,omitempty" yaml:"type,omitempty"`
	Title    string            `json:"title,omitempty" yaml:"title,omitempty"`
	Status   int               `json:"status" yaml:"status"`
	Detail   string            `json:"detail,omitempty" yaml:"detail,omitempty"`
	Instance string            `json:"instance,omitempty" yaml:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty" yaml:"errors,omitempty"`

	// RequestID is the id the RequestID middleware gave the request.
	RequestID string `json:"request_id,omitempty" yaml:"request_id,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// ValidationError describes a single field validation failure.
type ValidationError struct {
	Field   string `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Malformed DTO
// data is a 400; errors that do not implement StatusCoder are a 500.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	var ve *dto.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Problem converts err into the problem details written for it. Field
// errors of malformed DTO data are listed in Errors.
func Problem(err error) *ProblemDetail {
	var pd *ProblemDetail
	if errors.As(err, &pd) {
		return pd
	}

	status := ErrorStatus(err)
	problem := &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
	}

	var ve *dto.ValidationError
	if errors.As(err, &ve) {
		problem.Detail = "request is invalid"
		problem.Errors = make([]ValidationError, len(ve.Errors))
		for i, fe := range ve.Errors {
			problem.Errors[i] = ValidationError{Field: fe.Path, Message: fe.Message, Value: fe.Value}
		}
	}
	return problem
}
