// Package gindto binds gin request bodies to models and renders models as
// transfer data, both through a dto.Backend built at startup.
//
//	create, _ := dto.NewBackend(reg, dto.BackendParams{ModelType: reflect.TypeFor[Book](), IsDataField: true})
//	show, _ := dto.NewBackend(reg, dto.BackendParams{ModelType: reflect.TypeFor[Book]()})
//
//	r.POST("/books", gindto.Handler[Book, Book](create, show, http.StatusCreated, svc.Create))
package gindto

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/dtoapi/dto"
)

// RequestIDKey is the gin context key a request id middleware stores the id
// under. Error bodies echo it when present.
const RequestIDKey = "request_id"

// Error is the body of every error response written by this package.
type Error struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failed request.
type ErrorDetail struct {
	Code      string        `json:"code"`
	Message   string        `json:"message"`
	RequestID string        `json:"request_id,omitempty"`
	Fields    []FieldDetail `json:"fields,omitempty"`
}

// FieldDetail is one malformed value of a request body.
type FieldDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ErrDataType is returned by Bind when the backend produces a model of
// another type than requested.
var ErrDataType = errors.New("gindto: model type mismatch")

type yamlDecoder struct{}

func (yamlDecoder) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

func connection(c *gin.Context) dto.ConnectionContext {
	cc := dto.ConnectionContext{
		HandlerID:   c.FullPath(),
		ContentType: c.ContentType(),
	}
	if strings.Contains(cc.ContentType, "yaml") {
		cc.Decoder = yamlDecoder{}
	}
	return cc
}

// Bind reads the request body and parses it into a T through b, which must
// be a data backend for T. A malformed body fails with a *dto.ValidationError.
func Bind[T any](c *gin.Context, b *dto.Backend) (T, error) {
	var zero T
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return zero, err
	}
	data, err := b.ParseRaw(raw, connection(c))
	if err != nil {
		return zero, err
	}
	out, ok := data.(T)
	if !ok {
		return zero, ErrDataType
	}
	return out, nil
}

// Render encodes data through b, a return backend, and writes it with status.
// YAML is written when the client asks for it, JSON otherwise.
func Render(c *gin.Context, status int, b *dto.Backend, data any) {
	transfer, err := b.EncodeData(data)
	if err != nil {
		_ = c.Error(err)
		Abort(c, err)
		return
	}
	if strings.Contains(c.GetHeader("Accept"), "yaml") {
		c.YAML(status, transfer)
		return
	}
	c.JSON(status, transfer)
}

// Abort writes the error response for err and aborts the chain. Validation
// errors become 400 with one entry per field, anything else a 500.
func Abort(c *gin.Context, err error) {
	requestID := c.GetString(RequestIDKey)

	var ve *dto.ValidationError
	if !errors.As(err, &ve) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, Error{Error: ErrorDetail{
			Code:      "INTERNAL_ERROR",
			Message:   "An unexpected error occurred",
			RequestID: requestID,
		}})
		return
	}

	fields := make([]FieldDetail, len(ve.Errors))
	for i, fe := range ve.Errors {
		fields[i] = FieldDetail{Field: fe.Path, Message: fe.Message}
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, Error{Error: ErrorDetail{
		Code:      "VALIDATION_ERROR",
		Message:   "request body is invalid",
		RequestID: requestID,
		Fields:    fields,
	}})
}

// Handler adapts fn into a gin handler: the body is bound through data and
// the result rendered through ret with status.
func Handler[In, Out any](data, ret *dto.Backend, status int, fn func(context.Context, In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, err := Bind[In](c, data)
		if err != nil {
			_ = c.Error(err)
			Abort(c, err)
			return
		}
		out, err := fn(c.Request.Context(), in)
		if err != nil {
			_ = c.Error(err)
			Abort(c, err)
			return
		}
		Render(c, status, ret, out)
	}
}
