package dtoapi

import (
	"net/http"
	"reflect"

	"github.com/bjaus/dtoapi/dto"
)

// routeInfo holds metadata for a registered route, used for both
// request dispatch and OpenAPI spec generation.
type routeInfo struct {
	method     string
	pattern    string
	summary    string
	desc       string
	tags       []string
	status     int
	deprecated bool
	errors     []int

	operationID string

	reqType  reflect.Type
	respType reflect.Type

	dataDTO   *dtoOptions
	returnDTO *dtoOptions

	// Built at registration from dataDTO and returnDTO.
	data *dto.Backend
	ret  *dto.Backend

	handler http.Handler
}

// RouteOption configures a route at registration time.
type RouteOption func(*routeInfo)

// WithStatus sets the default HTTP status code for the response.
func WithStatus(code int) RouteOption {
	return func(ri *routeInfo) {
		ri.status = code
	}
}

// WithSummary sets the OpenAPI summary for the route.
func WithSummary(s string) RouteOption {
	return func(ri *routeInfo) {
		ri.summary = s
	}
}

// WithDescription sets the OpenAPI description for the route.
func WithDescription(d string) RouteOption {
	return func(ri *routeInfo) {
		ri.desc = d
	}
}

// WithTags adds OpenAPI tags to the route.
func WithTags(tags ...string) RouteOption {
	return func(ri *routeInfo) {
		ri.tags = append(ri.tags, tags...)
	}
}

// WithDeprecated marks the route as deprecated in the OpenAPI spec.
func WithDeprecated() RouteOption {
	return func(ri *routeInfo) {
		ri.deprecated = true
	}
}

// WithErrors declares additional HTTP error status codes for the OpenAPI spec.
func WithErrors(codes ...int) RouteOption {
	return func(ri *routeInfo) {
		ri.errors = append(ri.errors, codes...)
	}
}

// WithOperationID sets a custom OpenAPI operationId. It also prefixes the
// names of the route's transfer models.
func WithOperationID(id string) RouteOption {
	return func(ri *routeInfo) {
		ri.operationID = id
	}
}

// WithDataDTO decodes the request body through a DTO of the body type: the
// request type itself, or its Body field when it has one.
func WithDataDTO(opts ...DTOOption) RouteOption {
	return func(ri *routeInfo) {
		ri.dataDTO = newDTOOptions(opts)
	}
}

// WithReturnDTO encodes the response through a DTO of the response type.
func WithReturnDTO(opts ...DTOOption) RouteOption {
	return func(ri *routeInfo) {
		ri.returnDTO = newDTOOptions(opts)
	}
}

// DTOOption configures one route DTO.
type DTOOption func(*dtoOptions)

type dtoOptions struct {
	cfg     dto.Config
	model   reflect.Type
	wrapper string
}

func newDTOOptions(opts []DTOOption) *dtoOptions {
	o := &dtoOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DTOConfig sets the DTO configuration, merged over the router defaults.
func DTOConfig(cfg dto.Config) DTOOption {
	return func(o *dtoOptions) {
		o.cfg = cfg
	}
}

// DTOModel names the model type explicitly. By default it is found by
// unwrapping pointers, slices, arrays and maps of the payload type.
func DTOModel[T any]() DTOOption {
	return func(o *dtoOptions) {
		o.model = reflect.TypeFor[T]()
	}
}

// DTOWrapper declares the response type a wrapper: only its field named
// attr holds models, the other fields are written as they are.
func DTOWrapper(attr string) DTOOption {
	return func(o *dtoOptions) {
		o.wrapper = attr
	}
}
