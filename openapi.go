package dtoapi

import (
	"maps"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// OpenAPISpec is the top-level OpenAPI 3.1 document.
type OpenAPISpec struct {
	OpenAPI    string              `json:"openapi"`
	Info       OpenAPIInfo         `json:"info"`
	Tags       []Tag               `json:"tags,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components *Components         `json:"components,omitempty"`
}

// OpenAPIInfo holds API metadata.
type OpenAPIInfo struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

// Tag describes an operation tag.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Components holds the schemas operations refer to.
type Components struct {
	Schemas map[string]JSONSchema `json:"schemas,omitempty"`
}

// PathItem maps HTTP methods to operations.
type PathItem map[string]Operation

// Operation describes a single API operation on a path.
type Operation struct {
	Summary     string        `json:"summary,omitempty"`
	Description string        `json:"description,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	OperationID string        `json:"operationId,omitempty"`
	Parameters  []Parameter   `json:"parameters,omitempty"`
	RequestBody *RequestBody  `json:"requestBody,omitempty"`
	Responses   OperationResp `json:"responses"`
	Deprecated  bool          `json:"deprecated,omitempty"`
}

// Parameter describes a single operation parameter.
type Parameter struct {
	Name        string     `json:"name"`
	In          string     `json:"in"`
	Description string     `json:"description,omitempty"`
	Required    bool       `json:"required,omitempty"`
	Schema      JSONSchema `json:"schema"`
}

// RequestBody describes the request body.
type RequestBody struct {
	Required bool                `json:"required"`
	Content  map[string]MediaObj `json:"content"`
}

// MediaObj is a media type object with an optional schema.
type MediaObj struct {
	Schema *JSONSchema `json:"schema,omitempty"`
}

// OperationResp maps HTTP status codes to response objects.
type OperationResp map[string]ResponseObj

// ResponseObj describes a single response.
type ResponseObj struct {
	Description string              `json:"description"`
	Content     map[string]MediaObj `json:"content,omitempty"`
}

const problemSchemaName = "ProblemDetail"

// Spec generates the full OpenAPI 3.1 specification from registered routes.
// Bodies with a DTO are described by their transfer models, which are
// listed under components.
func (r *Router) Spec() OpenAPISpec {
	r.mu.Lock()
	defer r.mu.Unlock()

	spec := OpenAPISpec{
		OpenAPI: "3.1.0",
		Info: OpenAPIInfo{
			Title:   r.title,
			Version: r.version,
		},
		Paths: make(map[string]PathItem),
	}

	schemas := newSchemaRegistry()
	for i := range r.routes {
		ri := &r.routes[i]
		path := toOpenAPIPath(ri.pattern)
		method := strings.ToLower(ri.method)

		if spec.Paths[path] == nil {
			spec.Paths[path] = make(PathItem)
		}
		spec.Paths[path][method] = r.buildOperation(ri, schemas)
	}

	if len(schemas.defs) > 0 {
		spec.Components = &Components{Schemas: schemas.defs}
	}

	for _, name := range slices.Sorted(maps.Keys(r.tagDescs)) {
		spec.Tags = append(spec.Tags, Tag{Name: name, Description: r.tagDescs[name]})
	}

	return spec
}

// buildOperation creates an Operation from a routeInfo.
func (r *Router) buildOperation(ri *routeInfo, schemas *schemaRegistry) Operation {
	op := Operation{
		Summary:     ri.summary,
		Description: ri.desc,
		Tags:        ri.tags,
		OperationID: ri.operationID,
		Deprecated:  ri.deprecated,
		Responses:   make(OperationResp),
	}

	if classifyRequest(ri.reqType) != catVoid {
		op.Parameters = extractParameters(ri.reqType, schemas)
		op.RequestBody = r.extractRequestBody(ri, schemas)
	}

	status := ri.status
	if ri.respType == nil || ri.respType == reflect.TypeFor[Void]() {
		if status == http.StatusOK {
			status = http.StatusNoContent
		}
		op.Responses[strconv.Itoa(status)] = ResponseObj{Description: "No content"}
	} else {
		schema := r.responseSchema(ri, schemas)
		op.Responses[strconv.Itoa(status)] = ResponseObj{
			Description: "Successful response",
			Content:     content(r.codecs.contentTypes(), schema),
		}
	}

	errs := slices.Clone(ri.errors)
	if op.RequestBody != nil || len(op.Parameters) > 0 {
		errs = append(errs, http.StatusBadRequest)
	}
	slices.Sort(errs)
	for _, code := range slices.Compact(errs) {
		if _, ok := schemas.defs[problemSchemaName]; !ok {
			schemas.defs[problemSchemaName] = schemas.typeToSchema(reflect.TypeFor[ProblemDetail]())
		}
		op.Responses[strconv.Itoa(code)] = ResponseObj{
			Description: http.StatusText(code),
			Content: map[string]MediaObj{
				"application/problem+json": {Schema: &JSONSchema{Ref: componentPrefix + problemSchemaName}},
			},
		}
	}

	return op
}

func content(contentTypes []string, schema JSONSchema) map[string]MediaObj {
	out := make(map[string]MediaObj, len(contentTypes))
	for _, ct := range contentTypes {
		out[ct] = MediaObj{Schema: &schema}
	}
	return out
}

func (r *Router) responseSchema(ri *routeInfo, schemas *schemaRegistry) JSONSchema {
	if ri.ret == nil {
		return schemas.typeToSchema(ri.respType)
	}
	payload := schemas.transferSchema(ri.ret.Payload())
	if ri.returnDTO.wrapper == "" {
		return payload
	}

	// Wrappers are written as they are except for the attribute holding models.
	schema := schemas.typeToSchema(ri.respType)
	if st, ok := structType(ri.respType); ok {
		if sf, ok := st.FieldByName(ri.returnDTO.wrapper); ok {
			schema.Properties[jsonFieldName(sf)] = payload
		}
	}
	return schema
}

// extractParameters builds OpenAPI parameters from param-tagged fields.
func extractParameters(t reflect.Type, schemas *schemaRegistry) []Parameter {
	t, ok := structType(t)
	if !ok {
		return nil
	}

	var params []Parameter
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		for _, in := range paramTags {
			tag := f.Tag.Get(in)
			if tag == "" {
				continue
			}
			name, opts := tagOptions(tag)

			p := Parameter{
				Name:     name,
				In:       in,
				Schema:   schemas.typeToSchema(f.Type),
				Required: in == "path" || tagContains(opts, "required"),
			}
			applyFieldTags(&p.Schema, f)
			p.Description, p.Schema.Description = p.Schema.Description, ""

			params = append(params, p)
		}
	}

	return params
}

// extractRequestBody builds an OpenAPI RequestBody if the request type has a body.
func (r *Router) extractRequestBody(ri *routeInfo, schemas *schemaRegistry) *RequestBody {
	body := bodyType(ri.reqType)
	if body == nil {
		return nil
	}

	var schema JSONSchema
	switch {
	case ri.data != nil:
		schema = schemas.transferSchema(ri.data.Payload())
	case classifyRequest(ri.reqType) == catBodyOnly && !hasBody(ri.method):
		return nil
	default:
		schema = schemas.typeToSchema(body)
	}

	ct := make([]string, len(r.codecs.decoders))
	for i, dec := range r.codecs.decoders {
		ct[i] = dec.ContentType()
	}
	return &RequestBody{Required: true, Content: content(ct, schema)}
}

func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

// toOpenAPIPath converts a Go 1.22 pattern like "/files/{path...}" to
// an OpenAPI path.
func toOpenAPIPath(pattern string) string {
	return strings.ReplaceAll(pattern, "...", "")
}
