// Package dtoapi is a generics-first HTTP API framework whose request and
// response bodies can be shaped by the dto package. Handler types are the
// source of truth: request parameters, bodies and responses are Go types,
// and the router derives binding, serialization and OpenAPI 3.1 documents
// from them.
//
// The core handler signature removes http.ResponseWriter and *http.Request:
//
//	type Handler[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)
//
// Routes are registered with package-level generic functions. WithDataDTO and
// WithReturnDTO put a dto.Backend between the wire and the handler, so the
// handler only ever sees model values:
//
//	r := dtoapi.New(dtoapi.WithTitle("Library"), dtoapi.WithVersion("1.0.0"))
//	dtoapi.Post(r, "/books", createBook,
//	    dtoapi.WithDataDTO(dtoapi.DTOConfig(dto.Config{Exclude: []string{"id"}})),
//	    dtoapi.WithReturnDTO(),
//	    dtoapi.WithStatus(http.StatusCreated))
//
// Request types use struct tags for parameter binding and a Body field for
// the request body:
//
//	type UpdateBook struct {
//	    ID   int  `path:"id" minimum:"1"`
//	    Body Book
//	}
//
// Backends are built when a route is registered. A DTO that cannot be built
// panics there, the way http.ServeMux panics on a bad pattern.
//
// OpenAPI schemas of DTO bodies are derived from the synthesized transfer
// models and published as components:
//
//	r.ServeSpec("/openapi.json")
package dtoapi
