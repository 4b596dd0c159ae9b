package dtoapi

import "context"

// Void is used as a type parameter when a request has no parameters or body,
// or a response has no body (204 No Content).
type Void struct{}

// Handler is the typed handler signature. The router owns serialization;
// handlers never see http.ResponseWriter or *http.Request.
type Handler[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)
