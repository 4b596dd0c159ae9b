// Package apitest provides typed test helpers for dtoapi routers.
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bjaus/dtoapi"
)

// Client wraps an httptest.Server for convenient API testing.
type Client struct {
	Server *httptest.Server

	// Header is sent with every request.
	Header http.Header
}

// NewClient creates a test client from a router.
func NewClient(t testing.TB, r *dtoapi.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &Client{Server: srv, Header: make(http.Header)}
}

// Response holds a decoded API response. Error responses carry the decoded
// problem details instead of a body.
type Response[T any] struct {
	Status  int
	Headers http.Header
	Body    *T
	Problem *dtoapi.ProblemDetail
}

// Get sends a typed GET request.
func Get[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodGet, path, nil)
}

// Post sends a typed POST request with a JSON body.
func Post[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPost, path, body)
}

// Put sends a typed PUT request with a JSON body.
func Put[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPut, path, body)
}

// Patch sends a typed PATCH request with a JSON body.
func Patch[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPatch, path, body)
}

// Delete sends a typed DELETE request.
func Delete[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodDelete, path, nil)
}

// Raw sends a pre-encoded body with the given content type. It is meant for
// malformed payloads and for bodies a typed request cannot express.
func Raw[Resp any](t testing.TB, c *Client, method, path, contentType string, body []byte) *Response[Resp] {
	t.Helper()
	return send[Resp](t, c, method, path, contentType, bytes.NewReader(body))
}

func do[Resp any](t testing.TB, c *Client, method, path string, body any) *Response[Resp] {
	t.Helper()

	if body == nil {
		return send[Resp](t, c, method, path, "", nil)
	}
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("apitest: marshal request body: %v", err)
	}
	return send[Resp](t, c, method, path, "application/json", bytes.NewReader(b))
}

func send[Resp any](t testing.TB, c *Client, method, path, contentType string, body io.Reader) *Response[Resp] {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, c.Server.URL+path, body)
	if err != nil {
		t.Fatalf("apitest: create request: %v", err)
	}
	for k, v := range c.Header {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("apitest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("apitest: close body: %v", closeErr)
		}
	}()

	result := &Response[Resp]{
		Status:  resp.StatusCode,
		Headers: resp.Header,
	}
	if resp.StatusCode == http.StatusNoContent {
		return result
	}

	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mt == "application/problem+json" {
		var p dtoapi.ProblemDetail
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			t.Fatalf("apitest: decode problem: %v", err)
		}
		result.Problem = &p
		return result
	}

	var decoded Resp
	switch err := json.NewDecoder(resp.Body).Decode(&decoded); {
	case errors.Is(err, io.EOF):
	case err != nil:
		t.Fatalf("apitest: decode response: %v", err)
	default:
		result.Body = &decoded
	}
	return result
}
