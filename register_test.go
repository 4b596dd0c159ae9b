package dtoapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/dtoapi"
)

func TestRegister_all_methods(t *testing.T) {
	t.Parallel()

	type Resp struct {
		Method string `json:"method"`
	}

	handler := func(method string) dtoapi.Handler[dtoapi.Void, Resp] {
		return func(_ context.Context, _ *dtoapi.Void) (*Resp, error) {
			return &Resp{Method: method}, nil
		}
	}

	tests := map[string]struct {
		register func(reg dtoapi.Registrar)
		method   string
	}{
		"GET": {
			register: func(reg dtoapi.Registrar) {
				dtoapi.Get(reg, "/test", handler("GET"))
			},
			method: http.MethodGet,
		},
		"POST": {
			register: func(reg dtoapi.Registrar) {
				dtoapi.Post(reg, "/test", handler("POST"))
			},
			method: http.MethodPost,
		},
		"PUT": {
			register: func(reg dtoapi.Registrar) {
				dtoapi.Put(reg, "/test", handler("PUT"))
			},
			method: http.MethodPut,
		},
		"PATCH": {
			register: func(reg dtoapi.Registrar) {
				dtoapi.Patch(reg, "/test", handler("PATCH"))
			},
			method: http.MethodPatch,
		},
		"DELETE": {
			register: func(reg dtoapi.Registrar) {
				dtoapi.Delete(reg, "/test", handler("DELETE"))
			},
			method: http.MethodDelete,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := dtoapi.New()
			tc.register(r)

			srv := httptest.NewServer(r)
			defer srv.Close()

			req, err := http.NewRequestWithContext(context.Background(), tc.method, srv.URL+"/test", nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer func() { require.NoError(t, resp.Body.Close()) }()

			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var body Resp
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tc.method, body.Method)
		})
	}
}

func TestRegister_WithStatus(t *testing.T) {
	t.Parallel()

	type Resp struct {
		ID string `json:"id"`
	}

	r := dtoapi.New()
	dtoapi.Post(r, "/items", func(_ context.Context, _ *dtoapi.Void) (*Resp, error) {
		return &Resp{ID: "123"}, nil
	}, dtoapi.WithStatus(http.StatusCreated))

	srv := httptest.NewServer(r)
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/items", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRegister_Void_response_204(t *testing.T) {
	t.Parallel()

	r := dtoapi.New()
	dtoapi.Delete(r, "/items/{id}", func(_ context.Context, _ *dtoapi.Void) (*dtoapi.Void, error) {
		return &dtoapi.Void{}, nil
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, srv.URL+"/items/123", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRegister_Void_handler_returns_nil(t *testing.T) {
	t.Parallel()

	r := dtoapi.New()
	dtoapi.Post(r, "/items", func(_ context.Context, _ *dtoapi.Void) (*dtoapi.Void, error) {
		return nil, nil
	}, dtoapi.WithStatus(http.StatusAccepted))

	w := serve(t, r, http.MethodPost, "/items", "", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Body.String())
}

// panicMessage returns the message fn panicked with.
func panicMessage(t *testing.T, fn func()) (msg string) {
	t.Helper()

	defer func() {
		rec := recover()
		require.NotNil(t, rec, "expected a panic")
		msg = fmt.Sprint(rec)
	}()
	fn()
	return ""
}

func TestRegister_bad_dto_panics(t *testing.T) {
	t.Parallel()

	type params struct {
		ID int `path:"id"`
	}

	tests := map[string]struct {
		register func(r *dtoapi.Router)
		want     []string
	}{
		"data dto on void request": {
			register: func(r *dtoapi.Router) {
				dtoapi.Post(r, "/books", func(_ context.Context, _ *dtoapi.Void) (*book, error) {
					return &book{}, nil
				}, dtoapi.WithDataDTO())
			},
			want: []string{"dtoapi: POST /books", "dto configuration", "has no body"},
		},
		"data dto on params request": {
			register: func(r *dtoapi.Router) {
				dtoapi.Put(r, "/books/{id}", func(_ context.Context, _ *params) (*book, error) {
					return &book{}, nil
				}, dtoapi.WithDataDTO())
			},
			want: []string{"dtoapi: PUT /books/{id}", "has no body"},
		},
		"return dto on void response": {
			register: func(r *dtoapi.Router) {
				dtoapi.Delete(r, "/books/{id}", func(_ context.Context, _ *params) (*dtoapi.Void, error) {
					return nil, nil
				}, dtoapi.WithReturnDTO())
			},
			want: []string{"dtoapi: DELETE /books/{id}", "void responses have no body"},
		},
		"wrapper without the attribute": {
			register: func(r *dtoapi.Router) {
				dtoapi.Get(r, "/books", func(_ context.Context, _ *dtoapi.Void) (*bookPage, error) {
					return &bookPage{}, nil
				}, dtoapi.WithReturnDTO(dtoapi.DTOWrapper("Books"), dtoapi.DTOModel[book]()))
			},
			want: []string{"dtoapi: GET /books", "return", "no exported field Books"},
		},
		"wrapper on data": {
			register: func(r *dtoapi.Router) {
				dtoapi.Post(r, "/books", func(_ context.Context, _ *bookPage) (*dtoapi.Void, error) {
					return nil, nil
				}, dtoapi.WithDataDTO(dtoapi.DTOWrapper("Items")))
			},
			want: []string{"dtoapi: POST /books", "data", "only supported for return data"},
		},
		"group prefix in message": {
			register: func(r *dtoapi.Router) {
				dtoapi.Post(r.Group("/v2"), "/books", func(_ context.Context, _ *dtoapi.Void) (*book, error) {
					return &book{}, nil
				}, dtoapi.WithDataDTO())
			},
			want: []string{"dtoapi: POST /v2/books"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			msg := panicMessage(t, func() { tc.register(dtoapi.New()) })
			for _, want := range tc.want {
				assert.Contains(t, msg, want)
			}
		})
	}
}

func TestGenerateOperationID(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		method  string
		pattern string
		want    string
	}{
		"root":           {method: http.MethodGet, pattern: "/", want: "get"},
		"static":         {method: http.MethodGet, pattern: "/users", want: "get_users"},
		"path parameter": {method: http.MethodGet, pattern: "/users/{id}", want: "get_users_id"},
		"wildcard":       {method: http.MethodGet, pattern: "/files/{path...}", want: "get_files_path"},
		"mixed case":     {method: http.MethodPost, pattern: "/v1/userGroups", want: "post_v1_usergroups"},
		"dashes":         {method: http.MethodDelete, pattern: "/api-keys/{key_id}", want: "delete_api_keys_key_id"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, dtoapi.GenerateOperationID(tc.method, tc.pattern))
		})
	}
}
