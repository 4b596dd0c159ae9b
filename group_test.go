package dtoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/dtoapi"
	"github.com/bjaus/dtoapi/dto"
)

type profile struct {
	DisplayName string `json:"display_name"`
	Internal    string `json:"internal"`
}

func echoProfile(_ context.Context, req *profile) (*profile, error) {
	return req, nil
}

func addHeader(name, value string) dtoapi.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add(name, value)
			next.ServeHTTP(w, r)
		})
	}
}

func TestGroup_nesting(t *testing.T) {
	t.Parallel()

	r := dtoapi.New()
	v1 := r.Group("/v1", dtoapi.WithGroupMiddleware(addHeader("X-Layer", "v1")))
	admin := v1.Group("/admin", dtoapi.WithGroupMiddleware(addHeader("X-Layer", "admin")))

	dtoapi.Post(v1, "/books", func(_ context.Context, req *book) (*book, error) {
		return req, nil
	}, dtoapi.WithDataDTO(), dtoapi.WithReturnDTO())
	dtoapi.Post(admin, "/books", func(_ context.Context, req *book) (*book, error) {
		req.ID = 1
		return req, nil
	}, dtoapi.WithDataDTO(), dtoapi.WithReturnDTO())

	tests := map[string]struct {
		target string
		layers []string
		want   string
	}{
		"group":        {target: "/v1/books", layers: []string{"v1"}, want: `{"id":0,"title":"Dune","pages":412}`},
		"nested group": {target: "/v1/admin/books", layers: []string{"v1", "admin"}, want: `{"id":1,"title":"Dune","pages":412}`},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			w := serve(t, r, http.MethodPost, tc.target, "application/json", `{"id":9,"title":"Dune","pages":412}`)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.JSONEq(t, tc.want, w.Body.String())
			assert.Equal(t, tc.layers, w.Header().Values("X-Layer"))
		})
	}
}

func TestGroup_middleware_skips_other_routes(t *testing.T) {
	t.Parallel()

	r := dtoapi.New()
	admin := r.Group("/admin", dtoapi.WithGroupMiddleware(addHeader("X-Layer", "admin")))
	dtoapi.Post(admin, "/profile", echoProfile, dtoapi.WithDataDTO())
	dtoapi.Post(r, "/profile", echoProfile, dtoapi.WithDataDTO())

	w := serve(t, r, http.MethodPost, "/profile", "application/json", `{"display_name":"Ada","internal":"x"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, w.Header().Get("X-Layer"))
}

func TestGroup_dto_defaults(t *testing.T) {
	t.Parallel()

	r := dtoapi.New(dtoapi.WithDTODefaults(dto.Config{RenameStrategy: dto.RenameKebab}))
	api := r.Group("/api", dtoapi.WithGroupDTODefaults(dto.Config{
		RenameStrategy: dto.RenameCamel,
		Exclude:        []string{"internal"},
	}))
	strict := api.Group("/strict", dtoapi.WithGroupDTODefaults(dto.Config{ForbidUnknownFields: true}))

	dtoapi.Post(r, "/profile", echoProfile, dtoapi.WithDataDTO(), dtoapi.WithReturnDTO())
	dtoapi.Post(api, "/profile", echoProfile, dtoapi.WithDataDTO(), dtoapi.WithReturnDTO())
	dtoapi.Post(api, "/pascal", echoProfile,
		dtoapi.WithDataDTO(dtoapi.DTOConfig(dto.Config{RenameStrategy: dto.RenamePascal})),
		dtoapi.WithReturnDTO(dtoapi.DTOConfig(dto.Config{RenameStrategy: dto.RenamePascal})))
	dtoapi.Post(strict, "/profile", echoProfile, dtoapi.WithDataDTO(), dtoapi.WithReturnDTO())

	tests := map[string]struct {
		target string
		body   string
		status int
		want   string
	}{
		"router defaults": {
			target: "/profile",
			body:   `{"display-name":"Ada","internal":"x"}`,
			status: http.StatusOK,
			want:   `{"display-name":"Ada","internal":"x"}`,
		},
		"group defaults win over the router": {
			target: "/api/profile",
			body:   `{"displayName":"Ada","internal":"x"}`,
			status: http.StatusOK,
			want:   `{"displayName":"Ada"}`,
		},
		"route config wins over the group": {
			target: "/api/pascal",
			body:   `{"DisplayName":"Ada"}`,
			status: http.StatusOK,
			want:   `{"DisplayName":"Ada"}`,
		},
		"nested group inherits and adds": {
			target: "/api/strict/profile",
			body:   `{"displayName":"Ada"}`,
			status: http.StatusOK,
			want:   `{"displayName":"Ada"}`,
		},
		"nested group rejects unknown keys": {
			target: "/api/strict/profile",
			body:   `{"displayName":"Ada","display_name":"x"}`,
			status: http.StatusBadRequest,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			w := serve(t, r, http.MethodPost, tc.target, "application/json", tc.body)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			if tc.status == http.StatusOK {
				assert.JSONEq(t, tc.want, w.Body.String())
				return
			}
			assert.NotEmpty(t, decodeJSON[dtoapi.ProblemDetail](t, w).Errors)
		})
	}
}

func TestGroup_spec(t *testing.T) {
	t.Parallel()

	r := dtoapi.New(dtoapi.WithTitle("Test"))
	v1 := r.Group("/v1", dtoapi.WithGroupTags("v1"), dtoapi.WithGroupErrors(http.StatusUnauthorized))
	books := v1.Group("/books", dtoapi.WithGroupTags("books"), dtoapi.WithGroupErrors(http.StatusConflict))

	dtoapi.Post(books, "", func(_ context.Context, req *book) (*book, error) {
		return req, nil
	}, dtoapi.WithDataDTO(), dtoapi.WithReturnDTO(), dtoapi.WithTags("write"))

	spec := r.Spec()
	op, ok := spec.Paths["/v1/books"]["post"]
	require.True(t, ok, "post /v1/books should exist")
	assert.Equal(t, []string{"v1", "books", "write"}, op.Tags)
	assert.Equal(t, "post_v1_books", op.OperationID)
	assert.Contains(t, op.Responses, "401")
	assert.Contains(t, op.Responses, "409")
	require.NotNil(t, spec.Components)
	assert.Contains(t, spec.Components.Schemas, "PostV1BooksBookRequestBody")
	assert.Contains(t, spec.Components.Schemas, "PostV1BooksBookResponseBody")
}
