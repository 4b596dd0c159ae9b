package dtoapi_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/dtoapi"
	"github.com/bjaus/dtoapi/dto"
)

func TestWithErrorHandler(t *testing.T) {
	t.Parallel()

	r := dtoapi.New(dtoapi.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(dtoapi.ErrorStatus(err))
		//nolint:errcheck,gosec
		w.Write([]byte("custom: " + err.Error()))
	}))

	dtoapi.Get(r, "/fail", func(_ context.Context, _ *dtoapi.Void) (*dtoapi.Void, error) {
		return nil, dtoapi.Error(http.StatusTeapot, "I'm a teapot")
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/fail", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "custom: I'm a teapot", string(body))
}

type mockEncoder struct{}

func (e *mockEncoder) ContentType() string             { return "application/x-mock" }
func (e *mockEncoder) Encode(_ io.Writer, _ any) error { return nil }

type mockDecoder struct{}

func (d *mockDecoder) ContentType() string             { return "application/x-mock" }
func (d *mockDecoder) Decode(_ io.Reader, _ any) error { return nil }

func TestWithEncoder(t *testing.T) {
	t.Parallel()

	r := dtoapi.New(dtoapi.WithEncoder(&mockEncoder{}))
	assert.NotNil(t, r)
}

func TestWithDecoder(t *testing.T) {
	t.Parallel()

	r := dtoapi.New(dtoapi.WithDecoder(&mockDecoder{}))
	assert.NotNil(t, r)
}

func TestListenAndServe_cancelled_context(t *testing.T) {
	t.Parallel()

	r := dtoapi.New()
	dtoapi.Get(r, "/ping", func(_ context.Context, _ *dtoapi.Void) (*dtoapi.Void, error) {
		return &dtoapi.Void{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately.

	err := r.ListenAndServe(ctx, "127.0.0.1:0")
	// The server should shut down due to the cancelled context.
	// Either it returns nil (graceful shutdown) or context.Canceled.
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestListenAndServe_port_in_use(t *testing.T) {
	t.Parallel()

	// Bind a port first so ListenAndServe fails immediately via errCh path.
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ln.Close()) })

	addr := ln.Addr().String()

	r := dtoapi.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = r.ListenAndServe(ctx, addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind")
}

type mockValidator struct{}

func (m *mockValidator) Validate(_ any) error { return nil }

func TestWithValidator(t *testing.T) {
	t.Parallel()

	r := dtoapi.New(dtoapi.WithValidator(&mockValidator{}))
	assert.NotNil(t, r)
}

func TestWithDTODefaults(t *testing.T) {
	t.Parallel()

	type Resp struct {
		DisplayName string `json:"display_name"`
		Internal    string `json:"internal"`
	}

	r := dtoapi.New(dtoapi.WithDTODefaults(dto.Config{
		RenameStrategy: dto.RenameCamel,
		Exclude:        []string{"internal"},
	}))
	dtoapi.Get(r, "/default", func(_ context.Context, _ *dtoapi.Void) (*Resp, error) {
		return &Resp{DisplayName: "Ada", Internal: "x"}, nil
	}, dtoapi.WithReturnDTO())
	dtoapi.Get(r, "/override", func(_ context.Context, _ *dtoapi.Void) (*Resp, error) {
		return &Resp{DisplayName: "Ada", Internal: "x"}, nil
	}, dtoapi.WithReturnDTO(dtoapi.DTOConfig(dto.Config{RenameStrategy: dto.RenameKebab})))

	tests := map[string]struct {
		path string
		want string
	}{
		"router defaults": {path: "/default", want: `{"displayName":"Ada"}`},
		"route wins":      {path: "/override", want: `{"display-name":"Ada"}`},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			w := serve(t, r, http.MethodGet, tc.path, "", "")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tc.want, w.Body.String())
		})
	}
}

func TestWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := dtoapi.New(dtoapi.WithLogger(logger))
	dtoapi.Post(r, "/books", func(_ context.Context, req *book) (*book, error) {
		return req, nil
	}, dtoapi.WithDataDTO(), dtoapi.WithReturnDTO())

	out := buf.String()
	assert.Contains(t, out, "route registered")
	assert.Contains(t, out, "data_dto=true")
	assert.Contains(t, out, "dto transfer model synthesized")
}

func TestWithTagDescriptions(t *testing.T) {
	t.Parallel()

	r := dtoapi.New(
		dtoapi.WithTitle("Tag Desc"),
		dtoapi.WithTagDescriptions(map[string]string{
			"users":  "User operations",
			"orders": "Order operations",
		}),
	)

	spec := r.Spec()
	require.Len(t, spec.Tags, 2)
	// Tags are sorted by name.
	assert.Equal(t, "orders", spec.Tags[0].Name)
	assert.Equal(t, "Order operations", spec.Tags[0].Description)
	assert.Equal(t, "users", spec.Tags[1].Name)
	assert.Equal(t, "User operations", spec.Tags[1].Description)
}
