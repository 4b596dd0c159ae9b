package dtoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type author struct {
	Name  string `json:"name"`
	Email string `json:"email" dto:"write-only"`
}

type book struct {
	ID     int    `json:"id" dto:"read-only"`
	Title  string `json:"title" doc:"Book title"`
	Pages  int    `json:"pages"`
	Secret string `json:"_secret"`
}

type signup struct {
	Email string `json:"email" pattern:"^[^@]+@[^@]+$"`
	Name  string `json:"name" minLength:"2" maxLength:"32"`
	Plan  string `json:"plan" enum:"free,pro" default:"free"`
}

type ledgerRow struct {
	ID     int64   `db:"id" json:"id"`
	Amount float64 `db:"amount" json:"amount"`
}

type bookPage struct {
	Items []book `json:"items"`
	Total int    `json:"total"`
}

func typeOf[T any]() reflect.Type { return reflect.TypeFor[T]() }

// serve runs one request against h and returns the recorded response.
func serve(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func httptestRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func httptestRequestBody(method, target, contentType, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", contentType)
	return req
}

func record(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}
