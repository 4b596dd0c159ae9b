package dtoapi

import (
	"net/http"
	"reflect"

	"github.com/bjaus/dtoapi/dto"
)

// CookieSetter is optionally implemented by response types to set cookies.
type CookieSetter interface {
	Cookies() []*http.Cookie
}

// HeaderSetter is optionally implemented by response types to set response headers.
type HeaderSetter interface {
	SetHeaders(h http.Header)
}

// responseEncoder writes one route's responses.
type responseEncoder struct {
	status int
	ret    *dto.Backend
	codecs *codecRegistry
}

// encode writes resp, the handler's response pointer, converted to transfer
// data first when the route has a return DTO. Cookies, headers and a dynamic
// status are taken from the response value itself.
func (e responseEncoder) encode(w http.ResponseWriter, r *http.Request, resp any) error {
	body := resp
	if e.ret != nil {
		transfer, err := e.ret.EncodeData(reflect.Indirect(reflect.ValueOf(resp)).Interface())
		if err != nil {
			return err
		}
		body = transfer
	}

	if cs, ok := resp.(CookieSetter); ok {
		for _, c := range cs.Cookies() {
			http.SetCookie(w, c)
		}
	}
	if hs, ok := resp.(HeaderSetter); ok {
		hs.SetHeaders(w.Header())
	}

	status := e.status
	if sc, ok := resp.(StatusCoder); ok {
		status = sc.StatusCode()
	}

	enc, ok := e.codecs.negotiate(r.Header.Get("Accept"))
	if !ok {
		enc = e.codecs.encoders[0]
	}

	w.Header().Set("Content-Type", enc.ContentType())
	w.WriteHeader(status)
	//nolint:errcheck,gosec // best-effort after WriteHeader
	enc.Encode(w, body)
	return nil
}

// writeErrorResponse writes an error as an RFC 9457 problem details response,
// in YAML when the client prefers it.
func writeErrorResponse(w http.ResponseWriter, r *http.Request, err error, codecs *codecRegistry) {
	problem := *Problem(err)
	if problem.RequestID == "" {
		problem.RequestID = GetRequestID(r)
	}

	contentType := "application/problem+json"
	var enc Encoder = jsonCodec{}
	if e, ok := codecs.negotiate(r.Header.Get("Accept")); ok && e.ContentType() == "application/yaml" {
		contentType, enc = "application/problem+yaml", e
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(problem.Status)
	//nolint:errcheck,gosec // best-effort after WriteHeader
	enc.Encode(w, &problem)
}
