package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request is an immutable description of one API call. Every With* method
// returns a modified copy, so a descriptor can be resent without sharing
// state with other in-flight calls.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	Header http.Header
	// Retried marks the single resend after a refresh. A retried request is
	// never given a fresh bearer by the auth middleware and never retried again.
	Retried bool
	// SkipAuth sends the request with the ambient cookie only (used by refresh).
	SkipAuth bool
}

// NewRequest builds a descriptor for method and path.
func NewRequest(method, path string) Request {
	if strings.TrimSpace(method) == "" {
		method = http.MethodGet
	}
	return Request{Method: method, Path: ensureLeadingSlash(path)}
}

// WithJSON returns a copy carrying v encoded as the JSON body.
func (r Request) WithJSON(v interface{}) (Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return r, fmt.Errorf("marshal request body: %w", err)
	}
	r.Body = body
	return r, nil
}

// WithQuery returns a copy with the given query parameters.
func (r Request) WithQuery(q url.Values) Request {
	clone := make(url.Values, len(q))
	for k, v := range q {
		clone[k] = append([]string(nil), v...)
	}
	r.Query = clone
	return r
}

// WithHeader returns a copy with key set to value.
func (r Request) WithHeader(key, value string) Request {
	h := r.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set(key, value)
	r.Header = h
	return r
}

// WithBearer returns a copy authorized with token.
func (r Request) WithBearer(token string) Request {
	return r.WithHeader("Authorization", "Bearer "+token)
}

// AsRetry returns the copy that is resent once after a successful refresh.
func (r Request) AsRetry(token string) Request {
	r = r.WithBearer(token)
	r.Retried = true
	return r
}

// Ambient returns a copy that relies on the cookie jar alone.
func (r Request) Ambient() Request {
	r.SkipAuth = true
	return r
}

// Bearer returns the token from the Authorization header, if any.
func (r Request) Bearer() string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return v[7:]
	}
	return ""
}

func (r Request) String() string {
	return r.Method + " " + r.Path
}

func ensureLeadingSlash(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "/"
	}
	if strings.HasPrefix(trimmed, "/") {
		return trimmed
	}
	return "/" + trimmed
}

// Response is a fully read HTTP response. Any status code is a Response;
// only transport failures are errors.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into out. An empty body leaves out untouched.
func (r *Response) Decode(out interface{}) error {
	if r == nil || out == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return &RequestError{Op: "decode http response", StatusCode: r.StatusCode, Err: err}
	}
	return nil
}
