package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

const maxResponseBytes = 2 * 1024 * 1024

// Doer sends one request.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(ctx context.Context, req Request) (*Response, error)

func (f DoerFunc) Do(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware wraps the rest of the chain.
type Middleware func(next Doer) Doer

type namedMiddleware struct {
	name string
	mw   Middleware
}

// Client is the single HTTP client shared by every API consumer. Its
// middleware chain is reconfigured in place; the first installed middleware
// is the outermost.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	chain []namedMiddleware
}

// NewClient creates a client for baseURL. A nil jar gets an in-memory cookie
// jar, which carries the ambient refresh credential.
func NewClient(baseURL string, timeout time.Duration, jar http.CookieJar) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, &RequestError{Op: "create api client", Err: errors.New("api base url is empty")}
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, &RequestError{Op: "parse api base url", Err: err}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, &RequestError{Op: "validate api base url", Err: fmt.Errorf("invalid api base url: %s", trimmed)}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if jar == nil {
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, &RequestError{Op: "create cookie jar", Err: err}
		}
	}

	return &Client{
		baseURL: strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}, nil
}

// BaseURL returns the backend origin without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Use installs mw under name. Installing a name that is already present
// replaces it in place, keeping its position in the chain.
func (c *Client) Use(name string, mw Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.chain {
		if c.chain[i].name == name {
			c.chain[i].mw = mw
			return
		}
	}
	c.chain = append(c.chain, namedMiddleware{name: name, mw: mw})
}

// Remove uninstalls the middleware registered under name, if any.
func (c *Client) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.chain {
		if c.chain[i].name == name {
			c.chain = append(c.chain[:i:i], c.chain[i+1:]...)
			return
		}
	}
}

// Installed reports whether a middleware is registered under name.
func (c *Client) Installed(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.chain {
		if m.name == name {
			return true
		}
	}
	return false
}

// Do runs req through the chain as configured at call time.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	c.mu.RLock()
	chain := make([]namedMiddleware, len(c.chain))
	copy(chain, c.chain)
	c.mu.RUnlock()

	var d Doer = DoerFunc(c.send)
	for i := len(chain) - 1; i >= 0; i-- {
		d = chain[i].mw(d)
	}
	return d.Do(ctx, req)
}

// Call sends req and decodes a 2xx body into out (which may be nil).
// Non-2xx statuses come back as *RequestError.
func (c *Client) Call(ctx context.Context, req Request, out interface{}) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := StatusError(req.String(), resp); err != nil {
		return err
	}
	return resp.Decode(out)
}

// DoJSON is Call for the common case of a JSON body and no query string.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out interface{}) error {
	req := NewRequest(method, path)
	if in != nil {
		var err error
		if req, err = req.WithJSON(in); err != nil {
			return err
		}
	}
	return c.Call(ctx, req, out)
}

func (c *Client) send(ctx context.Context, r Request) (*Response, error) {
	fullURL := c.baseURL + ensureLeadingSlash(r.Path)
	if len(r.Query) > 0 {
		fullURL += "?" + r.Query.Encode()
	}

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, r.Method, fullURL, body)
	if err != nil {
		return nil, &RequestError{Op: "create http request", Err: err}
	}
	for k, v := range r.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	httpReq.Header.Set("Accept", "application/json")
	if len(r.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("X-Request-ID") == "" {
		httpReq.Header.Set("X-Request-ID", uuid.NewString())
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Debug().Err(err).Str("method", r.Method).Str("path", r.Path).Msg("api request failed")
		return nil, &RequestError{Op: "execute http request", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &RequestError{Op: "read http response", StatusCode: resp.StatusCode, Err: err}
	}

	log.Debug().
		Str("method", r.Method).
		Str("path", r.Path).
		Int("status", resp.StatusCode).
		Bool("retried", r.Retried).
		Msg("api request")

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
