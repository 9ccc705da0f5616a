package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/log"
)

// Header names used by the client.
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// Request is a replayable outbound exchange. The body is kept as bytes so
// the same request can be sent again after a credential refresh.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
	// Retried is set once the request has been replayed after a refresh.
	Retried bool
}

// NewRequest builds a request, JSON-encoding body when it is not nil.
func NewRequest(method, path string, body any) (*Request, error) {
	req := &Request{Method: method, Path: path, Header: make(http.Header)}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		req.Body = data
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	out := *r
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

// IsRefresh reports whether this is the credential refresh exchange.
func (r *Request) IsRefresh() bool {
	return r.Path == PathRefresh
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Cookies    []*http.Cookie
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Cookie returns the named cookie set by the response, if any.
func (r *Response) Cookie(name string) (*http.Cookie, bool) {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Handler performs one exchange. Non-2xx statuses are returned as a
// Response, not an error; errors mean no response was received.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Middleware wraps a Handler. Middleware may issue nested calls through
// the Client before or after invoking next.
type Middleware func(next Handler) Handler

// Client is the tender backend API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	mu             sync.RWMutex
	defaultHeaders http.Header
	middleware     []Middleware
	logger         *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithTimeout sets the per-exchange timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new API client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		defaultHeaders: make(http.Header),
		logger:         log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Component("platform")
	return c
}

// SetDefaultHeader sets a header sent with every subsequent request.
func (c *Client) SetDefaultHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultHeaders.Set(key, value)
}

// DeleteDefaultHeader removes a default header. Missing keys are ignored.
func (c *Client) DeleteDefaultHeader(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultHeaders.Del(key)
}

// DefaultHeader returns the current value of a default header.
func (c *Client) DefaultHeader(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultHeaders.Get(key)
}

// Use appends middleware. The first registered runs outermost.
func (c *Client) Use(mw ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, mw...)
}

// Do sends req through the middleware pipeline. Default headers are
// applied first, so middleware sees exactly what is sent.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	c.mu.RLock()
	for k, vs := range c.defaultHeaders {
		if _, set := req.Header[k]; !set {
			req.Header[k] = append([]string(nil), vs...)
		}
	}
	chain := c.send
	for i := len(c.middleware) - 1; i >= 0; i-- {
		chain = c.middleware[i](chain)
	}
	c.mu.RUnlock()

	return chain(ctx, req)
}

// send is the innermost handler that talks HTTP.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	id := uuid.NewString()
	ctx = log.ContextWithRequestID(ctx, id)

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.BaseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header = req.Header.Clone()
	httpReq.Header.Set(HeaderRequestID, id)
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	httpResp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		c.logger.WarnContext(ctx, "request failed", "method", req.Method, "path", req.Path, "error", err)
		return nil, errors.NewNetworkError(req.Path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.NewNetworkError(req.Path, err)
	}

	c.logger.DebugContext(ctx, "request completed",
		"method", req.Method,
		"path", req.Path,
		"status", httpResp.StatusCode,
		"retried", req.Retried,
		"duration", time.Since(start),
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		Cookies:    httpResp.Cookies(),
	}, nil
}

// call is the common path of every endpoint helper: build, send, decode.
func (c *Client) call(ctx context.Context, method, path string, body, target any) (*Response, error) {
	req, err := NewRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := Decode(resp, path, target); err != nil {
		return resp, err
	}
	return resp, nil
}

// Decode turns a non-2xx response into an *APIError and otherwise
// unmarshals the body into target (which may be nil).
func Decode(resp *Response, endpoint string, target any) error {
	if !resp.OK() {
		return newAPIError(endpoint, resp)
	}
	if target == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		if target != nil {
			return errors.NewMalformedResponseError(endpoint, fmt.Errorf("empty body"))
		}
		return nil
	}
	if err := json.Unmarshal(resp.Body, target); err != nil {
		return errors.NewMalformedResponseError(endpoint, err)
	}
	return nil
}
