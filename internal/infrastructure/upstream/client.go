// Package upstream is the JSON HTTP client for the Productboard REST API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

const maxErrorBody = 4096

// HeaderSource supplies per-request headers, usually authentication.
type HeaderSource interface {
	AuthHeaders(ctx context.Context) (map[string]string, error)
}

// API is the set of calls tools make against the upstream service.
type API interface {
	Get(ctx context.Context, path string, query map[string]string) (any, error)
	Post(ctx context.Context, path string, body any) (any, error)
	Put(ctx context.Context, path string, body any) (any, error)
	Patch(ctx context.Context, path string, body any) (any, error)
	Delete(ctx context.Context, path string, body any) (any, error)
	Request(ctx context.Context, opts RequestOptions) (any, error)
}

// RequestOptions describes one upstream call.
type RequestOptions struct {
	Method   string
	Endpoint string
	Data     any
	Params   map[string]string
	Headers  map[string]string
}

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the upstream API.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	headers    HeaderSource
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithHeaderSource sets where authentication headers come from.
func WithHeaderSource(h HeaderSource) Option {
	return func(client *Client) {
		client.headers = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a Client.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDefault(c.logger).Named("upstream")
	return c
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query map[string]string) (any, error) {
	return c.Request(ctx, RequestOptions{Method: http.MethodGet, Endpoint: path, Params: query})
}

// Post issues a POST request.
func (c *Client) Post(ctx context.Context, path string, body any) (any, error) {
	return c.Request(ctx, RequestOptions{Method: http.MethodPost, Endpoint: path, Data: body})
}

// Put issues a PUT request.
func (c *Client) Put(ctx context.Context, path string, body any) (any, error) {
	return c.Request(ctx, RequestOptions{Method: http.MethodPut, Endpoint: path, Data: body})
}

// Patch issues a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body any) (any, error) {
	return c.Request(ctx, RequestOptions{Method: http.MethodPatch, Endpoint: path, Data: body})
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, body any) (any, error) {
	return c.Request(ctx, RequestOptions{Method: http.MethodDelete, Endpoint: path, Data: body})
}

// Request issues a request and decodes the JSON response. An empty body
// decodes to nil.
func (c *Client) Request(ctx context.Context, opts RequestOptions) (any, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("upstream request failed", logging.Fields{
			"method":    req.Method,
			"url":       req.URL.Path,
			"requestId": req.Header.Get("X-Request-ID"),
			"error":     err,
		})
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "read response body: " + err.Error(), Temporary: true}
	}

	c.logger.Debug("upstream request completed", logging.Fields{
		"method":    req.Method,
		"url":       req.URL.Path,
		"status":    resp.StatusCode,
		"requestId": req.Header.Get("X-Request-ID"),
		"duration":  time.Since(start),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp.StatusCode, data)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "decode upstream response")
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, opts RequestOptions) (*http.Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(c.baseURL + "/" + strings.TrimLeft(opts.Endpoint, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "build upstream url")
	}
	if len(opts.Params) > 0 {
		q := u.Query()
		for k, v := range opts.Params {
			if v != "" {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if opts.Data != nil {
		payload, err := json.Marshal(opts.Data)
		if err != nil {
			return nil, errors.Wrap(err, "encode upstream request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "create upstream request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	if c.headers != nil {
		headers, err := c.headers.AuthHeaders(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "resolve auth headers")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func newStatusError(status int, body []byte) *Error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	msg := http.StatusText(status)

	var payload struct {
		Message string `json:"message"`
		Errors  []struct {
			Detail string `json:"detail"`
			Title  string `json:"title"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case len(payload.Errors) > 0 && payload.Errors[0].Detail != "":
			msg = payload.Errors[0].Detail
		case len(payload.Errors) > 0 && payload.Errors[0].Title != "":
			msg = payload.Errors[0].Title
		}
	}
	return &Error{StatusCode: status, Message: msg, Body: string(body)}
}

var _ API = (*Client)(nil)
