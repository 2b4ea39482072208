// Package gateway is the client for the annotation backend's HTTP API.
//
// Every call is fallible and idempotency-unaware: the client never retries a
// request. Ids are strings on this side of the wire whatever the backend sends,
// and image URLs are resolved against the configured base URL.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	slogctx "github.com/veqryn/slog-context"
)

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config holds the connection settings for the backend.
type Config struct {
	// BaseURL is the backend root, e.g. "http://localhost:8000".
	BaseURL string

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// TokenSource supplies the bearer token for authenticated requests.
type TokenSource interface {
	Token() string
}

// Client talks to the backend.
type Client struct {
	http    *resty.Client
	baseURL string
	logger  *slog.Logger
	metrics *Metrics

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// New creates a client for the backend at cfg.BaseURL.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c.http = resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger: c.logger})

	return c
}

// BaseURL returns the backend root the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveURL resolves a backend-relative path against the base URL.
func (c *Client) ResolveURL(rel string) string {
	return ResolveURL(c.baseURL, rel)
}

// SetTokenSource replaces the token source. It is safe to call concurrently
// with requests.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnUnauthorized registers fn to run whenever the backend answers 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) unauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// call describes one request.
type call struct {
	op         string
	method     string
	path       string
	pathParams map[string]string
	query      map[string]string
	body       any
	file       *upload

	// token overrides the token source when set.
	token string

	// checksCredentials marks calls whose 401 means a wrong password rather
	// than a dead session; they skip the unauthorized hook.
	checksCredentials bool
}

type upload struct {
	name   string
	reader io.Reader
}

// do executes the call and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, cl call, out any) error {
	requestID := uuid.NewString()
	ctx = slogctx.Append(ctx, "op", cl.op, "request_id", requestID)

	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID)
	if cl.pathParams != nil {
		req.SetPathParams(cl.pathParams)
	}
	if cl.query != nil {
		req.SetQueryParams(cl.query)
	}
	if cl.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(cl.body)
	}
	if cl.file != nil {
		req.SetFileReader("file", cl.file.name, cl.file.reader)
	}
	token := cl.token
	if token == "" {
		token = c.token()
	}
	if token != "" {
		req.SetAuthToken(token)
	}

	start := time.Now()
	resp, err := req.Execute(cl.method, cl.path)
	duration := time.Since(start)

	if err != nil {
		c.metrics.observe(cl.op, "error", duration)
		c.logger.ErrorContext(ctx, "Gateway request failed",
			"method", cl.method,
			"path", cl.path,
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		return fmt.Errorf("failed to %s: %w", strings.ReplaceAll(cl.op, "_", " "), err)
	}

	status := resp.StatusCode()
	c.metrics.observe(cl.op, strconv.Itoa(status), duration)

	if resp.IsError() {
		apiErr := newAPIError(cl.method, cl.path, status, resp.Body())
		c.logger.WarnContext(ctx, "Gateway request rejected",
			"method", cl.method,
			"path", cl.path,
			"status", status,
			"detail", apiErr.Detail,
			"duration_ms", duration.Milliseconds(),
		)
		if status == http.StatusUnauthorized && !cl.checksCredentials {
			c.unauthorized()
		}
		return apiErr
	}

	c.logger.DebugContext(ctx, "Gateway request ok",
		"method", cl.method,
		"path", cl.path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
	)

	body := bytes.TrimSpace(resp.Body())
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", cl.op, err)
	}
	return nil
}

// restyLogger routes resty's internal messages to slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "resty")
}
