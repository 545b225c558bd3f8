package piperun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/crmgate/internal/instrumentation"
	"github.com/teemow/crmgate/internal/logging"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 10 << 20

// Client provides access to the Piperun REST API.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default otelhttp-instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records each outbound call on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for cfg. The token is not required here so
// that a gateway can start and report itself unhealthy; calls will fail
// with 401 instead.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid piperun base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid piperun base URL %q: must be absolute", cfg.BaseURL)
	}

	c := &Client{
		baseURL: base,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithComponent(c.logger, "piperun")
	return c, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// HasToken reports whether an API token is configured.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// Get performs a GET on path with query and returns the response body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// Put performs a PUT on path with body encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	op := method + " " + path

	ctx, span := instrumentation.StartCRMAPISpan(ctx, method, path)
	defer span.End()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, &APIError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reqBody = bytes.NewReader(raw)
	}

	u := c.endpoint(path, query)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordCRMAPIRequest(ctx, method, path, 0, time.Since(start))
		// The request URL carries the token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = logging.RedactURL(u)
		}
		apiErr := &APIError{Op: op, Err: err}
		instrumentation.SetSpanError(span, apiErr)
		c.logger.Debug("piperun request failed",
			logging.Endpoint(logging.RedactURL(u)),
			logging.Err(err))
		return nil, apiErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	duration := time.Since(start)
	c.metrics.RecordCRMAPIRequest(ctx, method, path, resp.StatusCode, duration)

	c.logger.Debug("piperun request",
		slog.String("method", method),
		logging.Endpoint(logging.RedactURL(u)),
		slog.Int("status", resp.StatusCode),
		logging.Duration(duration))

	if err != nil {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
		instrumentation.SetSpanError(span, apiErr)
		return nil, apiErr
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
		instrumentation.SetSpanError(span, apiErr)
		return nil, apiErr
	}

	instrumentation.SetSpanSuccess(span)
	return data, nil
}

// endpoint joins path onto the base URL and adds the api_token parameter.
func (c *Client) endpoint(path string, query url.Values) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")

	q := url.Values{}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}
	if c.token != "" {
		q.Set("api_token", c.token)
	}
	u.RawQuery = q.Encode()
	return &u
}
