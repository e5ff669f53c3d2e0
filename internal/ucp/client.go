package ucp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	DefaultReadTimeout     = 10 * time.Second
	DefaultCheckoutTimeout = 15 * time.Second

	maxBodyBytes = 4 << 20
)

// Decorator attaches request metadata to mutating calls. It runs once per
// HTTP call, after the body has been encoded.
type Decorator interface {
	Decorate(req *http.Request, body []byte) error
}

// Observer receives one observation per merchant call.
type Observer interface {
	ObserveCall(op, outcome string, elapsed time.Duration)
}

type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ReadRetries bounds retries of idempotent GETs. Mutating calls are
	// never retried by the transport.
	ReadRetries int
	Transport   http.RoundTripper
	Decorator   Decorator
	Observer    Observer
	Logger      *zap.Logger
}

// Client is the JSON/HTTP transport used for every merchant call.
type Client struct {
	reads        *retryablehttp.Client
	writes       *http.Client
	readTimeout  time.Duration
	writeTimeout time.Duration
	decorator    Decorator
	observer     Observer
	logger       *zap.Logger
}

func NewClient(opts Options) *Client {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultCheckoutTimeout
	}
	if opts.ReadRetries < 0 {
		opts.ReadRetries = 0
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	traced := otelhttp.NewTransport(base)

	reads := retryablehttp.NewClient()
	reads.HTTPClient = &http.Client{Transport: traced}
	reads.RetryMax = opts.ReadRetries
	reads.RetryWaitMin = 100 * time.Millisecond
	reads.RetryWaitMax = time.Second
	reads.Logger = nil
	reads.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		reads:        reads,
		writes:       &http.Client{Transport: traced},
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		decorator:    opts.Decorator,
		observer:     opts.Observer,
		logger:       logger.Named("ucp"),
	}
}

// GetJSON issues a read call and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, op, rawURL string, query url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	if len(query) > 0 {
		rawURL = rawURL + "?" + query.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Validation(op, "build request for %s: %v", rawURL, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.reads.Do(req)
	return c.finish(op, http.MethodGet, start, resp, err, out)
}

// PostJSON encodes body, lets the decorator stamp the request, and issues a
// single mutating call under the checkout timeout.
func (c *Client) PostJSON(ctx context.Context, op, rawURL string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return Validation(op, "encode request body: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return Validation(op, "build request for %s: %v", rawURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.decorator != nil {
		if err := c.decorator.Decorate(req, payload); err != nil {
			return &Error{Kind: KindValidation, Op: op, Msg: "decorate request", Err: err}
		}
	}

	start := time.Now()
	resp, err := c.writes.Do(req)
	return c.finish(op, http.MethodPost, start, resp, err, out)
}

// finish classifies the response. A 404 means NotFound only for reads; on a
// mutating call it is a Transport failure like any other non-2xx.
func (c *Client) finish(op, method string, start time.Time, resp *http.Response, err error, out any) error {
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		outcome := "network_error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		c.observe(op, outcome, start)
		c.logger.Warn("merchant call failed", zap.String("op", op), zap.Error(err))
		return Transport(op, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.observe(op, "read_error", start)
		return Transport(op, resp.StatusCode, fmt.Errorf("read response body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		c.observe(op, "not_found", start)
		return &Error{Kind: KindNotFound, Op: op, Status: resp.StatusCode, Msg: snippet(data)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.observe(op, "http_error", start)
		c.logger.Warn("merchant returned non-success status",
			zap.String("op", op), zap.Int("status", resp.StatusCode))
		return Transport(op, resp.StatusCode, fmt.Errorf("merchant returned %s: %s", resp.Status, snippet(data)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			c.observe(op, "protocol_error", start)
			return &Error{Kind: KindProtocol, Op: op, Status: resp.StatusCode, Msg: "decode response", Err: err}
		}
	}
	c.observe(op, "ok", start)
	c.logger.Debug("merchant call ok", zap.String("op", op), zap.Int("status", resp.StatusCode))
	return nil
}

func (c *Client) observe(op, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveCall(op, outcome, time.Since(start))
	}
}

func snippet(b []byte) string {
	const n = 256
	s := string(bytes.TrimSpace(b))
	if len(s) > n {
		return s[:n] + "…"
	}
	return s
}
