package transport

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

	"github.com/google/uuid"

	"github.com/kyptronix/spectrum-admin/cache"
	"github.com/kyptronix/spectrum-admin/endpoint"
	"github.com/kyptronix/spectrum-admin/observe"
	"github.com/kyptronix/spectrum-admin/resilience"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 10 << 20

// HTTP sends endpoint requests to the admin API.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: every returned error has a *cache.Error in its chain.
// - Context: ctx bounds the whole call, retries included.
type HTTP struct {
	base      string
	client    *http.Client
	reads     *resilience.Executor
	writes    *resilience.Executor
	mw        *observe.Middleware
	logger    observe.Logger
	userAgent string
	now       func() time.Time
}

// Option configures HTTP.
type Option func(*HTTP)

// WithHTTPClient sets the client, for example one built by auth.NewClient.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) { h.client = c }
}

// WithExecutors replaces the read and write executors.
func WithExecutors(reads, writes *resilience.Executor) Option {
	return func(h *HTTP) { h.reads, h.writes = reads, writes }
}

// WithInstruments adds request spans, metrics and logs.
func WithInstruments(in observe.Instruments) Option {
	return func(h *HTTP) {
		h.mw = observe.MiddlewareFrom(in)
		if in.Logger != nil {
			h.logger = in.Logger
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(h *HTTP) { h.userAgent = ua }
}

// New creates an HTTP transport for baseURL. Without WithExecutors it uses
// NewExecutors(DefaultConfig()).
func New(baseURL string, opts ...Option) (*HTTP, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	h := &HTTP{
		base:      baseURL,
		client:    &http.Client{},
		logger:    observe.NopLogger(),
		userAgent: "spectrum-admin",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.reads == nil || h.writes == nil {
		h.reads, h.writes = NewExecutors(DefaultConfig())
	}
	if h.mw == nil {
		h.mw = observe.NewMiddleware(nil, nil, h.logger)
	}
	return h, nil
}

// BaseURL returns the API base URL.
func (h *HTTP) BaseURL() string { return h.base }

// Breaker returns the circuit breaker shared by reads and writes, or nil.
func (h *HTTP) Breaker() *resilience.CircuitBreaker { return h.reads.CircuitBreaker() }

// Do sends req and returns the raw JSON body of a 2xx response. An empty
// body is returned as JSON null.
func (h *HTTP) Do(ctx context.Context, req endpoint.Request) (json.RawMessage, error) {
	exec := h.writes
	if req.Idempotent() {
		exec = h.reads
	}

	meta := observe.OpMeta{Kind: observe.OpRequest, Endpoint: req.Name}
	out, err := h.mw.Wrap(func(ctx context.Context, _ observe.OpMeta) (any, error) {
		return resilience.Do(ctx, exec, func(ctx context.Context) (json.RawMessage, error) {
			return h.send(ctx, req)
		})
	})(ctx, meta)
	if err != nil {
		var ce *cache.Error
		if !errors.As(err, &ce) {
			err = cache.NetworkError(req.Name, err)
		}
		return nil, err
	}
	return out.(json.RawMessage), nil
}

func (h *HTTP) send(ctx context.Context, req endpoint.Request) (json.RawMessage, error) {
	target, err := req.URL(h.base)
	if err != nil {
		return nil, cache.ValidationError(req.Name, err.Error())
	}

	var body io.Reader
	if req.Body != nil {
		buf, err := json.Marshal(req.Body)
		if err != nil {
			return nil, cache.ValidationError(req.Name, "encode body: "+err.Error())
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, cache.ValidationError(req.Name, err.Error())
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", h.userAgent)
	httpReq.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := h.now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		var ce *cache.Error
		if errors.As(err, &ce) {
			// The client's credential source failed before sending.
			return nil, err
		}
		return nil, cache.NetworkError(req.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, cache.NetworkError(req.Name, fmt.Errorf("read body: %w", err))
	}

	h.logger.Debug(ctx, "api response",
		observe.F("endpoint", req.Name),
		observe.F("method", req.Method),
		observe.F("status", resp.StatusCode),
		observe.F("request_id", requestID),
		observe.F("elapsed", h.now().Sub(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(req.Name, resp, raw, h.now())
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(raw) {
		return nil, cache.ParseError(req.Name, errors.New("response body is not valid JSON"))
	}
	return json.RawMessage(raw), nil
}
