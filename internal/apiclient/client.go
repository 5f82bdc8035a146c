// Package apiclient calls the maintenance REST API on behalf of a dashboard
// session. Every call forwards the session's bearer token, is recorded in
// metrics and traced. Failures are reported once as NETWORK_OR_SERVER_ERROR
// and never retried.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pitabwire/workdesk/internal/config"
	"github.com/pitabwire/workdesk/internal/observability"
	"github.com/pitabwire/workdesk/model"
)

// Client is a maintenance API client shared by all sessions. It is safe for
// concurrent use; the session is taken from each call's context.
type Client struct {
	baseURL          string
	client           *http.Client
	breaker          *CircuitBreaker
	maxResponseBytes int64
	metrics          *observability.Metrics
	logger           *zap.Logger
}

// New creates a client for the configured backend. metrics and logger may
// be nil.
func New(cfg config.BackendConfig, metrics *observability.Metrics, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			// Zero leaves the deadline to the caller's context.
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		maxResponseBytes: cfg.MaxResponseBytes,
		metrics:          metrics,
		logger:           logger,
	}
	if c.maxResponseBytes <= 0 {
		c.maxResponseBytes = 10 << 20
	}
	if cb := cfg.CircuitBreaker; cb.FailureThreshold > 0 {
		c.breaker = NewCircuitBreaker(cb.FailureThreshold, cb.SuccessThreshold, cb.Timeout)
		c.breaker.OnStateChange(func(s BreakerState) {
			metrics.SetCircuitBreakerState(float64(s))
			logger.Warn("maintenance API circuit breaker changed state", zap.String("state", s.String()))
		})
	}
	return c
}

// BaseURL returns the API root all paths are resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// HealthCheck reports the API as unhealthy while the circuit breaker is open.
// It makes no network call.
func (c *Client) HealthCheck(context.Context) error {
	if c.breaker.State() == BreakerOpen {
		return fmt.Errorf("maintenance API circuit breaker is open")
	}
	return nil
}

// request describes one call. body is JSON-encoded when set; raw is sent
// as-is with contentType.
type request struct {
	op          Operation
	params      map[string]string
	body        any
	raw         io.Reader
	contentType string
}

// do executes req and decodes a 2xx response into out, when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) (err error) {
	ctx, span := observability.StartClientSpan(ctx, "api."+req.op.ID,
		observability.AttrOperation.String(req.op.ID),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	logger := observability.RequestLogger(ctx, c.logger).With(
		zap.String("operation", req.op.ID),
		zap.String("method", req.op.Method),
	)

	if err := c.breaker.Allow(); err != nil {
		logger.Warn("maintenance API call rejected by circuit breaker")
		return model.NewNetworkOrServerError(0, "The maintenance API is temporarily unavailable", err)
	}

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		c.breaker.release()
		return err
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.breaker.RecordFailure()
		c.metrics.RecordAPIRequest(req.op.ID, 0, time.Since(start))
		logger.Error("maintenance API unreachable", zap.Error(err))
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes))
	duration := time.Since(start)
	c.metrics.RecordAPIRequest(req.op.ID, resp.StatusCode, duration)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if err != nil {
		c.breaker.RecordFailure()
		logger.Error("reading maintenance API response failed", zap.Error(err))
		return model.NewNetworkOrServerError(resp.StatusCode, "", fmt.Errorf("apiclient: read response: %w", err))
	}

	// A 4xx still proves the API is reachable.
	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := upstreamMessage(body)
		fields := []zap.Field{zap.Int("status", resp.StatusCode), zap.Duration("duration", duration), zap.String("upstream_message", msg)}
		if resp.StatusCode >= 500 {
			logger.Error("maintenance API call failed", fields...)
		} else {
			logger.Warn("maintenance API call rejected", fields...)
		}
		return model.NewNetworkOrServerError(resp.StatusCode, msg,
			fmt.Errorf("apiclient: %s %s returned %d", req.op.Method, req.op.Path, resp.StatusCode))
	}

	logger.Debug("maintenance API call",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		logger.Error("maintenance API returned malformed JSON", zap.Error(err))
		return model.NewNetworkOrServerError(resp.StatusCode, "The maintenance API returned an unreadable response",
			fmt.Errorf("apiclient: decode %s: %w", req.op.ID, err))
	}
	return nil
}

func (c *Client) buildRequest(ctx context.Context, req request) (*http.Request, error) {
	var body io.Reader
	contentType := ""
	switch {
	case req.raw != nil:
		body = req.raw
		contentType = req.contentType
	case req.body != nil:
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: marshal %s body: %w", req.op.ID, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.op.Method, c.baseURL+req.op.expand(req.params), body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if s := model.SessionFrom(ctx); s != nil {
		if s.Token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+sanitizeHeader(s.Token))
		}
		if s.CorrelationID != "" {
			httpReq.Header.Set("X-Correlation-Id", sanitizeHeader(s.CorrelationID))
		}
	}
	observability.InjectTraceHeaders(ctx, httpReq.Header)
	return httpReq, nil
}

// sanitizeHeader strips newlines and carriage returns to prevent header injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

// upstreamMessage extracts the "message" field of an error body. The API
// sends either a string or a list of strings.
func upstreamMessage(body []byte) string {
	var payload struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch m := payload.Message.(type) {
	case string:
		return m
	case []any:
		parts := make([]string, 0, len(m))
		for _, p := range m {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func transportError(ctx context.Context, err error) *model.ErrorEnvelope {
	switch {
	case ctx.Err() != nil:
		return model.NewNetworkOrServerError(0, "The maintenance API did not respond in time", err)
	case isConnectionError(err):
		return model.NewNetworkOrServerError(0, "The maintenance API is unreachable", err)
	default:
		return model.NewNetworkOrServerError(0, "", fmt.Errorf("apiclient: request failed: %w", err))
	}
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
