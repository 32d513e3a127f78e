// Package client provides the outbound HTTP client used to reach backend services.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"calc-gateway/internal/config"
	"calc-gateway/internal/metrics"
	"calc-gateway/internal/model"
)

// BackendClient forwards translated requests to backend services. It is safe
// for concurrent use; the underlying connection pool is shared by all requests.
type BackendClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient with connection pooling and a
// per-request timeout. The metrics parameter is optional; pass nil to disable
// upstream metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		// Bodies are relayed as received; never negotiate or decode gzip here.
		DisableCompression: true,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
			// Redirects are backend responses like any other; relay them.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}
}

// Forward executes out against its backend and reports the outcome. Any
// status code returned by the backend is a successful result; only transport
// failures produce ResultUnreachable or ResultProtocolError. ctx is usually
// the inbound request context, so a disconnecting caller abandons the call.
func (c *BackendClient) Forward(ctx context.Context, out *model.OutboundRequest) *model.BackendResult {
	method := metrics.NormalizeMethod(out.Method)
	start := time.Now()

	result := c.do(ctx, out)

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(out.Service, method).Observe(time.Since(start).Seconds())
		if result.Kind == model.ResultOK {
			c.metrics.UpstreamResponses.WithLabelValues(out.Service, method, strconv.Itoa(result.StatusCode)).Inc()
		} else {
			c.metrics.UpstreamFailures.WithLabelValues(out.Service, result.Kind.String()).Inc()
		}
	}

	return result
}

func (c *BackendClient) do(ctx context.Context, out *model.OutboundRequest) *model.BackendResult {
	req, err := http.NewRequestWithContext(ctx, out.Method, out.URL.String(), bytes.NewReader(out.Body))
	if err != nil {
		return failure(model.ResultProtocolError, fmt.Errorf("build backend request: %w", err))
	}
	req.Header = out.Header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure(Classify(err), fmt.Errorf("backend request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// Headers already arrived, so the backend was reachable.
		c.logger.WarnContext(ctx, "backend body truncated",
			"service", out.Service,
			"status", resp.StatusCode,
			"read_bytes", len(body),
		)
		return failure(model.ResultProtocolError, fmt.Errorf("read backend body: %w", err))
	}

	return &model.BackendResult{
		Kind:       model.ResultOK,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
}

func failure(kind model.ResultKind, err error) *model.BackendResult {
	return &model.BackendResult{Kind: kind, Err: err}
}

// Classify maps an error returned before any response arrived to a result
// kind. Dial failures, DNS failures and timeouts mean the backend is
// unreachable; everything else is a protocol error.
func Classify(err error) model.ResultKind {
	if errors.Is(err, context.Canceled) {
		return model.ResultProtocolError
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) {
		return model.ResultUnreachable
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return model.ResultUnreachable
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return model.ResultUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ResultUnreachable
	}

	return model.ResultProtocolError
}
