package service

import (
	"context"
	"log/slog"

	"calc-gateway/internal/model"
	"calc-gateway/internal/registry"
)

// Forwarder executes an outbound request against a backend.
type Forwarder interface {
	Forward(ctx context.Context, out *model.OutboundRequest) *model.BackendResult
}

// Gateway routes inbound requests to backend services. It holds no
// per-request state and is safe for concurrent use.
type Gateway struct {
	registry  *registry.Registry
	forwarder Forwarder
	auth      AuthHook
	logger    *slog.Logger
}

// NewGateway creates a Gateway.
func NewGateway(reg *registry.Registry, fwd Forwarder, auth AuthHook, logger *slog.Logger) *Gateway {
	return &Gateway{
		registry:  reg,
		forwarder: fwd,
		auth:      auth,
		logger:    logger.With("component", "gateway"),
	}
}

// Route resolves the service named by the first path segment and forwards
// the request to it. Unknown services are rejected without any backend call.
func (g *Gateway) Route(pr *model.ProxyRequest) *model.ProxyResponse {
	ctx := pr.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	name := ServiceToken(pr.Path)
	ep, ok := g.registry.Resolve(name)
	if !ok {
		g.logger.InfoContext(ctx, "unknown service",
			"service", name,
			"method", pr.Method,
		)
		return RelayError(&GatewayError{
			Kind:    KindUnknownService,
			Service: name,
			Known:   g.registry.Names(),
		})
	}

	if g.auth != nil {
		g.auth.Inspect(ctx, ep, pr.Header)
	}

	out := Translate(pr, ep)

	g.logger.DebugContext(ctx, "routing request",
		"service", ep.Name,
		"method", out.Method,
		"url", out.URL.Redacted(),
	)

	res := g.forwarder.Forward(ctx, out)
	if res.Kind != model.ResultOK {
		g.logger.ErrorContext(ctx, "backend failure",
			"service", ep.Name,
			"kind", res.Kind.String(),
			"url", out.URL.Redacted(),
			"err", res.Err,
		)
	}

	return Relay(ep.Name, res)
}

// Services returns the name -> base URL map served by the welcome endpoint.
func (g *Gateway) Services() map[string]string {
	return g.registry.Snapshot()
}

// ServiceNames returns the known service names in sorted order.
func (g *Gateway) ServiceNames() []string {
	return g.registry.Names()
}
