package service

import (
	"context"
	"log/slog"
	"net/http"

	"calc-gateway/internal/registry"
)

// AuthHook observes the credentials of a request before it is forwarded.
// Hooks cannot reject requests; the Authorization header always reaches the
// backend untouched.
type AuthHook interface {
	Inspect(ctx context.Context, ep registry.Endpoint, header http.Header)
}

// ObserveOnlyAuth logs requests to protected services that carry no
// Authorization header.
//
// TODO: enforce credentials for protected services once the login service
// exposes a token verification endpoint.
type ObserveOnlyAuth struct {
	logger *slog.Logger
}

// NewObserveOnlyAuth creates an ObserveOnlyAuth.
func NewObserveOnlyAuth(logger *slog.Logger) *ObserveOnlyAuth {
	return &ObserveOnlyAuth{logger: logger.With("component", "auth_hook")}
}

// Inspect implements AuthHook.
func (a *ObserveOnlyAuth) Inspect(ctx context.Context, ep registry.Endpoint, header http.Header) {
	if !ep.Protected || header.Get("Authorization") != "" {
		return
	}
	a.logger.DebugContext(ctx, "protected service called without credentials",
		"service", ep.Name,
	)
}
