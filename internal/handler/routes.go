package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"calc-gateway/internal/config"
	"calc-gateway/internal/metrics"
)

var proxyMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodHead,
	http.MethodOptions,
}

// RegisterRoutes wires all route handlers onto the Echo instance. The metrics
// endpoint is only mounted when m is non-nil and metrics are enabled.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler, m *metrics.Metrics) {
	e.GET("/", health.Welcome)
	e.GET("/healthz", health.Healthz)
	e.GET("/gateway/status", health.Status)

	if m != nil && cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.Match(proxyMethods, "/:service", proxy.Handle)
	e.Match(proxyMethods, "/:service/*", proxy.Handle)
}
