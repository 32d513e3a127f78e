package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"calc-gateway/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

const welcomeMessage = "Calculator API Gateway is running."

// HealthHandler serves the welcome, health and status endpoints.
type HealthHandler struct {
	gateway *service.Gateway
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(gw *service.Gateway, v Version) *HealthHandler {
	return &HealthHandler{gateway: gw, version: v}
}

// Welcome reports that the gateway is up and lists the routed services.
func (h *HealthHandler) Welcome(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"message":  welcomeMessage,
		"services": h.gateway.Services(),
	})
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns gateway status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  string(h.version),
		"services": h.gateway.Services(),
	})
}
