package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"calc-gateway/internal/metrics"
)

// MetricsMiddleware returns an Echo middleware that records Prometheus metrics
// for each inbound request.
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()

			err := next(c)

			// A returned *echo.HTTPError is written later by the central
			// error handler, so the response status is not final yet.
			statusCode := c.Response().Status
			if err != nil {
				statusCode = statusFromError(err, statusCode)
			}

			status := strconv.Itoa(statusCode)
			method := metrics.NormalizeMethod(c.Request().Method)
			route := m.NormalizePath(c.Request().URL.Path)
			duration := time.Since(start).Seconds()

			m.RequestsTotal.WithLabelValues(method, status, route).Inc()
			m.RequestDuration.WithLabelValues(method, status, route).Observe(duration)

			return err
		}
	}
}

// statusFromError returns the status echo will write for err.
func statusFromError(err error, fallback int) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	if fallback < http.StatusBadRequest {
		return http.StatusInternalServerError
	}
	return fallback
}
