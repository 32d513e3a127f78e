package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"calc-gateway/internal/model"
	"calc-gateway/internal/service"
)

// ProxyHandler adapts the gateway router to echo.
type ProxyHandler struct {
	gateway *service.Gateway
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(gw *service.Gateway, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		gateway: gw,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle routes the request to the backend named by its first path segment
// and writes the relayed response.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	body, err := readBody(req)
	if err != nil {
		// BodyLimit reports oversized streaming bodies through Read.
		if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return err
		}
		h.logger.WarnContext(req.Context(), "reading request body, forwarding empty body",
			"err", err,
			"path", req.URL.Path,
		)
		body = nil
	}

	resp := h.gateway.Route(&model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Path:     req.URL.EscapedPath(),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     body,
	})

	// Backend headers overwrite same-named headers set by middleware.
	dst := c.Response().Header()
	for key, vals := range resp.Header {
		dst[key] = vals
	}

	c.Response().WriteHeader(resp.StatusCode)

	if req.Method == http.MethodHead || len(resp.Body) == 0 {
		return nil
	}
	if _, err := c.Response().Write(resp.Body); err != nil {
		h.logger.DebugContext(req.Context(), "writing response body",
			"err", err,
			"path", req.URL.Path,
		)
	}
	return nil
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	return io.ReadAll(req.Body)
}
