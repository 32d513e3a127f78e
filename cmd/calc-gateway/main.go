package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"calc-gateway/internal/client"
	"calc-gateway/internal/config"
	"calc-gateway/internal/handler"
	"calc-gateway/internal/metrics"
	"calc-gateway/internal/middleware"
	"calc-gateway/internal/registry"
	"calc-gateway/internal/service"
	"calc-gateway/internal/telemetry"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("calc-gateway"),
		kong.Description("API gateway for the calculator services."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		appOptions(&cli),
		fx.WithLogger(newFxLogger),
	).Run()
}

func appOptions(cli *config.CLI) fx.Option {
	return fx.Options(
		fx.Provide(
			func() *config.CLI { return cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			newMetrics,
			newRegistry,
			newEcho,
			fx.Annotate(client.NewBackendClient, fx.As(new(service.Forwarder))),
			fx.Annotate(service.NewObserveOnlyAuth, fx.As(new(service.AuthHook))),
			service.NewGateway,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfigPermissions, startTelemetry, startServer),
	)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// newFxLogger routes fx lifecycle events through slog at debug level.
func newFxLogger(logger *slog.Logger) fxevent.Logger {
	l := &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
	l.UseLogLevel(slog.LevelDebug)
	return l
}

func newMetrics(cfg *config.Config) *metrics.Metrics {
	return metrics.New(cfg.ServiceNames()...)
}

func newRegistry(cfg *config.Config, logger *slog.Logger) (*registry.Registry, error) {
	services := make([]registry.Service, 0, len(cfg.Services))
	for _, name := range cfg.ServiceNames() {
		svc := cfg.Services[name]
		services = append(services, registry.Service{
			Name:      name,
			URL:       svc.URL,
			Protected: svc.IsProtected(),
		})
	}

	reg, err := registry.New(services...)
	if err != nil {
		return nil, err
	}
	for name, base := range reg.Snapshot() {
		logger.Info("service registered", "service", name, "url", base)
	}
	return reg, nil
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks. Slow backends are
	// bounded by the upstream client timeout instead of WriteTimeout.
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echo.WrapMiddleware(otelhttp.NewMiddleware(cfg.Tracing.ServiceName)))
	e.Use(middleware.RequestLogger(logger))
	if cfg.Metrics.Enabled {
		e.Use(middleware.MetricsMiddleware(m))
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.SecurityHeaders())

	return e
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startTelemetry(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) {
	var shutdown telemetry.ShutdownFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.SetupProvider(ctx, cfg.Tracing, version)
			if err != nil {
				return err
			}
			if cfg.Tracing.Enabled {
				logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	})
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr, "version", version)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
