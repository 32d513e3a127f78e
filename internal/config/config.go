// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/calc-gateway/config.toml",
	"configs/config.toml",
}

// Well-known backend services and their defaults.
const (
	ServiceLogin     = "login"
	ServiceCalculate = "calculate"
	ServiceHistory   = "history"
)

var defaultServices = map[string]ServiceConfig{
	ServiceLogin:     {URL: "http://localhost:8001", Protected: boolPtr(false)},
	ServiceCalculate: {URL: "http://localhost:8002", Protected: boolPtr(true)},
	ServiceHistory:   {URL: "http://localhost:8003", Protected: boolPtr(true)},
}

// reservedNames are first path segments owned by the gateway itself.
var reservedNames = []string{"healthz", "gateway"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config        string `kong:"short='c',help='Path to TOML or YAML config file.',env='CONFIG_PATH'"`
	Host          string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port          int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	LogLevel      string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	LoginURL      string `kong:"name='login-url',help='Base URL of the login service.',env='LOGIN_SERVICE_URL'"`
	CalculatorURL string `kong:"name='calculator-url',help='Base URL of the calculator service.',env='CALCULATOR_SERVICE_URL'"`
	HistoryURL    string `kong:"name='history-url',help='Base URL of the history service.',env='HISTORY_SERVICE_URL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig             `toml:"server" yaml:"server"`
	Services map[string]ServiceConfig `toml:"services" yaml:"services"`
	Upstream UpstreamConfig           `toml:"upstream" yaml:"upstream"`
	Log      LogConfig                `toml:"log" yaml:"log"`
	Metrics  MetricsConfig            `toml:"metrics" yaml:"metrics"`
	Tracing  TracingConfig            `toml:"tracing" yaml:"tracing"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host" yaml:"host"`
	Port         int    `toml:"port" yaml:"port"` // 0 means "use default" (8000)
	BodyMaxBytes int64  `toml:"body_max_bytes" yaml:"body_max_bytes"`
}

// ServiceConfig describes one backend service.
type ServiceConfig struct {
	URL string `toml:"url" yaml:"url"`
	// Protected marks services expected to receive an Authorization header.
	// Nil means "use the built-in default for this name".
	Protected *bool `toml:"protected" yaml:"protected"`
}

// IsProtected reports the effective protected flag.
func (s ServiceConfig) IsProtected() bool {
	return s.Protected != nil && *s.Protected
}

// UpstreamConfig holds backend connection settings.
type UpstreamConfig struct {
	TimeoutSeconds  int `toml:"timeout_seconds" yaml:"timeout_seconds"`
	IdleConnections int `toml:"idle_connections" yaml:"idle_connections"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	Enabled     bool   `toml:"enabled" yaml:"enabled"`
	Endpoint    string `toml:"endpoint" yaml:"endpoint"`
	Insecure    bool   `toml:"insecure" yaml:"insecure"`
	ServiceName string `toml:"service_name" yaml:"service_name"`
}

// Load reads the config file (if any) and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/calc-gateway/config.toml then configs/config.toml. A missing file is
// not an error: every known service falls back to its default address.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// decode picks the format from the file extension; TOML is the default.
func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.Unmarshal(data, cfg)
	}
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	c.overrideServiceURL(ServiceLogin, cli.LoginURL)
	c.overrideServiceURL(ServiceCalculate, cli.CalculatorURL)
	c.overrideServiceURL(ServiceHistory, cli.HistoryURL)
}

func (c *Config) overrideServiceURL(name, u string) {
	if u == "" {
		return
	}
	if c.Services == nil {
		c.Services = make(map[string]ServiceConfig)
	}
	svc := c.Services[name]
	svc.URL = u
	c.Services[name] = svc
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		if p == "/" {
			return fmt.Errorf("metrics.path %q conflicts with the welcome route", p)
		}
		for _, reserved := range reservedNames {
			if p == "/"+reserved || strings.HasPrefix(p, "/"+reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route /%s", p, reserved)
			}
		}
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}

	reserved := reservedNames
	if seg := c.metricsSegment(); seg != "" {
		if _, known := defaultServices[seg]; known {
			return fmt.Errorf("metrics.path %q conflicts with service route /%s", c.Metrics.Path, seg)
		}
		reserved = append([]string{seg}, reserved...)
	}
	seen := make(map[string]bool, len(c.Services))
	for _, name := range c.ServiceNames() {
		svc := c.Services[name]
		key := strings.ToLower(name)
		if key == "" || strings.Contains(key, "/") {
			return fmt.Errorf("services: invalid service name %q", name)
		}
		if seen[key] {
			return fmt.Errorf("services: %q is configured more than once", key)
		}
		seen[key] = true
		for _, r := range reserved {
			if key == r {
				return fmt.Errorf("services.%s conflicts with reserved route /%s", name, r)
			}
		}
		if svc.URL == "" {
			if _, known := defaultServices[key]; known {
				continue
			}
			return fmt.Errorf("services.%s.url is required", name)
		}
		u, err := url.Parse(svc.URL)
		if err != nil {
			return fmt.Errorf("services.%s.url is not a valid URL: %w", name, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("services.%s.url must be an absolute http(s) URL; got %q", name, svc.URL)
		}
	}

	return nil
}

// metricsSegment returns the first path segment of the metrics route, or
// empty when metrics are disabled.
func (c *Config) metricsSegment() string {
	if !c.Metrics.Enabled {
		return ""
	}
	p := c.Metrics.Path
	if p == "" {
		p = "/metrics"
	}
	seg, _, _ := strings.Cut(strings.TrimPrefix(p, "/"), "/")
	return strings.ToLower(seg)
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because neither TOML nor YAML
// decoding can distinguish an explicit 0 from an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 10
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "calc-gateway"
	}

	if c.Services == nil {
		c.Services = make(map[string]ServiceConfig)
	}
	normalized := make(map[string]ServiceConfig, len(c.Services)+len(defaultServices))
	for name, svc := range c.Services {
		normalized[strings.ToLower(name)] = svc
	}
	for name, def := range defaultServices {
		svc := normalized[name]
		if svc.URL == "" {
			svc.URL = def.URL
		}
		if svc.Protected == nil {
			svc.Protected = def.Protected
		}
		normalized[name] = svc
	}
	c.Services = normalized
}

// ServiceNames returns the configured service names in sorted order.
func (c *Config) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FilePath returns the config file that was loaded, or empty when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}

func boolPtr(b bool) *bool { return &b }
