// Package config loads server configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/domain"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/auth"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/cache"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/ratelimit"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/retry"
	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/upstream"
)

// Transport names
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the complete server configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Auth        AuthConfig        `yaml:"auth"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Cache       CacheConfig       `yaml:"cache"`
	Retry       RetryConfig       `yaml:"retry"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig identifies the server and selects its transport.
type ServerConfig struct {
	Name         string `yaml:"name" env:"MCP_SERVER_NAME"`
	Version      string `yaml:"version"`
	Instructions string `yaml:"instructions"`
	Transport    string `yaml:"transport" env:"MCP_TRANSPORT"`
	HTTPAddr     string `yaml:"http_addr" env:"MCP_HTTP_ADDR"`
}

// UpstreamConfig locates the Productboard API.
type UpstreamConfig struct {
	BaseURL    string        `yaml:"base_url" env:"PRODUCTBOARD_BASE_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"PRODUCTBOARD_TIMEOUT"`
	APIVersion string        `yaml:"api_version" env:"PRODUCTBOARD_API_VERSION"`
}

// AuthConfig holds upstream credentials.
type AuthConfig struct {
	Type         string        `yaml:"type" env:"PRODUCTBOARD_AUTH_TYPE"`
	AccessToken  string        `yaml:"access_token" env:"PRODUCTBOARD_API_TOKEN"`
	RefreshToken string        `yaml:"refresh_token" env:"PRODUCTBOARD_REFRESH_TOKEN"`
	ClientID     string        `yaml:"client_id" env:"PRODUCTBOARD_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"PRODUCTBOARD_CLIENT_SECRET"`
	TokenURL     string        `yaml:"token_url" env:"PRODUCTBOARD_TOKEN_URL"`
	Scopes       []string      `yaml:"scopes"`
	ExpirySkew   time.Duration `yaml:"expiry_skew"`
}

// LimitConfig is one token bucket.
type LimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// RateLimitConfig holds the global bucket and per-tool overrides.
type RateLimitConfig struct {
	Global  LimitConfig            `yaml:"global"`
	PerTool map[string]LimitConfig `yaml:"per_tool"`

	// MaxWait bounds how long a call waits for a slot. Zero waits until the
	// request context ends.
	MaxWait time.Duration `yaml:"max_wait" env:"MCP_RATE_LIMIT_MAX_WAIT"`
}

// CacheConfig controls response caching.
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" env:"MCP_CACHE_ENABLED"`
	TTL             time.Duration `yaml:"ttl" env:"MCP_CACHE_TTL"`
	MaxSize         int           `yaml:"max_size" env:"MCP_CACHE_MAX_SIZE"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RetryConfig controls upstream retries.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env:"MCP_RETRY_MAX_ATTEMPTS"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Strategy     string        `yaml:"strategy"`
}

// PermissionsConfig is the default caller grant.
type PermissionsConfig struct {
	AccessLevel string `yaml:"access_level" env:"MCP_ACCESS_LEVEL"`

	// Granted reads MCP_PERMISSIONS as a semicolon separated list.
	Granted []string `yaml:"granted" env:"MCP_PERMISSIONS"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Level       string   `yaml:"level" env:"MCP_LOG_LEVEL"`
	Development bool     `yaml:"development"`
	OutputPaths []string `yaml:"output_paths"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:      "productboard-mcp-server",
			Version:   "1.0.0",
			Transport: TransportStdio,
			HTTPAddr:  ":8080",
		},
		Upstream: UpstreamConfig{
			BaseURL:    "https://api.productboard.com",
			Timeout:    30 * time.Second,
			APIVersion: "1",
		},
		Auth: AuthConfig{
			Type:       string(auth.CredentialBearer),
			ExpirySkew: auth.DefaultExpirySkew,
		},
		RateLimit: RateLimitConfig{
			Global: LimitConfig{Requests: 60, Window: time.Minute},
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             5 * time.Minute,
			MaxSize:         1000,
			CleanupInterval: time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Strategy:     string(retry.StrategyExponential),
		},
		Permissions: PermissionsConfig{
			AccessLevel: domain.AccessRead.String(),
			Granted:     []string{"features:read", "products:read", "notes:read", "objectives:read"},
		},
		Logging: LoggingConfig{
			Level:       string(logging.InfoLevel),
			OutputPaths: []string{"stderr"},
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading config file")
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, errors.Wrap(err, "parsing config")
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, errors.Wrap(err, "reading environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("server.transport must be %q or %q", TransportStdio, TransportHTTP)
	}

	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil {
		return fmt.Errorf("upstream.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url must use http or https scheme")
	}

	switch auth.CredentialType(c.Auth.Type) {
	case auth.CredentialBearer:
	case auth.CredentialOAuth2:
		if c.Auth.AccessToken == "" && (c.Auth.RefreshToken == "" || c.Auth.ClientID == "" || c.Auth.TokenURL == "") {
			return fmt.Errorf("auth: oauth2 requires access_token or refresh_token, client_id and token_url")
		}
	default:
		return fmt.Errorf("auth.type must be %q or %q", auth.CredentialBearer, auth.CredentialOAuth2)
	}

	if c.RateLimit.Global.Requests > 0 && c.RateLimit.Global.Window <= 0 {
		return fmt.Errorf("rate_limit.global.window must be positive")
	}
	for name, limit := range c.RateLimit.PerTool {
		if limit.Requests <= 0 || limit.Window <= 0 {
			return fmt.Errorf("rate_limit.per_tool.%s needs positive requests and window", name)
		}
	}

	if c.Cache.Enabled && (c.Cache.TTL <= 0 || c.Cache.MaxSize <= 0) {
		return fmt.Errorf("cache: ttl and max_size must be positive when enabled")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	switch retry.Strategy(c.Retry.Strategy) {
	case retry.StrategyExponential, retry.StrategyLinear:
	default:
		return fmt.Errorf("retry.strategy must be %q or %q", retry.StrategyExponential, retry.StrategyLinear)
	}

	if _, err := domain.ParseAccessLevel(c.Permissions.AccessLevel); err != nil {
		return fmt.Errorf("permissions.access_level: %w", err)
	}
	return nil
}

// Credentials returns the upstream credentials.
func (c *Config) Credentials() auth.Credentials {
	return auth.Credentials{
		Type:         auth.CredentialType(c.Auth.Type),
		AccessToken:  c.Auth.AccessToken,
		RefreshToken: c.Auth.RefreshToken,
		ClientID:     c.Auth.ClientID,
		ClientSecret: c.Auth.ClientSecret,
		TokenURL:     c.Auth.TokenURL,
		Scopes:       c.Auth.Scopes,
	}
}

// UpstreamClientConfig returns the upstream client settings.
func (c *Config) UpstreamClientConfig() upstream.Config {
	return upstream.Config{BaseURL: c.Upstream.BaseURL, Timeout: c.Upstream.Timeout}
}

// RateLimiterConfig returns the limiter settings.
func (c *Config) RateLimiterConfig() ratelimit.Config {
	out := ratelimit.Config{
		Global: ratelimit.Limit{Requests: c.RateLimit.Global.Requests, Window: c.RateLimit.Global.Window},
	}
	if len(c.RateLimit.PerTool) > 0 {
		out.PerTool = make(map[string]ratelimit.Limit, len(c.RateLimit.PerTool))
		for name, limit := range c.RateLimit.PerTool {
			out.PerTool[name] = ratelimit.Limit{Requests: limit.Requests, Window: limit.Window}
		}
	}
	return out
}

// CacheSettings returns the cache settings.
func (c *Config) CacheSettings() cache.Config {
	return cache.Config{
		Enabled:         c.Cache.Enabled,
		TTL:             c.Cache.TTL,
		MaxSize:         c.Cache.MaxSize,
		CleanupInterval: c.Cache.CleanupInterval,
	}
}

// RetrySettings returns the retry settings.
func (c *Config) RetrySettings() retry.Config {
	return retry.Config{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		Strategy:     retry.Strategy(c.Retry.Strategy),
	}
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:       logging.ParseLevel(c.Logging.Level),
		Development: c.Logging.Development,
		OutputPaths: c.Logging.OutputPaths,
	}
}

// DefaultAccessLevel returns the parsed default access level.
func (c *Config) DefaultAccessLevel() domain.AccessLevel {
	level, err := domain.ParseAccessLevel(c.Permissions.AccessLevel)
	if err != nil {
		return domain.AccessNone
	}
	return level
}
