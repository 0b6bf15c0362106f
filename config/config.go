// Package config loads settings for the admin client.
//
// Sources apply in order, later ones winning: built-in defaults, an
// optional YAML file, then SPECTRUM_* environment variables. Credential
// fields may hold secretref: references, which are resolved last, and the
// result is validated.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/kyptronix/spectrum-admin/cache"
	"github.com/kyptronix/spectrum-admin/observe"
	"github.com/kyptronix/spectrum-admin/secret"
	"github.com/kyptronix/spectrum-admin/transport"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "SPECTRUM_"

// DefaultBaseURL is the production admin API.
const DefaultBaseURL = "https://spectrum-server-86ba.onrender.com"

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("config: invalid")

	// ErrReadConfig wraps failures to read or decode the YAML file.
	ErrReadConfig = errors.New("config: cannot read file")
)

// Config is the complete client configuration.
type Config struct {
	API       APIConfig      `yaml:"api" envPrefix:"API_"`
	Auth      AuthConfig     `yaml:"auth" envPrefix:"AUTH_"`
	Cache     CacheConfig    `yaml:"cache" envPrefix:"CACHE_"`
	Retry     RetryConfig    `yaml:"retry" envPrefix:"RETRY_"`
	Breaker   BreakerConfig  `yaml:"breaker" envPrefix:"BREAKER_"`
	Health    HealthConfig   `yaml:"health" envPrefix:"HEALTH_"`
	Telemetry observe.Config `yaml:"telemetry" envPrefix:"TELEMETRY_"`

	// Secrets configures secretref providers by name. Nil enables the
	// env and file providers with no settings.
	Secrets map[string]map[string]any `yaml:"secrets"`
}

// APIConfig locates the admin API.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" env:"BASE_URL"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	UserAgent string        `yaml:"user_agent" env:"USER_AGENT"`

	// RateLimit caps requests per second; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_BURST"`
}

// AuthConfig holds credentials. At most one of Token, Email/Password and
// APIKey is used, in that order of preference.
type AuthConfig struct {
	Token        string        `yaml:"token" env:"TOKEN"`
	Email        string        `yaml:"email" env:"EMAIL"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	APIKey       string        `yaml:"api_key" env:"API_KEY"`
	APIKeyHeader string        `yaml:"api_key_header" env:"API_KEY_HEADER"`
	ExpiryLeeway time.Duration `yaml:"expiry_leeway" env:"EXPIRY_LEEWAY"`
}

// Method names the credential kind in use.
func (a AuthConfig) Method() string {
	switch {
	case a.Token != "":
		return "token"
	case a.Email != "" || a.Password != "":
		return "password"
	case a.APIKey != "":
		return "api_key"
	default:
		return "none"
	}
}

// CacheConfig mirrors cache.Policy plus the mutation conflict policy.
type CacheConfig struct {
	PageSize           int           `yaml:"page_size" env:"PAGE_SIZE"`
	StaleTime          time.Duration `yaml:"stale_time" env:"STALE_TIME"`
	KeepUnused         time.Duration `yaml:"keep_unused" env:"KEEP_UNUSED"`
	SweepInterval      time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	RefetchConcurrency int           `yaml:"refetch_concurrency" env:"REFETCH_CONCURRENCY"`
	ConflictPolicy     string        `yaml:"conflict_policy" env:"CONFLICT_POLICY"`
}

// Policy converts the settings to a cache.Policy.
func (c CacheConfig) Policy() cache.Policy {
	p := cache.DefaultPolicy()
	p.StaleTime = c.StaleTime
	p.KeepUnusedFor = c.KeepUnused
	p.SweepInterval = c.SweepInterval
	p.RefetchConcurrency = c.RefetchConcurrency
	return p
}

// Conflict returns the parsed conflict policy.
func (c CacheConfig) Conflict() (cache.ConflictPolicy, error) {
	return cache.ParseConflictPolicy(c.ConflictPolicy)
}

// RetryConfig controls retries of idempotent reads.
type RetryConfig struct {
	Attempts     int           `yaml:"attempts" env:"ATTEMPTS"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
}

// BreakerConfig controls the circuit breaker shared by all API calls.
type BreakerConfig struct {
	Failures int           `yaml:"failures" env:"FAILURES"`
	Reset    time.Duration `yaml:"reset" env:"RESET"`
}

// HealthConfig tunes the health command.
type HealthConfig struct {
	SlowThreshold time.Duration `yaml:"slow_threshold" env:"SLOW_THRESHOLD"`
	MaxErrorRatio float64       `yaml:"max_error_ratio" env:"MAX_ERROR_RATIO"`
	MaxHeapMB     uint64        `yaml:"max_heap_mb" env:"MAX_HEAP_MB"`
}

// Default returns the built-in configuration.
func Default() Config {
	policy := cache.DefaultPolicy()
	tr := transport.DefaultConfig()
	return Config{
		API: APIConfig{
			BaseURL:   DefaultBaseURL,
			Timeout:   tr.Timeout,
			UserAgent: "spectrum-admin",
		},
		Auth: AuthConfig{
			APIKeyHeader: "X-API-Key",
			ExpiryLeeway: time.Minute,
		},
		Cache: CacheConfig{
			PageSize:           cache.DefaultLimit,
			StaleTime:          policy.StaleTime,
			KeepUnused:         policy.KeepUnusedFor,
			SweepInterval:      policy.SweepInterval,
			RefetchConcurrency: policy.RefetchConcurrency,
			ConflictPolicy:     cache.ConflictReject.String(),
		},
		Retry: RetryConfig{
			Attempts:     tr.RetryAttempts,
			InitialDelay: tr.RetryInitialDelay,
			MaxDelay:     tr.RetryMaxDelay,
		},
		Breaker: BreakerConfig{
			Failures: tr.BreakerFailures,
			Reset:    tr.BreakerReset,
		},
		Health: HealthConfig{
			SlowThreshold: 2 * time.Second,
			MaxErrorRatio: 0.5,
		},
		Telemetry: observe.Config{
			ServiceName: "spectrum-admin",
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info", Format: "console"},
		},
	}
}

// Loader reads configuration. The zero value is not usable; use NewLoader.
type Loader struct {
	environ  map[string]string
	registry *secret.Registry
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEnviron replaces the process environment, for tests.
func WithEnviron(environ map[string]string) LoaderOption {
	return func(l *Loader) { l.environ = environ }
}

// WithSecretRegistry replaces secret.DefaultRegistry.
func WithSecretRegistry(r *secret.Registry) LoaderOption {
	return func(l *Loader) { l.registry = r }
}

// NewLoader creates a Loader over the process environment.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{registry: secret.DefaultRegistry}
	for _, opt := range opts {
		opt(l)
	}
	if l.environ == nil {
		l.environ = env.ToMap(os.Environ())
	}
	return l
}

// Load reads configuration with the default Loader. An empty path skips
// the file.
func Load(ctx context.Context, path string) (Config, error) {
	return NewLoader().Load(ctx, path)
}

// Load applies defaults, the file at path (if any), the environment and
// secret references, then validates the result.
func (l *Loader) Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrReadConfig, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrReadConfig, path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: l.environ,
	}); err != nil {
		return Config{}, fmt.Errorf("%w: environment: %w", ErrInvalidConfig, err)
	}

	if err := l.resolveSecrets(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Loader) resolveSecrets(ctx context.Context, cfg *Config) error {
	all := map[string]*string{
		"auth.token":    &cfg.Auth.Token,
		"auth.email":    &cfg.Auth.Email,
		"auth.password": &cfg.Auth.Password,
		"auth.api_key":  &cfg.Auth.APIKey,
		"api.base_url":  &cfg.API.BaseURL,
	}

	// Plain values are left untouched so a literal $ in a password survives.
	fields := make(map[string]*string)
	for name, v := range all {
		if secret.IsRef(*v) || strings.Contains(*v, "${") {
			fields[name] = v
		}
	}
	if len(fields) == 0 {
		return nil
	}

	res, err := l.registry.NewResolver(true, cfg.Secrets)
	if err != nil {
		return fmt.Errorf("%w: secrets: %w", ErrInvalidConfig, err)
	}
	defer res.Close()

	if err := res.ResolveFields(ctx, fields); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	u, err := url.Parse(c.API.BaseURL)
	switch {
	case c.API.BaseURL == "":
		add("api.base_url is required")
	case err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https"):
		add("api.base_url %q must be an absolute http(s) URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		add("api.timeout must be positive")
	}
	if c.API.RateLimit < 0 || c.API.RateBurst < 0 {
		add("api.rate_limit and api.rate_burst must not be negative")
	}

	if (c.Auth.Email == "") != (c.Auth.Password == "") && c.Auth.Token == "" {
		add("auth.email and auth.password must be set together")
	}

	if c.Cache.PageSize < 1 || c.Cache.PageSize > cache.MaxLimit {
		add("cache.page_size must be in [1, %d]", cache.MaxLimit)
	}
	if err := c.Cache.Policy().Validate(); err != nil {
		add("cache: %v", err)
	}
	if _, err := c.Cache.Conflict(); err != nil {
		add("cache.conflict_policy: %v", err)
	}

	if c.Retry.Attempts < 1 {
		add("retry.attempts must be at least 1")
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < 0 {
		add("retry delays must not be negative")
	}
	if c.Breaker.Failures < 1 || c.Breaker.Reset <= 0 {
		add("breaker.failures and breaker.reset must be positive")
	}
	if c.Health.MaxErrorRatio < 0 || c.Health.MaxErrorRatio > 1 {
		add("health.max_error_ratio must be in [0, 1]")
	}
	if err := c.Telemetry.Validate(); err != nil {
		add("telemetry: %v", err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Transport converts the settings to transport executor settings.
func (c Config) Transport() transport.Config {
	return transport.Config{
		Timeout:           c.API.Timeout,
		RetryAttempts:     c.Retry.Attempts,
		RetryInitialDelay: c.Retry.InitialDelay,
		RetryMaxDelay:     c.Retry.MaxDelay,
		BreakerFailures:   c.Breaker.Failures,
		BreakerReset:      c.Breaker.Reset,
		RateLimit:         c.API.RateLimit,
		RateBurst:         c.API.RateBurst,
	}
}
