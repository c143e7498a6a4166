package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL    string        `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RequestTimeout time.Duration `default:"10s" usage:"Upper bound for a single API call" flag:"request-timeout"`
	Auth           AuthConfig
	Cache          CacheConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	Graceful       GracefulConfig
}

// AuthConfig controls access token issuance.
type AuthConfig struct {
	Secret     string        `usage:"HMAC secret for signing access tokens (SHOP_AUTH_SECRET)" flag:"auth-secret"`
	TokenTTL   time.Duration `default:"30m" usage:"Access token lifetime" flag:"token-ttl"`
	Issuer     string        `default:"storefront" usage:"Access token issuer" flag:"token-issuer"`
	BcryptCost int           `default:"10" usage:"bcrypt cost for password hashes" flag:"bcrypt-cost"`
}

// CacheConfig controls the optional Redis product cache.
type CacheConfig struct {
	Addr string        `usage:"Redis address or URL; empty disables the cache (SHOP_CACHE_ADDR or REDIS_URL)" flag:"cache-addr"`
	TTL  time.Duration `default:"1m" usage:"Product cache entry lifetime" flag:"cache-ttl"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables limiting"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	case len(c.Auth.Secret) < 16:
		return errors.New("auth secret must be at least 16 bytes: set SHOP_AUTH_SECRET")
	case c.Auth.TokenTTL <= 0:
		return errors.New("token TTL must be positive")
	case c.RateLimit.Max > 0 && c.RateLimit.Window <= 0:
		return errors.New("rate limit window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.DatabaseURL == "" {
		c.DatabaseURL = getenv("DATABASE_URL")
	}
	if c.Cache.Addr == "" {
		c.Cache.Addr = getenv("REDIS_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
