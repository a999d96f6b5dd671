package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Policy sources
const (
	PolicySourceStatic   = "static"
	PolicySourceDatabase = "database"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Token         TokenConfig
	Authz         AuthzConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Bootstrap     BootstrapConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port           string        `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout    time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout   time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout    time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	RequestTimeout time.Duration `envconfig:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            string        `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"turisb2b"`
	Password        string        `envconfig:"DB_PASSWORD"`
	Database        string        `envconfig:"DB_NAME" default:"turisb2b"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// TokenConfig holds bearer token configuration
type TokenConfig struct {
	Secret string        `envconfig:"JWT_SECRET"`
	Issuer string        `envconfig:"JWT_ISSUER" default:"turisb2b"`
	TTL    time.Duration `envconfig:"JWT_TTL" default:"12h"`
}

// AuthzConfig controls where the permission and role tables come from
type AuthzConfig struct {
	PolicySource      string        `envconfig:"AUTHZ_POLICY_SOURCE" default:"static"`
	ReloadInterval    time.Duration `envconfig:"AUTHZ_RELOAD_INTERVAL" default:"0s"`
	StrictPermissions bool          `envconfig:"AUTHZ_STRICT_PERMISSIONS" default:"false"`
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string  `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string  `envconfig:"LOG_FORMAT" default:"json"`
	OTELEnabled    bool    `envconfig:"OTEL_ENABLED" default:"false"`
	ServiceName    string  `envconfig:"OTEL_SERVICE_NAME" default:"turisb2b-api"`
	ServiceVersion string  `envconfig:"OTEL_SERVICE_VERSION" default:"0.1.0"`
	SamplingRate   float64 `envconfig:"OTEL_SAMPLING_RATE" default:"1.0"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Argon2Memory       uint32        `envconfig:"ARGON2_MEMORY" default:"65536"`
	Argon2Iterations   uint32        `envconfig:"ARGON2_ITERATIONS" default:"3"`
	Argon2Parallelism  uint8         `envconfig:"ARGON2_PARALLELISM" default:"4"`
	Argon2SaltLength   uint32        `envconfig:"ARGON2_SALT_LENGTH" default:"16"`
	Argon2KeyLength    uint32        `envconfig:"ARGON2_KEY_LENGTH" default:"32"`
	LockoutMaxAttempts int           `envconfig:"SECURITY_LOCKOUT_MAX_ATTEMPTS" default:"5"`
	LockoutDuration    time.Duration `envconfig:"SECURITY_LOCKOUT_DURATION" default:"15m"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"RATELIMIT_RPS" default:"10"`
	Burst             int     `envconfig:"RATELIMIT_BURST" default:"20"`
	TrustProxy        bool    `envconfig:"RATELIMIT_TRUST_PROXY" default:"false"`
}

// BootstrapConfig seeds the first super administrator
type BootstrapConfig struct {
	AdminEmail    string `envconfig:"BOOTSTRAP_ADMIN_EMAIL"`
	AdminPassword string `envconfig:"BOOTSTRAP_ADMIN_PASSWORD"`
	AdminName     string `envconfig:"BOOTSTRAP_ADMIN_NAME" default:"Administrator"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if len(c.Token.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.Token.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	switch c.Authz.PolicySource {
	case PolicySourceStatic, PolicySourceDatabase:
	default:
		return fmt.Errorf("AUTHZ_POLICY_SOURCE must be %q or %q", PolicySourceStatic, PolicySourceDatabase)
	}
	if c.Authz.ReloadInterval < 0 {
		return fmt.Errorf("AUTHZ_RELOAD_INTERVAL must not be negative")
	}
	if (c.Bootstrap.AdminEmail == "") != (c.Bootstrap.AdminPassword == "") {
		return fmt.Errorf("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	return nil
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}
