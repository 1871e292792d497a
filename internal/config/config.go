// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Supported credential store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// minProductionSecretLen is the shortest JWT secret accepted in production.
const minProductionSecretLen = 32

// Config validation errors.
var (
	ErrUnknownDriver    = errors.New("unknown database driver")
	ErrInvalidAlgorithm = errors.New("JWT algorithm must be one of HS256, HS384, HS512")
	ErrInvalidExpiry    = errors.New("JWT expiry must be positive")
	ErrWeakSecret       = errors.New("JWT secret must be at least 32 bytes in production")
	ErrEventsNeedRedis  = errors.New("AUTH_EVENTS_ENABLED requires REDIS_URL")
)

// DatabaseConfig selects and locates the credential store.
// It is shared by the API server and the migration CLI.
type DatabaseConfig struct {
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	// DatabaseURL overrides the DB_* parts when set.
	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      int    `env:"DB_PORT" envDefault:"5432"`
	DBName      string `env:"DB_NAME" envDefault:"vestibule"`
	DBUser      string `env:"DB_USER" envDefault:"vestibule"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"vestibule.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Credential store
	DatabaseConfig

	// Cache (Redis). Empty disables the user cache.
	RedisURL     string        `env:"REDIS_URL"`
	UserCacheTTL time.Duration `env:"USER_CACHE_TTL" envDefault:"10m"`
	// AuthEventsEnabled appends login and registration outcomes to a Redis stream.
	AuthEventsEnabled bool `env:"AUTH_EVENTS_ENABLED" envDefault:"false"`

	// Tokens
	JWTSecret        string `env:"JWT_SECRET,required"`
	JWTAlgorithm     string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	JWTIssuer        string `env:"JWT_ISSUER" envDefault:"http://localhost"`
	JWTAudience      string `env:"JWT_AUDIENCE" envDefault:"http://localhost"`
	JWTExpirySeconds int    `env:"JWT_EXPIRY_SECONDS" envDefault:"3600"`

	// Password hashing
	Argon2MemoryKiB   uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	Argon2Iterations  uint32 `env:"ARGON2_ITERATIONS" envDefault:"3"`
	Argon2Parallelism uint8  `env:"ARGON2_PARALLELISM" envDefault:"4"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// CORS configuration
	// Comma-separated list of allowed origins, or "*" for any origin.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// TokenTTL returns the lifetime of issued tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpirySeconds) * time.Second
}

// DatabaseDSN returns the Postgres connection URL.
// DATABASE_URL wins over the individual DB_* settings.
func (c *DatabaseConfig) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:   "/" + c.DBName,
	}
	if c.DBPassword != "" {
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	} else {
		u.User = url.User(c.DBUser)
	}
	if c.DBSSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.DBSSLMode}}.Encode()
	}

	return u.String()
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks the driver name.
func (c *DatabaseConfig) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite, DriverMemory:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.DatabaseDriver)
	}
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	if err := c.DatabaseConfig.Validate(); err != nil {
		return err
	}

	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return ErrInvalidAlgorithm
	}

	if c.JWTExpirySeconds <= 0 {
		return ErrInvalidExpiry
	}

	if c.IsProduction() && len(c.JWTSecret) < minProductionSecretLen {
		return ErrWeakSecret
	}

	if c.AuthEventsEnabled && c.RedisURL == "" {
		return ErrEventsNeedRedis
	}

	return nil
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDatabase parses only the credential store settings, for tools that
// do not serve requests and so need no JWT secret.
func LoadDatabase() (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	return cfg, nil
}
