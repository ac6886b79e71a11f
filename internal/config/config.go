package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const Production = "production"

// DevelopmentJWTSecret is used when JWT_SECRET is unset outside production.
const DevelopmentJWTSecret = "dev-secret-change-in-production"

type DatabaseOptions struct {
	URL                  string        `env:"DATABASE_URL"`
	Host                 string        `env:"DB_HOST" envDefault:"localhost"`
	Port                 string        `env:"DB_PORT" envDefault:"5432"`
	User                 string        `env:"DB_USER" envDefault:"postgres"`
	Password             string        `env:"DB_PASSWORD" envDefault:"postgres"`
	Name                 string        `env:"DB_NAME" envDefault:"proposals"`
	SSLMode              string        `env:"DB_SSLMODE" envDefault:"disable"`
	TimeZone             string        `env:"DB_TIMEZONE" envDefault:"UTC"`
	MaxIdleConns         int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns         int           `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	ConnMaxLifetime      time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	AutoMigrate          bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	PreferSimpleProtocol bool          `env:"DB_PREFER_SIMPLE_PROTOCOL" envDefault:"true"`
}

type JWTOptions struct {
	Secret string        `env:"JWT_SECRET"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"go-proposal-review"`
}

type RateLimitOptions struct {
	Enabled  bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Login    string `env:"RATE_LIMIT_LOGIN" envDefault:"10-M"`
	Storage  string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL string `env:"RATE_LIMIT_REDIS_URL"`
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if r.Storage != "memory" && r.Storage != "redis" {
		return errors.Errorf("rate limit storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return errors.New("rate limit redis url is required when storage is 'redis'")
	}
	return nil
}

type MetricsOptions struct {
	Enabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"METRICS_PATH" envDefault:"/metrics"`
}

type AuthzOptions struct {
	PolicyPath string `env:"AUTHZ_POLICY_PATH"`
}

type AdminOptions struct {
	Email    string `env:"ADMIN_EMAIL" envDefault:"admin@example.com"`
	Password string `env:"ADMIN_PASSWORD"`
	Name     string `env:"ADMIN_NAME" envDefault:"Administrator"`
}

type Configuration struct {
	Database  DatabaseOptions
	JWT       JWTOptions
	RateLimit RateLimitOptions
	Metrics   MetricsOptions
	Authz     AuthzOptions
	Admin     AdminOptions

	AppName     string `env:"APP_NAME" envDefault:"Proposal Review API v1.0"`
	Environment string `env:"GO_APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"3000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`
}

// LoadEnv loads the env files that exist and returns how many were read.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads env files (missing ones are skipped) and parses the environment.
func Load(envFiles ...string) (*Configuration, error) {
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, errors.Wrap(err, "load env files")
	}

	c := &Configuration{}
	if err := env.Parse(c); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}

	if c.JWT.Secret == "" && !c.IsProduction() {
		c.JWT.Secret = DevelopmentJWTSecret
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Configuration) IsProduction() bool {
	return strings.EqualFold(c.Environment, Production)
}

func (c *Configuration) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.JWT.TTL <= 0 {
		return errors.Errorf("JWT_TTL must be positive, got %s", c.JWT.TTL)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.Errorf("METRICS_PATH must start with '/', got '%s'", c.Metrics.Path)
	}
	return nil
}
