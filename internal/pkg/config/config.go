package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type PostgresConfig struct {
	URL      string
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

type ServerConfig struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	MetricsAddr    string
	PprofAddr      string
	// TrustedProxies lists the proxies whose X-Forwarded-For is honoured.
	// Empty means the socket address is the client address.
	TrustedProxies []string
}

type JWTConfig struct {
	SecretKey string
	TokenTTL  time.Duration
}

type AuthConfig struct {
	BcryptCost      int
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

type ObservabilityConfig struct {
	ServiceName  string
	OTLPEndpoint string
}

type Config struct {
	Server        ServerConfig
	Repositories  RepositoriesConfig
	JWT           JWTConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
}

// Load reads the process environment once. Callers pass the result down
// instead of reading variables themselves.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvOrDefault("PORT", "5000"),
			Environment:    strings.ToLower(getEnvOrDefault("APP_ENV", EnvDevelopment)),
			AllowedOrigins: splitList(getEnvOrDefault("CLIENT_ORIGIN", "http://localhost:5173,http://localhost:3000")),
			MetricsAddr:    getEnvOrDefault("METRICS_ADDR", ":9092"),
			PprofAddr:      os.Getenv("PPROF_ADDR"),
			TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
		},
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				URL:      os.Getenv("DATABASE_URL"),
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:       getEnvOrDefault("POSTGRES_DB", "medical_records"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: os.Getenv("POSTGRES_PASSWORD"),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: int32(getEnvAsInt("POSTGRES_MAX_CONNS", 20)),
				MinConns: int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			},
			Redis: RedisConfig{
				Addr:     os.Getenv("REDIS_ADDR"),
				Password: os.Getenv("REDIS_PASSWORD"),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		JWT: JWTConfig{
			SecretKey: os.Getenv("JWT_SECRET"),
			TokenTTL:  getEnvAsDuration("JWT_TTL", 7*24*time.Hour),
		},
		Auth: AuthConfig{
			BcryptCost:      getEnvAsInt("BCRYPT_COST", 12),
			LoginRateLimit:  getEnvAsInt("LOGIN_RATE_LIMIT_MAX", 20),
			LoginRateWindow: getEnvAsDuration("LOGIN_RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		Observability: ObservabilityConfig{
			ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "medical-record-api"),
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.JWT.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWT.TokenTTL)
	}
	if c.Repositories.Postgres.URL == "" && c.Repositories.Postgres.Password == "" {
		return fmt.Errorf("DATABASE_URL or POSTGRES_PASSWORD environment variable is required")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost)
	}
	if c.Auth.LoginRateLimit <= 0 || c.Auth.LoginRateWindow <= 0 {
		return fmt.Errorf("login rate limit must be positive")
	}
	return nil
}

// IsProduction controls cookie security attributes.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// ConnectionURL returns DATABASE_URL when set, otherwise it assembles one
// from the POSTGRES_* parts.
func (p PostgresConfig) ConnectionURL() string {
	if p.URL != "" {
		return p.URL
	}

	query := url.Values{}
	query.Set("sslmode", p.SSLMode)
	query.Set("timezone", "utc")

	connURL := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(p.Username, p.Password),
		Host:     fmt.Sprintf("%s:%s", p.Host, p.Port),
		Path:     p.DB,
		RawQuery: query.Encode(),
	}
	return connURL.String()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
