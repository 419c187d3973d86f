package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token issuance and delivery parameters. It is built once
// at startup and shared read-only.
type AuthConfig struct {
	JWTSecret              string
	Issuer                 string
	AccessTokenTTLMinutes  int
	RefreshTokenTTLMinutes int
	AccessTokenHeader      string
	RefreshTokenHeader     string
	TokenPrefix            string
	CookieSecure           bool
	SocialRedirectURL      string
	// SessionRetentionMinutes bounds how long a session record lives in Redis.
	// Zero keeps records until logout.
	SessionRetentionMinutes int
}

const (
	defaultAccessTokenTTLMinutes  = 30
	defaultRefreshTokenTTLMinutes = 24 * 60
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	accessTTL, err := getEnvAsPositiveInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", defaultAccessTokenTTLMinutes)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := getEnvAsPositiveInt("AUTH_REFRESH_TOKEN_TTL_MINUTES", defaultRefreshTokenTTLMinutes)
	if err != nil {
		return nil, err
	}
	retention, err := getEnvAsNonNegativeInt("AUTH_SESSION_RETENTION_MINUTES", 0)
	if err != nil {
		return nil, err
	}
	tokenPrefix, ok := os.LookupEnv("AUTH_TOKEN_PREFIX")
	if !ok {
		tokenPrefix = "Bearer "
	}
	cookieSecure, err := strconv.ParseBool(getEnv("AUTH_COOKIE_SECURE", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_COOKIE_SECURE: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "member-session-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:               os.Getenv("AUTH_JWT_SECRET"),
			Issuer:                  getEnv("AUTH_JWT_ISSUER", "member-session-service"),
			AccessTokenTTLMinutes:   accessTTL,
			RefreshTokenTTLMinutes:  refreshTTL,
			AccessTokenHeader:       getEnv("AUTH_ACCESS_TOKEN_HEADER", "Authorization"),
			RefreshTokenHeader:      getEnv("AUTH_REFRESH_TOKEN_HEADER", "Refresh-Token"),
			TokenPrefix:             tokenPrefix,
			CookieSecure:            cookieSecure,
			SocialRedirectURL:       getEnv("AUTH_SOCIAL_REDIRECT_URL", "http://localhost:8081/oauth2-signin-success"),
			SessionRetentionMinutes: retention,
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return defaultAccessTokenTTLMinutes * time.Minute
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	if a.RefreshTokenTTLMinutes <= 0 {
		return defaultRefreshTokenTTLMinutes * time.Minute
	}
	return time.Duration(a.RefreshTokenTTLMinutes) * time.Minute
}

// SessionRetention returns how long session records are kept; zero means no expiry.
func (a AuthConfig) SessionRetention() time.Duration {
	if a.SessionRetentionMinutes <= 0 {
		return 0
	}
	return time.Duration(a.SessionRetentionMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsPositiveInt is the strict variant used for token lifetimes, where a
// silent fallback would hide a misconfiguration.
func getEnvAsPositiveInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, val)
	}
	return parsed, nil
}

func getEnvAsNonNegativeInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, val)
	}
	return parsed, nil
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
