package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minJWTSecretLength = 32

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTSecret string
	JWTTTL    time.Duration
	JWTIssuer string

	SessionTTL          time.Duration
	SessionCookieName   string
	SessionCookieSecure bool

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int

	FrontendURL               string
	OAuthRedirectBaseURL      string
	GoogleClientID            string
	GoogleClientSecret        string
	GitHubClientID            string
	GitHubClientSecret        string
	GitHubFallbackEmailDomain string

	StaticDir string

	SeedDefaultUsers bool
	AdminEmail       string
	AdminPassword    string
	DemoEmail        string
	DemoPassword     string

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:                getEnv("SERVER_PORT", "8081"),
		ServerReadHeaderTimeout:   getDuration("SERVER_READ_HEADER_TIMEOUT", 15*time.Second),
		ServerWriteTimeout:        getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:         getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:            getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DatabaseURL:               strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:                int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:                int32(getInt("DB_MIN_CONNS", 1)),
		JWTSecret:                 strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTTTL:                    getDuration("JWT_TTL", 24*time.Hour),
		JWTIssuer:                 getEnv("JWT_ISSUER", "smart-contact-manager"),
		SessionTTL:                getDuration("SESSION_TTL", 24*time.Hour),
		SessionCookieName:         getEnv("SESSION_COOKIE_NAME", "SCM_SESSION"),
		SessionCookieSecure:       getBool("SESSION_COOKIE_SECURE", false),
		CORSOrigins:               splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		RateLimitRPM:              getInt("RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM:          getInt("AUTH_RATE_LIMIT_RPM", 20),
		FrontendURL:               strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		OAuthRedirectBaseURL:      strings.TrimRight(getEnv("OAUTH_REDIRECT_BASE_URL", "http://localhost:8081"), "/"),
		GoogleClientID:            strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret:        strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		GitHubClientID:            strings.TrimSpace(os.Getenv("GITHUB_CLIENT_ID")),
		GitHubClientSecret:        strings.TrimSpace(os.Getenv("GITHUB_CLIENT_SECRET")),
		GitHubFallbackEmailDomain: getEnv("GITHUB_FALLBACK_EMAIL_DOMAIN", "gmail.com"),
		StaticDir:                 getEnv("STATIC_DIR", "./static"),
		SeedDefaultUsers:          getBool("SEED_DEFAULT_USERS", true),
		AdminEmail:                getEnv("ADMIN_EMAIL", "admin@scm.local"),
		AdminPassword:             getEnv("ADMIN_PASSWORD", "admin"),
		DemoEmail:                 getEnv("DEMO_EMAIL", "user@gmail.com"),
		DemoPassword:              getEnv("DEMO_PASSWORD", "user"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		LogFormat:                 getEnv("LOG_FORMAT", "pretty"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if len(strings.TrimSpace(c.JWTSecret)) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET is required and must be at least %d bytes", minJWTSecretLength)
	}

	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS are out of range")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if _, err := url.ParseRequestURI(c.FrontendURL); err != nil {
		return fmt.Errorf("FRONTEND_URL is not a valid URL: %w", err)
	}

	if _, err := url.ParseRequestURI(c.OAuthRedirectBaseURL); err != nil {
		return fmt.Errorf("OAUTH_REDIRECT_BASE_URL is not a valid URL: %w", err)
	}

	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together")
	}

	if (c.GitHubClientID == "") != (c.GitHubClientSecret == "") {
		return fmt.Errorf("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set together")
	}

	if strings.TrimSpace(c.GitHubFallbackEmailDomain) == "" {
		return fmt.Errorf("GITHUB_FALLBACK_EMAIL_DOMAIN cannot be empty")
	}

	switch strings.ToLower(c.LogFormat) {
	case "pretty", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be pretty or json")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
