// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"Boardgate/internal/api/cookies"
)

// DefaultAPIURL is the external board API used when API_URL is unset.
const DefaultAPIURL = "https://front-mission.bigs.or.kr"

// devSessionSecret signs flash cookies in development when SESSION_SECRET is unset.
const devSessionSecret = "boardgate-development-only-session-secret"

// Config is the server configuration.
type Config struct {
	APIURL         string
	Port           string
	IsDev          bool
	SessionSecret  []byte
	AllowedOrigins []string
	LogLevel       slog.Level
	LogFormat      string
	AuthRateLimit  int
	StaticDir      string

	// TrustProxyHeaders lets X-Forwarded-For / X-Real-IP replace the connection address.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// SecureCookies reports whether cookies carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return !c.IsDev
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIURL:    getEnv("API_URL", DefaultAPIURL),
		Port:      getEnv("PORT", "3000"),
		IsDev:     os.Getenv("IS_DEV_ENV") == "true",
		LogFormat: getEnv("LOG_FORMAT", "text"),
		StaticDir: getEnv("STATIC_DIR", "static"),

		TrustProxyHeaders: os.Getenv("TRUST_PROXY_HEADERS") == "true",
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	limit, err := strconv.Atoi(getEnv("AUTH_RATE_LIMIT", "20"))
	if err != nil || limit < 1 {
		return nil, fmt.Errorf("AUTH_RATE_LIMIT must be a positive integer")
	}
	cfg.AuthRateLimit = limit

	secret, err := GetEnvBase64OrPlain("SESSION_SECRET")
	if err != nil {
		return nil, err
	}
	if secret == "" && cfg.IsDev {
		slog.Warn("SESSION_SECRET not set, using development secret")
		secret = devSessionSecret
	}
	if len(secret) < cookies.MinSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d bytes", cookies.MinSecretLength)
	}
	cfg.SessionSecret = []byte(secret)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
