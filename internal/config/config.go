// Package config reads the process configuration from the environment.
// Token lifetimes and login limits live in the settings singleton; the values
// here seed that row on first boot.
package config

import (
	"os"
	"time"
)

type Config struct {
	DatabaseURL string
	HTTPPort    string
	Env         string // "production" hardens cookies

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     string
	RefreshTokenTTL    string
	ExtendedRefreshTTL string

	MaxLoginAttempts int
	LockoutDuration  string

	AdminEmail    string
	AdminPassword string
}

func Load() Config {
	return Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		HTTPPort:           getenv("HTTP_PORT", "8080"),
		Env:                getenv("APP_ENV", "development"),
		AccessTokenSecret:  getenv("JWT_ACCESS_SECRET", "dev-access-secret"),
		RefreshTokenSecret: getenv("JWT_REFRESH_SECRET", "dev-refresh-secret"),
		AccessTokenTTL:     getenv("JWT_ACCESS_TTL", "15m"),
		RefreshTokenTTL:    getenv("JWT_REFRESH_TTL", "168h"),
		ExtendedRefreshTTL: getenv("JWT_EXTENDED_REFRESH_TTL", "720h"),
		MaxLoginAttempts:   5,
		LockoutDuration:    getenv("LOCKOUT_DURATION", "1m"),
		AdminEmail:         getenv("ADMIN_EMAIL", "admin@authgate.local"),
		AdminPassword:      getenv("ADMIN_PASSWORD", "change-me-now"),
	}
}

func (c Config) Production() bool { return c.Env == "production" }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ParseTTL parses a duration string with a fallback, matching how the settings
// row stores lifetimes.
func ParseTTL(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}
