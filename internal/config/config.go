// Package config handles loading and validating runtime configuration for the Beach Club API.
// Every value comes from the environment (optionally seeded from a .env file in development),
// so the same binary runs locally and in production with nothing but different variables.
//
// The loaded *Config is passed explicitly to the constructors that need it. Nothing in the
// application reads os.Getenv after startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	// godotenv loads key=value pairs from a .env file into the process environment.
	"github.com/joho/godotenv"
)

// DefaultTokenTTL is how long an issued session token stays valid: 30 days.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Config holds all runtime configuration values for the application.
type Config struct {
	Port           string        // TCP port the HTTP server listens on (e.g. "8080")
	Env            string        // "development" or "production"
	DatabaseURL    string        // PostgreSQL connection string
	MigrationsPath string        // golang-migrate source URL, e.g. "file://migrations"
	JWTSecret      string        // HMAC key used to sign session tokens
	TokenTTL       time.Duration // validity window for issued session tokens
	GoogleClientID string        // audience expected in Google ID tokens; empty disables Google sign-in
	AdminEmails    []string      // lower-cased addresses that become admins at account creation
	AllowedOrigins string        // comma-separated CORS origins, "*" for any
	LogLevel       string        // zap level name: debug, info, warn, error
}

// Load reads configuration from environment variables and returns a populated Config.
// A missing .env file is fine: in production the real environment is already set.
func Load() (*Config, error) {
	// godotenv.Load never overrides variables that are already set, so a real
	// environment always wins over the .env file. The error (no file) is ignored on purpose.
	_ = godotenv.Load()

	// TOKEN_TTL is a Go duration string ("720h", "24h"). Unset means the 30-day default.
	ttl := DefaultTokenTTL
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse TOKEN_TTL: %w", err)
		}
		// A zero or negative lifetime would mint tokens that are already expired.
		if d <= 0 {
			return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", raw)
		}
		ttl = d
	}

	return &Config{
		Port:           getenv("PORT", "8080"),
		Env:            getenv("ENV", "development"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsPath: getenv("MIGRATIONS_PATH", "file://migrations"),
		JWTSecret:      os.Getenv("JWT_SECRET_KEY"),
		TokenTTL:       ttl,
		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		AdminEmails:    ParseEmailList(os.Getenv("ADMIN_EMAILS")),
		AllowedOrigins: getenv("ALLOWED_ORIGINS", "*"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
	}, nil
}

// Validate reports the settings the server cannot start without.
// Every missing setting is reported at once, so one failed start lists them all.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		// Without a secret every token would be signed with an empty key.
		errs = append(errs, errors.New("JWT_SECRET_KEY is required"))
	}
	// errors.Join returns nil when errs is empty.
	return errors.Join(errs...)
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ParseEmailList splits a comma-separated list of addresses, trimming blanks and lower-casing
// each entry so comparisons against normalised user emails are exact.
func ParseEmailList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		email := strings.ToLower(strings.TrimSpace(part))
		// Skip the empty entries left by "a@x.com, ,b@x.com" or a trailing comma.
		if email != "" {
			out = append(out, email)
		}
	}
	return out
}

// getenv returns the value of key, or fallback when the variable is unset or empty.
func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
