// internal/config/config.go
//
// Environment-driven configuration for the Connections server.
// Values come from the process environment; in development a .env file is
// loaded first (godotenv) without overriding variables already set.
//
// Environment variables (defaults in parentheses):
//   PORT (5175), LOG_LEVEL (info), LOG_FORMAT (json|console, json),
//   DB_PATH (./data/connections.db), DECKS_DIR (embedded decks),
//   DEFAULT_DECK (objects), DAILY_SALT (local_dev_salt),
//   JWT_SECRET (dev_secret_change_me), JWT_EXPIRES_DAYS (14),
//   COOKIE_NAME (connections_token), CLIENT_ORIGIN (http://localhost:5173),
//   NODE_ENV, SHUTDOWN_TIMEOUT (10s).

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the resolved server configuration.
type Config struct {
	Port            string
	LogLevel        string
	LogFormat       string
	DBPath          string
	DecksDir        string
	DefaultDeck     string
	DailySalt       string
	JWTSecret       string
	JWTExpiry       time.Duration
	CookieName      string
	ClientOrigin    string
	Production      bool
	ShutdownTimeout time.Duration
}

// Load reads .env (if present) and then the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() Config {
	return Config{
		Port:            getEnv("PORT", "5175"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		DBPath:          getEnv("DB_PATH", "./data/connections.db"),
		DecksDir:        os.Getenv("DECKS_DIR"),
		DefaultDeck:     getEnv("DEFAULT_DECK", "objects"),
		DailySalt:       getEnv("DAILY_SALT", "local_dev_salt"),
		JWTSecret:       getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiry:       time.Duration(getInt("JWT_EXPIRES_DAYS", 14)) * 24 * time.Hour,
		CookieName:      getEnv("COOKIE_NAME", "connections_token"),
		ClientOrigin:    getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		Production:      os.Getenv("NODE_ENV") == "production",
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Addr is the listen address for Port.
func (c Config) Addr() string { return ":" + c.Port }

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return d
	}
	return def
}
