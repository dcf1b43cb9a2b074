// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting of the relay server.
type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"3000"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	HistoryLimit     int           `envconfig:"HISTORY_LIMIT" default:"50"`
	SendBuffer       int           `envconfig:"SEND_BUFFER" default:"64"`
	MaxMessageSize   int64         `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	MaxContentLength int           `envconfig:"MAX_CONTENT_LENGTH" default:"2000"`
	PingInterval     time.Duration `envconfig:"PING_INTERVAL" default:"54s"`

	MessageRate   int           `envconfig:"MESSAGE_RATE" default:"30"`
	MessageWindow time.Duration `envconfig:"MESSAGE_WINDOW" default:"1m"`
	TypingRate    int           `envconfig:"TYPING_RATE" default:"60"`
	TypingWindow  time.Duration `envconfig:"TYPING_WINDOW" default:"1m"`
	APIRate       int           `envconfig:"API_RATE" default:"60"`
	APIWindow     time.Duration `envconfig:"API_WINDOW" default:"1m"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	TrustProxy     bool     `envconfig:"TRUST_PROXY" default:"false"`
}

// Load reads .env outside production and then the process environment.
func Load() (Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			log.Printf("failed to load .env file: %+v", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("internal/config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case strings.TrimSpace(c.DatabaseURL) == "":
		return fmt.Errorf("internal/config: DATABASE_URL is not set")
	case c.HistoryLimit <= 0:
		return fmt.Errorf("internal/config: HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	case c.SendBuffer <= 0:
		return fmt.Errorf("internal/config: SEND_BUFFER must be positive, got %d", c.SendBuffer)
	case c.MaxMessageSize <= 0:
		return fmt.Errorf("internal/config: MAX_MESSAGE_SIZE must be positive, got %d", c.MaxMessageSize)
	case c.MaxContentLength <= 0:
		return fmt.Errorf("internal/config: MAX_CONTENT_LENGTH must be positive, got %d", c.MaxContentLength)
	case c.MessageRate <= 0 || c.TypingRate <= 0 || c.APIRate <= 0:
		return fmt.Errorf("internal/config: rate limits must be positive")
	case c.MessageWindow <= 0 || c.TypingWindow <= 0 || c.APIWindow <= 0:
		return fmt.Errorf("internal/config: rate limit windows must be positive")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level. Unknown values fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var dsnPassword = regexp.MustCompile(`:[^:@/]+@`)

// MaskedDatabaseURL returns the DSN with its password replaced, for logging.
func (c Config) MaskedDatabaseURL() string {
	return dsnPassword.ReplaceAllString(c.DatabaseURL, ":****@")
}
