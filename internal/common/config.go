package common

import (
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Backend BackendConfig
	Viewer  ViewerConfig
	Upload  UploadConfig
	Log     LogConfig
}

// BackendConfig holds extraction backend configuration
type BackendConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxIdleConns int
}

// ViewerConfig holds document preview configuration
type ViewerConfig struct {
	PDFScale     float64
	FetchTimeout time.Duration
}

// UploadConfig holds upload queue configuration
type UploadConfig struct {
	WatchDebounce time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from an optional .env file and environment variables
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("config.dotenv.skipped", "error", err)
	}
	return &Config{
		Backend: BackendConfig{
			BaseURL:      getEnv("SHIPDESK_BACKEND_URL", "http://localhost:8000"),
			Timeout:      getEnvAsDuration("SHIPDESK_BACKEND_TIMEOUT", 2*time.Minute),
			MaxIdleConns: getEnvAsInt("SHIPDESK_BACKEND_MAX_IDLE_CONNS", 10),
		},
		Viewer: ViewerConfig{
			PDFScale:     getEnvAsFloat64("SHIPDESK_PDF_SCALE", 1.0),
			FetchTimeout: getEnvAsDuration("SHIPDESK_FETCH_TIMEOUT", 30*time.Second),
		},
		Upload: UploadConfig{
			WatchDebounce: getEnvAsDuration("SHIPDESK_WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Log: LogConfig{
			Level:  getEnv("SHIPDESK_LOG_LEVEL", "info"),
			Format: getEnv("SHIPDESK_LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return NewAppError("CONFIG_ERROR", "SHIPDESK_BACKEND_URL is required", ErrInvalidInput)
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return NewAppError("CONFIG_ERROR", "SHIPDESK_BACKEND_URL must be an absolute URL", ErrInvalidInput)
	}
	if c.Viewer.PDFScale <= 0 {
		return NewAppError("CONFIG_ERROR", "SHIPDESK_PDF_SCALE must be positive", ErrInvalidInput)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return NewAppError("CONFIG_ERROR", "SHIPDESK_LOG_LEVEL is invalid", err)
	}
	return nil
}

// ParseLogLevel maps a level name (debug, info, warn, error) to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, ErrInvalidInput
	}
	return lvl, nil
}
