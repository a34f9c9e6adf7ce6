// Package config handles application configuration from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/seoulmetro/stationinfo/internal/subway"
	"github.com/seoulmetro/stationinfo/internal/subway/seoul"
)

// Config holds all application configuration.
type Config struct {
	// Seoul Open Data Plaza
	APIKey      string
	BaseURL     string
	Format      string
	HTTPTimeout time.Duration

	// Application
	Port       string
	Env        string
	LogLevel   string
	RequireTLS bool

	// Telemetry
	OTelEnabled  bool
	OTLPEndpoint string

	// Cache
	CacheTTL  time.Duration
	CacheSize int

	// Worker
	PubSubProjectID    string
	PubSubSubscription string
	WorkerInterval     time.Duration

	invalid []string
}

// Load reads an optional .env file from the working directory, then builds
// the configuration from the environment. Variables already set in the
// environment take precedence over the file.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit .env paths. Missing files are skipped.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(), nil
}

// FromEnv builds the configuration from environment variables with defaults.
func FromEnv() *Config {
	c := &Config{
		APIKey:             os.Getenv("SEOUL_OPENAPI_AUTH_KEY"),
		BaseURL:            getEnv("SEOUL_OPENAPI_BASE_URL", seoul.DefaultBaseURL),
		Format:             getEnv("SEOUL_OPENAPI_FORMAT", seoul.DefaultFormat),
		Port:               getEnv("APP_PORT", "8080"),
		Env:                getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
	}

	c.HTTPTimeout = time.Duration(c.getInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second
	c.RequireTLS = c.getBool("REQUIRE_TLS", false)
	c.OTelEnabled = c.getBool("OTEL_ENABLED", false)
	c.CacheTTL = c.getDuration("CACHE_TTL", 24*time.Hour)
	c.CacheSize = c.getInt("CACHE_SIZE", 512)
	c.WorkerInterval = c.getDuration("WORKER_INTERVAL", 6*time.Hour)

	return c
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Validate checks that required configuration is present and well formed.
// Errors wrap subway.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error

	for _, name := range c.invalid {
		errs = append(errs, fmt.Errorf("%w: %s is not a valid value", subway.ErrConfiguration, name))
	}
	if err := seoul.ValidateAPIKey(c.APIKey); err != nil {
		errs = append(errs, fmt.Errorf("SEOUL_OPENAPI_AUTH_KEY: %w", err))
	}
	if c.Format != seoul.DefaultFormat {
		errs = append(errs, fmt.Errorf("%w: SEOUL_OPENAPI_FORMAT must be %q", subway.ErrConfiguration, seoul.DefaultFormat))
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("%w: SEOUL_OPENAPI_BASE_URL must be an absolute http(s) URL", subway.ErrConfiguration))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: HTTP_TIMEOUT_SECONDS must be positive", subway.ErrConfiguration))
	}
	if c.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: CACHE_SIZE must be positive", subway.ErrConfiguration))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: LOG_LEVEL %q", subway.ErrConfiguration, c.LogLevel))
	}

	return errors.Join(errs...)
}

// Logger builds the process logger. Development mode writes human-readable
// console output; otherwise JSON lines go to w.
func (c *Config) Logger(w io.Writer, service, version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if c.IsDevelopment() {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		c.invalid = append(c.invalid, key)
		return defaultValue
	}
	return n
}

func (c *Config) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		c.invalid = append(c.invalid, key)
		return defaultValue
	}
	return b
}

func (c *Config) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		c.invalid = append(c.invalid, key)
		return defaultValue
	}
	return d
}
