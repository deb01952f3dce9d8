package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrMissingDatabaseURL is returned when no database URL is configured.
var ErrMissingDatabaseURL = errors.New("config: DATABASE_URL is required")

const (
	defaultServerPort     = "8080"
	defaultUserAgent      = "PlutoTV-Source/1.0"
	defaultTimeout        = 30 * time.Second
	defaultPlutoBaseURL   = "http://api.pluto.tv"
	defaultGuideChunkSize = 21600 * time.Second
	defaultRateLimit      = 10.0
	defaultRateBurst      = 20
)

// Config holds application configuration.
type Config struct {
	DatabaseURL    string        `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL       string        `yaml:"redis_url" env:"REDIS_URL"`
	ServerPort     string        `yaml:"server_port" env:"SERVER_PORT"`
	UserAgent      string        `yaml:"user_agent" env:"FETCHER_USER_AGENT"`
	Timeout        time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT"`
	PlutoBaseURL   string        `yaml:"pluto_base_url" env:"PLUTO_BASE_URL"`
	GuideChunkSize time.Duration `yaml:"guide_chunk_size" env:"PLUTO_GUIDE_CHUNK_SIZE"`
	LogFile        string        `yaml:"log_file" env:"LOG_FILE"`
	SyncEnabled    bool          `yaml:"sync_enabled" env:"SYNC_ENABLED"`
	RateLimit      float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst      int           `yaml:"rate_burst" env:"RATE_BURST"`
}

func defaults() *Config {
	return &Config{
		ServerPort:     defaultServerPort,
		UserAgent:      defaultUserAgent,
		Timeout:        defaultTimeout,
		PlutoBaseURL:   defaultPlutoBaseURL,
		GuideChunkSize: defaultGuideChunkSize,
		RateLimit:      defaultRateLimit,
		RateBurst:      defaultRateBurst,
	}
}

// Load builds config from environment variables.
// If DATABASE_URL is not set, Load tries to load .env.local and .env first.
// DATABASE_URL is required; everything else has a default.
func Load() (*Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	c := defaults()
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.RedisURL = os.Getenv("REDIS_URL")
	c.LogFile = os.Getenv("LOG_FILE")
	setString(&c.ServerPort, "SERVER_PORT")
	setString(&c.UserAgent, "FETCHER_USER_AGENT")
	setString(&c.PlutoBaseURL, "PLUTO_BASE_URL")

	if s := os.Getenv("FETCHER_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("config: FETCHER_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if s := os.Getenv("PLUTO_GUIDE_CHUNK_SIZE"); s != "" {
		d, err := parseSeconds(s)
		if err != nil {
			return nil, fmt.Errorf("config: PLUTO_GUIDE_CHUNK_SIZE: %w", err)
		}
		c.GuideChunkSize = d
	}
	if s := os.Getenv("SYNC_ENABLED"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("config: SYNC_ENABLED: %w", err)
		}
		c.SyncEnabled = b
	}
	if s := os.Getenv("RATE_LIMIT"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("config: RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}
	if s := os.Getenv("RATE_BURST"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("config: RATE_BURST: %w", err)
		}
		c.RateBurst = n
	}

	if c.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// validate rejects negative numeric settings. Zero keeps its meaning:
// no fetch timeout, rate limiting off, a burst of one.
func (c *Config) validate() error {
	switch {
	case c.Timeout < 0:
		return fmt.Errorf("config: fetcher timeout must not be negative, got %s", c.Timeout)
	case c.RateLimit < 0:
		return fmt.Errorf("config: rate limit must not be negative, got %g", c.RateLimit)
	case c.RateBurst < 0:
		return fmt.Errorf("config: rate burst must not be negative, got %d", c.RateBurst)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// parseSeconds reads a positive whole number of seconds.
func parseSeconds(s string) (time.Duration, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return time.Duration(n) * time.Second, nil
}
