package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	DatabaseURL    string   `yaml:"database_url"`
	RedisURL       string   `yaml:"redis_url"`
	ServerPort     string   `yaml:"server_port"`
	UserAgent      string   `yaml:"user_agent"`
	Timeout        string   `yaml:"timeout"`
	PlutoBaseURL   string   `yaml:"pluto_base_url"`
	GuideChunkSize int      `yaml:"guide_chunk_size"`
	LogFile        string   `yaml:"log_file"`
	SyncEnabled    bool     `yaml:"sync_enabled"`
	RateLimit      *float64 `yaml:"rate_limit"`
	RateBurst      *int     `yaml:"rate_burst"`
}

// LoadFromFile loads config from a YAML file. database_url is required.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if f.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	c := defaults()
	c.DatabaseURL = f.DatabaseURL
	c.RedisURL = f.RedisURL
	c.LogFile = f.LogFile
	c.SyncEnabled = f.SyncEnabled
	if f.ServerPort != "" {
		c.ServerPort = f.ServerPort
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.PlutoBaseURL != "" {
		c.PlutoBaseURL = f.PlutoBaseURL
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return nil, fmt.Errorf("config: timeout: %w", err)
		}
		c.Timeout = d
	}
	switch {
	case f.GuideChunkSize < 0:
		return nil, fmt.Errorf("config: guide_chunk_size must be positive, got %d", f.GuideChunkSize)
	case f.GuideChunkSize > 0:
		c.GuideChunkSize = time.Duration(f.GuideChunkSize) * time.Second
	}
	if f.RateLimit != nil {
		c.RateLimit = *f.RateLimit
	}
	if f.RateBurst != nil {
		c.RateBurst = *f.RateBurst
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}
