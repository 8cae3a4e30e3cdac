package config

import (
	"fmt"
	"net/url"

	"github.com/BurntSushi/toml"
)

type BackendConfig struct {
	BaseURL        string  `toml:"base_url"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RequestsPerSec float64 `toml:"requests_per_sec"` // 0 disables rate limiting
	Burst          int     `toml:"burst"`
}

type SessionConfig struct {
	Token string `toml:"token"` // portal session JWT
}

type LocaleConfig struct {
	Language string   `toml:"language"`
	Files    []string `toml:"files"` // toml message files, locales/active.XX.toml
}

type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

type Config struct {
	Backend BackendConfig `toml:"backend"`
	Session SessionConfig `toml:"session"`
	Locale  LocaleConfig  `toml:"locale"`
	Log     LogConfig     `toml:"log"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Backend.TimeoutSeconds = 30
	config.Backend.Burst = 5
	config.Locale.Language = "en"
	config.Locale.Files = []string{"locales/active.en.toml", "locales/active.fr.toml"}
	config.Log.Level = "info"

	// Load config file
	_, err := toml.DecodeFile(filepath, &config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return &config, nil
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url is required")
	}
	if _, err := url.Parse(c.Backend.BaseURL); err != nil {
		return fmt.Errorf("invalid backend base_url: %w", err)
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	if c.Backend.RequestsPerSec < 0 {
		return fmt.Errorf("requests_per_sec cannot be negative")
	}
	return nil
}
