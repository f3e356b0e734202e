// Package config loads the YAML configuration shared by the client CLI and
// the reference store server.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/fieldsync/internal/client/retry"
)

// Client holds client-side settings.
type Client struct {
	ServerURL      string        `yaml:"server_url"`
	DBPath         string        `yaml:"db_path"`
	Token          string        `yaml:"token"`
	Retry          retry.Config  `yaml:"retry"`
	SettleWindow   time.Duration `yaml:"settle_window"`
	SaveTimeout    time.Duration `yaml:"save_timeout"`
	HealthInterval time.Duration `yaml:"health_interval"`
}

// Server holds reference store settings.
type Server struct {
	Addr       string        `yaml:"addr"`
	DBPath     string        `yaml:"db_path"`
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	RateWindow time.Duration `yaml:"rate_window"`
	RateLimit  int           `yaml:"rate_limit"`
	// MaxValueLength ограничивает длину значения любого поля, 0 без ограничения
	MaxValueLength int `yaml:"max_value_length"`
}

// Config is the root of the configuration file.
type Config struct {
	Client Client `yaml:"client"`
	Server Server `yaml:"server"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Client: Client{
			ServerURL:      "http://localhost:8080",
			DBPath:         "fieldsync-client.db",
			SettleWindow:   2 * time.Second,
			SaveTimeout:    10 * time.Second,
			HealthInterval: 5 * time.Second,
			Retry:          retry.DefaultConfig(),
		},
		Server: Server{
			Addr:           ":8080",
			DBPath:         "fieldsync-server.db",
			TokenTTL:       24 * time.Hour,
			RateLimit:      120,
			RateWindow:     time.Minute,
			MaxValueLength: 4096,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults
// when allowMissing is set.
func Load(path string, allowMissing bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate rejects non-positive durations and limits.
func (c Config) Validate() error {
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Validate checks client settings.
func (c Client) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	if c.SettleWindow <= 0 {
		return errors.New("settle_window must be positive")
	}
	if c.SaveTimeout <= 0 {
		return errors.New("save_timeout must be positive")
	}
	if c.HealthInterval <= 0 {
		return errors.New("health_interval must be positive")
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	return nil
}

// Validate checks server settings.
func (s Server) Validate() error {
	if s.Addr == "" {
		return errors.New("addr is required")
	}
	if s.TokenTTL <= 0 {
		return errors.New("token_ttl must be positive")
	}
	if s.RateLimit <= 0 {
		return errors.New("rate_limit must be positive")
	}
	if s.RateWindow <= 0 {
		return errors.New("rate_window must be positive")
	}
	if s.MaxValueLength < 0 {
		return errors.New("max_value_length must not be negative")
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}
