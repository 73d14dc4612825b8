// Package config loads emulator configuration from an optional YAML file and
// environment variables. Environment always wins over file values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all emulator configuration.
type Config struct {
	// Server configuration
	ListenAddress string `yaml:"listen_address"`
	Environment   string `yaml:"environment"`

	// Endpoint advertised in queue URLs.
	ExternalEndpoint string `yaml:"external_endpoint"`

	// Emulated identity
	Region    string `yaml:"region"`
	AccountID string `yaml:"account_id"`

	// Persistence
	DataDir string `yaml:"data_dir"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Feature flags
	EnableMetrics   bool `yaml:"enable_metrics"`
	EnableDataPlane bool `yaml:"enable_data_plane"`

	// Load-balancer data plane limits
	LBMaxBodyBytes   int64 `yaml:"lb_max_body_bytes"`
	LBForwardTimeout int   `yaml:"lb_forward_timeout_seconds"`
}

// LoadConfig builds the configuration: defaults, then the YAML file named by
// LOCALCLOUD_CONFIG (if any), then environment overrides.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ListenAddress:    ":4566",
		Environment:      "development",
		Region:           "us-east-1",
		AccountID:        "000000000000",
		DataDir:          "./data",
		LogLevel:         "info",
		EnableMetrics:    true,
		EnableDataPlane:  true,
		LBMaxBodyBytes:   10 << 20,
		LBForwardTimeout: 30,
	}

	if path := os.Getenv("LOCALCLOUD_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.ListenAddress = getEnv("LISTEN_ADDRESS", cfg.ListenAddress)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.Region = getEnv("DEFAULT_REGION", cfg.Region)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.EnableMetrics = getEnvBool("ENABLE_METRICS", cfg.EnableMetrics)
	cfg.EnableDataPlane = getEnvBool("ENABLE_DATA_PLANE", cfg.EnableDataPlane)
	cfg.ExternalEndpoint = getEnv("EXTERNAL_ENDPOINT", cfg.ExternalEndpoint)
	cfg.LBMaxBodyBytes = getEnvInt64("LB_MAX_BODY_BYTES", cfg.LBMaxBodyBytes)
	cfg.LBForwardTimeout = getEnvInt("LB_FORWARD_TIMEOUT", cfg.LBForwardTimeout)

	if cfg.ExternalEndpoint == "" {
		cfg.ExternalEndpoint = "http://localhost:4566"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if c.LBMaxBodyBytes <= 0 {
		return fmt.Errorf("lb_max_body_bytes must be positive")
	}
	if c.LBForwardTimeout <= 0 {
		return fmt.Errorf("lb_forward_timeout_seconds must be positive")
	}
	return nil
}

// IsDevelopment checks if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
