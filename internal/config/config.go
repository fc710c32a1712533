// Package config loads process-wide settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pendergraft/srcverify/internal/verification/domain"
)

// envPrefix is prepended to every variable name.
const envPrefix = "SRCVERIFY_"

// Config holds all configuration for the CLI
type Config struct {
	Logging      LoggingConfig
	Explorer     ExplorerConfig
	Verification VerificationConfig
	Metrics      MetricsConfig
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"; empty picks text on a terminal
}

// ExplorerConfig holds explorer client settings
type ExplorerConfig struct {
	// RegistryFile is an optional TOML or YAML file with extra explorers.
	RegistryFile   string
	HTTPTimeout    time.Duration
	RateLimitRPS   float64 // 0 disables rate limiting
	RateLimitBurst int
}

// VerificationConfig holds workflow timing and license handling
type VerificationConfig struct {
	PollInterval  time.Duration
	TxListRetries int
	LicensePolicy domain.LicensePolicy
}

// MetricsConfig holds metrics server settings
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	defaults := domain.DefaultConfig()

	policy, err := domain.ParseLicensePolicy(getEnv("LICENSE_POLICY", string(defaults.LicensePolicy)))
	if err != nil {
		return nil, fmt.Errorf("%sLICENSE_POLICY: %w", envPrefix, err)
	}

	cfg := &Config{
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", ""),
		},
		Explorer: ExplorerConfig{
			RegistryFile:   getEnv("EXPLORERS_FILE", ""),
			HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
			RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 1),
		},
		Verification: VerificationConfig{
			PollInterval:  getEnvDuration("POLL_INTERVAL", defaults.PollInterval),
			TxListRetries: getEnvInt("TXLIST_RETRIES", defaults.TxListRetries),
			LicensePolicy: policy,
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", false),
			Addr:    getEnv("METRICS_ADDR", ""),
		},
	}

	// A metrics address implies metrics are wanted
	if cfg.Metrics.Addr != "" {
		cfg.Metrics.Enabled = true
	}
	if cfg.Verification.TxListRetries < 0 {
		return nil, fmt.Errorf("%sTXLIST_RETRIES must not be negative", envPrefix)
	}
	if cfg.Explorer.RateLimitBurst < 1 {
		cfg.Explorer.RateLimitBurst = 1
	}

	return cfg, nil
}

// Workflow returns the verification defaults with the configured overrides.
func (c *Config) Workflow() domain.Config {
	wf := domain.DefaultConfig()
	wf.PollInterval = c.Verification.PollInterval
	wf.TxListRetries = c.Verification.TxListRetries
	wf.LicensePolicy = c.Verification.LicensePolicy
	return wf
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(envPrefix + key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(envPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(envPrefix + key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
