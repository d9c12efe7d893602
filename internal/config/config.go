// Package config handles YAML configuration for ephemera.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when --config is not given and the file exists.
const DefaultPath = "ephemera.yaml"

// Config is the root configuration structure.
type Config struct {
	Retention RetentionConfig `yaml:"retention"`
	Docker    DockerConfig    `yaml:"docker"`
	Terraform TerraformConfig `yaml:"terraform"`
	GitHub    GitHubConfig    `yaml:"github"`
	Journal   JournalConfig   `yaml:"journal"`
	Trends    TrendsConfig    `yaml:"trends"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	OTEL      OTELConfig      `yaml:"otel"`
	Log       LogConfig       `yaml:"log"`
}

// RetentionConfig holds the cleanup threshold.
type RetentionConfig struct {
	MaxAgeHours float64 `yaml:"max_age_hours"`
}

// DockerConfig selects the container runtime backend.
type DockerConfig struct {
	Backend string `yaml:"backend"` // cli or api
	Binary  string `yaml:"binary"`
	Host    string `yaml:"host"`
}

// TerraformConfig locates the preview stack.
type TerraformConfig struct {
	Binary string `yaml:"binary"`
	Dir    string `yaml:"dir"`
}

// GitHubConfig selects how PR state is looked up.
type GitHubConfig struct {
	Backend  string `yaml:"backend"` // cli or api
	Binary   string `yaml:"binary"`
	Owner    string `yaml:"owner"`
	Repo     string `yaml:"repo"`
	TokenEnv string `yaml:"token_env"`
	BaseURL  string `yaml:"base_url"`
}

// JournalConfig locates the reclaim audit journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// TrendsConfig holds dashboard inputs and outputs.
type TrendsConfig struct {
	MetricsFile string `yaml:"metrics_file"`
	Output      string `yaml:"output"`
	Days        int    `yaml:"days"`
}

// DaemonConfig holds watch loop settings.
type DaemonConfig struct {
	IntervalStr string        `yaml:"interval"`
	Interval    time.Duration `yaml:"-"`
	Reclaim     bool          `yaml:"reclaim"`
	Concurrency int           `yaml:"concurrency"`
	MetricsAddr string        `yaml:"metrics_addr"`
	PolicyFile  string        `yaml:"policy_file"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Insecure    bool          `yaml:"insecure"`
	ServiceName string        `yaml:"service_name"`
	Traces      TracesConfig  `yaml:"traces"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled    bool `yaml:"enabled"`
	Prometheus bool `yaml:"prometheus"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	_ = parseInterval(cfg)
	return cfg
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseInterval(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when given. Without a path it loads DefaultPath
// if present and falls back to defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return Load(DefaultPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	return Default(), nil
}

func applyDefaults(cfg *Config) {
	if cfg.Retention.MaxAgeHours == 0 {
		cfg.Retention.MaxAgeHours = 72
	}
	if cfg.Docker.Backend == "" {
		cfg.Docker.Backend = "cli"
	}
	if cfg.Docker.Binary == "" {
		cfg.Docker.Binary = "docker"
	}
	if cfg.Terraform.Binary == "" {
		cfg.Terraform.Binary = "terraform"
	}
	if cfg.Terraform.Dir == "" {
		cfg.Terraform.Dir = "infra/terraform/stacks/pr-preview"
	}
	if cfg.GitHub.Backend == "" {
		cfg.GitHub.Backend = "cli"
	}
	if cfg.GitHub.Binary == "" {
		cfg.GitHub.Binary = "gh"
	}
	if cfg.GitHub.TokenEnv == "" {
		cfg.GitHub.TokenEnv = "GITHUB_TOKEN"
	}
	if cfg.Trends.MetricsFile == "" {
		cfg.Trends.MetricsFile = "metrics/operations.json"
	}
	if cfg.Trends.Output == "" {
		cfg.Trends.Output = "dashboard/trends.html"
	}
	if cfg.Trends.Days == 0 {
		cfg.Trends.Days = 30
	}
	if cfg.Daemon.IntervalStr == "" {
		cfg.Daemon.IntervalStr = "15m"
	}
	if cfg.Daemon.Concurrency == 0 {
		cfg.Daemon.Concurrency = 1
	}
	if cfg.Daemon.MetricsAddr == "" {
		cfg.Daemon.MetricsAddr = ":9090"
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "ephemera"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

func parseInterval(cfg *Config) error {
	d, err := time.ParseDuration(cfg.Daemon.IntervalStr)
	if err != nil {
		return fmt.Errorf("parse interval %q: %w", cfg.Daemon.IntervalStr, err)
	}
	cfg.Daemon.Interval = d
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.Retention.MaxAgeHours < 0 {
		return fmt.Errorf("retention: max_age_hours must not be negative (got %v)", c.Retention.MaxAgeHours)
	}
	if c.Docker.Backend != "cli" && c.Docker.Backend != "api" {
		return fmt.Errorf("docker: backend must be cli or api (got %q)", c.Docker.Backend)
	}
	if c.GitHub.Backend != "cli" && c.GitHub.Backend != "api" {
		return fmt.Errorf("github: backend must be cli or api (got %q)", c.GitHub.Backend)
	}
	if c.GitHub.Backend == "api" && (c.GitHub.Owner == "" || c.GitHub.Repo == "") {
		return fmt.Errorf("github: owner and repo required for the api backend")
	}
	if c.Trends.Days <= 0 {
		return fmt.Errorf("trends: days must be positive (got %d)", c.Trends.Days)
	}
	if c.Daemon.Interval <= 0 {
		return fmt.Errorf("daemon: interval must be positive (got %s)", c.Daemon.Interval)
	}
	if c.Daemon.Concurrency < 1 {
		return fmt.Errorf("daemon: concurrency must be at least 1 (got %d)", c.Daemon.Concurrency)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log: format must be console or json (got %q)", c.Log.Format)
	}
	return nil
}
