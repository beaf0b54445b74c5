// Package config loads the automation client configuration from TOML files
// in standard locations, with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override file settings.
const (
	EnvToken      = "AUTOMATION_TOKEN"
	EnvURL        = "AUTOMATION_URL"
	EnvWorkspaces = "AUTOMATION_WORKSPACES"
)

var (
	// ErrInsecurePermissions is returned when a file holding a token is
	// readable by group or others.
	ErrInsecurePermissions = errors.New("config file has insecure permissions")

	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the complete client configuration.
type Config struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Environment string   `toml:"environment"`
	Workspaces  []string `toml:"workspace_ids"`

	Transport TransportConfig `toml:"transport"`
	NATS      NATSConfig      `toml:"nats"`
	Shutdown  ShutdownConfig  `toml:"shutdown"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Tracing   TracingConfig   `toml:"tracing"`
	Logging   LoggingConfig   `toml:"logging"`
}

// TransportConfig configures the platform WebSocket.
type TransportConfig struct {
	URL            string `toml:"url"`
	Token          string `toml:"token"`
	PingIntervalMS int    `toml:"ping_interval_ms"`
	WriteTimeoutMS int    `toml:"write_timeout_ms"`
}

// NATSConfig configures bus delivery. Disabled when URL is empty.
type NATSConfig struct {
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// ShutdownConfig configures the shutdown hooks.
type ShutdownConfig struct {
	ForceExitTimeoutMS int `toml:"force_exit_timeout_ms"`
}

// MetricsConfig configures the Prometheus endpoint. Disabled when Listen is empty.
type MetricsConfig struct {
	Listen string `toml:"listen"`
}

// TracingConfig configures OTLP trace export. Disabled when Endpoint is empty.
type TracingConfig struct {
	Endpoint string `toml:"endpoint"`
	Protocol string `toml:"protocol"`
	Insecure bool   `toml:"insecure"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// Default returns configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Name:        "automation-client",
		Version:     "0.1.0",
		Environment: "local",
		Transport: TransportConfig{
			PingIntervalMS: 30000,
			WriteTimeoutMS: 10000,
		},
		Shutdown: ShutdownConfig{ForceExitTimeoutMS: 10000},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// StandardPaths returns the config file locations in order of priority.
func StandardPaths() []string {
	paths := []string{"automation.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "automation", "automation.toml"))
	}
	return paths
}

// Load reads the first config file found in the standard locations and
// applies environment overrides. Without a file the defaults are used.
// Returns the path that was loaded, if any.
func Load() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			return cfg, path, err
		}
	}

	cfg := Default()
	cfg.ApplyEnv()
	return cfg, "", nil
}

// LoadFile reads a specific file on top of the defaults and applies
// environment overrides. A file that contains a token must not be readable
// by group or others.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if cfg.Transport.Token != "" && runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			return nil, fmt.Errorf("%w: %s has mode %04o and holds a token (use 0600 or stricter)",
				ErrInsecurePermissions, path, mode)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvToken); v != "" {
		c.Transport.Token = v
	}
	if v := os.Getenv(EnvURL); v != "" {
		c.Transport.URL = v
	}
	if v := os.Getenv(EnvWorkspaces); v != "" {
		c.Workspaces = nil
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.Workspaces = append(c.Workspaces, id)
			}
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var problems []string

	if c.Name == "" {
		problems = append(problems, "name is required")
	}
	if c.Version == "" {
		problems = append(problems, "version is required")
	}
	if c.Transport.URL == "" && c.NATS.URL == "" {
		problems = append(problems, "either transport.url or nats.url is required")
	}
	if c.Transport.URL != "" && c.Transport.Token == "" {
		problems = append(problems, "transport.token is required (or set "+EnvToken+")")
	}
	if c.Transport.PingIntervalMS < 0 || c.Transport.WriteTimeoutMS < 0 {
		problems = append(problems, "transport timeouts must not be negative")
	}
	if c.Shutdown.ForceExitTimeoutMS < 0 {
		problems = append(problems, "shutdown.force_exit_timeout_ms must not be negative")
	}
	switch c.Tracing.Protocol {
	case "", "grpc", "http":
	default:
		problems = append(problems, fmt.Sprintf("tracing.protocol %q must be grpc or http", c.Tracing.Protocol))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// PingInterval returns the transport keepalive interval.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Transport.PingIntervalMS) * time.Millisecond
}

// WriteTimeout returns the transport write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Transport.WriteTimeoutMS) * time.Millisecond
}

// ForceExitTimeout returns the longest a shutdown may take.
func (c *Config) ForceExitTimeout() time.Duration {
	return time.Duration(c.Shutdown.ForceExitTimeoutMS) * time.Millisecond
}
