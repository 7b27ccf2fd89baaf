// Package config loads the fsgate settings file.
//
// The allow-list itself is never stored here: settings only name the
// environment variable that carries it, and that variable is re-read on
// every authorization check.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/fsgate/internal/allowlist"
	"github.com/ppiankov/fsgate/internal/logging"
	"github.com/ppiankov/fsgate/internal/resolve"
)

// AppName names the config directory under the XDG config home.
const AppName = "fsgate"

// Defaults for the HTTP binding.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 3000
)

// PortEnvVar overrides http.port when set.
const PortEnvVar = "PORT"

// Config holds fsgate settings.
type Config struct {
	// AllowedDirsEnv names the environment variable holding the allow-list.
	AllowedDirsEnv string     `yaml:"allowed_dirs_env"`
	LogLevel       string     `yaml:"log_level"`
	AuditLog       string     `yaml:"audit_log"`
	HTTP           HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the streamable HTTP binding.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return h.Host + ":" + strconv.Itoa(h.Port)
}

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{
		AllowedDirsEnv: allowlist.DefaultEnvVar,
		LogLevel:       "info",
		HTTP: HTTPConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/fsgate/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Load reads settings from path, or DefaultPath when path is empty.
// A missing file yields defaults. Unset keys keep their defaults, and the
// PORT environment variable overrides http.port.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if raw := strings.TrimSpace(getenv(PortEnvVar)); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", PortEnvVar, raw, err)
		}
		c.HTTP.Port = port
	}
	return nil
}

// Validate fills empty fields with defaults and rejects impossible values.
func (c *Config) Validate() error {
	def := Default()
	if strings.TrimSpace(c.AllowedDirsEnv) == "" {
		c.AllowedDirsEnv = def.AllowedDirsEnv
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = def.HTTP.Host
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = def.HTTP.Port
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.AuditLog != "" {
		c.AuditLog = resolve.ExpandHome(c.AuditLog)
	}
	return nil
}

// Save writes the settings to path with mode 0600.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
