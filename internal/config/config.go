// Package config handles Weft configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the root configuration structure for Weft.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Definitions settings
	Definitions DefinitionsConfig `yaml:"definitions" mapstructure:"definitions"`

	// Integrations settings
	Integrations IntegrationsConfig `yaml:"integrations" mapstructure:"integrations"`
}

// GlobalConfig contains global Weft settings.
type GlobalConfig struct {
	// DataDir is where Weft stores its data (default: ~/.local/share/weft).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/weft).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// MaxConnections is the maximum number of database connections.
	MaxConnections int `yaml:"max_connections" mapstructure:"max_connections"`

	// BusyTimeoutMs is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// DefinitionsConfig contains workflow definition settings.
type DefinitionsConfig struct {
	// Dir is scanned for definition files when commands are given no
	// explicit paths (default: DataDir/definitions).
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// IntegrationsConfig contains integration dispatch settings.
type IntegrationsConfig struct {
	// CallTimeout bounds a single integration tool call.
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`

	// HTTPTimeout bounds hosted provider HTTP requests.
	HTTPTimeout time.Duration `yaml:"http_timeout" mapstructure:"http_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "weft"),
			ConfigDir: filepath.Join(homeDir, ".config", "weft"),
		},
		Database: DatabaseConfig{
			Path:           "", // Will be set to DataDir/weft.db
			MaxConnections: 10,
			BusyTimeoutMs:  5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Definitions: DefinitionsConfig{
			Dir: "", // Will be set to DataDir/definitions
		},
		Integrations: IntegrationsConfig{
			CallTimeout: 60 * time.Second,
			HTTPTimeout: 30 * time.Second,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Global.DataDir) == "" {
		return fmt.Errorf("global.data_dir is required")
	}
	if strings.TrimSpace(c.Global.ConfigDir) == "" {
		return fmt.Errorf("global.config_dir is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database.max_connections must be at least 1")
	}
	if c.Database.BusyTimeoutMs < 0 {
		return fmt.Errorf("database.busy_timeout_ms must be zero or greater")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of console, json")
	}

	if c.Integrations.CallTimeout <= 0 {
		return fmt.Errorf("integrations.call_timeout must be greater than 0")
	}
	if c.Integrations.HTTPTimeout <= 0 {
		return fmt.Errorf("integrations.http_timeout must be greater than 0")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
		c.DefinitionsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "weft.db")
}

// DefinitionsDir returns the full definitions directory path.
func (c *Config) DefinitionsDir() string {
	if c.Definitions.Dir != "" {
		return c.Definitions.Dir
	}
	return filepath.Join(c.Global.DataDir, "definitions")
}
