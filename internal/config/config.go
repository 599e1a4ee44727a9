// Package config handles configuration file parsing and hot-reloading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// DefaultQuery is the query text the console starts with.
const DefaultQuery = "SELECT * FROM patients LIMIT 10"

// Clipboard modes.
var clipboardModes = map[string]bool{"auto": true, "system": true, "osc52": true, "none": true}

// Config represents the application configuration.
type Config struct {
	Name     string         `yaml:"name"`
	Database DatabaseConfig `yaml:"database"`
	Console  ConsoleConfig  `yaml:"console"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`

	// Internal: path to the config file
	path string

	// Internal: last modified time
	modTime time.Time

	mu sync.RWMutex
}

// DatabaseConfig describes the SQLite database queries run against.
type DatabaseConfig struct {
	Path          string `yaml:"path"`
	ReadOnly      bool   `yaml:"read_only"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
	QueryTimeout  string `yaml:"query_timeout"`
}

// ConsoleConfig contains settings of the query console itself.
type ConsoleConfig struct {
	DefaultQuery string    `yaml:"default_query"`
	CopiedWindow string    `yaml:"copied_window"`
	Clipboard    string    `yaml:"clipboard"`
	DownloadDir  string    `yaml:"download_dir"`
	Examples     []Example `yaml:"examples"`

	// ExamplesGlob matches .sql files loaded as additional examples.
	ExamplesGlob string `yaml:"examples_glob"`
}

// Example is a named query the user can load into the editor.
type Example struct {
	Name  string `yaml:"name" json:"name"`
	Query string `yaml:"query" json:"query"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	SSH SSHConfig `yaml:"ssh"`
}

// SSHConfig contains SSH server configuration.
type SSHConfig struct {
	Listen      string `yaml:"listen"`
	HostKeyPath string `yaml:"host_key_path"`
	IdleTimeout string `yaml:"idle_timeout"`
	MaxTimeout  string `yaml:"max_timeout"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
	// File receives log output. Empty means stderr for the CLI and
	// nowhere for the TUI.
	File string `yaml:"file"`
}

// BuiltinExamples are offered when the config names none.
func BuiltinExamples() []Example {
	return []Example{
		{Name: "Basic query", Query: "SELECT * FROM patients ORDER BY last_name LIMIT 10"},
		{Name: "Filter by name", Query: "SELECT * FROM patients WHERE last_name LIKE 'S%' ORDER BY last_name"},
	}
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name: "query-console",
		Database: DatabaseConfig{
			Path:          "patients.db",
			ReadOnly:      false,
			BusyTimeoutMS: 5000,
			QueryTimeout:  "30s",
		},
		Console: ConsoleConfig{
			DefaultQuery: DefaultQuery,
			CopiedWindow: "2s",
			Clipboard:    "auto",
			DownloadDir:  ".",
			Examples:     BuiltinExamples(),
		},
		Server: ServerConfig{
			SSH: SSHConfig{
				Listen:      ":2222",
				HostKeyPath: ".query-console/host_key",
				IdleTimeout: "30m",
				MaxTimeout:  "24h",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	cfg, err := parseFile(absPath)
	if err != nil {
		return nil, err
	}

	cfg.path = absPath

	// Get file modification time
	info, err := os.Stat(absPath)
	if err == nil {
		cfg.modTime = info.ModTime()
	}

	return cfg, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return cfg, nil
}

// Validate checks values that are parsed lazily by the getters.
func (c *Config) Validate() error {
	var errs []error
	for key, value := range map[string]string{
		"database.query_timeout":  c.Database.QueryTimeout,
		"console.copied_window":   c.Console.CopiedWindow,
		"server.ssh.idle_timeout": c.Server.SSH.IdleTimeout,
		"server.ssh.max_timeout":  c.Server.SSH.MaxTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if c.Console.Clipboard != "" && !clipboardModes[c.Console.Clipboard] {
		errs = append(errs, fmt.Errorf("console.clipboard: unknown mode %q", c.Console.Clipboard))
	}
	if c.Log.Level != "" {
		if _, err := log.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("log.level: %w", err))
		}
	}
	for i, ex := range c.Console.Examples {
		if ex.Query == "" {
			errs = append(errs, fmt.Errorf("console.examples[%d]: query is empty", i))
		}
	}
	return errors.Join(errs...)
}

// Path returns the path to the config file.
func (c *Config) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Reload reloads the configuration from disk. The database settings
// are kept since the open connection cannot follow them.
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newCfg, err := parseFile(c.path)
	if err != nil {
		return err
	}

	// Update fields
	c.Name = newCfg.Name
	c.Console = newCfg.Console
	c.Server = newCfg.Server
	c.Log = newCfg.Log

	// Update mod time
	info, err := os.Stat(c.path)
	if err == nil {
		c.modTime = info.ModTime()
	}

	return nil
}

// HasChanged checks if the config file has been modified.
func (c *Config) HasChanged() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		return false
	}
	info, err := os.Stat(c.path)
	if err != nil {
		return false
	}
	return info.ModTime().After(c.modTime)
}

// GetName returns the display name of the console.
func (c *Config) GetName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Name
}

// SSHSettings returns a copy of the SSH server settings.
func (c *Config) SSHSettings() SSHConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Server.SSH
}

// SetListen overrides the SSH listen address.
func (c *Config) SetListen(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Server.SSH.Listen = addr
}

// ConsoleSettings returns a copy of the console settings.
func (c *Config) ConsoleSettings() ConsoleConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.Console
	s.Examples = append([]Example(nil), c.Console.Examples...)
	return s
}

// GetQueryTimeout parses and returns the per-query timeout.
func (c *Config) GetQueryTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.Database.QueryTimeout, 30*time.Second)
}

// GetCopiedWindow parses and returns how long the copied flag stays set.
func (c *Config) GetCopiedWindow() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.Console.CopiedWindow, 2*time.Second)
}

// GetIdleTimeout parses and returns the idle timeout duration.
func (c *Config) GetIdleTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.Server.SSH.IdleTimeout, 30*time.Minute)
}

// GetMaxTimeout parses and returns the max timeout duration.
func (c *Config) GetMaxTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.Server.SSH.MaxTimeout, 24*time.Hour)
}

// GetLogLevel returns the configured log level, info when unset or invalid.
func (c *Config) GetLogLevel() log.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()

	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// GetDataDir returns the data directory path (for host keys).
func (c *Config) GetDataDir() string {
	return ".query-console"
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
