// Package config provides configuration management for the qi toolchain.
// Projects carry an optional qi.toml; everything has a working default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the toolchain configuration.
type Config struct {
	Build   BuildConfig   `toml:"build"`
	Runtime RuntimeConfig `toml:"runtime"`
	Service ServiceConfig `toml:"service"`
	Watch   WatchConfig   `toml:"watch"`
	Logging LoggingConfig `toml:"logging"`
}

// BuildConfig controls IR emission.
type BuildConfig struct {
	ModuleName string `toml:"module_name"`
	DataLayout string `toml:"data_layout"`
	Triple     string `toml:"triple"`
	OutputDir  string `toml:"output_dir"`
}

// RuntimeConfig controls the executor embedded in compiled programs and in
// the inspection service.
type RuntimeConfig struct {
	Workers       int  `toml:"workers"` // 0 = one per logical CPU
	QueueCapacity int  `toml:"queue_capacity"`
	WorkStealing  bool `toml:"work_stealing"`
}

// ServiceConfig contains the inspection HTTP service settings.
type ServiceConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	APIKey          string `toml:"api_key"`
	ShutdownTimeout int    `toml:"shutdown_timeout_seconds"`
}

// WatchConfig contains watch-mode settings.
type WatchConfig struct {
	DebounceMs   int      `toml:"debounce_ms"`
	ExcludeGlobs []string `toml:"exclude_globs"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Output     []string `toml:"output"`
	TimeFormat string   `toml:"time_format"`
	Dir        string   `toml:"dir"`
}

// DefaultConfig returns the default configuration. QI_HOST and QI_PORT
// override the service binding.
func DefaultConfig() *Config {
	host := "127.0.0.1"
	if envHost := os.Getenv("QI_HOST"); envHost != "" {
		host = envHost
	}
	port := 8470
	if envPort := os.Getenv("QI_PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil {
			port = p
		}
	}
	return &Config{
		Build: BuildConfig{
			ModuleName: "main",
			DataLayout: "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128",
			Triple:     defaultTriple(),
			OutputDir:  ".",
		},
		Runtime: RuntimeConfig{
			Workers:       0,
			QueueCapacity: 1024,
			WorkStealing:  true,
		},
		Service: ServiceConfig{
			Host:            host,
			Port:            port,
			ShutdownTimeout: 30,
		},
		Watch: WatchConfig{
			DebounceMs:   500,
			ExcludeGlobs: []string{".git/**", "build/**", "target/**"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
			Dir:        "",
		},
	}
}

func defaultTriple() string {
	switch runtime.GOOS {
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "arm64-apple-macosx11.0.0"
		}
		return "x86_64-apple-macosx10.15.0"
	case "windows":
		return "x86_64-pc-windows-msvc"
	default:
		if runtime.GOARCH == "arm64" {
			return "aarch64-unknown-linux-gnu"
		}
		return "x86_64-unknown-linux-gnu"
	}
}

// Load reads a qi.toml, merging it over defaults. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	cfg.expandPaths()
	return cfg, nil
}

// LoadFromString parses configuration from a TOML string over defaults.
func LoadFromString(tomlStr string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.Decode(os.ExpandEnv(tomlStr), cfg); err != nil {
		return nil, fmt.Errorf("parse config string: %w", err)
	}
	cfg.expandPaths()
	return cfg, nil
}

func (c *Config) expandPaths() {
	home, _ := os.UserHomeDir()
	expandTilde := func(path string) string {
		if strings.HasPrefix(path, "~/") {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	c.Build.OutputDir = expandTilde(c.Build.OutputDir)
	c.Logging.Dir = expandTilde(c.Logging.Dir)
}

// Save writes the configuration as TOML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// Address returns the service bind address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.Port)
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Service.Port)
	}
	if c.Runtime.Workers < 0 {
		return fmt.Errorf("runtime workers cannot be negative")
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms cannot be negative")
	}
	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}

// WriteExampleConfig writes a commented starter qi.toml.
func WriteExampleConfig(path string) error {
	example := `# qi toolchain configuration
# All values shown are defaults - uncomment and modify as needed

[build]
# Module name stamped into the emitted IR header
module_name = "main"
# Target datalayout and triple passed through to the back end
# data_layout = "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128"
# triple = "x86_64-unknown-linux-gnu"
# Where .ll files are written
output_dir = "."

[runtime]
# Worker threads for the task executor (0 = one per logical CPU)
workers = 0
# Advisory queue capacity
queue_capacity = 1024
# Let idle workers steal from busier workers
work_stealing = true

[service]
# Bind address of the inspection HTTP service
host = "127.0.0.1"
port = 8470
# API key (empty = no auth for any client)
api_key = ""
shutdown_timeout_seconds = 30

[watch]
# File change debounce time in milliseconds
debounce_ms = 500
exclude_globs = [".git/**", "build/**", "target/**"]

[logging]
# Log level: debug, info, warn, error
level = "info"
# Log format: json, text
format = "text"
# Output destinations: "stdout", "file"
output = ["stdout"]
time_format = "15:04:05.000"
# Directory for log files when "file" output is enabled
# dir = "~/.qi/logs"
`
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(example), 0644)
}
