// Package config loads server configuration from the environment and an
// optional YAML file. Environment variables always win over file values.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs at startup.
type Config struct {
	// Project is the default Google Cloud project for tool calls that do
	// not name one. GOOGLE_CLOUD_PROJECT takes precedence over GCP_PROJECT.
	Project string `yaml:"project"`

	// Port is the HTTP listen port. Ignored in stdio mode.
	Port int `yaml:"port"`

	// MCPSecret gates HTTP /mcp traffic. In OAuth mode it also signs the
	// issued tokens.
	MCPSecret string `yaml:"mcp_secret"`

	// UseOAuth switches the HTTP bearer gate from static-secret comparison
	// to verification of JWTs minted by the /token endpoint.
	UseOAuth bool `yaml:"use_oauth"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`

	// MaxRows caps the number of rows a query tool returns.
	MaxRows int `yaml:"max_rows"`
}

const (
	defaultPort    = 8080
	defaultMaxRows = 1000
)

// Load builds a Config from an optional YAML file at path (empty path skips
// the file) overlaid with environment variables.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Port:    defaultPort,
		MaxRows: defaultMaxRows,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = defaultMaxRows
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		cfg.Project = v
	} else if v := os.Getenv("GCP_PROJECT"); v != "" {
		cfg.Project = v
	}
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = p
	}
	if v := os.Getenv("MCP_SECRET"); v != "" {
		cfg.MCPSecret = v
	}
	if v, ok := os.LookupEnv("USE_OAUTH"); ok {
		cfg.UseOAuth = parseBool(v)
	}
	if v, ok := os.LookupEnv("DEBUG_GCP_MCP"); ok {
		cfg.Debug = parseBool(v)
	}
	return nil
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// ValidateHTTP checks the invariants that only apply when serving over HTTP.
// Stdio mode has no auth surface, so it skips these.
func (c *Config) ValidateHTTP() error {
	if c.MCPSecret == "" {
		return fmt.Errorf("MCP_SECRET must be set to serve HTTP")
	}
	return nil
}

// LogLevel maps the debug flag to a slog level.
func (c *Config) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
