// Package config loads the service configuration from environment variables
// with an optional YAML file underneath. Environment always wins.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the envconfig prefix: LICENSEGATE_SERVER_PORT and so on.
const EnvPrefix = "LICENSEGATE"

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Store    StoreConfig    `yaml:"store" envconfig:"STORE"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Tracing  TracingConfig  `yaml:"tracing" envconfig:"TRACING"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig contains the verification protocol settings. SecretKey is
// the HMAC secret shared with clients; it is never logged or reported.
type SecurityConfig struct {
	SecretKey    string        `yaml:"secret_key" envconfig:"SECRET_KEY"`
	ReplayWindow time.Duration `yaml:"replay_window" envconfig:"REPLAY_WINDOW" default:"300s"`
}

// HasSecret reports whether the HMAC secret is configured.
func (c SecurityConfig) HasSecret() bool {
	return strings.TrimSpace(c.SecretKey) != ""
}

// StoreConfig contains the record-store credentials. An empty DSN is a
// detectable "not configured" state, distinct from a connection failure.
type StoreConfig struct {
	DSN          string        `yaml:"dsn" envconfig:"DSN"`
	QueryTimeout time.Duration `yaml:"query_timeout" envconfig:"QUERY_TIMEOUT" default:"5s"`
}

// IsConfigured reports whether store credentials are present.
func (c StoreConfig) IsConfigured() bool {
	return strings.TrimSpace(c.DSN) != ""
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/licensegate.log"`
}

// TracingConfig controls span export. Stdout export is for development.
type TracingConfig struct {
	Stdout bool `yaml:"stdout" envconfig:"STDOUT" default:"false"`
}

// Load loads configuration from environment variables and, if present, the
// YAML file named by LICENSEGATE_CONFIG_FILE (default licensegate.yml).
func Load() (*Config, error) {
	configFile := os.Getenv(EnvPrefix + "_CONFIG_FILE")
	if configFile == "" {
		configFile = "licensegate.yml"
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// The file only fills settings the environment left untouched: secrets
	// and credentials set through the file keep working, but the environment
	// always wins.
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		mergeFromFile(&cfg, fileCfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// mergeFromFile fills credentials from the file when the environment did not
// set them. Only the secret and the store DSN merge: every other field has an
// env default, so after envconfig runs there is no way to tell "unset" from
// "default" for them.
func mergeFromFile(cfg, file *Config) {
	if !cfg.Security.HasSecret() {
		cfg.Security.SecretKey = file.Security.SecretKey
	}
	if !cfg.Store.IsConfigured() {
		cfg.Store.DSN = file.Store.DSN
	}
}

func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Security.ReplayWindow <= 0 {
		return fmt.Errorf("replay window must be positive, got %s", c.Security.ReplayWindow)
	}
	if c.Store.QueryTimeout <= 0 {
		return fmt.Errorf("store query timeout must be positive, got %s", c.Store.QueryTimeout)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Output) {
	case "stdout", "file", "both":
	default:
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	return nil
}
