package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is where the CLI looks for its configuration file.
const DefaultPath = "/etc/dfwctl/config.yaml"

// Config represents the application configuration.
type Config struct {
	Manager ManagerConfig `yaml:"manager"`
	Logging LoggingConfig `yaml:"logging"`
}

// ManagerConfig contains the connection settings of the manager.
type ManagerConfig struct {
	// URL is the base URL of the manager, e.g. https://nsxmanager.example.com.
	URL string `yaml:"url" env:"DFWCTL_MANAGER_URL"`

	// Username is the basic authentication user.
	Username string `yaml:"username" env:"DFWCTL_USERNAME" env-default:"admin"`

	// Password is the basic authentication password.
	Password string `yaml:"password" env:"DFWCTL_PASSWORD"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" env:"DFWCTL_INSECURE_SKIP_VERIFY" env-default:"false"`

	// Timeout bounds every request to the manager.
	Timeout time.Duration `yaml:"timeout" env:"DFWCTL_TIMEOUT" env-default:"30s"`

	// ScopeID is the firewall context and service scope.
	ScopeID string `yaml:"scope_id" env:"DFWCTL_SCOPE_ID" env-default:"globalroot-0"`
}

// LoggingConfig contains logging-related configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level" env:"DFWCTL_LOG_LEVEL" env-default:"warn"`

	// Format is the log format (json, text).
	Format string `yaml:"format" env:"DFWCTL_LOG_FORMAT" env-default:"text"`
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over config file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to access config file: %w", err)
		}
	}

	// Read environment variables (they override file values)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Manager.URL == "" {
		return fmt.Errorf("manager url must be configured (manager.url or DFWCTL_MANAGER_URL)")
	}
	u, err := url.Parse(c.Manager.URL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("invalid manager url: %s (must be http(s)://host[:port])", c.Manager.URL)
	}

	if c.Manager.Username == "" {
		return fmt.Errorf("manager username must be configured")
	}

	if c.Manager.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: %s (must be positive)", c.Manager.Timeout)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be one of: json, text)", c.Logging.Format)
	}

	return nil
}
