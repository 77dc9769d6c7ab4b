package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "admin", cfg.Manager.Username)
	assert.Equal(t, 30*time.Second, cfg.Manager.Timeout)
	assert.Equal(t, "globalroot-0", cfg.Manager.ScopeID)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
manager:
  url: https://nsx.example.com
  username: auditor
  password: from-file
  timeout: 10s
logging:
  level: info
`)
	t.Setenv("DFWCTL_PASSWORD", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://nsx.example.com", cfg.Manager.URL)
	assert.Equal(t, "auditor", cfg.Manager.Username)
	assert.Equal(t, "from-env", cfg.Manager.Password)
	assert.Equal(t, 10*time.Second, cfg.Manager.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadFile(t *testing.T) {
	path := writeConfig(t, "manager: [not, a, map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Manager: ManagerConfig{URL: "https://nsx", Username: "admin", Timeout: time.Second},
			Logging: LoggingConfig{Level: "info", Format: "json"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(*Config){
		"no url":      func(c *Config) { c.Manager.URL = "" },
		"bad scheme":  func(c *Config) { c.Manager.URL = "ftp://nsx" },
		"no host":     func(c *Config) { c.Manager.URL = "https://" },
		"no username": func(c *Config) { c.Manager.Username = "" },
		"no timeout":  func(c *Config) { c.Manager.Timeout = 0 },
		"bad level":   func(c *Config) { c.Logging.Level = "trace" },
		"bad format":  func(c *Config) { c.Logging.Format = "xml" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
