// Package config loads gateway configuration from a YAML file with
// environment overrides. A missing file yields working defaults (an
// embedded database next to the working directory), so the gateway can
// always start.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the gateway process configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Backend selects and parameterizes the storage engine.
	Backend BackendConfig `yaml:"backend"`

	// ContractPath locates the CUE contract file (highest-precedence
	// definition source). Optional.
	ContractPath string `yaml:"contract_path"`

	// RegistryPath locates the YAML registry file (second-precedence
	// definition source). Optional.
	RegistryPath string `yaml:"registry_path"`

	// Security holds the read-only enforcement flags.
	Security SecurityConfig `yaml:"security"`

	// QueryTimeoutSeconds bounds each query's wall-clock time.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds"`

	// MaxRows truncates result sets larger than this. Zero disables.
	MaxRows int `yaml:"max_rows"`
}

// BackendConfig carries the engine type and connection parameters.
type BackendConfig struct {
	Type     string `yaml:"type"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Endpoint string `yaml:"endpoint"`
	Project  string `yaml:"project"`
	Dataset  string `yaml:"dataset"`
	APIKey   string `yaml:"api_key"`
	PoolMin  int32  `yaml:"pool_min_conns"`
	PoolMax  int32  `yaml:"pool_max_conns"`
}

// SecurityConfig holds the read-only policy flags.
type SecurityConfig struct {
	// ValidateSQL gates every statement through the adapter's read-only
	// policy before execution. On by default; turning it off is for
	// trusted embedded use only.
	ValidateSQL bool `yaml:"validate_sql"`

	// AllowCustomSQL permits callers to submit free-form SQL rather than
	// only product-scoped queries.
	AllowCustomSQL bool `yaml:"allow_custom_sql"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		LogLevel: "info",
		Backend: BackendConfig{
			Type: "sqlite",
			Path: "strata.db",
		},
		Security: SecurityConfig{
			ValidateSQL:    true,
			AllowCustomSQL: true,
		},
		QueryTimeoutSeconds: 30,
		MaxRows:             10000,
	}
}

// Load reads the YAML file at path, falling back to defaults when the
// file is missing, then applies environment overrides. An unparseable
// file is an error: silently ignoring a present-but-broken config hides
// misconfiguration.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Defaults apply.
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays STRATA_* environment variables onto the config.
func applyEnv(cfg *Config) {
	if v := os.Getenv("STRATA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STRATA_BACKEND"); v != "" {
		cfg.Backend.Type = v
	}
	if v := os.Getenv("STRATA_DB_PATH"); v != "" {
		cfg.Backend.Path = v
	}
	if v := os.Getenv("STRATA_DB_HOST"); v != "" {
		cfg.Backend.Host = v
	}
	if v := os.Getenv("STRATA_DB_PASSWORD"); v != "" {
		cfg.Backend.Password = v
	}
	if v := os.Getenv("STRATA_WAREHOUSE_ENDPOINT"); v != "" {
		cfg.Backend.Endpoint = v
	}
	if v := os.Getenv("STRATA_WAREHOUSE_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("STRATA_CONTRACT_PATH"); v != "" {
		cfg.ContractPath = v
	}
	if v := os.Getenv("STRATA_REGISTRY_PATH"); v != "" {
		cfg.RegistryPath = v
	}
	if v := os.Getenv("STRATA_QUERY_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QueryTimeoutSeconds = n
		}
	}
}
