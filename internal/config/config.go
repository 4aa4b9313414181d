/*
Package config handles loading, saving and validating jiji configuration.

Configuration is stored in ~/.jiji.json. Environment variables override file
values after loading, so container deployments can run without a file.

Schema:
  {
    "server": {
      "port": 3000,
      "apiVersion": "v1",
      "environment": "development",
      "allowedOrigins": ["*"],
      "bodyLimitBytes": 10485760,
      "shutdownTimeoutSeconds": 10
    },
    "rateLimit": {"windowMs": 900000, "maxRequests": 100},
    "store": {"driver": "sqlite", "dsn": ""},
    "auth": {"jwtSecret": "", "jwtAudience": ""},
    "catalog": {"mode": "scan", "scanLimit": 10, "refreshSeconds": 300},
    "keywords": {"stopWords": ["what", "is"], "maxKeywords": 5, "minWordLength": 3},
    "history": {"maxLimit": 100},
    "log": {"level": "info", "format": "console"}
  }
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/learnwithjiji/jiji/internal/catalog"
	"github.com/learnwithjiji/jiji/internal/text"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config represents the root configuration structure.
type Config struct {
	Server    ServerConfig        `json:"server"`
	RateLimit RateLimitConfig     `json:"rateLimit"`
	Store     StoreConfig         `json:"store"`
	Auth      AuthConfig          `json:"auth"`
	Catalog   CatalogConfig       `json:"catalog"`
	Keywords  text.KeywordOptions `json:"keywords"`
	History   HistoryConfig       `json:"history"`
	Log       LogConfig           `json:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int    `json:"port"`
	APIVersion  string `json:"apiVersion"`
	Environment string `json:"environment"`

	// AllowedOrigins lists CORS origins. "*" allows any origin.
	AllowedOrigins []string `json:"allowedOrigins"`

	BodyLimitBytes         int64 `json:"bodyLimitBytes"`
	ReadTimeoutSeconds     int   `json:"readTimeoutSeconds,omitempty"`
	WriteTimeoutSeconds    int   `json:"writeTimeoutSeconds,omitempty"`
	ShutdownTimeoutSeconds int   `json:"shutdownTimeoutSeconds"`
}

// RateLimitConfig configures per-client request limiting.
type RateLimitConfig struct {
	// WindowMs is the length of the limiting window in milliseconds.
	WindowMs int `json:"windowMs"`

	// MaxRequests per window and client. Zero disables limiting.
	MaxRequests int `json:"maxRequests"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is "sqlite", "postgres" or "memory".
	Driver string `json:"driver"`

	// DSN is the SQLite file path or the PostgreSQL connection string.
	// An empty SQLite path selects ~/.jiji/jiji.db.
	DSN string `json:"dsn,omitempty"`
}

// AuthConfig configures bearer token verification. Without a secret every
// request is anonymous.
type AuthConfig struct {
	JWTSecret   string `json:"jwtSecret,omitempty"`
	JWTAudience string `json:"jwtAudience,omitempty"`
}

// CatalogConfig configures resource matching.
type CatalogConfig struct {
	// Mode is "scan" or "index".
	Mode string `json:"mode"`

	// ScanLimit is the number of active resources read per query in scan mode.
	ScanLimit int `json:"scanLimit"`

	// RefreshSeconds is the index rebuild interval in index mode.
	RefreshSeconds int `json:"refreshSeconds"`
}

// HistoryConfig bounds history reads.
type HistoryConfig struct {
	MaxLimit int `json:"maxLimit"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// NewConfig creates a configuration with default values.
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   3000,
			APIVersion:             "v1",
			Environment:            EnvDevelopment,
			AllowedOrigins:         []string{"*"},
			BodyLimitBytes:         10 << 20,
			ReadTimeoutSeconds:     15,
			WriteTimeoutSeconds:    30,
			ShutdownTimeoutSeconds: 10,
		},
		RateLimit: RateLimitConfig{
			WindowMs:    15 * 60 * 1000,
			MaxRequests: 100,
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
		},
		Catalog: CatalogConfig{
			Mode:           catalog.ModeScan,
			ScanLimit:      catalog.DefaultScanLimit,
			RefreshSeconds: 300,
		},
		Keywords: text.DefaultKeywordOptions(),
		History: HistoryConfig{
			MaxLimit: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// RateWindow returns the rate limiting window.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowMs) * time.Millisecond
}

// RefreshInterval returns the catalog index rebuild interval.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Catalog.RefreshSeconds) * time.Second
}

// GetDefaultConfigPath returns the path to ~/.jiji.json
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".jiji.json"), nil
}

// Load reads the configuration from the default path.
func Load() (*Config, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadOrCreate reads the configuration at path, writing the defaults there
// first when the file does not exist. An empty path selects the default path.
func LoadOrCreate(path string) (*Config, error) {
	if path == "" {
		p, err := GetDefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := LoadFrom(path)
	if err == nil {
		return cfg, nil
	}

	var notFound *ConfigNotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	cfg = NewConfig()
	if err := Save(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}
