package config

import (
	"fmt"
	"strings"

	"github.com/learnwithjiji/jiji/internal/catalog"
	"github.com/learnwithjiji/jiji/internal/logging"
)

// Validate checks ranges and enumerations. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d is out of range 1-65535", c.Server.Port)
	}
	if c.Server.APIVersion == "" || strings.ContainsAny(c.Server.APIVersion, "/ ") {
		return fmt.Errorf("server.apiVersion: %q must be a single path segment", c.Server.APIVersion)
	}
	switch c.Server.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("server.environment: %q must be one of development, production, test", c.Server.Environment)
	}
	if c.Server.BodyLimitBytes <= 0 {
		return fmt.Errorf("server.bodyLimitBytes: must be positive")
	}
	if c.Server.ReadTimeoutSeconds < 0 || c.Server.WriteTimeoutSeconds < 0 || c.Server.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("server: timeouts must not be negative")
	}

	if c.RateLimit.WindowMs <= 0 {
		return fmt.Errorf("rateLimit.windowMs: must be positive")
	}
	if c.RateLimit.MaxRequests < 0 {
		return fmt.Errorf("rateLimit.maxRequests: must not be negative")
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn: required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver: %q must be one of sqlite, postgres, memory", c.Store.Driver)
	}

	switch c.Catalog.Mode {
	case catalog.ModeScan, catalog.ModeIndex:
	default:
		return fmt.Errorf("catalog.mode: %q must be scan or index", c.Catalog.Mode)
	}
	if c.Catalog.ScanLimit <= 0 {
		return fmt.Errorf("catalog.scanLimit: must be positive")
	}
	if c.Catalog.RefreshSeconds < 0 {
		return fmt.Errorf("catalog.refreshSeconds: must not be negative")
	}

	if c.Keywords.MaxKeywords < 0 || c.Keywords.MinWordLength < 0 {
		return fmt.Errorf("keywords: maxKeywords and minWordLength must not be negative")
	}
	if c.History.MaxLimit <= 0 {
		return fmt.Errorf("history.maxLimit: must be positive")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("log.format: %q must be console or json", c.Log.Format)
	}

	return nil
}
