package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// LoadFrom reads config with enhanced error handling. Missing sections and
// zero values keep their defaults.
func LoadFrom(path string) (*Config, error) {
	// Check file existence first
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{
				Path: path,
				Hint: "Run 'jiji serve' once to create a default configuration, or pass --config",
			}
		}
		return nil, fmt.Errorf("failed to access config: %w", err)
	}

	// Check read permissions
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, &PermissionError{
				Path:    path,
				Op:      "read",
				Fix:     getReadPermissionFix(path),
				Details: getPermissionDetails(path),
			}
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := NewConfig()
	// Decoding over the defaults keeps the default of every absent key,
	// except slices which are replaced as a whole.
	cfg.Keywords.StopWords = nil
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("JSON parse error: %v", err),
			Hint:    "Restore from .bak file if available",
		}
	}
	cfg.applyDefaults()

	return cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := NewConfig()

	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.APIVersion == "" {
		c.Server.APIVersion = def.Server.APIVersion
	}
	if c.Server.Environment == "" {
		c.Server.Environment = def.Server.Environment
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = def.Server.AllowedOrigins
	}
	if c.Server.BodyLimitBytes == 0 {
		c.Server.BodyLimitBytes = def.Server.BodyLimitBytes
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = def.Server.ShutdownTimeoutSeconds
	}
	if c.RateLimit.WindowMs == 0 {
		c.RateLimit.WindowMs = def.RateLimit.WindowMs
	}
	if c.Store.Driver == "" {
		c.Store.Driver = def.Store.Driver
	}
	if c.Catalog.Mode == "" {
		c.Catalog.Mode = def.Catalog.Mode
	}
	if c.Catalog.ScanLimit == 0 {
		c.Catalog.ScanLimit = def.Catalog.ScanLimit
	}
	if c.History.MaxLimit == 0 {
		c.History.MaxLimit = def.History.MaxLimit
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// getReadPermissionFix returns platform-specific fix command
func getReadPermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s → Properties → Security → Edit permissions", path)
	default: // unix-like
		return fmt.Sprintf("Run: chmod 600 %s", path)
	}
}

// getPermissionDetails checks file ownership and permissions
func getPermissionDetails(path string) string {
	if runtime.GOOS == "windows" {
		return ""
	}

	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Current permissions: %04o", info.Mode().Perm())
}
