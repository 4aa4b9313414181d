package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv() error {
	return c.ApplyEnvFrom(os.LookupEnv)
}

// ApplyEnvFrom overrides file values with variables read through lookup.
// Empty variables are ignored.
func (c *Config) ApplyEnvFrom(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var errs []string
	getInt := func(key string, dst *int) {
		v, ok := get(key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}

	getInt("PORT", &c.Server.Port)
	if v, ok := get("API_VERSION"); ok {
		c.Server.APIVersion = v
	}
	if v, ok := get("NODE_ENV"); ok {
		c.Server.Environment = v
	}
	if v, ok := get("APP_ENV"); ok {
		c.Server.Environment = v
	}
	if v, ok := get("ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}

	getInt("RATE_LIMIT_WINDOW_MS", &c.RateLimit.WindowMs)
	getInt("RATE_LIMIT_MAX_REQUESTS", &c.RateLimit.MaxRequests)

	if v, ok := get("DATABASE_DRIVER"); ok {
		c.Store.Driver = v
	}
	if v, ok := get("DATABASE_URL"); ok {
		c.Store.DSN = v
	}

	if v, ok := get("JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}
	if v, ok := get("JWT_AUDIENCE"); ok {
		c.Auth.JWTAudience = v
	}

	if v, ok := get("CATALOG_MODE"); ok {
		c.Catalog.Mode = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	if len(errs) > 0 {
		return &InvalidConfigError{
			Message: strings.Join(errs, "\n"),
			Hint:    "Check the environment variables listed above",
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
