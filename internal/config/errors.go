package config

import (
	"io/fs"
	"strings"
)

// PermissionError reports a config file that cannot be read or written.
type PermissionError struct {
	Path    string
	Op      string // "read" or "write"
	Fix     string // command that resolves it
	Details string
}

func (e *PermissionError) Error() string {
	var b strings.Builder
	b.WriteString("permission denied (cannot " + e.Op + " config): " + e.Path + "\n")
	if e.Details != "" {
		b.WriteString(e.Details + "\n")
	}
	b.WriteString("💡 Fix: " + e.Fix)
	return b.String()
}

// Is makes PermissionError match fs.ErrPermission.
func (e *PermissionError) Is(target error) bool {
	return target == fs.ErrPermission
}

// ConfigNotFoundError reports a missing config file.
type ConfigNotFoundError struct {
	Path string
	Hint string
}

func (e *ConfigNotFoundError) Error() string {
	return "config file not found: " + e.Path + "\n\n💡 " + e.Hint
}

// Is makes ConfigNotFoundError match fs.ErrNotExist.
func (e *ConfigNotFoundError) Is(target error) bool {
	return target == fs.ErrNotExist
}

// InvalidConfigError reports a config that does not parse, or a value that
// is out of range once file, environment and flags are combined.
type InvalidConfigError struct {
	Path    string // empty when the value came from the environment
	Message string
	Hint    string
}

func (e *InvalidConfigError) Error() string {
	var b strings.Builder
	b.WriteString("invalid config")
	if e.Path != "" {
		b.WriteString(": " + e.Path)
	}
	b.WriteString("\n")
	if e.Message != "" {
		b.WriteString(e.Message + "\n")
	}
	if e.Hint != "" {
		b.WriteString("💡 " + e.Hint)
	}
	return b.String()
}
