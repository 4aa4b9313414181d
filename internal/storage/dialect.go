package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sqliteTimeLayout is fixed width so that lexical order equals time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// dialect captures the differences between the supported SQL databases.
type dialect struct {
	name   string
	driver string

	// numbered placeholders ($1, $2, ...) instead of '?'.
	numbered bool

	// encodeTime converts a timestamp into a driver argument.
	encodeTime func(time.Time) any

	schemaMigrationsDDL string
	migrations          []migration
}

var sqliteDialect = &dialect{
	name:   "sqlite",
	driver: "sqlite",
	encodeTime: func(t time.Time) any {
		return t.UTC().Format(sqliteTimeLayout)
	},
	schemaMigrationsDDL: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`,
	migrations: []migration{
		{version: 1, name: "initial_schema", statements: []string{
			`CREATE TABLE IF NOT EXISTS queries (
				id TEXT PRIMARY KEY,
				query_text TEXT NOT NULL,
				user_id TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_queries_user_created
				ON queries(user_id, created_at DESC)`,
			`CREATE TABLE IF NOT EXISTS resources (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				type TEXT NOT NULL,
				url TEXT NOT NULL,
				description TEXT,
				tags TEXT NOT NULL DEFAULT '[]',
				is_active INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_resources_active
				ON resources(is_active, created_at)`,
		}},
	},
}

var postgresDialect = &dialect{
	name:     "postgres",
	driver:   "pgx",
	numbered: true,
	encodeTime: func(t time.Time) any {
		return t.UTC()
	},
	schemaMigrationsDDL: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`,
	migrations: []migration{
		{version: 1, name: "initial_schema", statements: []string{
			`CREATE TABLE IF NOT EXISTS queries (
				id TEXT PRIMARY KEY,
				query_text TEXT NOT NULL,
				user_id TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_queries_user_created
				ON queries(user_id, created_at DESC)`,
			`CREATE TABLE IF NOT EXISTS resources (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				type TEXT NOT NULL,
				url TEXT NOT NULL,
				description TEXT,
				tags TEXT NOT NULL DEFAULT '[]',
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_resources_active
				ON resources(is_active, created_at)`,
		}},
	},
}

func dialectFor(name string) (*dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect, nil
	default:
		return nil, fmt.Errorf("storage: unsupported sql dialect %q", name)
	}
}

// rebind rewrites '?' placeholders for dialects with numbered parameters.
func (d *dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqliteDSN adds the connection pragmas used for every SQLite database.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)"
}

// timeValue scans timestamps stored either natively or as text.
type timeValue struct {
	t *time.Time
}

func (v timeValue) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		*v.t = time.Time{}
		return nil
	case time.Time:
		*v.t = x.UTC()
		return nil
	case string:
		return v.parse(x)
	case []byte:
		return v.parse(string(x))
	default:
		return fmt.Errorf("storage: cannot scan %T into time", src)
	}
}

func (v timeValue) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			*v.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("storage: invalid timestamp %q", s)
}

// tagList stores tags as a JSON array in a text column.
type tagList []string

// encodeTags renders tags as the JSON array stored in the tags column.
func encodeTags(tags []string) (string, error) {
	if tags == nil {
		return "[]", nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (t *tagList) Scan(src any) error {
	var data []byte
	switch x := src.(type) {
	case nil:
		*t = tagList{}
		return nil
	case string:
		data = []byte(x)
	case []byte:
		data = x
	default:
		return fmt.Errorf("storage: cannot scan %T into tags", src)
	}

	var tags []string
	if len(data) > 0 {
		if err := json.Unmarshal(data, &tags); err != nil {
			return fmt.Errorf("storage: invalid tags: %w", err)
		}
	}
	if tags == nil {
		tags = []string{}
	}
	*t = tags
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var (
	_ sql.Scanner = timeValue{}
	_ sql.Scanner = (*tagList)(nil)
)
