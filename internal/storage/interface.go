/*
Package storage implements the persistence layer for learning queries and the
resource catalog.

The SQL implementation runs on SQLite (modernc.org/sqlite, a pure Go, CGo-free
driver) for local deployments and on PostgreSQL (pgx stdlib driver) for
hosted ones. The default SQLite database lives at ~/.jiji/jiji.db.

If the database cannot be opened the store is disabled and every operation
reports ErrUnavailable, so callers can degrade instead of failing.
*/
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DefaultHistoryLimit is used when a history read asks for a non-positive limit.
const DefaultHistoryLimit = 10

var (
	// ErrNoRowReturned means an insert completed without returning the created row.
	ErrNoRowReturned = errors.New("storage: insert returned no row")

	// ErrNotFound means the addressed record does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrUnavailable means the database could not be opened or was closed.
	ErrUnavailable = errors.New("storage: database unavailable")
)

// QueryStore persists learning queries.
type QueryStore interface {
	// SaveQuery inserts one query and returns the created record.
	SaveQuery(ctx context.Context, text, userID string) (*QueryRecord, error)

	// GetHistory returns up to limit records of a user, newest first.
	GetHistory(ctx context.Context, userID string, limit int) ([]QueryRecord, error)
}

// CatalogStore reads and maintains learning resources.
type CatalogStore interface {
	// ActiveResources returns active resources in catalog order.
	// A non-positive limit returns all of them.
	ActiveResources(ctx context.Context, limit int) ([]Resource, error)

	// AddResource inserts a resource, assigning ID and CreatedAt when unset.
	AddResource(ctx context.Context, r Resource) (*Resource, error)

	// ListResources returns the catalog, optionally including inactive entries.
	ListResources(ctx context.Context, includeInactive bool) ([]Resource, error)

	// SetResourceActive toggles a resource. Returns ErrNotFound for unknown ids.
	SetResourceActive(ctx context.Context, id string, active bool) error
}

// Storage is the full persistence capability used by the service.
type Storage interface {
	QueryStore
	CatalogStore

	// Init opens the database and runs migrations.
	Init(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// SQLStore implements Storage on database/sql.
type SQLStore struct {
	db      *sql.DB
	dsn     string
	dialect *dialect
	enabled bool
	ownsDB  bool

	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu       sync.RWMutex
	initOnce sync.Once
	initErr  error
}

// Option configures an SQLStore.
type Option func(*SQLStore)

// WithLogger sets the logger used for migration and maintenance messages.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock used for created_at values.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *SQLStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func newSQLStore(d *dialect, dsn string, opts []Option) *SQLStore {
	s := &SQLStore{
		dsn:     dsn,
		dialect: d,
		enabled: true,
		ownsDB:  true,
		logger:  zap.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultSQLitePath returns ~/.jiji/jiji.db.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".jiji", "jiji.db"), nil
}

// NewSQLiteStore creates a store backed by the SQLite file at path.
// An empty path selects DefaultSQLitePath.
func NewSQLiteStore(path string, opts ...Option) *SQLStore {
	if path == "" {
		p, err := DefaultSQLitePath()
		if err != nil {
			s := newSQLStore(sqliteDialect, "", opts)
			s.logger.Warn("sqlite store disabled", zap.Error(err))
			s.enabled = false
			return s
		}
		path = p
	}
	return newSQLStore(sqliteDialect, path, opts)
}

// NewPostgresStore creates a store for the PostgreSQL database at dsn.
func NewPostgresStore(dsn string, opts ...Option) *SQLStore {
	return newSQLStore(postgresDialect, dsn, opts)
}

// NewSQLStoreWithDB wraps an already opened database. driver selects the SQL
// dialect ("sqlite" or "postgres"). The caller keeps ownership of db.
func NewSQLStoreWithDB(db *sql.DB, driver string, opts ...Option) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	s := newSQLStore(d, "", opts)
	s.db = db
	s.ownsDB = false
	return s, nil
}

// Dialect returns the SQL dialect name of the store.
func (s *SQLStore) Dialect() string {
	return s.dialect.name
}

// Init opens the database and runs migrations.
//
// If initialization fails the store is disabled and subsequent operations
// return ErrUnavailable.
func (s *SQLStore) Init(ctx context.Context) error {
	if !s.enabled {
		return ErrUnavailable
	}

	s.initOnce.Do(func() {
		s.initErr = s.open(ctx)
		if s.initErr == nil {
			s.initErr = s.runMigrations(ctx)
		}
		if s.initErr != nil {
			s.logger.Warn("storage disabled", zap.String("dialect", s.dialect.name), zap.Error(s.initErr))
			s.mu.Lock()
			s.enabled = false
			s.mu.Unlock()
		}
	})

	return s.initErr
}

func (s *SQLStore) open(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	dsn := s.dsn
	if s.dialect == sqliteDialect {
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return fmt.Errorf("failed to create db directory: %w", err)
			}
		}
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(s.dialect.driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if s.dialect == sqliteDialect {
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// conn returns the database handle, or ErrUnavailable.
func (s *SQLStore) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.enabled || s.db == nil {
		return nil, ErrUnavailable
	}
	return s.db, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	db := s.db
	s.db = nil
	s.enabled = false

	if !s.ownsDB {
		return nil
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (s *SQLStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
