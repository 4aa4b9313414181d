package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// migration is a single versioned schema change.
type migration struct {
	version    int
	name       string
	statements []string
}

// runMigrations applies pending migrations of the store's dialect in order.
func (s *SQLStore) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schemaMigrationsDDL); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	version, err := s.currentMigrationVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range s.dialect.migrations {
		if version >= m.version {
			continue
		}

		s.logger.Info("running migration", zap.Int("version", m.version), zap.String("name", m.name))
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
	}

	return nil
}

// currentMigrationVersion returns the highest applied migration version.
func (s *SQLStore) currentMigrationVersion(ctx context.Context) (int, error) {
	var version int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, nil
}

// applyMigration runs a migration and records it in one transaction.
func (s *SQLStore) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	insert := s.dialect.rebind("INSERT INTO schema_migrations (version, name) VALUES (?, ?)")
	if _, err := tx.ExecContext(ctx, insert, m.version, m.name); err != nil {
		return err
	}

	return tx.Commit()
}
