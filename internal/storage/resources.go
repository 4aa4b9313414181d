package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const resourceColumns = "id, title, type, url, description, tags, is_active, created_at"

// ErrInvalidResource is returned for resources missing required fields.
var ErrInvalidResource = errors.New("storage: invalid resource")

// Validate checks the fields required to store a resource.
func (r Resource) Validate() error {
	switch {
	case strings.TrimSpace(r.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidResource)
	case strings.TrimSpace(r.URL) == "":
		return fmt.Errorf("%w: url is required", ErrInvalidResource)
	case r.Type == "":
		return fmt.Errorf("%w: type is required", ErrInvalidResource)
	}
	return nil
}

// ActiveResources returns active resources ordered by creation time.
// A non-positive limit returns all of them.
func (s *SQLStore) ActiveResources(ctx context.Context, limit int) ([]Resource, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := "SELECT " + resourceColumns + " FROM resources WHERE is_active = ? ORDER BY created_at ASC, id ASC"
	args := []any{true}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.queryResources(ctx, db, s.dialect.rebind(query), args...)
}

// ListResources returns the catalog ordered by creation time.
func (s *SQLStore) ListResources(ctx context.Context, includeInactive bool) ([]Resource, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := "SELECT " + resourceColumns + " FROM resources"
	var args []any
	if !includeInactive {
		query += " WHERE is_active = ?"
		args = append(args, true)
	}
	query += " ORDER BY created_at ASC, id ASC"

	return s.queryResources(ctx, db, s.dialect.rebind(query), args...)
}

// AddResource inserts a resource, assigning ID and CreatedAt when unset.
func (s *SQLStore) AddResource(ctx context.Context, r Resource) (*Resource, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	if r.ID == "" {
		r.ID = s.newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.timestamp()
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	tags, err := encodeTags(r.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	query := s.dialect.rebind(`
		INSERT INTO resources (` + resourceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	if _, err := db.ExecContext(ctx, query,
		r.ID,
		r.Title,
		string(r.Type),
		r.URL,
		nullString(r.Description),
		tags,
		r.IsActive,
		s.dialect.encodeTime(r.CreatedAt),
	); err != nil {
		return nil, fmt.Errorf("failed to add resource: %w", err)
	}

	return &r, nil
}

// SetResourceActive toggles whether a resource is served to queries.
func (s *SQLStore) SetResourceActive(ctx context.Context, id string, active bool) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	query := s.dialect.rebind("UPDATE resources SET is_active = ? WHERE id = ?")
	res, err := db.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("resource %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) queryResources(ctx context.Context, db *sql.DB, query string, args ...any) ([]Resource, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	resources := []Resource{}
	for rows.Next() {
		var r Resource
		var typ string
		var description sql.NullString
		var tags tagList

		if err := rows.Scan(
			&r.ID,
			&r.Title,
			&typ,
			&r.URL,
			&description,
			&tags,
			&r.IsActive,
			timeValue{&r.CreatedAt},
		); err != nil {
			return nil, fmt.Errorf("failed to scan resource row: %w", err)
		}

		r.Type = ResourceType(typ)
		r.Description = description.String
		r.Tags = []string(tags)
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read resources: %w", err)
	}

	return resources, nil
}
