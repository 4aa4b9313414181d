package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveQuery inserts one query and returns the created record.
func (s *SQLStore) SaveQuery(ctx context.Context, text, userID string) (*QueryRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := s.dialect.rebind(`
		INSERT INTO queries (id, query_text, user_id, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id, query_text, user_id, created_at
	`)

	row := db.QueryRowContext(ctx, query,
		s.newID(),
		text,
		nullString(userID),
		s.dialect.encodeTime(s.timestamp()),
	)

	rec, err := scanQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRowReturned
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save query: %w", err)
	}
	return rec, nil
}

// GetHistory returns up to limit queries of a user, newest first.
func (s *SQLStore) GetHistory(ctx context.Context, userID string, limit int) ([]QueryRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := s.dialect.rebind(`
		SELECT id, query_text, user_id, created_at
		FROM queries
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)

	rows, err := db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	history := make([]QueryRecord, 0, limit)
	for rows.Next() {
		rec, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		history = append(history, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return history, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuery(row rowScanner) (*QueryRecord, error) {
	var rec QueryRecord
	var userID sql.NullString
	if err := row.Scan(&rec.ID, &rec.Text, &userID, timeValue{&rec.CreatedAt}); err != nil {
		return nil, err
	}
	rec.UserID = userID.String
	return &rec, nil
}
