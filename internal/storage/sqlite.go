package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const blobsTable = "blobs"

// SQLiteBackend keeps documents as rows of the blobs table
type SQLiteBackend struct {
	db *sql.DB
	sb sq.StatementBuilderType
	// now is replaceable so tests can match exact arguments
	now func() time.Time
}

// NewSQLiteBackend wraps an open, migrated database
func NewSQLiteBackend(db *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now: time.Now,
	}
}

func (b *SQLiteBackend) Exists(ctx context.Context, key string) (bool, error) {
	query, args, err := b.sb.Select("COUNT(*)").From(blobsTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}
	var n int
	if err := b.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}
	return n > 0, nil
}

func (b *SQLiteBackend) ReadText(ctx context.Context, key string) (string, error) {
	query, args, err := b.sb.Select("value").From(blobsTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build query: %w", err)
	}
	var text string
	err = b.db.QueryRowContext(ctx, query, args...).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return text, nil
}

func (b *SQLiteBackend) WriteText(ctx context.Context, key, text string) error {
	query, args, err := b.sb.Insert(blobsTable).
		Columns("key", "value", "updated_at").
		Values(key, text, b.now().UTC()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	query, args, err := b.sb.Delete(blobsTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}
