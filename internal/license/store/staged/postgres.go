// Package staged persists not-yet-activated license payloads. The staging
// table is drained by migration: each row is read once under a lock,
// promoted into the active store, and deleted in the same transaction.
package staged

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"licensenet/internal/license/models"
	"licensenet/pkg/platform/sentinel"
	txcontext "licensenet/pkg/platform/tx"
)

// PostgresStore persists staged licenses in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create stages a license payload. A duplicate key surfaces as
// sentinel.ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, staged *models.StagedLicense) error {
	query := `INSERT INTO inactive_licenses (key, data, date_created) VALUES ($1, $2, $3)`
	if _, err := s.execer(ctx).ExecContext(ctx, query, staged.Key, staged.Data, staged.DateCreated); err != nil {
		return fmt.Errorf("create staged license: %w", err)
	}
	return nil
}

// FindByKey reads a staged row for a canonical key. With a transaction in
// context the row is locked FOR UPDATE so two concurrent migrations of the
// same key serialize; the loser sees the row gone and falls back to the
// active table.
func (s *PostgresStore) FindByKey(ctx context.Context, key string) (*models.StagedLicense, error) {
	query := `SELECT key, data, date_created FROM inactive_licenses WHERE key = $1`
	if _, inTx := txcontext.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	var staged models.StagedLicense
	err := s.execer(ctx).QueryRowContext(ctx, query, key).Scan(&staged.Key, &staged.Data, &staged.DateCreated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find staged license: %w", err)
	}
	return &staged, nil
}

// DeleteByKey removes a drained staging row. Zero affected rows surfaces as
// sentinel.ErrNotFound, which a migration treats as having lost the race.
func (s *PostgresStore) DeleteByKey(ctx context.Context, key string) error {
	result, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM inactive_licenses WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete staged license: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete staged license rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
