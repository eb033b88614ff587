package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "licensenet/pkg/domain"
	"licensenet/pkg/platform/sentinel"
)

// PostgresStore reads editions from the shared relational store.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByHandle(ctx context.Context, handle string) (*Edition, error) {
	query := `SELECT id, handle, name FROM editions WHERE handle = $1`
	var (
		edition Edition
		rawID   int64
	)
	err := s.db.QueryRowContext(ctx, query, handle).Scan(&rawID, &edition.Handle, &edition.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find edition by handle: %w", err)
	}
	edition.ID = id.EditionID(rawID)
	return &edition, nil
}
