package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "licensenet/pkg/domain"
	"licensenet/pkg/platform/sentinel"
)

// PostgresStore reads accounts from the shared relational store.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*Account, error) {
	query := `SELECT id, email, username FROM accounts WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, int64(accountID)))
}

// FindByEmail matches case-insensitively, the way staged licenses resolve
// their prospective owner.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT id, email, username FROM accounts WHERE lower(email) = lower($1)`
	return s.scanOne(s.db.QueryRowContext(ctx, query, email))
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Account, error) {
	var (
		account Account
		rawID   int64
	)
	if err := row.Scan(&rawID, &account.Email, &account.Username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	account.ID = id.AccountID(rawID)
	return &account, nil
}
