// Package history persists the append-only note trail per license.
package history

import (
	"context"
	"database/sql"
	"fmt"

	"licensenet/internal/license/models"
	id "licensenet/pkg/domain"
	txcontext "licensenet/pkg/platform/tx"
)

// PostgresStore appends and lists license history rows. Both operations pick
// up the transaction from context, so a rolled-back mutation also rolls back
// the note describing it and a read inside the transaction sees its own
// appends.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry models.HistoryEntry) error {
	query := `INSERT INTO license_history (license_id, note, timestamp) VALUES ($1, $2, $3)`
	if _, err := s.execer(ctx).ExecContext(ctx, query, int64(entry.LicenseID), entry.Note, entry.Timestamp); err != nil {
		return fmt.Errorf("append license history: %w", err)
	}
	return nil
}

// ListByLicense returns entries ascending by timestamp, freshly read on
// every call.
func (s *PostgresStore) ListByLicense(ctx context.Context, licenseID id.LicenseID) ([]models.HistoryEntry, error) {
	query := `
		SELECT license_id, note, timestamp
		FROM license_history
		WHERE license_id = $1
		ORDER BY timestamp ASC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, int64(licenseID))
	if err != nil {
		return nil, fmt.Errorf("query license history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var (
			entry      models.HistoryEntry
			rawLicense int64
		)
		if err := rows.Scan(&rawLicense, &entry.Note, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.LicenseID = id.LicenseID(rawLicense)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history entries: %w", err)
	}
	return entries, nil
}
