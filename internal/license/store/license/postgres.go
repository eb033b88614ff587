// Package license persists active license rows. The store is pure I/O;
// normalization and ownership rules belong in the service layer.
package license

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"licensenet/internal/license/models"
	id "licensenet/pkg/domain"
	"licensenet/pkg/platform/sentinel"
	txcontext "licensenet/pkg/platform/tx"
)

// PostgresStore persists licenses in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed license store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const licenseColumns = `
	id, uid, key, edition_id, edition_handle, owner_id, email, domain,
	expirable, expired, auto_renew,
	last_edition, last_version, last_allowed_version,
	last_activity_on, last_renewed_on, expires_on, date_created,
	notes, private_notes`

const qualifiedLicenseColumns = `
	l.id, l.uid, l.key, l.edition_id, l.edition_handle, l.owner_id, l.email, l.domain,
	l.expirable, l.expired, l.auto_renew,
	l.last_edition, l.last_version, l.last_allowed_version,
	l.last_activity_on, l.last_renewed_on, l.expires_on, l.date_created,
	l.notes, l.private_notes`

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) FindByID(ctx context.Context, licenseID id.LicenseID) (*models.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE id = $1`
	license, err := scanLicense(s.execer(ctx).QueryRowContext(ctx, query, int64(licenseID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find license by id: %w", err)
	}
	return license, nil
}

// FindByKey expects the key to already be canonical.
func (s *PostgresStore) FindByKey(ctx context.Context, key string) (*models.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE key = $1`
	license, err := scanLicense(s.execer(ctx).QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find license by key: %w", err)
	}
	return license, nil
}

func (s *PostgresStore) FindByOwner(ctx context.Context, ownerID id.AccountID) ([]*models.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE owner_id = $1 ORDER BY id`
	rows, err := s.execer(ctx).QueryContext(ctx, query, int64(ownerID))
	if err != nil {
		return nil, fmt.Errorf("find licenses by owner: %w", err)
	}
	defer rows.Close()
	return scanLicenses(rows)
}

// FindByOrder joins through the purchase line-item association owned by the
// commerce collaborator.
func (s *PostgresStore) FindByOrder(ctx context.Context, orderID id.OrderID) ([]*models.License, error) {
	query := `
		SELECT` + qualifiedLicenseColumns + `
		FROM licenses l
		INNER JOIN license_line_items lli ON lli.license_id = l.id
		INNER JOIN line_items li ON li.id = lli.line_item_id
		WHERE li.order_id = $1
		ORDER BY l.id`
	rows, err := s.execer(ctx).QueryContext(ctx, query, int64(orderID))
	if err != nil {
		return nil, fmt.Errorf("find licenses by order: %w", err)
	}
	defer rows.Close()
	return scanLicenses(rows)
}

// Create inserts a new license row and assigns the surrogate id.
// A duplicate key surfaces as sentinel.ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, license *models.License) error {
	query := `
		INSERT INTO licenses (
			uid, key, edition_id, edition_handle, owner_id, email, domain,
			expirable, expired, auto_renew,
			last_edition, last_version, last_allowed_version,
			last_activity_on, last_renewed_on, expires_on, date_created,
			notes, private_notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id`
	var newID int64
	err := s.execer(ctx).QueryRowContext(ctx, query,
		license.UID,
		license.Key,
		int64(license.EditionID),
		license.EditionHandle,
		ownerArg(license.OwnerID),
		license.Email,
		license.Domain,
		license.Expirable,
		license.Expired,
		license.AutoRenew,
		license.LastEdition,
		license.LastVersion,
		license.LastAllowedVersion,
		license.LastActivityOn,
		license.LastRenewedOn,
		license.ExpiresOn,
		license.DateCreated,
		license.Notes,
		license.PrivateNotes,
	).Scan(&newID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create license: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create license: %w", err)
	}
	license.ID = id.LicenseID(newID)
	return nil
}

// Update persists all mutable fields of an existing row.
// Zero affected rows surfaces as sentinel.ErrNotFound.
func (s *PostgresStore) Update(ctx context.Context, license *models.License) error {
	query := `
		UPDATE licenses SET
			edition_id = $2, edition_handle = $3, owner_id = $4, email = $5, domain = $6,
			expirable = $7, expired = $8, auto_renew = $9,
			last_edition = $10, last_version = $11, last_allowed_version = $12,
			last_activity_on = $13, last_renewed_on = $14, expires_on = $15,
			notes = $16, private_notes = $17
		WHERE id = $1`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		int64(license.ID),
		int64(license.EditionID),
		license.EditionHandle,
		ownerArg(license.OwnerID),
		license.Email,
		license.Domain,
		license.Expirable,
		license.Expired,
		license.AutoRenew,
		license.LastEdition,
		license.LastVersion,
		license.LastAllowedVersion,
		license.LastActivityOn,
		license.LastRenewedOn,
		license.ExpiresOn,
		license.Notes,
		license.PrivateNotes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update license: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update license: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update license rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Execute runs apply on the row for key while holding its lock, then writes
// the result back. With a transaction in context the lock is SELECT ... FOR
// UPDATE, so concurrent claims of the same key serialize and the loser
// re-reads the winner's committed state. An apply error aborts without a
// write.
func (s *PostgresStore) Execute(ctx context.Context, key string, apply func(*models.License) error) (*models.License, error) {
	query := `SELECT` + licenseColumns + ` FROM licenses WHERE key = $1`
	if _, inTx := txcontext.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	license, err := scanLicense(s.execer(ctx).QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock license by key: %w", err)
	}
	if err := apply(license); err != nil {
		return nil, err
	}
	if err := s.Update(ctx, license); err != nil {
		return nil, err
	}
	return license, nil
}

// AssignOwnerByEmail is the set-based bulk claim: one statement, naturally
// atomic, no per-row locking needed. Only unclaimed rows with a
// case-insensitive email match are touched; running it again affects zero
// rows.
func (s *PostgresStore) AssignOwnerByEmail(ctx context.Context, ownerID id.AccountID, email string) (int64, error) {
	query := `
		UPDATE licenses
		SET owner_id = $1
		WHERE owner_id IS NULL AND lower(email) = lower($2)`
	result, err := s.execer(ctx).ExecContext(ctx, query, int64(ownerID), email)
	if err != nil {
		return 0, fmt.Errorf("assign owner by email: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("assign owner rows affected: %w", err)
	}
	return rows, nil
}

// DeleteByKey expects a canonical key. Zero affected rows surfaces as
// sentinel.ErrNotFound.
func (s *PostgresStore) DeleteByKey(ctx context.Context, key string) error {
	result, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM licenses WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete license: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete license rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type licenseRow interface {
	Scan(dest ...any) error
}

func scanLicense(row licenseRow) (*models.License, error) {
	var (
		license   models.License
		licenseID int64
		editionID int64
		ownerID   sql.NullInt64
		domain    sql.NullString
	)
	err := row.Scan(
		&licenseID,
		&license.UID,
		&license.Key,
		&editionID,
		&license.EditionHandle,
		&ownerID,
		&license.Email,
		&domain,
		&license.Expirable,
		&license.Expired,
		&license.AutoRenew,
		&license.LastEdition,
		&license.LastVersion,
		&license.LastAllowedVersion,
		&license.LastActivityOn,
		&license.LastRenewedOn,
		&license.ExpiresOn,
		&license.DateCreated,
		&license.Notes,
		&license.PrivateNotes,
	)
	if err != nil {
		return nil, err
	}
	license.ID = id.LicenseID(licenseID)
	license.EditionID = id.EditionID(editionID)
	if ownerID.Valid {
		owner := id.AccountID(ownerID.Int64)
		license.OwnerID = &owner
	}
	if domain.Valid {
		license.Domain = &domain.String
	}
	return &license, nil
}

func scanLicenses(rows *sql.Rows) ([]*models.License, error) {
	var licenses []*models.License
	for rows.Next() {
		license, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		licenses = append(licenses, license)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate licenses: %w", err)
	}
	return licenses, nil
}

func ownerArg(ownerID *id.AccountID) any {
	if ownerID == nil {
		return nil
	}
	return int64(*ownerID)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

