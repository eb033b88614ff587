package plugins

import (
	"context"
	"database/sql"
	"fmt"

	id "licensenet/pkg/domain"
)

// PostgresStore reads plugin licenses from the shared relational store.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindByLicense returns the plugin licenses nested under a parent license,
// with the plugin name joined in for display.
func (s *PostgresStore) FindByLicense(ctx context.Context, licenseID id.LicenseID) ([]*PluginLicense, error) {
	query := `
		SELECT pl.id, pl.key, pl.owner_id, pl.plugin_id, p.name, pl.license_id
		FROM plugin_licenses pl
		INNER JOIN plugins p ON p.id = pl.plugin_id
		WHERE pl.license_id = $1
		ORDER BY pl.id`
	rows, err := s.db.QueryContext(ctx, query, int64(licenseID))
	if err != nil {
		return nil, fmt.Errorf("find plugin licenses: %w", err)
	}
	defer rows.Close()

	var licenses []*PluginLicense
	for rows.Next() {
		var (
			license    PluginLicense
			rawID      int64
			rawPlugin  int64
			rawLicense int64
			ownerID    sql.NullInt64
		)
		if err := rows.Scan(&rawID, &license.Key, &ownerID, &rawPlugin, &license.PluginName, &rawLicense); err != nil {
			return nil, fmt.Errorf("scan plugin license: %w", err)
		}
		license.ID = id.LicenseID(rawID)
		license.PluginID = id.PluginID(rawPlugin)
		license.LicenseID = id.LicenseID(rawLicense)
		if ownerID.Valid {
			owner := id.AccountID(ownerID.Int64)
			license.OwnerID = &owner
		}
		licenses = append(licenses, &license)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plugin licenses: %w", err)
	}
	return licenses, nil
}
