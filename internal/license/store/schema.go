// Package store carries the registry's persisted layout.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the registry's persisted layout: active license rows with a
// unique key, the append-only history table keyed by (license_id,
// timestamp), and the staging table drained by migration. The account,
// edition, plugin and line-item tables belong to collaborating systems;
// they are created here so local and test databases can serve the joins.
const Schema = `
CREATE TABLE IF NOT EXISTS licenses (
	id                   BIGSERIAL PRIMARY KEY,
	uid                  UUID NOT NULL,
	key                  TEXT NOT NULL UNIQUE,
	edition_id           BIGINT NOT NULL,
	edition_handle       TEXT NOT NULL DEFAULT '',
	owner_id             BIGINT,
	email                TEXT NOT NULL,
	domain               TEXT,
	expirable            BOOLEAN NOT NULL DEFAULT FALSE,
	expired              BOOLEAN NOT NULL DEFAULT FALSE,
	auto_renew           BOOLEAN NOT NULL DEFAULT FALSE,
	last_edition         TEXT NOT NULL DEFAULT '',
	last_version         TEXT NOT NULL DEFAULT '',
	last_allowed_version TEXT NOT NULL DEFAULT '',
	last_activity_on     TIMESTAMPTZ,
	last_renewed_on      TIMESTAMPTZ,
	expires_on           TIMESTAMPTZ,
	date_created         TIMESTAMPTZ NOT NULL,
	notes                TEXT NOT NULL DEFAULT '',
	private_notes        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS licenses_owner_id_idx ON licenses (owner_id);
CREATE INDEX IF NOT EXISTS licenses_email_lower_idx ON licenses (lower(email));

CREATE TABLE IF NOT EXISTS license_history (
	license_id BIGINT NOT NULL,
	note       TEXT NOT NULL,
	timestamp  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (license_id, timestamp)
);

CREATE TABLE IF NOT EXISTS inactive_licenses (
	key          TEXT PRIMARY KEY,
	data         JSONB NOT NULL,
	date_created TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id       BIGSERIAL PRIMARY KEY,
	email    TEXT NOT NULL,
	username TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS accounts_email_lower_idx ON accounts (lower(email));

CREATE TABLE IF NOT EXISTS editions (
	id     BIGSERIAL PRIMARY KEY,
	handle TEXT NOT NULL UNIQUE,
	name   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS plugins (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS plugin_licenses (
	id         BIGSERIAL PRIMARY KEY,
	key        TEXT NOT NULL UNIQUE,
	owner_id   BIGINT,
	plugin_id  BIGINT NOT NULL,
	license_id BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS plugin_licenses_license_id_idx ON plugin_licenses (license_id);

CREATE TABLE IF NOT EXISTS line_items (
	id       BIGSERIAL PRIMARY KEY,
	order_id BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS license_line_items (
	license_id   BIGINT NOT NULL,
	line_item_id BIGINT NOT NULL,
	PRIMARY KEY (license_id, line_item_id)
);
`

// Ensure applies the schema idempotently.
func Ensure(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure license schema: %w", err)
	}
	return nil
}
