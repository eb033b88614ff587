package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "licensenet/pkg/domain-errors"
	txcontext "licensenet/pkg/platform/tx"
)

const defaultLicenseTxTimeout = 5 * time.Second

// licensePostgresTx runs service callbacks inside one database transaction.
// The transaction rides the context, so every store call in the callback
// sees it and row locks hold until commit.
type licensePostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newLicensePostgresTx(db *sql.DB) *licensePostgresTx {
	return &licensePostgresTx{db: db}
}

func (t *licensePostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLicenseTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	return tx.Commit()
}
