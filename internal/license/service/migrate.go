package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"licensenet/internal/catalog"
	"licensenet/internal/license/models"
	dErrors "licensenet/pkg/domain-errors"
	"licensenet/pkg/platform/sentinel"
	"licensenet/pkg/requestcontext"
)

// migrateStaged promotes a staged license into the active store. The whole
// sequence runs in one transaction with the staging row locked, so exactly
// one of any number of concurrent lookups performs the migration; the rest
// either find the committed active row or block on the staging lock and
// re-read once the winner commits.
//
// The promoted license gets the base edition and, when an account matches
// the staged email, that account as owner. No match leaves the license
// unclaimed for a later Claim. The history note is backdated to the staged
// creation time, so the trail reads as if the license had been active all
// along.
func (s *Service) migrateStaged(ctx context.Context, key string) (*models.License, error) {
	var (
		license *models.License
		events  []models.Event
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		events = events[:0]

		// Another request may have migrated the key between our active-store
		// miss and this transaction.
		existing, err := s.licenses.FindByKey(ctx, key)
		if err == nil {
			license = existing
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load license")
		}

		stagedRow, err := s.staged.FindByKey(ctx, key)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// A concurrent migration may have drained the staging row
				// while we waited on its lock; the active store is now
				// authoritative.
				existing, readErr := s.licenses.FindByKey(ctx, key)
				if readErr == nil {
					license = existing
					return nil
				}
				if errors.Is(readErr, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeNotFound, "license not found")
				}
				return dErrors.Wrap(readErr, dErrors.CodeInternal, "failed to load license")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load staged license")
		}

		payload, err := stagedRow.DecodePayload()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "staged license payload is corrupt")
		}
		candidate := payload.License()
		candidate.UID = uuid.New()

		edition, err := s.editions.FindByHandle(ctx, catalog.BaseEditionHandle)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "base edition is not registered")
		}
		candidate.EditionID = edition.ID
		candidate.EditionHandle = edition.Handle

		// Owner resolution is best effort.
		if account, err := s.accounts.FindByEmail(ctx, candidate.Email); err == nil {
			owner := account.ID
			candidate.OwnerID = &owner
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve owner account")
		}

		if err := s.licenses.Create(ctx, candidate); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "license already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to promote staged license")
		}
		if err := s.staged.DeleteByKey(ctx, key); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to drain staging row")
		}

		note := "created by " + candidate.Email
		if candidate.Domain != nil {
			note += " for domain " + *candidate.Domain
		}
		if err := s.history.Append(ctx, models.HistoryEntry{
			LicenseID: candidate.ID,
			Note:      note,
			Timestamp: payload.DateCreated,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record license creation")
		}

		license = candidate
		events = append(events, models.NewEvent(models.EventLicenseMigrated, candidate, requestcontext.Now(ctx)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(events) > 0 {
		if s.metrics != nil {
			s.metrics.LicensesMigrated.Inc()
		}
		s.publish(ctx, events)
		s.invalidateOwner(ctx, license.OwnerID)
	}
	return license, nil
}
