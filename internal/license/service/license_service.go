package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"licensenet/internal/license/models"
	"licensenet/internal/license/normalize"
	id "licensenet/pkg/domain"
	dErrors "licensenet/pkg/domain-errors"
	"licensenet/pkg/platform/sentinel"
	"licensenet/pkg/requestcontext"
)

// GetByID loads a license by surrogate id.
func (s *Service) GetByID(ctx context.Context, licenseID id.LicenseID) (*models.License, error) {
	license, err := s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "license not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load license")
	}
	return license, nil
}

// GetByKey resolves a raw key to its active license. A miss on the active
// store falls through to the staging table: a staged row is migrated exactly
// once and the caller receives the freshly promoted license as if it had
// always been active.
func (s *Service) GetByKey(ctx context.Context, rawKey string) (*models.License, error) {
	ctx, span := s.tracer.Start(ctx, "license.GetByKey")
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveLookup(time.Now())
	}

	// A key that cannot be canonical cannot match any row; callers see the
	// same not-found as for an unknown key.
	key, err := normalize.Key(rawKey)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "license not found")
	}

	license, err := s.licenses.FindByKey(ctx, key)
	if err == nil {
		return license, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load license")
	}
	return s.migrateStaged(ctx, key)
}

// GetByOwner lists the licenses claimed by an account.
func (s *Service) GetByOwner(ctx context.Context, ownerID id.AccountID) ([]*models.License, error) {
	licenses, err := s.licenses.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list licenses by owner")
	}
	return licenses, nil
}

// GetByOrder lists the licenses created by a purchase order, joined through
// the commerce line-item association.
func (s *Service) GetByOrder(ctx context.Context, orderID id.OrderID) ([]*models.License, error) {
	licenses, err := s.licenses.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list licenses by order")
	}
	return licenses, nil
}

type saveOptions struct {
	skipValidation bool
}

type SaveOption func(*saveOptions)

// SkipValidation persists the license without running field validation.
// Reserved for trusted internal payloads; user-supplied records always
// validate.
func SkipValidation() SaveOption {
	return func(o *saveOptions) {
		o.skipValidation = true
	}
}

// Save normalizes, validates and persists a license. A zero ID inserts; a
// set ID updates. The key is canonicalized, a handle-only edition reference
// is resolved to its id, and a raw domain is collapsed to its registrable
// form (or cleared when it turns out to be dev/staging traffic).
func (s *Service) Save(ctx context.Context, license *models.License, opts ...SaveOption) error {
	ctx, span := s.tracer.Start(ctx, "license.Save")
	defer span.End()

	var options saveOptions
	for _, opt := range opts {
		opt(&options)
	}

	key, err := normalize.Key(license.Key)
	if err != nil {
		return err
	}
	license.Key = key

	if license.EditionID.IsZero() && license.EditionHandle != "" {
		edition, err := s.editions.FindByHandle(ctx, license.EditionHandle)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeInternal, "edition handle is not registered: "+license.EditionHandle)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve edition")
		}
		license.EditionID = edition.ID
		license.EditionHandle = edition.Handle
	}

	if license.Domain != nil {
		if domain, ok := s.domains.Normalize(*license.Domain); ok {
			license.Domain = &domain
		} else {
			license.Domain = nil
		}
	}

	if license.UID == uuid.Nil {
		license.UID = uuid.New()
	}
	if license.DateCreated.IsZero() {
		license.DateCreated = requestcontext.Now(ctx)
	}

	if !options.skipValidation {
		if fields := license.Validate(); len(fields) > 0 {
			return dErrors.NewValidation("license failed validation", fields)
		}
	}

	if license.ID.IsZero() {
		err = s.licenses.Create(ctx, license)
	} else {
		err = s.licenses.Update(ctx, license)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "license key must be unique")
		}
		// A record that validated but did not persist (including an update
		// that hit no row) signals a storage bug, not caller error.
		return dErrors.Wrap(err, dErrors.CodeInternal, "license validated but could not be persisted")
	}

	s.publish(ctx, []models.Event{models.NewEvent(models.EventLicenseChanged, license, requestcontext.Now(ctx))})
	s.invalidateLicense(ctx, license.Key)
	s.invalidateOwner(ctx, license.OwnerID)
	return nil
}

// Delete removes a license by raw key. Missing keys surface as not found,
// whether they never existed or were deleted concurrently.
func (s *Service) Delete(ctx context.Context, rawKey string) error {
	key, err := normalize.Key(rawKey)
	if err != nil {
		return dErrors.New(dErrors.CodeNotFound, "license not found")
	}

	license, err := s.licenses.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "license not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load license")
	}

	if err := s.licenses.DeleteByKey(ctx, key); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "license not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete license")
	}

	s.invalidateLicense(ctx, key)
	s.invalidateOwner(ctx, license.OwnerID)
	return nil
}

// History returns the append-only note trail of a license, oldest first.
// The trail is read fresh on every call; it is never cached alongside the
// license row.
func (s *Service) History(ctx context.Context, licenseID id.LicenseID) ([]models.HistoryEntry, error) {
	entries, err := s.history.ListByLicense(ctx, licenseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load license history")
	}
	return entries, nil
}
