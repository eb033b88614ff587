package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"licensenet/internal/license/models"
	"licensenet/internal/license/normalize"
	id "licensenet/pkg/domain"
	dErrors "licensenet/pkg/domain-errors"
	"licensenet/pkg/platform/sentinel"
	"licensenet/pkg/requestcontext"
)

// Claim assigns ownership of an unclaimed license to an account. The claim
// check and the mutation run under the same row lock inside one transaction,
// so two concurrent claims of the same key serialize: one wins, the other
// re-reads the claimed row and fails the precondition. The license adopts
// the claimer's contact email and the trail records who claimed it.
func (s *Service) Claim(ctx context.Context, accountID id.AccountID, rawKey string) (*models.License, error) {
	ctx, span := s.tracer.Start(ctx, "license.Claim")
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveClaim(time.Now())
	}

	key, err := normalize.Key(rawKey)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "license not found")
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	// Surface staged keys first, so a claim can target a license that has
	// never been looked up before.
	if _, err := s.GetByKey(ctx, key); err != nil {
		return nil, err
	}

	var (
		license *models.License
		events  []models.Event
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		events = events[:0]
		now := requestcontext.Now(ctx)

		claimed, err := s.licenses.Execute(ctx, key, func(l *models.License) error {
			if err := l.CanClaim(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "license has already been claimed")
			}
			l.ApplyClaim(account.ID, account.Email)
			if fields := l.Validate(); len(fields) > 0 {
				return dErrors.NewValidation("claimed license failed validation", fields)
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "license not found")
			}
			if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeValidation) {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim license")
		}

		if err := s.history.Append(ctx, models.HistoryEntry{
			LicenseID: claimed.ID,
			Note:      "claimed by " + account.Email,
			Timestamp: now,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record license claim")
		}

		license = claimed
		events = append(events, models.NewEvent(models.EventLicenseClaimed, claimed, now))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.LicensesClaimed.Inc()
	}
	s.publish(ctx, events)
	s.invalidateLicense(ctx, license.Key)
	s.invalidateOwner(ctx, license.OwnerID)
	return license, nil
}

// ClaimAllByEmail assigns every unclaimed license whose contact email
// matches (case-insensitively) to the account, in one set-based statement.
// A blank email means the account's own address. Claimed licenses are never
// touched, so the operation is idempotent and safe to run on every email
// confirmation. Unlike Claim, the bulk path records no per-license history.
func (s *Service) ClaimAllByEmail(ctx context.Context, accountID id.AccountID, email string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "license.ClaimAllByEmail")
	defer span.End()

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	email = strings.TrimSpace(email)
	if email == "" {
		email = account.Email
	}

	count, err := s.licenses.AssignOwnerByEmail(ctx, account.ID, email)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to bulk claim licenses")
	}

	if count > 0 {
		if s.metrics != nil {
			s.metrics.BulkClaimsAssigned.Add(float64(count))
		}
		owner := account.ID
		s.invalidateOwner(ctx, &owner)
	}
	return count, nil
}
