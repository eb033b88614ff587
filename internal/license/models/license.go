package models

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"licensenet/internal/license/normalize"
	id "licensenet/pkg/domain"
	dErrors "licensenet/pkg/domain-errors"
)

// License is the aggregate root of the registry.
//
// Invariants:
//   - Key is canonical (exactly normalize.KeyLength characters) and unique
//   - OwnerID nil means unclaimed; claiming sets exactly one owner and is
//     never reversed back to nil (ownership transfer is a privileged
//     administrative path, not part of Claim)
//   - Domain, when set, is the canonical registrable domain; nil means the
//     license is unrestricted
//   - DateCreated is immutable after construction
type License struct {
	ID            id.LicenseID  `json:"id"`
	UID           id.LicenseUID `json:"uid"`
	Key           string        `json:"key"`
	EditionID     id.EditionID  `json:"editionId"`
	EditionHandle string        `json:"editionHandle"`
	OwnerID       *id.AccountID `json:"ownerId"`
	Email         string        `json:"email"`
	Domain        *string       `json:"domain"`

	Expirable bool `json:"expirable"`
	Expired   bool `json:"expired"`
	AutoRenew bool `json:"autoRenew"`

	LastEdition        string `json:"lastEdition"`
	LastVersion        string `json:"lastVersion"`
	LastAllowedVersion string `json:"lastAllowedVersion"`

	LastActivityOn *time.Time `json:"lastActivityOn"`
	LastRenewedOn  *time.Time `json:"lastRenewedOn"`
	ExpiresOn      *time.Time `json:"expiresOn"`
	DateCreated    time.Time  `json:"dateCreated"`

	Notes        string `json:"notes"`
	PrivateNotes string `json:"-"`
}

// shortKeyLength is how much of a key non-owners may see.
const shortKeyLength = 10

// IsClaimed reports whether the license has an owner.
func (l *License) IsClaimed() bool {
	return l.OwnerID != nil
}

// CanClaim checks the one-way ownership invariant before a claim.
// Use with ApplyClaim inside an Execute callback so the check and the
// mutation happen under the same row lock.
func (l *License) CanClaim() error {
	if l.IsClaimed() {
		return dErrors.New(dErrors.CodeInvariantViolation, "license has already been claimed")
	}
	return nil
}

// ApplyClaim transitions the license to the given owner and adopts the
// owner's contact email. Call CanClaim first to validate the transition.
func (l *License) ApplyClaim(accountID id.AccountID, email string) {
	owner := accountID
	l.OwnerID = &owner
	l.Email = email
}

// ShortKey returns the redacted key prefix exposed to non-owners.
func (l *License) ShortKey() string {
	if len(l.Key) < shortKeyLength {
		return l.Key
	}
	return l.Key[:shortKeyLength]
}

// Validate runs field validation and returns the rejected field set.
// An empty result means the license may be persisted.
func (l *License) Validate() []dErrors.FieldError {
	var fields []dErrors.FieldError

	if len(l.Key) != normalize.KeyLength {
		fields = append(fields, dErrors.FieldError{Field: "key", Message: "must be exactly 250 characters"})
	}
	if l.EditionID.IsZero() && strings.TrimSpace(l.EditionHandle) == "" {
		fields = append(fields, dErrors.FieldError{Field: "editionId", Message: "is required"})
	}
	if strings.TrimSpace(l.Email) == "" {
		fields = append(fields, dErrors.FieldError{Field: "email", Message: "is required"})
	} else if !govalidator.IsEmail(l.Email) {
		fields = append(fields, dErrors.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if l.Domain != nil && !govalidator.IsDNSName(*l.Domain) {
		fields = append(fields, dErrors.FieldError{Field: "domain", Message: "must be a valid domain name"})
	}
	if l.OwnerID != nil && *l.OwnerID <= 0 {
		fields = append(fields, dErrors.FieldError{Field: "ownerId", Message: "must be a positive id"})
	}
	if l.DateCreated.IsZero() {
		fields = append(fields, dErrors.FieldError{Field: "dateCreated", Message: "is required"})
	}

	return fields
}
