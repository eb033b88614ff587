package models

import (
	"time"

	"github.com/google/uuid"

	id "licensenet/pkg/domain"
)

// EventType names a post-commit fact about the registry.
type EventType string

const (
	// EventLicenseClaimed fires when a license gains its owner. Notification
	// collaborators use it to send the claim email.
	EventLicenseClaimed EventType = "license.claimed"

	// EventLicenseChanged fires on any persisted mutation of a license row.
	// Cache-invalidation collaborators use it to evict computed listings.
	EventLicenseChanged EventType = "license.changed"

	// EventLicenseMigrated fires when a staged license is promoted into the
	// active store.
	EventLicenseMigrated EventType = "license.migrated"
)

// Event is an observable registry fact. Events are collected during a
// transaction and handed to collaborators only after the commit succeeds, so
// a rollback never leaks a fact that did not happen.
type Event struct {
	ID         uuid.UUID     `json:"id"`
	Type       EventType     `json:"type"`
	LicenseID  id.LicenseID  `json:"licenseId"`
	LicenseUID uuid.UUID     `json:"licenseUid"`
	OwnerID    *id.AccountID `json:"ownerId,omitempty"`
	Email      string        `json:"email,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// NewEvent stamps a fact about a license.
func NewEvent(eventType EventType, license *License, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		LicenseID:  license.ID,
		LicenseUID: license.UID,
		OwnerID:    license.OwnerID,
		Email:      license.Email,
		Timestamp:  at,
	}
}
