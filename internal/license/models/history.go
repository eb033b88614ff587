package models

import (
	"time"

	id "licensenet/pkg/domain"
)

// HistoryEntry is one note in a license's append-only audit trail.
// Entries are never mutated or deleted once written; display order is
// ascending by timestamp.
type HistoryEntry struct {
	LicenseID id.LicenseID `json:"-"`
	Note      string       `json:"note"`
	Timestamp time.Time    `json:"timestamp"`
}
