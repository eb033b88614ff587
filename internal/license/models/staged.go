package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// StagedLicense is a license payload created before any owning account
// existed. It lives in the staging table keyed by normalized key until the
// first lookup migrates it into the active store, which destroys the
// staging row.
type StagedLicense struct {
	Key         string
	Data        []byte
	DateCreated time.Time
}

// StagedPayload is the serialized shape held in a staging row: the license
// fields minus the ids the migration assigns (id, editionId, ownerId).
type StagedPayload struct {
	Key            string     `json:"key"`
	Email          string     `json:"email"`
	Domain         *string    `json:"domain"`
	Expirable      bool       `json:"expirable"`
	Expired        bool       `json:"expired"`
	AutoRenew      bool       `json:"autoRenew"`
	Notes          string     `json:"notes"`
	PrivateNotes   string     `json:"privateNotes"`
	LastVersion    string     `json:"lastVersion"`
	LastActivityOn *time.Time `json:"lastActivityOn"`
	DateCreated    time.Time  `json:"dateCreated"`
}

// DecodePayload deserializes the staged data blob.
func (s *StagedLicense) DecodePayload() (*StagedPayload, error) {
	var payload StagedPayload
	if err := json.Unmarshal(s.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode staged license payload: %w", err)
	}
	if payload.Key == "" {
		payload.Key = s.Key
	}
	if payload.DateCreated.IsZero() {
		payload.DateCreated = s.DateCreated
	}
	return &payload, nil
}

// License materializes the staged payload as an unsaved License. The edition
// and owner are left unset; the migrator resolves them.
func (p *StagedPayload) License() *License {
	return &License{
		Key:            p.Key,
		Email:          p.Email,
		Domain:         p.Domain,
		Expirable:      p.Expirable,
		Expired:        p.Expired,
		AutoRenew:      p.AutoRenew,
		Notes:          p.Notes,
		PrivateNotes:   p.PrivateNotes,
		LastVersion:    p.LastVersion,
		LastActivityOn: p.LastActivityOn,
		DateCreated:    p.DateCreated,
	}
}
