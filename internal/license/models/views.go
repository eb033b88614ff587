package models

import (
	"time"

	id "licensenet/pkg/domain"
)

// LicenseView is the ownership-aware projection of a license. Owners see the
// full record; anyone else sees only the redacted key. Both shapes carry the
// same nested sub-license views, each independently redacted by the same
// ownership check.
type LicenseView struct {
	ID          id.LicenseID `json:"id,omitempty"`
	Key         string       `json:"key,omitempty"`
	ShortKey    string       `json:"shortKey,omitempty"`
	Edition     string       `json:"edition,omitempty"`
	Domain      *string      `json:"domain,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	Email       string       `json:"email,omitempty"`
	DateCreated *time.Time   `json:"dateCreated,omitempty"`

	History        []HistoryEntry      `json:"history"`
	PluginLicenses []PluginLicenseView `json:"pluginLicenses"`
}

// PluginLicenseView is the redacted-or-full view of a plugin license nested
// under its parent license.
type PluginLicenseView struct {
	ID       id.LicenseID `json:"id,omitempty"`
	Key      string       `json:"key,omitempty"`
	ShortKey string       `json:"shortKey,omitempty"`
	Plugin   *PluginInfo  `json:"plugin"`
}

// PluginInfo is the minimal plugin descriptor shown with a sub-license.
type PluginInfo struct {
	Name string `json:"name"`
}
