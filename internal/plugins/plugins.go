// Package plugins is the registry's read-only view of plugin licenses
// linked to a parent license. The plugin marketplace owns these rows; the
// registry only nests them under the owner projection.
package plugins

import (
	id "licensenet/pkg/domain"
)

// PluginLicense is a sub-license tied to a parent license.
type PluginLicense struct {
	ID         id.LicenseID  `json:"id"`
	Key        string        `json:"key"`
	OwnerID    *id.AccountID `json:"ownerId"`
	PluginID   id.PluginID   `json:"pluginId"`
	PluginName string        `json:"pluginName"`
	LicenseID  id.LicenseID  `json:"licenseId"`
}

const shortKeyLength = 10

// ShortKey returns the redacted key prefix exposed to non-owners.
func (p *PluginLicense) ShortKey() string {
	if len(p.Key) < shortKeyLength {
		return p.Key
	}
	return p.Key[:shortKeyLength]
}
