// Package domain holds the typed identifiers shared across the registry.
//
// Row-backed entities use int64 surrogate keys (the database assigns them on
// first insert); the license additionally carries a stable UUID for external
// references. Wrapping the raw integers in distinct types keeps an account id
// from being passed where an edition id is expected.
package domain

import "github.com/google/uuid"

type (
	// LicenseID is the surrogate key of an active license row.
	LicenseID int64

	// AccountID references an account in the accounts collaborator.
	AccountID int64

	// EditionID references a product edition (price tier) in the catalog.
	EditionID int64

	// OrderID references a commerce order.
	OrderID int64

	// PluginID references a plugin in the catalog.
	PluginID int64
)

// LicenseUID is the stable external identifier of a license. It survives
// re-imports and is safe to expose outside the registry.
type LicenseUID = uuid.UUID

// IsZero reports whether the id has not been assigned yet.
func (id LicenseID) IsZero() bool { return id == 0 }

func (id AccountID) IsZero() bool { return id == 0 }

func (id EditionID) IsZero() bool { return id == 0 }
