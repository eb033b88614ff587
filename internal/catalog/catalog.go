// Package catalog is the registry's view of the product catalog
// collaborator: edition (price tier) resolution by handle.
package catalog

import (
	id "licensenet/pkg/domain"
)

// BaseEditionHandle is the tier a staged license defaults to when it
// migrates into the active store.
const BaseEditionHandle = "solo"

// Edition is a product price tier referenced by licenses.
type Edition struct {
	ID     id.EditionID `json:"id"`
	Handle string       `json:"handle"`
	Name   string       `json:"name"`
}
