// Package accounts is the registry's view of the accounts collaborator.
// The registry only reads identifiers and contact emails; it never writes
// account rows.
package accounts

import (
	id "licensenet/pkg/domain"
)

// Account is the slice of an account the registry consumes.
type Account struct {
	ID       id.AccountID `json:"id"`
	Email    string       `json:"email"`
	Username string       `json:"username"`
}
