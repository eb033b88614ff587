// Package normalize canonicalizes the two user-supplied inputs the registry
// indexes on: license keys and usage domains. Callers must normalize before
// any lookup or persistence so lookups are insensitive to incidental
// whitespace and newline corruption from copy-paste.
package normalize

import (
	"strings"

	dErrors "licensenet/pkg/domain-errors"
)

// KeyLength is the exact length of a canonical license key.
const KeyLength = 250

// Key trims leading/trailing whitespace, strips all carriage returns and
// line feeds, and requires the result to be exactly KeyLength characters.
// Case is preserved; no other transformation is applied. Idempotent.
func Key(raw string) (string, error) {
	normalized := strings.TrimSpace(strings.NewReplacer("\r", "", "\n", "").Replace(raw))
	if len(normalized) != KeyLength {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid license key")
	}
	return normalized, nil
}
