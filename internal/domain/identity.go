package domain

import (
	"strings"

	"github.com/google/uuid"
)

// IdentityKey is the storage key under which the identity token is kept.
const IdentityKey = "atelier_user_id"

const identityPrefix = "user_"

// UserIdentity names one anonymous shopper. It is created once per storage
// and never regenerated or expired.
type UserIdentity struct {
	ID string `json:"id"`
}

// NewUserIdentity generates a fresh identity token of the form user_<32 hex>.
func NewUserIdentity() UserIdentity {
	return UserIdentity{ID: identityPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")}
}

// IsValidIdentity reports whether s looks like a token this package issued.
// Tokens written by older clients ("user_" plus any alphanumerics) are accepted.
func IsValidIdentity(s string) bool {
	rest, ok := strings.CutPrefix(s, identityPrefix)
	if !ok || rest == "" || len(rest) > 64 {
		return false
	}
	for _, r := range rest {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
