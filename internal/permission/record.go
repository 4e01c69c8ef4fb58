package permission

import (
	"fmt"
	"strconv"
	"strings"
)

// Identity is the external numeric id of a chat platform user.
type Identity int64

// ParseIdentity parses a decimal identity. Empty, non-numeric and zero values are rejected.
func ParseIdentity(value string) (Identity, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidIdentity)
	}

	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentity, value)
	}

	if id == 0 {
		return 0, fmt.Errorf("%w: zero", ErrInvalidIdentity)
	}

	return Identity(id), nil
}

// String returns the decimal form of the identity.
func (i Identity) String() string {
	return strconv.FormatInt(int64(i), 10)
}

// Record is the authorization state of one identity.
type Record struct {
	// Identity is the key of the record.
	Identity Identity
	// Login is the directory account name, informational only.
	Login string
	// Capabilities granted to the identity.
	Capabilities CapabilitySet
}

// Allows reports whether the record grants c, either directly or through Admin.
func (r Record) Allows(c Capability) bool {
	if r.Capabilities.Has(c) {
		return true
	}

	return r.Capabilities.Has(Admin)
}
