package permission

import (
	"fmt"
	"strings"
)

// Capability is one privileged action an identity may be authorized to perform.
type Capability uint8

// Capability constants. The set is closed; configuration is validated against it.
const (
	// Admin satisfies every capability check.
	Admin Capability = iota + 1
	// UnlockUser allows resetting the lockout of a directory account.
	UnlockUser
	// BlockUser allows disabling a directory account.
	BlockUser
	// ListUsers allows listing directory users by organizational unit.
	ListUsers
	// LAPSRead allows reading local administrator passwords of computers.
	LAPSRead
	// CreateUser allows creating new directory accounts.
	CreateUser
	// ResetPassword allows resetting the password of a directory account.
	ResetPassword
	// VPNEnable allows adding an account to the VPN access group.
	VPNEnable
	// VPNDisable allows removing an account from the VPN access group.
	VPNDisable

	capabilityCount = iota
)

// canonical names are the ones used in configuration and chat replies.
var capabilityNames = [...]string{ //nolint:gochecknoglobals
	Admin:         "admin",
	UnlockUser:    "unlockuser",
	BlockUser:     "blockuser",
	ListUsers:     "listusers",
	LAPSRead:      "laps",
	CreateUser:    "newuser",
	ResetPassword: "resetpass",
	VPNEnable:     "vpnenable",
	VPNDisable:    "vpndisable",
}

// capabilityAliases maps the upper-case constant style names onto capabilities.
var capabilityAliases = map[string]Capability{ //nolint:gochecknoglobals
	"unlock_user":    UnlockUser,
	"block_user":     BlockUser,
	"list_users":     ListUsers,
	"laps_read":      LAPSRead,
	"create_user":    CreateUser,
	"reset_password": ResetPassword,
	"vpn_enable":     VPNEnable,
	"vpn_disable":    VPNDisable,
}

// Capabilities returns every known capability in declaration order.
func Capabilities() []Capability {
	out := make([]Capability, 0, capabilityCount)
	for c := Admin; c <= VPNDisable; c++ {
		out = append(out, c)
	}

	return out
}

// Valid reports whether c is one of the declared capabilities.
func (c Capability) Valid() bool {
	return c >= Admin && c <= VPNDisable
}

// String returns the canonical name of the capability.
func (c Capability) String() string {
	if !c.Valid() {
		return fmt.Sprintf("capability(%d)", uint8(c))
	}

	return capabilityNames[c]
}

// MarshalText implements encoding.TextMarshaler.
func (c Capability) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCapability, uint8(c))
	}

	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Capability) UnmarshalText(text []byte) error {
	parsed, err := ParseCapability(string(text))
	if err != nil {
		return err
	}

	*c = parsed

	return nil
}

// ParseCapability resolves a capability name. Both the canonical name ("unlockuser")
// and the constant style name ("UNLOCK_USER") are accepted, case-insensitively.
func ParseCapability(name string) (Capability, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	for c := Admin; c <= VPNDisable; c++ {
		if capabilityNames[c] == key {
			return c, nil
		}
	}

	if c, ok := capabilityAliases[key]; ok {
		return c, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
}

// ParseCapabilities resolves a list of names into a set. The first unknown name fails the whole list.
func ParseCapabilities(names []string) (CapabilitySet, error) {
	var set CapabilitySet

	for _, name := range names {
		c, err := ParseCapability(name)
		if err != nil {
			return 0, err
		}

		set = set.With(c)
	}

	return set, nil
}

// CapabilitySet is an immutable set of capabilities.
// The zero value is the empty set.
type CapabilitySet uint16

// NewCapabilitySet builds a set from the given capabilities. Invalid values are ignored.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var set CapabilitySet
	for _, c := range caps {
		set = set.With(c)
	}

	return set
}

// With returns a copy of the set including c.
func (s CapabilitySet) With(c Capability) CapabilitySet {
	if !c.Valid() {
		return s
	}

	return s | 1<<c
}

// Union returns the union of both sets.
func (s CapabilitySet) Union(other CapabilitySet) CapabilitySet {
	return s | other
}

// Has reports whether c is a member of the set. Admin is not expanded here, see Record.Allows.
func (s CapabilitySet) Has(c Capability) bool {
	return c.Valid() && s&(1<<c) != 0
}

// IsEmpty reports whether the set has no members.
func (s CapabilitySet) IsEmpty() bool {
	return s == 0
}

// Len returns the number of members.
func (s CapabilitySet) Len() int {
	n := 0

	for c := Admin; c <= VPNDisable; c++ {
		if s.Has(c) {
			n++
		}
	}

	return n
}

// Slice returns the members in declaration order.
func (s CapabilitySet) Slice() []Capability {
	out := make([]Capability, 0, s.Len())

	for c := Admin; c <= VPNDisable; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}

	return out
}

// Strings returns the canonical names of the members in declaration order.
func (s CapabilitySet) Strings() []string {
	caps := s.Slice()
	out := make([]string, len(caps))

	for i, c := range caps {
		out[i] = c.String()
	}

	return out
}

// String returns the members as a comma separated list.
func (s CapabilitySet) String() string {
	return strings.Join(s.Strings(), ",")
}
