package permission

import "errors"

var (
	// ErrUnknownCapability is returned when a capability name does not match any known Capability.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrInvalidIdentity is returned when a value can not be parsed as an Identity.
	ErrInvalidIdentity = errors.New("invalid identity")
)
