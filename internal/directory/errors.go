package directory

import "errors"

var (
	// ErrGroupNotFound is returned when a group can not be found in the directory.
	ErrGroupNotFound = errors.New("group not found")

	// ErrUserNotFound is returned when no account matches a login.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when creating an account whose login is already taken.
	ErrUserExists = errors.New("user already exists")

	// ErrMultipleEntriesFound is returned when a lookup expected one entry but found several.
	ErrMultipleEntriesFound = errors.New("multiple entries found")

	// ErrComputerNotFound is returned when no computer account matches a name.
	ErrComputerNotFound = errors.New("computer not found")

	// ErrLAPSPasswordUnavailable is returned when a computer has no readable LAPS password.
	ErrLAPSPasswordUnavailable = errors.New("LAPS password not found or not readable")

	// ErrLAPSExpiryUnavailable is returned when a computer has a LAPS password but no expiration time.
	ErrLAPSExpiryUnavailable = errors.New("LAPS password expiration time not found")

	// ErrDisabledOUNotSet is returned by DisableUser when no OU for disabled accounts is configured.
	ErrDisabledOUNotSet = errors.New("directory.disabledOU is not configured")

	// ErrTempPasswordNotSet is returned by CreateUser when no temporary password is configured.
	ErrTempPasswordNotSet = errors.New("directory.tempPassword is not configured")

	// ErrUnknownUserKind is returned by CreateUser when the requested kind is not configured.
	ErrUnknownUserKind = errors.New("unknown user kind")

	// ErrInvalidLogin is returned when a login is empty or contains characters AD does not allow.
	ErrInvalidLogin = errors.New("invalid login")
)
