package directory

import (
	"strconv"
	"strings"
	"time"
)

const (
	// fileTimeEpochOffset is the number of seconds between 1601-01-01 and 1970-01-01.
	fileTimeEpochOffset = 11644473600
	fileTimeTicksPerSec = 10_000_000
	fileTimeNever       = 0x7FFFFFFFFFFFFFFF
	generalizedLayout   = "20060102150405.0Z"
	inactiveAfter       = 30 * 24 * time.Hour
)

// parseFileTime converts a Windows FILETIME (100ns ticks since 1601) to UTC time.
// Zero and "never" yield the zero time.
func parseFileTime(value string) (time.Time, error) {
	ticks, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return time.Time{}, err //nolint:wrapcheck
	}

	if ticks <= 0 || ticks == fileTimeNever {
		return time.Time{}, nil
	}

	sec := ticks/fileTimeTicksPerSec - fileTimeEpochOffset
	nsec := (ticks % fileTimeTicksPerSec) * 100

	return time.Unix(sec, nsec).UTC(), nil
}

// parseGeneralizedTime parses the AD flavour of LDAP GeneralizedTime ("20240131120000.0Z").
func parseGeneralizedTime(value string) (time.Time, error) {
	t, err := time.Parse(generalizedLayout, value)
	if err != nil {
		return time.Time{}, err //nolint:wrapcheck
	}

	return t.UTC(), nil
}
