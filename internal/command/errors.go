package command

import "errors"

var (
	// ErrUsage is recorded when a command was called with the wrong number of arguments.
	ErrUsage = errors.New("invalid command usage")
	// ErrVPNGroupNotSet is returned by the vpn commands when no group is configured.
	ErrVPNGroupNotSet = errors.New("vpn access group is not configured")
)
