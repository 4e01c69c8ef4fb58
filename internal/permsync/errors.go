package permsync

import (
	"errors"
	"fmt"
)

// ErrAllGroupsFailed is returned by SyncNow when no configured group could be queried.
var ErrAllGroupsFailed = errors.New("every configured group failed")

// GroupQueryError wraps the failure of one group query.
type GroupQueryError struct {
	Group string
	Err   error
}

// Error implements error.
func (e *GroupQueryError) Error() string {
	return fmt.Sprintf("group %s: %v", e.Group, e.Err)
}

// Unwrap returns the underlying error.
func (e *GroupQueryError) Unwrap() error {
	return e.Err
}
