package permsync

import (
	"time"

	"github.com/adopsbot/adopsbot/internal/permission"
)

// FailurePolicy decides what a cycle publishes when every group failed.
type FailurePolicy string

const (
	// PolicyClear publishes an empty store: nobody holds permissions until a group succeeds.
	PolicyClear FailurePolicy = "clear"
	// PolicyKeep leaves the previous generation in place.
	PolicyKeep FailurePolicy = "keep"
)

const (
	// DefaultInterval is the time between two cycles.
	DefaultInterval = time.Hour
	// DefaultFirstRunDelay is the delay of the first cycle after start.
	DefaultFirstRunDelay = time.Second
	// DefaultIdentityAttribute carries the chat identity of an account.
	DefaultIdentityAttribute = "pager"
	// DefaultLoginAttribute carries the account name.
	DefaultLoginAttribute = "sAMAccountName"
	// DefaultMaxParallel bounds concurrent group queries when Parallel is set.
	DefaultMaxParallel = 4
)

// GroupMapping grants Capabilities to every member of Group.
type GroupMapping struct {
	// Group is a distinguished name or a group cn.
	Group        string
	Capabilities permission.CapabilitySet
}

// Config configures a Job.
type Config struct {
	// Groups are processed in order; for the informational login the last group wins.
	Groups []GroupMapping
	// ActiveOnly excludes disabled and locked out accounts from the membership query.
	ActiveOnly bool
	// Interval between cycles of Run.
	Interval time.Duration
	// FirstRunDelay before the first cycle of Run.
	FirstRunDelay time.Duration
	// IdentityAttribute is the member attribute holding the chat identity.
	IdentityAttribute string
	// LoginAttribute is the member attribute holding the account name.
	LoginAttribute string
	// Parallel queries groups concurrently, bounded by MaxParallel.
	Parallel    bool
	MaxParallel int
	// OnTotalFailure decides what happens when every group failed.
	OnTotalFailure FailurePolicy
}

func (cfg Config) withDefaults() Config {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	if cfg.FirstRunDelay < 0 {
		cfg.FirstRunDelay = DefaultFirstRunDelay
	}

	if cfg.IdentityAttribute == "" {
		cfg.IdentityAttribute = DefaultIdentityAttribute
	}

	if cfg.LoginAttribute == "" {
		cfg.LoginAttribute = DefaultLoginAttribute
	}

	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}

	if cfg.OnTotalFailure == "" {
		cfg.OnTotalFailure = PolicyClear
	}

	return cfg
}
