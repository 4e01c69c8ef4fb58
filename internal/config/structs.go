package config

import (
	"github.com/adopsbot/adopsbot/internal/directory"
	"github.com/adopsbot/adopsbot/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode     bool // enable dev mode for development
	DB          DB
	Log         logger.Log
	Webserver   Webserver
	Directory   directory.Config
	Permissions Permissions
	Bot         Bot
	Audit       Audit
}

// Webserver implements the command gateway settings.
type Webserver struct {
	DisableRecover bool   // disable recover middleware
	Port           int    // listening port for the webserver
	ShutDownTime   int    // wait time for shutdown in seconds
	URL            string // base url for the webserver
	// APITokenHash is the argon2id hash of the bearer token accepted by the command endpoint.
	APITokenHash string
	// RateLimit is the number of commands one identity may send per RateLimitWindow seconds. 0 disables it.
	RateLimit       int
	RateLimitWindow int
}

// GroupPermissions maps one directory group to capability names.
type GroupPermissions struct {
	Group        string   `validate:"required"`
	Capabilities []string `validate:"required,min=1"`
}

// Permissions configures the directory permission sync.
type Permissions struct {
	// Groups are processed in order.
	Groups []GroupPermissions `validate:"dive"`
	// ActiveOnly excludes disabled and locked out accounts.
	ActiveOnly           bool
	SyncIntervalSeconds  int `validate:"gte=1"`
	FirstRunDelaySeconds int `validate:"gte=0"`
	IdentityAttribute    string
	LoginAttribute       string
	Parallel             bool
	MaxParallel          int
	// OnTotalFailure is "clear" or "keep".
	OnTotalFailure string `validate:"omitempty,oneof=clear keep"`
}

// Bot configures the command layer.
type Bot struct {
	// RemoveSecretAfterSeconds is how long a reply holding a password may stay visible.
	RemoveSecretAfterSeconds int `validate:"gte=0"`
}

// Audit configures where audit events are recorded.
type Audit struct {
	// Database stores audit events in the configured database in addition to the audit log.
	Database   bool
	BufferSize int
}
