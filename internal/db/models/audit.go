// Package models contains database model definitions.
package models

import "time"

// AuditEntry is one recorded command or sync event.
type AuditEntry struct {
	// ID is the unique identifier of the entry.
	ID uint64 `gorm:"primaryKey"`
	// OccurredAt is when the event happened, not when it was written.
	OccurredAt time.Time `gorm:"index;not null"`
	// Action is the command name or event kind, e.g. "unlockuser" or "sync".
	Action string `gorm:"size:64;index;not null"`
	// Identity is the chat identity that triggered the event, 0 for system events.
	Identity int64 `gorm:"index"`
	// Login is the directory account of the caller if known.
	Login string `gorm:"size:255"`
	// Outcome is "success", "denied" or "error".
	Outcome string `gorm:"size:16;index;not null"`
	// Target is the object acted upon, e.g. an account or computer name.
	Target string `gorm:"size:255"`
	// Detail holds the error text or additional metadata as JSON.
	Detail string `gorm:"type:text"`
}

// TableName specifies the database table name for the AuditEntry model.
func (AuditEntry) TableName() string {
	return "audit_entries"
}
