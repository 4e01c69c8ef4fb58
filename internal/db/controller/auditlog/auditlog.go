// Package auditlog provides queries over the stored audit trail.
package auditlog

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/adopsbot/adopsbot/internal/db/models"
)

const defaultLimit = 50

var (
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
	// ErrActionEmpty is returned when attempting to store an entry without an action.
	ErrActionEmpty = errors.New("audit entry action cannot be empty")
	// ErrEntryNotFound is returned when an entry is not found.
	ErrEntryNotFound = errors.New("audit entry not found")
)

// Filter narrows List. Zero fields do not filter.
type Filter struct {
	Identity int64
	Action   string
	Outcome  string
	Since    time.Time
	// Limit caps the number of returned entries, newest first. Defaults to 50.
	Limit int
}

// CreateBatch stores entries in one transaction.
func CreateBatch(db *gorm.DB, entries []models.AuditEntry) error {
	if db == nil {
		return ErrDBNil
	}

	if len(entries) == 0 {
		return nil
	}

	for i := range entries {
		if entries[i].Action == "" {
			return ErrActionEmpty
		}
	}

	return db.Create(&entries).Error
}

// GetByID retrieves an entry by its ID.
func GetByID(db *gorm.DB, id uint64) (*models.AuditEntry, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var entry models.AuditEntry
	result := db.First(&entry, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, result.Error
	}

	return &entry, nil
}

// List returns the newest entries matching f.
func List(db *gorm.DB, f Filter) ([]models.AuditEntry, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	query := db.Model(&models.AuditEntry{})

	if f.Identity != 0 {
		query = query.Where("identity = ?", f.Identity)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.Outcome != "" {
		query = query.Where("outcome = ?", f.Outcome)
	}
	if !f.Since.IsZero() {
		query = query.Where("occurred_at >= ?", f.Since)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var entries []models.AuditEntry
	result := query.Order("occurred_at DESC").Order("id DESC").Limit(limit).Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	return entries, nil
}

// Purge deletes entries older than before and returns how many were removed.
func Purge(db *gorm.DB, before time.Time) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	result := db.Where("occurred_at < ?", before).Delete(&models.AuditEntry{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
