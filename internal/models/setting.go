package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting stores one DB-backed configuration value as JSON.
type Setting struct {
	Key   string         `gorm:"primaryKey;type:varchar(128)"` // Settings key.
	Value datatypes.JSON `gorm:"type:jsonb;not null"`          // JSON-encoded value.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
