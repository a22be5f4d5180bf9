package models

import "time"

// MasterTrackerKey is the fixed key value of the hidden master usage record.
const MasterTrackerKey = "MASTER_ADMIN_TRACKER"

// AccessKey stores a gateway access key and its usage counters.
type AccessKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Key  string `gorm:"type:text;not null;uniqueIndex"` // Unique key value.
	Name string `gorm:"type:text;not null"`             // Display name.

	RateLimit  int   `gorm:"not null;default:0"` // Requests per minute; 0 means unlimited.
	UsageLimit int64 `gorm:"not null;default:0"` // Lifetime request cap; 0 means unlimited.
	UsageCount int64 `gorm:"not null;default:0"` // Served request count; only ever grows.

	IsActive bool `gorm:"not null;default:true"`  // Whether the key may authenticate.
	IsHidden bool `gorm:"not null;default:false"` // Marks the master tracker record.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
