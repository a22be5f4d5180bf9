package models

import "time"

// RequestLog records one data-plane request for stats and the live feed.
type RequestLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RequestID string `gorm:"type:varchar(36);not null;index"` // Request UUID.
	KeyID     uint64 `gorm:"not null;index"`                  // Authenticating access key ID.
	Model     string `gorm:"type:text;not null"`              // Requested model id.
	Provider  string `gorm:"type:text"`                       // Resolved provider name.
	Status    int    `gorm:"not null;default:0"`              // Upstream HTTP status; 0 while pending.
	LatencyMs int64  `gorm:"not null;default:0"`              // Total latency in milliseconds.

	CreatedAt time.Time `gorm:"not null;index;autoCreateTime"` // Creation timestamp.
}
