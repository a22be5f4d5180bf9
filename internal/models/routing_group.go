package models

import "time"

// Balance strategies for routing group member selection.
const (
	// StrategyRoundRobin rotates through members in order.
	StrategyRoundRobin = "round-robin"
	// StrategyWeighted picks members proportionally to their weight.
	StrategyWeighted = "weighted"
)

// ValidStrategy reports whether the value is a known balance strategy.
func ValidStrategy(value string) bool {
	switch value {
	case StrategyRoundRobin, StrategyWeighted:
		return true
	default:
		return false
	}
}

// RoutingGroup exposes one model alias backed by weighted provider targets.
type RoutingGroup struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null;uniqueIndex"`                  // Alias served on the data plane.
	Strategy string `gorm:"type:varchar(32);not null;default:'round-robin'"` // Balance strategy.

	Members []GroupMember `gorm:"foreignKey:GroupID"` // Weighted member targets.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// GroupMember maps a routing group to one provider model with a weight.
type GroupMember struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GroupID     uint64 `gorm:"not null;index"`     // Owning routing group ID.
	ProviderID  uint64 `gorm:"not null;index"`     // Target provider ID.
	TargetModel string `gorm:"type:text;not null"` // Upstream model name.
	Weight      int    `gorm:"not null;default:1"` // Selection weight; higher gets more traffic.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
