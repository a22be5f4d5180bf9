package models

import "time"

// Provider type identifiers accepted by the admin API.
const (
	// ProviderTypeOpenAI marks an OpenAI-compatible upstream.
	ProviderTypeOpenAI = "openai-compatible"
	// ProviderTypeGemini marks a Gemini-compatible upstream.
	ProviderTypeGemini = "gemini-compatible"
	// ProviderTypeOpenRouter marks an OpenRouter-compatible upstream.
	ProviderTypeOpenRouter = "openrouter-compatible"
)

// DefaultBaseURL returns the upstream base URL implied by a provider type.
func DefaultBaseURL(providerType string) string {
	switch providerType {
	case ProviderTypeGemini:
		return "https://generativelanguage.googleapis.com/v1beta"
	case ProviderTypeOpenRouter:
		return "https://openrouter.ai/api/v1"
	default:
		return "https://api.openai.com/v1"
	}
}

// ValidProviderType reports whether the value is a known provider type.
func ValidProviderType(value string) bool {
	switch value {
	case ProviderTypeOpenAI, ProviderTypeGemini, ProviderTypeOpenRouter:
		return true
	default:
		return false
	}
}

// Provider stores an upstream AI provider and its credential.
type Provider struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name         string `gorm:"type:text;not null;uniqueIndex"` // Unique provider name.
	ProviderType string `gorm:"type:varchar(64);not null"`      // Upstream dialect type.
	BaseURL      string `gorm:"type:text"`                      // Base URL override; empty means the type default.
	APIKey       string `gorm:"type:text;not null"`             // Upstream API key.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
