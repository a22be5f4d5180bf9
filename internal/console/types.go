package console

import "time"

// Wire constants shared with the server.
const (
	// SecretUnchanged is the placeholder an update submits to keep the
	// stored provider credential.
	SecretUnchanged = "unchanged"

	// OwnedByGroup marks routing group aliases in the model catalog.
	OwnedByGroup = "gateway-group"
)

// Provider mirrors the admin API provider resource. The credential
// arrives masked.
type Provider struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	ProviderType string    `json:"provider_type"`
	BaseURL      string    `json:"base_url"`
	APIKey       string    `json:"api_key"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AccessKey mirrors the admin API access key resource.
type AccessKey struct {
	ID         uint64    `json:"id"`
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	RateLimit  int       `json:"rate_limit"`
	UsageLimit int64     `json:"usage_limit"`
	UsageCount int64     `json:"usage_count"`
	IsActive   bool      `json:"is_active"`
	IsHidden   bool      `json:"is_hidden"`
	CreatedAt  time.Time `json:"created_at"`
}

// GroupMember mirrors one weighted target of a routing group.
type GroupMember struct {
	ID           uint64 `json:"id"`
	GroupID      uint64 `json:"group_id"`
	ProviderID   uint64 `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	TargetModel  string `json:"target_model"`
	Weight       int    `json:"weight"`
}

// Group mirrors the admin API routing group resource.
type Group struct {
	ID        uint64        `json:"id"`
	Name      string        `json:"name"`
	Strategy  string        `json:"strategy"`
	Members   []GroupMember `json:"members"`
	CreatedAt time.Time     `json:"created_at"`
}

// Model is one entry of the discovered model catalog.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// Overview carries the gateway-wide dashboard counters.
type Overview struct {
	TotalProviders int64 `json:"total_provider"`
	TotalModels    int64 `json:"total_models"`
	TotalGroups    int64 `json:"total_groups"`
	TotalRequests  int64 `json:"total_request"`
	RequestsNow    int64 `json:"request_now"`
}

// TopModels holds parallel label and count arrays for the dashboard chart.
type TopModels struct {
	Labels []string `json:"labels"`
	Data   []int64  `json:"data"`
}

// LiveRequest is one dashboard live feed entry, newest first on the wire.
type LiveRequest struct {
	Timestamp time.Time `json:"ts"`
	Model     string    `json:"model"`
	Status    int       `json:"status"`
	LatencyMs int64     `json:"latency_ms"`
}

// Stats is the full dashboard payload.
type Stats struct {
	Overview       Overview      `json:"overview"`
	ChartTopModels TopModels     `json:"chart_top_models"`
	LiveRequests   []LiveRequest `json:"live_requests"`
}
