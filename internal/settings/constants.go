package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the console site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback console site name.
	DefaultSiteName = "unigw"
	// MasterKeyHashKey stores the bcrypt hash of the master key.
	MasterKeyHashKey = "MASTER_KEY_HASH"
	// RateLimitKey controls the default per-key rate limit per minute.
	RateLimitKey = "RATE_LIMIT"
	// LiveFeedLimitKey controls how many live feed entries stats returns.
	LiveFeedLimitKey = "LIVE_FEED_LIMIT"
	// TopModelsLimitKey controls how many models the stats chart covers.
	TopModelsLimitKey = "TOP_MODELS_LIMIT"
	// ModelCacheTTLSecondsKey controls the model discovery cache TTL.
	ModelCacheTTLSecondsKey = "MODEL_CACHE_TTL_SECONDS"
	// DefaultRateLimit is the fallback rate limit (0 means unlimited).
	DefaultRateLimit = 0
	// DefaultLiveFeedLimit is the fallback live feed entry cap.
	DefaultLiveFeedLimit = 50
	// DefaultTopModelsLimit is the fallback top-model chart size.
	DefaultTopModelsLimit = 5
	// DefaultModelCacheTTLSeconds is the fallback discovery cache TTL.
	DefaultModelCacheTTLSeconds = 300
)
