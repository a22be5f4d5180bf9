package ratelimit

import (
	"strings"

	internalsettings "github.com/unigw/unigw/internal/settings"
)

// DefaultRedisPrefix namespaces limiter keys in Redis.
const DefaultRedisPrefix = "unigw:rl"

// SettingsConfig captures the limiter backend configuration.
type SettingsConfig struct {
	Limit         int
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// LoadSettingsConfig loads the default limit from DB settings, Redis disabled.
func LoadSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Limit:       internalsettings.IntValue(internalsettings.RateLimitKey, internalsettings.DefaultRateLimit),
		RedisPrefix: DefaultRedisPrefix,
	}
}

// WithRedis returns a provider that layers Redis options over DB settings.
func WithRedis(addr, password string, db int) SettingsProvider {
	addr = strings.TrimSpace(addr)
	return func() SettingsConfig {
		cfg := LoadSettingsConfig()
		if addr != "" {
			cfg.RedisEnabled = true
			cfg.RedisAddr = addr
			cfg.RedisPassword = password
			cfg.RedisDB = db
		}
		return cfg
	}
}
