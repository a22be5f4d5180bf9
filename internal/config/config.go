package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names honored by the loader.
const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvMasterKey    = "MASTER_KEY"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
	EnvRedisAddr    = "REDIS_ADDR"
)

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// defaultPort is the listen port when the config file omits one.
const defaultPort = 8000

// ErrMissingDatabaseDSN indicates no database DSN is present in the config.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` in config file or DB_CONNECTION)")

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// RedisConfig holds the optional Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// Config holds the full server configuration.
type Config struct {
	Host         string
	Port         int
	DatabaseDSN  string
	MasterKey    string
	Debug        bool
	LogRetention time.Duration
	JWT          JWTConfig
	Redis        RedisConfig
}

// fileConfig maps the YAML layout of the config file.
type fileConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	DatabaseDSN  string `yaml:"database-dsn"`
	MasterKey    string `yaml:"master-key"`
	Debug        bool   `yaml:"debug"`
	LogRetention string `yaml:"log-retention"`
	JWT          struct {
		Secret string `yaml:"secret"`
		Expiry string `yaml:"expiry"`
	} `yaml:"jwt"`
	Redis RedisConfig `yaml:"redis"`
}

// Load reads the config file and applies environment overrides and defaults.
func Load(configPath string) (Config, error) {
	var file fileConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &file); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}

	cfg := Config{
		Host:         strings.TrimSpace(file.Host),
		Port:         file.Port,
		DatabaseDSN:  strings.TrimSpace(file.DatabaseDSN),
		MasterKey:    strings.TrimSpace(file.MasterKey),
		Debug:        file.Debug,
		LogRetention: parseExpiry(file.LogRetention),
		JWT: JWTConfig{
			Secret: strings.TrimSpace(file.JWT.Secret),
			Expiry: parseExpiry(file.JWT.Expiry),
		},
		Redis: file.Redis,
	}

	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if masterKey := strings.TrimSpace(os.Getenv(EnvMasterKey)); masterKey != "" {
		cfg.MasterKey = masterKey
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.Redis.Addr = addr
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaultPort
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = defaultJWTExpiry
	}
	if cfg.DatabaseDSN == "" {
		return Config{}, ErrMissingDatabaseDSN
	}
	return cfg, nil
}

// parseExpiry parses a duration string, returning zero on failure.
func parseExpiry(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	expiry, errParse := time.ParseDuration(raw)
	if errParse != nil || expiry <= 0 {
		return 0
	}
	return expiry
}
