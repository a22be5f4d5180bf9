package settings

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// dbConfig is an immutable snapshot of the settings table.
type dbConfig struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var globalDBConfig atomic.Value

func init() {
	globalDBConfig.Store(dbConfig{values: make(map[string]json.RawMessage)})
}

// StoreDBConfig replaces the in-memory snapshot of DB-backed settings.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		next[key] = append(json.RawMessage(nil), value...)
	}
	globalDBConfig.Store(dbConfig{updatedAt: updatedAt.UTC(), values: next})
}

// DBConfigValue returns the raw JSON value for a settings key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	snap := loadDBConfig()
	value, ok := snap.values[key]
	if !ok {
		return nil, false
	}
	return value, true
}

// DBConfigUpdatedAt returns when the current snapshot was taken.
func DBConfigUpdatedAt() time.Time {
	return loadDBConfig().updatedAt
}

// IntValue returns a settings value parsed as a non-negative int.
func IntValue(key string, fallback int) int {
	raw, ok := DBConfigValue(key)
	if !ok {
		return fallback
	}
	value, okParse := parseNonNegativeInt(raw)
	if !okParse {
		return fallback
	}
	return value
}

// StringValue returns a settings value parsed as a trimmed string.
func StringValue(key string, fallback string) string {
	raw, ok := DBConfigValue(key)
	if !ok {
		return fallback
	}
	value, okParse := parseString(raw)
	if !okParse || value == "" {
		return fallback
	}
	return value
}

func loadDBConfig() dbConfig {
	v := globalDBConfig.Load()
	snap, ok := v.(dbConfig)
	if !ok || snap.values == nil {
		return dbConfig{values: make(map[string]json.RawMessage)}
	}
	return snap
}

func parseString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	var parsed string
	if errUnmarshal := json.Unmarshal(raw, &parsed); errUnmarshal == nil {
		return strings.TrimSpace(parsed), true
	}
	return "", false
}

func parseNonNegativeInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var parsedInt int
	if errUnmarshalInt := json.Unmarshal(raw, &parsedInt); errUnmarshalInt == nil {
		return parsedInt, parsedInt >= 0
	}
	var parsedString string
	if errUnmarshalString := json.Unmarshal(raw, &parsedString); errUnmarshalString == nil {
		parsed, errParse := strconv.Atoi(strings.TrimSpace(parsedString))
		if errParse != nil {
			return 0, false
		}
		return parsed, parsed >= 0
	}
	return 0, false
}
