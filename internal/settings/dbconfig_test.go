package settings

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStoreDBConfigReplacesSnapshot(t *testing.T) {
	t.Cleanup(func() { StoreDBConfig(time.Time{}, nil) })

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	StoreDBConfig(at, map[string]json.RawMessage{
		LiveFeedLimitKey: json.RawMessage("25"),
		SiteNameKey:      json.RawMessage(`"gateway"`),
		"  ":             json.RawMessage(`"dropped"`),
	})

	if got := DBConfigUpdatedAt(); !got.Equal(at) {
		t.Fatalf("snapshot updated at = %s, want %s", got, at)
	}
	if got := IntValue(LiveFeedLimitKey, 50); got != 25 {
		t.Fatalf("live feed limit = %d, want 25", got)
	}
	if got := StringValue(SiteNameKey, "fallback"); got != "gateway" {
		t.Fatalf("site name = %q, want gateway", got)
	}
	if _, ok := DBConfigValue("  "); ok {
		t.Fatal("blank key survived the store")
	}

	StoreDBConfig(at.Add(time.Minute), map[string]json.RawMessage{
		SiteNameKey: json.RawMessage(`"renamed"`),
	})
	if got := IntValue(LiveFeedLimitKey, 50); got != 50 {
		t.Fatalf("live feed limit after replace = %d, want fallback 50", got)
	}
	if got := StringValue(SiteNameKey, "fallback"); got != "renamed" {
		t.Fatalf("site name after replace = %q, want renamed", got)
	}
}

func TestIntValueParsing(t *testing.T) {
	t.Cleanup(func() { StoreDBConfig(time.Time{}, nil) })

	cases := []struct {
		name     string
		raw      string
		fallback int
		want     int
	}{
		{name: "number", raw: "7", fallback: 1, want: 7},
		{name: "quoted number", raw: `"12"`, fallback: 1, want: 12},
		{name: "negative rejected", raw: "-3", fallback: 1, want: 1},
		{name: "garbage rejected", raw: `"many"`, fallback: 1, want: 1},
		{name: "null rejected", raw: "null", fallback: 4, want: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			StoreDBConfig(time.Now(), map[string]json.RawMessage{
				RateLimitKey: json.RawMessage(tc.raw),
			})
			if got := IntValue(RateLimitKey, tc.fallback); got != tc.want {
				t.Fatalf("IntValue(%s) = %d, want %d", tc.raw, got, tc.want)
			}
		})
	}

	StoreDBConfig(time.Now(), nil)
	if got := IntValue(RateLimitKey, 9); got != 9 {
		t.Fatalf("missing key = %d, want fallback 9", got)
	}
}

func TestStringValueTrimsAndFallsBack(t *testing.T) {
	t.Cleanup(func() { StoreDBConfig(time.Time{}, nil) })

	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		SiteNameKey: json.RawMessage(`"  padded  "`),
	})
	if got := StringValue(SiteNameKey, "fallback"); got != "padded" {
		t.Fatalf("padded value = %q, want padded", got)
	}

	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		SiteNameKey: json.RawMessage(`""`),
	})
	if got := StringValue(SiteNameKey, "fallback"); got != "fallback" {
		t.Fatalf("empty value = %q, want fallback", got)
	}

	StoreDBConfig(time.Now(), map[string]json.RawMessage{
		SiteNameKey: json.RawMessage(`42`),
	})
	if got := StringValue(SiteNameKey, "fallback"); got != "fallback" {
		t.Fatalf("non-string value = %q, want fallback", got)
	}
}
