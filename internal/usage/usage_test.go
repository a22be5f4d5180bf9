package usage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/unigw/unigw/internal/models"
	"github.com/unigw/unigw/internal/settings"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "usage.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.AutoMigrate(&models.Provider{}, &models.AccessKey{}, &models.RoutingGroup{}, &models.RequestLog{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func TestCountRequestIncrements(t *testing.T) {
	db := openTestDB(t)
	key := models.AccessKey{Key: "sk-gw-abc", Name: "test"}
	if errCreate := db.Create(&key).Error; errCreate != nil {
		t.Fatalf("create key: %v", errCreate)
	}

	for i := 0; i < 3; i++ {
		if errCount := CountRequest(context.Background(), db, key.ID); errCount != nil {
			t.Fatalf("count request %d: %v", i, errCount)
		}
	}

	var row models.AccessKey
	if errFind := db.First(&row, key.ID).Error; errFind != nil {
		t.Fatalf("find key: %v", errFind)
	}
	if row.UsageCount != 3 {
		t.Fatalf("usage count = %d, want 3", row.UsageCount)
	}
}

func TestLoadStatsAggregates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	providers := []models.Provider{
		{Name: "openai-main", ProviderType: models.ProviderTypeOpenAI, BaseURL: "https://api.openai.com/v1", APIKey: "sk-x"},
		{Name: "gemini-main", ProviderType: models.ProviderTypeGemini, BaseURL: "https://example.test/v1beta", APIKey: "g-x"},
	}
	if errCreate := db.Create(&providers).Error; errCreate != nil {
		t.Fatalf("create providers: %v", errCreate)
	}
	keys := []models.AccessKey{
		{Key: models.MasterTrackerKey, Name: "Master Key", IsHidden: true},
		{Key: "sk-gw-one", Name: "one"},
	}
	if errCreate := db.Create(&keys).Error; errCreate != nil {
		t.Fatalf("create keys: %v", errCreate)
	}

	group := models.RoutingGroup{Name: "smart", Strategy: models.StrategyRoundRobin}
	if errCreate := db.Create(&group).Error; errCreate != nil {
		t.Fatalf("create group: %v", errCreate)
	}

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	logs := []models.RequestLog{
		{RequestID: "r1", Model: "gpt-4o", Provider: "openai-main", Status: 200, LatencyMs: 100, CreatedAt: base},
		{RequestID: "r2", Model: "gpt-4o", Provider: "openai-main", Status: 200, LatencyMs: 90, CreatedAt: base.Add(time.Minute)},
		{RequestID: "r3", Model: "gemini-pro", Provider: "gemini-main", Status: 500, LatencyMs: 40, CreatedAt: base.Add(2 * time.Minute)},
		{RequestID: "r4", Model: "gpt-4o", Provider: "openai-main", Status: 0, CreatedAt: base.Add(3 * time.Minute)},
	}
	if errCreate := db.Create(&logs).Error; errCreate != nil {
		t.Fatalf("create logs: %v", errCreate)
	}

	stats, errLoad := LoadStats(ctx, db, 7)
	if errLoad != nil {
		t.Fatalf("load stats: %v", errLoad)
	}

	if stats.Overview.TotalProviders != 2 {
		t.Fatalf("provider count = %d, want 2", stats.Overview.TotalProviders)
	}
	if stats.Overview.TotalModels != 7 {
		t.Fatalf("model count = %d, want 7", stats.Overview.TotalModels)
	}
	if stats.Overview.TotalGroups != 1 {
		t.Fatalf("group count = %d, want 1", stats.Overview.TotalGroups)
	}
	if stats.Overview.TotalRequests != 4 {
		t.Fatalf("total requests = %d, want 4", stats.Overview.TotalRequests)
	}
	if stats.Overview.RequestsNow != 1 {
		t.Fatalf("in-flight requests = %d, want 1", stats.Overview.RequestsNow)
	}

	if len(stats.ChartTopModels.Labels) != 2 {
		t.Fatalf("top model labels = %v, want 2 entries", stats.ChartTopModels.Labels)
	}
	if stats.ChartTopModels.Labels[0] != "gpt-4o" || stats.ChartTopModels.Data[0] != 3 {
		t.Fatalf("top model = %s/%d, want gpt-4o/3", stats.ChartTopModels.Labels[0], stats.ChartTopModels.Data[0])
	}

	if len(stats.LiveRequests) != 4 {
		t.Fatalf("live requests = %d entries, want 4", len(stats.LiveRequests))
	}
	if stats.LiveRequests[0].Status != 0 {
		t.Fatalf("newest live entry status = %d, want pending", stats.LiveRequests[0].Status)
	}
	if stats.LiveRequests[1].Model != "gemini-pro" {
		t.Fatalf("second live entry = %s, want gemini-pro", stats.LiveRequests[1].Model)
	}
	if stats.LiveRequests[3].LatencyMs != 100 {
		t.Fatalf("oldest live entry latency = %d, want 100", stats.LiveRequests[3].LatencyMs)
	}
}

func TestLoadStatsHonorsLiveFeedLimit(t *testing.T) {
	db := openTestDB(t)
	settings.StoreDBConfig(time.Now(), map[string]json.RawMessage{
		settings.LiveFeedLimitKey: json.RawMessage("2"),
	})
	t.Cleanup(func() { settings.StoreDBConfig(time.Time{}, nil) })

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		row := models.RequestLog{
			RequestID: string(rune('a' + i)),
			Model:     "m",
			Status:    200,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if errCreate := db.Create(&row).Error; errCreate != nil {
			t.Fatalf("create log %d: %v", i, errCreate)
		}
	}

	stats, errLoad := LoadStats(context.Background(), db, 0)
	if errLoad != nil {
		t.Fatalf("load stats: %v", errLoad)
	}
	if len(stats.LiveRequests) != 2 {
		t.Fatalf("live requests = %d entries, want 2", len(stats.LiveRequests))
	}
}
