package usage

import (
	"context"
	"time"

	"github.com/unigw/unigw/internal/models"
	"github.com/unigw/unigw/internal/settings"

	"gorm.io/gorm"
)

// Overview carries the gateway-wide counters of the stats payload.
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

// LiveRequest is one entry of the dashboard live feed, newest first.
type LiveRequest struct {
	Timestamp time.Time `json:"ts"`
	Model     string    `json:"model"`
	Status    int       `json:"status"`
	LatencyMs int64     `json:"latency_ms"`
}

// Stats is the full /api/admin/stats payload.
type Stats struct {
	Overview       Overview      `json:"overview"`
	ChartTopModels TopModels     `json:"chart_top_models"`
	LiveRequests   []LiveRequest `json:"live_requests"`
}

// CountRequest bumps the usage counter of an access key.
func CountRequest(ctx context.Context, db *gorm.DB, keyID uint64) error {
	if db == nil || keyID == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&models.AccessKey{}).
		Where("id = ?", keyID).
		Update("usage_count", gorm.Expr("usage_count + ?", 1)).Error
}

// LoadStats aggregates counters, the top-model chart and the live feed.
// TotalModels is not derivable from the database; callers pass the size of
// the discovered model catalog.
func LoadStats(ctx context.Context, db *gorm.DB, modelCount int64) (Stats, error) {
	var stats Stats
	if db == nil {
		return stats, gorm.ErrInvalidDB
	}
	stats.Overview.TotalModels = modelCount

	if errCount := db.WithContext(ctx).Model(&models.Provider{}).
		Count(&stats.Overview.TotalProviders).Error; errCount != nil {
		return stats, errCount
	}
	if errCount := db.WithContext(ctx).Model(&models.RoutingGroup{}).
		Count(&stats.Overview.TotalGroups).Error; errCount != nil {
		return stats, errCount
	}
	if errCount := db.WithContext(ctx).Model(&models.RequestLog{}).
		Count(&stats.Overview.TotalRequests).Error; errCount != nil {
		return stats, errCount
	}
	if errCount := db.WithContext(ctx).Model(&models.RequestLog{}).
		Where("status = ?", 0).
		Count(&stats.Overview.RequestsNow).Error; errCount != nil {
		return stats, errCount
	}

	topModels, errTop := loadTopModels(ctx, db, settings.IntValue(settings.TopModelsLimitKey, settings.DefaultTopModelsLimit))
	if errTop != nil {
		return stats, errTop
	}
	stats.ChartTopModels = topModels

	live, errLive := loadLiveRequests(ctx, db, settings.IntValue(settings.LiveFeedLimitKey, settings.DefaultLiveFeedLimit))
	if errLive != nil {
		return stats, errLive
	}
	stats.LiveRequests = live

	return stats, nil
}

// loadTopModels returns the most requested models with their request counts.
func loadTopModels(ctx context.Context, db *gorm.DB, limit int) (TopModels, error) {
	top := TopModels{Labels: []string{}, Data: []int64{}}
	if limit <= 0 {
		limit = settings.DefaultTopModelsLimit
	}

	var rows []struct {
		Model string
		Count int64
	}
	if errFind := db.WithContext(ctx).Model(&models.RequestLog{}).
		Select("model, COUNT(*) AS count").
		Where("model <> ''").
		Group("model").
		Order("count DESC, model ASC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return top, errFind
	}

	for _, row := range rows {
		top.Labels = append(top.Labels, row.Model)
		top.Data = append(top.Data, row.Count)
	}
	return top, nil
}

// loadLiveRequests returns the latest request logs, newest first.
func loadLiveRequests(ctx context.Context, db *gorm.DB, limit int) ([]LiveRequest, error) {
	if limit <= 0 {
		limit = settings.DefaultLiveFeedLimit
	}

	var rows []models.RequestLog
	if errFind := db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, errFind
	}

	live := make([]LiveRequest, 0, len(rows))
	for _, row := range rows {
		live = append(live, LiveRequest{
			Timestamp: row.CreatedAt.UTC(),
			Model:     row.Model,
			Status:    row.Status,
			LatencyMs: row.LatencyMs,
		})
	}
	return live, nil
}
