package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/unigw/unigw/internal/models"

	"gorm.io/gorm"
)

// PruneBefore deletes request logs created before the cutoff and returns the
// number of rows removed.
func PruneBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil || cutoff.IsZero() {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&models.RequestLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("feed: prune request logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
