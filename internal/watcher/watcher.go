package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/unigw/unigw/internal/models"
	"github.com/unigw/unigw/internal/routing"
	"github.com/unigw/unigw/internal/settings"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Default timings for the watcher loop.
const (
	// defaultPollInterval controls how often DB snapshots are refreshed.
	defaultPollInterval = 2 * time.Second
	// defaultQueryTimeout bounds DB query duration.
	defaultQueryTimeout = 10 * time.Second
)

// tableState caches latest-row markers and the row count of one table.
type tableState struct {
	latestAt  time.Time
	latestID  uint64
	hasLatest bool
	count     int64
	hasCount  bool
}

func (s tableState) equal(other tableState) bool {
	if s.hasLatest != other.hasLatest || s.hasCount != other.hasCount {
		return false
	}
	if s.hasLatest && (!s.latestAt.Equal(other.latestAt) || s.latestID != other.latestID) {
		return false
	}
	if s.hasCount && s.count != other.count {
		return false
	}
	return true
}

// Watcher polls the database and refreshes the in-memory snapshots backing
// routing and settings lookups.
type Watcher struct {
	db           *gorm.DB
	pollInterval time.Duration
	onRoutes     func()

	providerState tableState
	groupState    tableState
	memberState   tableState

	settingsLatestAt  time.Time
	settingsLatestKey string
	hasSettingsLatest bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Watcher. onRoutes runs after each routing snapshot swap.
func New(db *gorm.DB, onRoutes func()) *Watcher {
	return &Watcher{
		db:           db,
		pollInterval: defaultPollInterval,
		onRoutes:     onRoutes,
	}
}

// Start launches the polling loop until the context is canceled.
func (w *Watcher) Start(ctx context.Context) {
	if w == nil || w.db == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(loopCtx)
	}()

	log.Infof("db watcher started (poll_interval=%s)", w.pollInterval)
}

// Stop cancels the polling loop and waits for it to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// run executes the periodic polling loop until the context is canceled.
func (w *Watcher) run(ctx context.Context) {
	w.PollRoutes(ctx, true)
	w.PollSettings(ctx, true)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.PollRoutes(ctx, false)
			w.PollSettings(ctx, false)
		}
	}
}

// PollRoutes rebuilds the routing snapshot when providers, groups or members
// changed. Counts are tracked so deletions are noticed too.
func (w *Watcher) PollRoutes(ctx context.Context, force bool) {
	if w == nil || w.db == nil {
		return
	}
	qctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	providerState, errProvider := w.loadTableState(qctx, &models.Provider{})
	if errProvider != nil {
		if errors.Is(errProvider, context.Canceled) {
			return
		}
		log.WithError(errProvider).Warn("db watcher: query providers latest row failed")
		return
	}
	groupState, errGroup := w.loadTableState(qctx, &models.RoutingGroup{})
	if errGroup != nil {
		if errors.Is(errGroup, context.Canceled) {
			return
		}
		log.WithError(errGroup).Warn("db watcher: query routing groups latest row failed")
		return
	}
	memberState, errMember := w.loadTableState(qctx, &models.GroupMember{})
	if errMember != nil {
		if errors.Is(errMember, context.Canceled) {
			return
		}
		log.WithError(errMember).Warn("db watcher: query group members latest row failed")
		return
	}

	if !force &&
		providerState.equal(w.providerState) &&
		groupState.equal(w.groupState) &&
		memberState.equal(w.memberState) {
		return
	}

	maxUpdatedAt := providerState.latestAt
	if groupState.latestAt.After(maxUpdatedAt) {
		maxUpdatedAt = groupState.latestAt
	}
	if memberState.latestAt.After(maxUpdatedAt) {
		maxUpdatedAt = memberState.latestAt
	}
	log.Infof("db watcher: routing tables changed, reloading (max_updated_at=%s)", maxUpdatedAt.Format(time.RFC3339Nano))

	var providers []models.Provider
	if errFind := w.db.WithContext(qctx).
		Order("id ASC").
		Find(&providers).Error; errFind != nil {
		if errors.Is(errFind, context.Canceled) {
			return
		}
		log.WithError(errFind).Warn("db watcher: query providers failed")
		return
	}

	var groups []models.RoutingGroup
	if errFind := w.db.WithContext(qctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("id ASC").
		Find(&groups).Error; errFind != nil {
		if errors.Is(errFind, context.Canceled) {
			return
		}
		log.WithError(errFind).Warn("db watcher: query routing groups failed")
		return
	}

	routing.StoreRoutes(maxUpdatedAt, providers, groups)
	if w.onRoutes != nil {
		w.onRoutes()
	}

	w.providerState = providerState
	w.groupState = groupState
	w.memberState = memberState
}

// loadTableState reads the latest-row markers and count of one model's table.
func (w *Watcher) loadTableState(ctx context.Context, model any) (tableState, error) {
	var state tableState

	// latestRow captures the newest record timestamp for change detection.
	type latestRow struct {
		ID        uint64     `gorm:"column:id"`         // Latest row ID.
		UpdatedAt *time.Time `gorm:"column:updated_at"` // Latest row update timestamp.
	}
	var latest latestRow
	errLatest := w.db.WithContext(ctx).
		Model(model).
		Select("id", "updated_at").
		Order("updated_at DESC, id DESC").
		Limit(1).
		Take(&latest).Error
	if errLatest != nil {
		if !errors.Is(errLatest, gorm.ErrRecordNotFound) {
			return state, errLatest
		}
	} else {
		state.hasLatest = true
		state.latestID = latest.ID
		if latest.UpdatedAt != nil {
			state.latestAt = latest.UpdatedAt.UTC()
		}
	}

	if errCount := w.db.WithContext(ctx).
		Model(model).
		Count(&state.count).Error; errCount != nil {
		return state, errCount
	}
	state.hasCount = true
	return state, nil
}

// PollSettings refreshes DB-backed settings into the global config snapshot.
func (w *Watcher) PollSettings(ctx context.Context, force bool) {
	if w == nil || w.db == nil {
		return
	}
	qctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	// latestRow captures the newest setting timestamp for change detection.
	type latestRow struct {
		Key       string     `gorm:"column:key"`        // Latest settings key.
		UpdatedAt *time.Time `gorm:"column:updated_at"` // Latest settings update time.
	}
	var latest latestRow
	hasLatest := false
	errLatest := w.db.WithContext(qctx).
		Model(&models.Setting{}).
		Select("key", "updated_at").
		Order("updated_at DESC, key DESC").
		Limit(1).
		Take(&latest).Error
	if errLatest != nil {
		if errors.Is(errLatest, context.Canceled) {
			return
		}
		if !errors.Is(errLatest, gorm.ErrRecordNotFound) {
			log.WithError(errLatest).Warn("db watcher: query settings latest row failed")
			return
		}
	} else {
		hasLatest = true
	}

	latestKey := strings.TrimSpace(latest.Key)
	latestAt := time.Time{}
	if hasLatest && latest.UpdatedAt != nil {
		latestAt = latest.UpdatedAt.UTC()
	}

	if !force {
		if !hasLatest || latest.UpdatedAt == nil {
			if !w.hasSettingsLatest {
				return
			}
		} else if w.hasSettingsLatest && latestAt.Equal(w.settingsLatestAt) && latestKey == w.settingsLatestKey {
			return
		}
	}

	log.Infof("db watcher: settings changed, reloading (latest_updated_at=%s latest_key=%s)", latestAt.Format(time.RFC3339Nano), latestKey)

	var rows []models.Setting
	if errFind := w.db.WithContext(qctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		if errors.Is(errFind, context.Canceled) {
			return
		}
		log.WithError(errFind).Warn("db watcher: query settings failed")
		return
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	maxUpdatedKey := ""
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = json.RawMessage(row.Value)

		rowUpdatedAt := row.UpdatedAt.UTC()
		if rowUpdatedAt.After(maxUpdatedAt) || (rowUpdatedAt.Equal(maxUpdatedAt) && key > maxUpdatedKey) {
			maxUpdatedAt = rowUpdatedAt
			maxUpdatedKey = key
		}
	}

	settings.StoreDBConfig(maxUpdatedAt, values)

	if !hasLatest || latest.UpdatedAt == nil || latestKey == "" {
		w.settingsLatestAt = time.Time{}
		w.settingsLatestKey = ""
		w.hasSettingsLatest = false
		return
	}
	w.settingsLatestAt = latestAt
	w.settingsLatestKey = latestKey
	w.hasSettingsLatest = true
}
