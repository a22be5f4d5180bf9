package feed

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/unigw/unigw/internal/models"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	opBegin    = "begin"
	opComplete = "complete"

	// DefaultRedisKey names the Redis list holding buffered log operations.
	DefaultRedisKey = "unigw:feed"

	defaultFlushInterval = time.Second
	defaultFlushBatch    = 200
	memoryQueueCap       = 8192
)

// Entry describes a request at the moment it enters the gateway.
type Entry struct {
	RequestID string
	KeyID     uint64
	Model     string
	Provider  string
	CreatedAt time.Time
}

// op is one buffered log operation, JSON-encoded when queued in Redis.
type op struct {
	Kind      string    `json:"kind"`
	RequestID string    `json:"request_id"`
	KeyID     uint64    `json:"key_id,omitempty"`
	Model     string    `json:"model,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Status    int       `json:"status,omitempty"`
	LatencyMs int64     `json:"latency_ms,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type queue interface {
	push(ctx context.Context, item op) error
	pop(ctx context.Context, max int) ([]op, error)
}

type memoryQueue struct {
	mu    sync.Mutex
	items []op
}

func (q *memoryQueue) push(_ context.Context, item op) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= memoryQueueCap {
		q.items = q.items[1:]
		log.Warn("feed: memory queue full, dropping oldest operation")
	}
	q.items = append(q.items, item)
	return nil
}

func (q *memoryQueue) pop(_ context.Context, max int) ([]op, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, nil
	}
	if max > len(q.items) {
		max = len(q.items)
	}
	out := make([]op, max)
	copy(out, q.items[:max])
	q.items = append(q.items[:0], q.items[max:]...)
	return out, nil
}

type redisQueue struct {
	client *redis.Client
	key    string
}

func (q *redisQueue) push(ctx context.Context, item op) error {
	payload, errMarshal := json.Marshal(item)
	if errMarshal != nil {
		return errMarshal
	}
	return q.client.RPush(ctx, q.key, payload).Err()
}

func (q *redisQueue) pop(ctx context.Context, max int) ([]op, error) {
	values, errPop := q.client.LPopCount(ctx, q.key, max).Result()
	if errPop != nil {
		if errPop == redis.Nil {
			return nil, nil
		}
		return nil, errPop
	}
	out := make([]op, 0, len(values))
	for _, value := range values {
		var item op
		if errUnmarshal := json.Unmarshal([]byte(value), &item); errUnmarshal != nil {
			log.WithError(errUnmarshal).Warn("feed: dropping malformed queued operation")
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// Config controls queue backing and flush cadence for a Writer.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	FlushInterval time.Duration
	FlushBatch    int
}

// Writer buffers request log writes and drains them to the database in batches.
type Writer struct {
	db       *gorm.DB
	queue    queue
	fallback *memoryQueue
	interval time.Duration
	batch    int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWriter constructs a Writer. Redis backing is used when the address is
// set and reachable; otherwise operations queue in memory.
func NewWriter(db *gorm.DB, cfg Config) *Writer {
	w := &Writer{
		db:       db,
		fallback: &memoryQueue{},
		interval: cfg.FlushInterval,
		batch:    cfg.FlushBatch,
	}
	if w.interval <= 0 {
		w.interval = defaultFlushInterval
	}
	if w.batch <= 0 {
		w.batch = defaultFlushBatch
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		w.queue = w.fallback
		return w
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		log.WithError(errPing).Warn("feed: redis unavailable, queuing in memory")
		w.queue = w.fallback
		return w
	}

	key := strings.TrimSpace(cfg.RedisKey)
	if key == "" {
		key = DefaultRedisKey
	}
	w.queue = &redisQueue{client: client, key: key}
	return w
}

// Begin queues the pending log row for a request entering the gateway.
func (w *Writer) Begin(ctx context.Context, entry Entry) {
	if w == nil {
		return
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	w.enqueue(ctx, op{
		Kind:      opBegin,
		RequestID: entry.RequestID,
		KeyID:     entry.KeyID,
		Model:     entry.Model,
		Provider:  entry.Provider,
		CreatedAt: created,
	})
}

// Complete queues the status and latency update for a finished request.
func (w *Writer) Complete(ctx context.Context, requestID string, status int, latencyMs int64) {
	if w == nil {
		return
	}
	w.enqueue(ctx, op{
		Kind:      opComplete,
		RequestID: requestID,
		Status:    status,
		LatencyMs: latencyMs,
	})
}

func (w *Writer) enqueue(ctx context.Context, item op) {
	if strings.TrimSpace(item.RequestID) == "" {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if errPush := w.queue.push(ctx, item); errPush != nil {
		log.WithError(errPush).Warn("feed: queue push failed, buffering in memory")
		_ = w.fallback.push(ctx, item)
	}
}

// Start launches the background flush loop.
func (w *Writer) Start(ctx context.Context) {
	if w == nil || w.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(loopCtx)
}

func (w *Writer) loop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.drain(drainCtx)
			cancel()
			return
		case <-ticker.C:
			if errFlush := w.Flush(ctx); errFlush != nil {
				log.WithError(errFlush).Warn("feed: flush failed")
			}
		}
	}
}

// Flush drains up to one batch from each queue and applies it to the database.
func (w *Writer) Flush(ctx context.Context) error {
	if w == nil || w.db == nil {
		return nil
	}
	ops, errPop := w.queue.pop(ctx, w.batch)
	if errPop != nil {
		return errPop
	}
	if w.queue != queue(w.fallback) {
		buffered, _ := w.fallback.pop(ctx, w.batch)
		ops = append(ops, buffered...)
	}
	if len(ops) == 0 {
		return nil
	}
	return w.apply(ctx, ops)
}

func (w *Writer) drain(ctx context.Context) {
	for {
		if errFlush := w.Flush(ctx); errFlush != nil {
			log.WithError(errFlush).Warn("feed: final drain failed")
			return
		}
		remaining, errLen := w.pending(ctx)
		if errLen != nil || !remaining {
			return
		}
	}
}

// pending reports whether any operations are still queued.
func (w *Writer) pending(ctx context.Context) (bool, error) {
	if q, ok := w.queue.(*redisQueue); ok {
		n, errLen := q.client.LLen(ctx, q.key).Result()
		if errLen != nil {
			return false, errLen
		}
		if n > 0 {
			return true, nil
		}
	}
	w.fallback.mu.Lock()
	defer w.fallback.mu.Unlock()
	return len(w.fallback.items) > 0, nil
}

// apply writes a batch inside one transaction. Begin rows are created before
// completions so a completion in the same batch finds its row.
func (w *Writer) apply(ctx context.Context, ops []op) error {
	rows := make([]models.RequestLog, 0, len(ops))
	completes := make([]op, 0, len(ops))
	for _, item := range ops {
		switch item.Kind {
		case opBegin:
			rows = append(rows, models.RequestLog{
				RequestID: item.RequestID,
				KeyID:     item.KeyID,
				Model:     item.Model,
				Provider:  item.Provider,
				Status:    0,
				CreatedAt: item.CreatedAt,
			})
		case opComplete:
			completes = append(completes, item)
		}
	}

	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if errCreate := tx.CreateInBatches(rows, len(rows)).Error; errCreate != nil {
				return errCreate
			}
		}
		for _, item := range completes {
			if errUpdate := tx.Model(&models.RequestLog{}).
				Where("request_id = ?", item.RequestID).
				Updates(map[string]any{
					"status":     item.Status,
					"latency_ms": item.LatencyMs,
				}).Error; errUpdate != nil {
				return errUpdate
			}
		}
		return nil
	})
}

// Close stops the flush loop and drains remaining operations.
func (w *Writer) Close() {
	if w == nil || w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	if q, ok := w.queue.(*redisQueue); ok {
		_ = q.client.Close()
	}
}
