package ingestion

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/costwatch/costwatch/internal/config"
	"github.com/costwatch/costwatch/pkg/logger"
)

const (
	TaskTypeCost = "usage:cost"
)

// CostTask asks the worker to price one stored usage record.
type CostTask struct {
	UsageRecordID string `json:"usage_record_id"`
	TenantID      string `json:"tenant_id"`
	RequestID     string `json:"request_id"`
}

// TaskQueue decouples storing a usage record from pricing it.
type TaskQueue interface {
	// Enqueue adds a costing task to the queue.
	Enqueue(task *CostTask) error
	// IsAsync returns true if the queue processes tasks asynchronously.
	IsAsync() bool
	// Close gracefully shuts down the queue.
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue picks the Redis-backed queue when Redis is enabled and
// reachable, otherwise falls back to in-process sync mode.
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Warn().Err(err).Msg("redis unavailable, task queue falling back to sync mode")
				globalTaskQueue = NewSyncQueue()
			} else {
				logger.Info().Str("addr", cfg.Redis.Addr).Msg("async task queue initialized")
				globalTaskQueue = queue
			}
		} else {
			logger.Info().Msg("sync task queue initialized (redis disabled)")
			globalTaskQueue = NewSyncQueue()
		}
	})
	return globalTaskQueue
}

// GetTaskQueue returns the global task queue instance.
func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue on asynq (Redis-based).
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Verify the connection before committing to async mode.
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *CostTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeCost, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).
		Str("usage_record_id", task.UsageRecordID).Msg("cost task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error { return q.client.Close() }

// SyncQueue processes tasks in-process when Redis is not available.
type SyncQueue struct {
	processor func(context.Context, *CostTask) error
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function used to process tasks synchronously.
func (q *SyncQueue) SetProcessor(processor func(context.Context, *CostTask) error) {
	q.processor = processor
}

// Enqueue runs the task in a goroutine so the HTTP response is not blocked.
func (q *SyncQueue) Enqueue(task *CostTask) error {
	if q.processor == nil {
		logger.Warn().Msg("sync queue has no processor, task dropped")
		return nil
	}

	go func() {
		if err := q.processor(context.Background(), task); err != nil {
			logger.Error().Err(err).Str("usage_record_id", task.UsageRecordID).Msg("sync cost task failed")
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool { return false }

func (q *SyncQueue) Close() error { return nil }
