package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/teamforge/teamforge/internal/config"
	"github.com/teamforge/teamforge/pkg/logger"
)

const (
	TaskTypeNotify = "notify:dispatch"
)

// NotifyTask is a queued notification delivery job. Delivery runs after the
// transaction that produced the event has committed, so a failed delivery
// never rolls back domain state.
type NotifyTask struct {
	UserID  uint   `json:"user_id"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"` // membership, task, role, digest
}

// NotifyQueue defines the interface for notification dispatch.
type NotifyQueue interface {
	// Enqueue adds a notification job to the queue
	Enqueue(task *NotifyTask) error
	// IsAsync returns true if the queue processes jobs asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// Global notify queue instance
var (
	globalNotifyQueue NotifyQueue
	notifyQueueOnce   sync.Once
)

// InitNotifyQueue initializes the global notify queue based on config
func InitNotifyQueue(cfg *config.Config) NotifyQueue {
	notifyQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncNotifyQueue(&cfg.Redis)
			if err != nil {
				logger.Infof("[NotifyQueue] Redis unavailable, falling back to sync mode: %v", err)
				globalNotifyQueue = NewSyncNotifyQueue()
			} else {
				logger.Infof("[NotifyQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalNotifyQueue = queue
			}
		} else {
			logger.Infof("[NotifyQueue] Sync queue initialized (Redis disabled)")
			globalNotifyQueue = NewSyncNotifyQueue()
		}
	})
	return globalNotifyQueue
}

// GetNotifyQueue returns the global notify queue instance
func GetNotifyQueue() NotifyQueue {
	return globalNotifyQueue
}

// dispatchNotification enqueues a delivery job, best effort. Callers invoke
// it only after their transaction has committed; a dispatch failure degrades
// the operation, never fails it.
func dispatchNotification(userID uint, message string) {
	queue := globalNotifyQueue
	if queue == nil {
		return
	}
	if err := queue.Enqueue(&NotifyTask{UserID: userID, Message: message}); err != nil {
		logger.Warnf("[NotifyQueue] Failed to enqueue notification for user %d: %v", userID, err)
	}
}

// AsyncNotifyQueue implements NotifyQueue using asynq (Redis-based)
type AsyncNotifyQueue struct {
	client *asynq.Client
}

// NewAsyncNotifyQueue creates a new Redis-based async queue
func NewAsyncNotifyQueue(cfg *config.RedisConfig) (*AsyncNotifyQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Verify the connection before committing to async mode.
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	_, err := inspector.Queues()
	if err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncNotifyQueue{client: client}, nil
}

// Enqueue adds a notification job to the async queue
func (q *AsyncNotifyQueue) Enqueue(task *NotifyTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeNotify, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Infof("[NotifyQueue] Job enqueued: id=%s, queue=%s", info.ID, info.Queue)
	return nil
}

// IsAsync returns true for async queue
func (q *AsyncNotifyQueue) IsAsync() bool {
	return true
}

// Close closes the async queue client
func (q *AsyncNotifyQueue) Close() error {
	return q.client.Close()
}

// SyncNotifyQueue implements NotifyQueue with in-process delivery (no Redis)
type SyncNotifyQueue struct {
	processor func(context.Context, *NotifyTask) error
}

// NewSyncNotifyQueue creates a new synchronous queue
func NewSyncNotifyQueue() *SyncNotifyQueue {
	return &SyncNotifyQueue{}
}

// SetProcessor sets the function to deliver notifications synchronously
func (q *SyncNotifyQueue) SetProcessor(processor func(context.Context, *NotifyTask) error) {
	q.processor = processor
}

// Enqueue delivers the notification immediately in a goroutine so callers
// are not blocked on webhook round trips.
func (q *SyncNotifyQueue) Enqueue(task *NotifyTask) error {
	if q.processor == nil {
		logger.Infof("[SyncNotifyQueue] Warning: no processor set, notification will be dropped")
		return nil
	}

	go func() {
		ctx := context.Background()
		if err := q.processor(ctx, task); err != nil {
			logger.Infof("[SyncNotifyQueue] Delivery failed: %v", err)
		}
	}()

	return nil
}

// IsAsync returns false for sync queue
func (q *SyncNotifyQueue) IsAsync() bool {
	return false
}

// Close is a no-op for sync queue
func (q *SyncNotifyQueue) Close() error {
	return nil
}
