// Package taskqueue implements the Redis-backed analysis task queue:
// FIFO admission, per-user/global concurrency gates, a dequeue protocol
// with a visibility-timeout lease, and a zombie sweeper that reclaims
// tasks whose worker never completed them. Grounded on
// original_source/app/services/queue_service.py's QueueService
// (enqueue_task/dequeue_task/ack_task/cancel_task/cleanup_expired_tasks),
// translated into the teacher's internal/pubsub.RedisPubSub idiom: a
// struct wrapping *redis.Client with small typed methods rather than a
// generic key-value facade.
package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketpulse/ingestor/internal/domain"
)

var (
	// ErrUserLimitExceeded is returned by Enqueue when the caller's
	// per-user concurrent-processing slot is full. Dequeue does not return
	// it: it requeues the task and returns (nil, nil).
	ErrUserLimitExceeded = errors.New("taskqueue: user concurrent limit exceeded")
	// ErrGlobalLimitExceeded is returned by Enqueue when the global
	// concurrent-processing slot is full.
	ErrGlobalLimitExceeded = errors.New("taskqueue: global concurrent limit exceeded")
	// ErrTaskNotFound is returned when a task hash has no fields, e.g.
	// it expired or was never created.
	ErrTaskNotFound = errors.New("taskqueue: task not found")
)

const (
	keyQueueReady       = "queue:ready"
	keySetProcessing    = "set:processing"
	keySetCompleted     = "set:completed"
	keySetFailed        = "set:failed"
	keyGlobalConcurrent = "global:concurrent"
)

func keyTask(id string) string              { return "task:" + id }
func keyBatch(id string) string             { return "batch:" + id }
func keyBatchTasks(id string) string        { return "batch:tasks:" + id }
func keyUserProcessing(userID string) string { return "user:processing:" + userID }
func keyVisibility(taskID string) string    { return "visibility:" + taskID }

// Limits bundles the admission-gate and lease-duration tunables, sourced
// from config.Config.
type Limits struct {
	UserConcurrent   int
	GlobalConcurrent int
	VisibilityTTL    time.Duration
}

// Queue wraps a Redis client with the analysis task queue's key layout.
type Queue struct {
	client *redis.Client
	limits Limits
}

func New(client *redis.Client, limits Limits) *Queue {
	return &Queue{client: client, limits: limits}
}

// EnqueueRequest describes one task admission.
type EnqueueRequest struct {
	UserID  string
	Symbol  string
	Params  map[string]any
	BatchID string
}

// Enqueue admits the task with the caller-supplied taskID onto
// queue:ready after checking both concurrency gates. It mirrors
// QueueService.enqueue_task: the hash is written before the list push so
// a worker that pops the id immediately can always load it.
func (q *Queue) Enqueue(ctx context.Context, taskID string, req EnqueueRequest) error {
	ok, err := q.checkUserLimit(ctx, req.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserLimitExceeded
	}
	ok, err = q.checkGlobalLimit(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGlobalLimitExceeded
	}

	now := time.Now().UTC()
	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		return fmt.Errorf("taskqueue: marshal params: %w", err)
	}
	fields := map[string]interface{}{
		"id": taskID, "user": req.UserID, "symbol": req.Symbol,
		"status": string(domain.TaskStatusQueued), "created_at": now.Format(time.RFC3339),
		"params": string(paramsJSON), "enqueued_at": now.Format(time.RFC3339),
	}
	if req.BatchID != "" {
		fields["batch_id"] = req.BatchID
	}
	if err := q.client.HSet(ctx, keyTask(taskID), fields).Err(); err != nil {
		return fmt.Errorf("taskqueue: write task hash: %w", err)
	}
	if err := q.client.LPush(ctx, keyQueueReady, taskID).Err(); err != nil {
		return fmt.Errorf("taskqueue: push to ready list: %w", err)
	}
	if req.BatchID != "" {
		if err := q.client.SAdd(ctx, keyBatchTasks(req.BatchID), taskID).Err(); err != nil {
			return fmt.Errorf("taskqueue: add to batch set: %w", err)
		}
	}
	return nil
}

// CreateBatch writes a batch hash and enqueues one task per symbol,
// mirroring QueueService.create_batch.
func (q *Queue) CreateBatch(ctx context.Context, batchID, userID string, symbols []string, params map[string]any, newTaskID func() string) (int, error) {
	now := time.Now().UTC()
	err := q.client.HSet(ctx, keyBatch(batchID), map[string]interface{}{
		"id": batchID, "user": userID, "status": "queued",
		"submitted": len(symbols), "created_at": now.Format(time.RFC3339),
	}).Err()
	if err != nil {
		return 0, fmt.Errorf("taskqueue: write batch hash: %w", err)
	}
	submitted := 0
	for _, symbol := range symbols {
		taskID := newTaskID()
		if err := q.Enqueue(ctx, taskID, EnqueueRequest{UserID: userID, Symbol: symbol, Params: params, BatchID: batchID}); err != nil {
			continue
		}
		submitted++
	}
	return submitted, nil
}

func (q *Queue) checkUserLimit(ctx context.Context, userID string) (bool, error) {
	count, err := q.client.SCard(ctx, keyUserProcessing(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("taskqueue: check user limit: %w", err)
	}
	return int(count) < q.limits.UserConcurrent, nil
}

func (q *Queue) checkGlobalLimit(ctx context.Context) (bool, error) {
	count, err := q.client.Get(ctx, keyGlobalConcurrent).Int()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("taskqueue: check global limit: %w", err)
	}
	return count < q.limits.GlobalConcurrent, nil
}
