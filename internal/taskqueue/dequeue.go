package taskqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claimed is the task a worker pulled off the ready list, with the
// fields it needs to start executing.
type Claimed struct {
	TaskID  string
	UserID  string
	Symbol  string
	Params  string // raw JSON, decode at the call site
	BatchID string
}

// Dequeue implements the five-step worker protocol: pop, load, re-check
// the per-user limit (racing against other workers), claim, and mark
// processing. It returns (nil, nil) when the ready list is empty or the
// claim had to be requeued — callers should sleep and retry.
func (q *Queue) Dequeue(ctx context.Context, workerID string) (*Claimed, error) {
	taskID, err := q.client.RPop(ctx, keyQueueReady).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("taskqueue: rpop ready list: %w", err)
	}

	fields, err := q.client.HGetAll(ctx, keyTask(taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("taskqueue: load task hash: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	userID := fields["user"]

	ok, err := q.checkUserLimit(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := q.client.LPush(ctx, keyQueueReady, taskID).Err(); err != nil {
			return nil, fmt.Errorf("taskqueue: requeue after limit race: %w", err)
		}
		return nil, nil
	}

	now := time.Now().UTC()
	pipe := q.client.TxPipeline()
	pipe.SAdd(ctx, keyUserProcessing(userID), taskID)
	pipe.Incr(ctx, keyGlobalConcurrent)
	pipe.SAdd(ctx, keySetProcessing, taskID)
	pipe.HSet(ctx, keyVisibility(taskID), map[string]interface{}{
		"task_id": taskID, "worker_id": workerID,
		"timeout_at": now.Add(q.limits.VisibilityTTL).Format(time.RFC3339),
	})
	pipe.HSet(ctx, keyTask(taskID), map[string]interface{}{
		"status": "processing", "worker_id": workerID, "started_at": now.Format(time.RFC3339),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("taskqueue: claim task %s: %w", taskID, err)
	}

	return &Claimed{TaskID: taskID, UserID: userID, Symbol: fields["symbol"], Params: fields["params"], BatchID: fields["batch_id"]}, nil
}

// Complete marks a processing task terminal (completed or failed),
// releasing its concurrency slot and visibility lease.
func (q *Queue) Complete(ctx context.Context, taskID, userID string, success bool) error {
	now := time.Now().UTC()
	status := "failed"
	globalSet := keySetFailed
	if success {
		status = "completed"
		globalSet = keySetCompleted
	}

	pipe := q.client.TxPipeline()
	pipe.SRem(ctx, keyUserProcessing(userID), taskID)
	pipe.Decr(ctx, keyGlobalConcurrent)
	pipe.SRem(ctx, keySetProcessing, taskID)
	pipe.Del(ctx, keyVisibility(taskID))
	pipe.HSet(ctx, keyTask(taskID), map[string]interface{}{"status": status, "completed_at": now.Format(time.RFC3339)})
	pipe.SAdd(ctx, globalSet, taskID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("taskqueue: complete task %s: %w", taskID, err)
	}
	return nil
}

// Cancel removes a queued-or-processing task from whichever structure
// currently holds it and marks it cancelled.
func (q *Queue) Cancel(ctx context.Context, taskID, userID, currentStatus string) error {
	switch currentStatus {
	case "processing":
		pipe := q.client.TxPipeline()
		pipe.SRem(ctx, keyUserProcessing(userID), taskID)
		pipe.Decr(ctx, keyGlobalConcurrent)
		pipe.SRem(ctx, keySetProcessing, taskID)
		pipe.Del(ctx, keyVisibility(taskID))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("taskqueue: cancel processing task %s: %w", taskID, err)
		}
	case "queued":
		if err := q.client.LRem(ctx, keyQueueReady, 0, taskID).Err(); err != nil {
			return fmt.Errorf("taskqueue: remove queued task %s: %w", taskID, err)
		}
	}
	now := time.Now().UTC()
	return q.client.HSet(ctx, keyTask(taskID), map[string]interface{}{
		"status": "cancelled", "cancelled_at": now.Format(time.RFC3339),
	}).Err()
}

// GetTask loads the raw task hash, or ErrTaskNotFound if it doesn't exist.
func (q *Queue) GetTask(ctx context.Context, taskID string) (map[string]string, error) {
	fields, err := q.client.HGetAll(ctx, keyTask(taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("taskqueue: load task %s: %w", taskID, err)
	}
	if len(fields) == 0 {
		return nil, ErrTaskNotFound
	}
	return fields, nil
}

// UserQueueStatus reports a user's current processing count against
// their concurrency limit, grounded on
// QueueService.get_user_queue_status.
type UserQueueStatus struct {
	Processing     int
	ConcurrentLimit int
	AvailableSlots int
}

func (q *Queue) UserQueueStatus(ctx context.Context, userID string) (UserQueueStatus, error) {
	count, err := q.client.SCard(ctx, keyUserProcessing(userID)).Result()
	if err != nil {
		return UserQueueStatus{}, fmt.Errorf("taskqueue: user queue status: %w", err)
	}
	available := q.limits.UserConcurrent - int(count)
	if available < 0 {
		available = 0
	}
	return UserQueueStatus{Processing: int(count), ConcurrentLimit: q.limits.UserConcurrent, AvailableSlots: available}, nil
}

// Stats reports aggregate queue depth, grounded on QueueService.stats.
type Stats struct {
	Queued     int64
	Processing int64
	Completed  int64
	Failed     int64
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	queued, err := q.client.LLen(ctx, keyQueueReady).Result()
	if err != nil {
		return Stats{}, err
	}
	processing, err := q.client.SCard(ctx, keySetProcessing).Result()
	if err != nil {
		return Stats{}, err
	}
	completed, err := q.client.SCard(ctx, keySetCompleted).Result()
	if err != nil {
		return Stats{}, err
	}
	failed, err := q.client.SCard(ctx, keySetFailed).Result()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Queued: queued, Processing: processing, Completed: completed, Failed: failed}, nil
}
