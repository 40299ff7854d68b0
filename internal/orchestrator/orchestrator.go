// Package orchestrator implements the Task Orchestrator of spec.md §4.7:
// task creation returns immediately while a worker pool runs the
// (opaque, injected) analysis function in the background, progress flows
// to an in-memory table and MongoDB, and cancellation is cooperative.
// Grounded on the teacher's internal/work.Processor shape (stop/stopped
// channel pair, mutex-guarded in-flight map) generalized from a single
// serial processor loop into N independent pool workers, since spec.md
// §4.7 requires batch submissions to run "with full parallelism, not
// serial chaining" — something one processor goroutine cannot do.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/marketpulse/ingestor/internal/datasource"
	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/store"
	"github.com/marketpulse/ingestor/internal/taskqueue"
	"github.com/marketpulse/ingestor/internal/wsfanout"
)

// Notifier is the orchestrator's view of the Notification Service: just
// enough to raise a completion/failure event without importing
// internal/notify directly, so the two packages can evolve independently
// and neither constrains the other's construction order in internal/di.
type Notifier interface {
	Create(ctx context.Context, userID, kind, title, content, source string, metadata map[string]any) error
}

// Config controls pool size, poll cadence and the results directory the
// result-assembly filesystem fallback reads from.
type Config struct {
	Workers      int
	PollInterval time.Duration
	ResultsDir   string
}

func (c Config) applyDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.ResultsDir == "" {
		c.ResultsDir = "./results"
	}
	return c
}

// Orchestrator owns AnalysisTask, AnalysisReport and (via Notifier)
// Notification writes, per spec.md §3's ownership rule.
type Orchestrator struct {
	store    *store.Store
	queue    *taskqueue.Queue
	hub      *wsfanout.Hub
	notifier Notifier
	fn       AnalysisFunc
	cfg      Config
	log      zerolog.Logger

	state     *stateTable
	cancelFns sync.Map // task id -> context.CancelFunc

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(st *store.Store, queue *taskqueue.Queue, hub *wsfanout.Hub, notifier Notifier, fn AnalysisFunc, cfg Config, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store: st, queue: queue, hub: hub, notifier: notifier, fn: fn,
		cfg: cfg.applyDefaults(), log: log.With().Str("component", "orchestrator").Logger(),
		state: newStateTable(), stopCh: make(chan struct{}),
	}
}

// NewDefault wires DefaultAnalysisFunc, the convenience constructor
// internal/di uses when no external analysis backend is configured.
func NewDefault(st *store.Store, mgr *datasource.Manager, queue *taskqueue.Queue, hub *wsfanout.Hub, notifier Notifier, cfg Config, log zerolog.Logger) *Orchestrator {
	return New(st, queue, hub, notifier, DefaultAnalysisFunc(st, mgr), cfg, log)
}

// Start launches the worker pool. Each worker independently polls the
// ready list, so N tasks submitted together run with true parallelism up
// to cfg.Workers, never chained.
func (o *Orchestrator) Start() {
	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.workerLoop(i)
	}
}

// Stop signals every worker to finish its current claim and exit, then
// waits for all of them.
func (o *Orchestrator) Stop() {
	close(o.stopCh)
	o.wg.Wait()
}

const maxBatchSize = 10

// CreateTask admits one analysis request onto the queue and returns its
// task id immediately; execution happens on a pool worker, never inline.
func (o *Orchestrator) CreateTask(ctx context.Context, userID, symbol string, params map[string]any) (string, error) {
	taskID := uuid.New().String()
	if err := o.queue.Enqueue(ctx, taskID, taskqueue.EnqueueRequest{UserID: userID, Symbol: symbol, Params: params}); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	task := domain.AnalysisTask{
		TaskID: taskID, UserID: userID, Symbol: symbol, Status: domain.TaskStatusQueued,
		Params: params, CreatedAt: now, EnqueuedAt: &now,
	}
	if _, err := o.store.AnalysisTasks().InsertOne(ctx, task); err != nil {
		o.log.Warn().Err(err).Str("task_id", taskID).Msg("failed to persist task record, memory state still authoritative")
	}
	o.state.put(&taskState{TaskID: taskID, UserID: userID, Symbol: symbol, Status: domain.TaskStatusQueued, CreatedAt: now, UpdatedAt: now})
	return taskID, nil
}

// BatchMapping pairs a submitted symbol with its generated task id.
type BatchMapping struct {
	Symbol string `json:"symbol"`
	TaskID string `json:"task_id"`
}

// CreateBatch creates one task per symbol (mirroring
// submit_batch_analysis's per-symbol create_analysis_task loop), rejecting
// a list longer than maxBatchSize, and continuing past any single symbol's
// creation failure so the rest of the batch still gets submitted.
func (o *Orchestrator) CreateBatch(ctx context.Context, userID string, symbols []string, params map[string]any) (batchID string, taskIDs []string, mapping []BatchMapping, err error) {
	if len(symbols) == 0 {
		return "", nil, nil, fmt.Errorf("orchestrator: symbol list must not be empty")
	}
	if len(symbols) > maxBatchSize {
		return "", nil, nil, fmt.Errorf("orchestrator: batch supports at most %d symbols, got %d", maxBatchSize, len(symbols))
	}

	batchID = uuid.New().String()
	for _, symbol := range symbols {
		taskID, createErr := o.CreateTask(ctx, userID, symbol, params)
		if createErr != nil {
			o.log.Error().Err(createErr).Str("symbol", symbol).Str("batch_id", batchID).Msg("batch task creation failed, continuing with remaining symbols")
			continue
		}
		if updateErr := o.store.AnalysisTasks().FindOneAndUpdate(ctx,
			bson.M{"task_id": taskID}, bson.M{"$set": bson.M{"batch_id": batchID}}).Err(); updateErr != nil && updateErr != mongo.ErrNoDocuments {
			o.log.Warn().Err(updateErr).Str("task_id", taskID).Msg("failed to tag task with batch id")
		}
		o.state.update(taskID, func(s *taskState) { s.BatchID = batchID })
		taskIDs = append(taskIDs, taskID)
		mapping = append(mapping, BatchMapping{Symbol: symbol, TaskID: taskID})
	}
	return batchID, taskIDs, mapping, nil
}

// Cancel is cooperative: it signals the worker (if one currently holds
// the task) via context cancellation, and unconditionally updates the
// queue/store records so a not-yet-claimed task never starts.
func (o *Orchestrator) Cancel(ctx context.Context, taskID, userID string) error {
	current := "queued"
	if s, ok := o.state.get(taskID); ok {
		current = string(s.Status)
		if s.UserID != "" && s.UserID != userID {
			return fmt.Errorf("orchestrator: task %s does not belong to user %s", taskID, userID)
		}
	}
	o.state.markCancelled(taskID)
	if cancelFn, ok := o.cancelFns.Load(taskID); ok {
		cancelFn.(context.CancelFunc)()
	}
	if err := o.queue.Cancel(ctx, taskID, userID, current); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err := o.store.AnalysisTasks().UpdateOne(ctx, bson.M{"task_id": taskID},
		bson.M{"$set": bson.M{"status": domain.TaskStatusCancelled, "cancelled_at": now}})
	o.state.update(taskID, func(s *taskState) { s.Status = domain.TaskStatusCancelled })
	return err
}

// Delete removes a task from both the in-memory table and MongoDB.
func (o *Orchestrator) Delete(ctx context.Context, taskID string) error {
	o.state.delete(taskID)
	if _, err := o.store.AnalysisTasks().DeleteOne(ctx, bson.M{"task_id": taskID}); err != nil {
		return err
	}
	_, err := o.store.AnalysisReports().DeleteOne(ctx, bson.M{"task_id": taskID})
	if err == mongo.ErrNoDocuments {
		return nil
	}
	return err
}

// decodeParams turns the queue's raw JSON params blob back into a map,
// tolerating an empty/absent value.
func decodeParams(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
