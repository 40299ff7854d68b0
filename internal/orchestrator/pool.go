package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/taskqueue"
)

// workerLoop is one pool worker: poll, claim, execute, repeat, until
// Stop closes stopCh. Grounded on the teacher's Processor.Run ticker
// loop, simplified since each worker here owns exactly one task at a
// time instead of juggling a retry queue.
func (o *Orchestrator) workerLoop(id int) {
	defer o.wg.Done()
	workerID := fmt.Sprintf("worker-%d", id)
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		claimed, err := o.queue.Dequeue(ctx, workerID)
		cancel()
		if err != nil {
			o.log.Warn().Err(err).Str("worker", workerID).Msg("dequeue failed")
			continue
		}
		if claimed == nil {
			continue
		}
		o.execute(workerID, claimed)
	}
}

// execute runs one claimed task to completion. It never returns an error
// to the caller: failures are recorded on the task itself.
func (o *Orchestrator) execute(workerID string, claimed *taskqueue.Claimed) {
	runCtx, cancelFn := context.WithCancel(context.Background())
	o.cancelFns.Store(claimed.TaskID, cancelFn)
	defer func() {
		o.cancelFns.Delete(claimed.TaskID)
		cancelFn()
	}()
	defer func() {
		if r := recover(); r != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			o.finishFailed(ctx, claimed, fmt.Sprintf("analysis panicked: %v", r))
		}
	}()

	now := time.Now().UTC()
	o.store.AnalysisTasks().UpdateOne(runCtx, bson.M{"task_id": claimed.TaskID},
		bson.M{"$set": bson.M{"status": domain.TaskStatusProcessing, "worker_id": workerID, "started_at": now}})
	if !o.state.update(claimed.TaskID, func(s *taskState) { s.Status = domain.TaskStatusProcessing }) {
		o.state.put(&taskState{TaskID: claimed.TaskID, UserID: claimed.UserID, Symbol: claimed.Symbol, BatchID: claimed.BatchID, Status: domain.TaskStatusProcessing, CreatedAt: now, UpdatedAt: now})
	}

	report := func(stage string, percent int) {
		o.state.update(claimed.TaskID, func(s *taskState) { s.Stage = stage; s.Progress = percent })
		o.hub.Publish("task:"+claimed.TaskID, map[string]any{"type": "progress", "task_id": claimed.TaskID, "stage": stage, "progress": percent})
	}

	req := AnalysisRequest{TaskID: claimed.TaskID, UserID: claimed.UserID, Symbol: claimed.Symbol, Params: decodeParams(claimed.Params)}
	result, err := o.fn(runCtx, req, report)

	if o.state.isCancelled(claimed.TaskID) {
		o.log.Info().Str("task_id", claimed.TaskID).Msg("discarding result of a cancelled task")
		o.queue.Complete(context.Background(), claimed.TaskID, claimed.UserID, false)
		return
	}

	success := err == nil && result != nil
	completeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !success {
		msg := "analysis function returned no result"
		if err != nil {
			msg = err.Error()
		}
		o.finishFailed(completeCtx, claimed, msg)
		return
	}
	o.finishSucceeded(completeCtx, claimed, result)
}

func (o *Orchestrator) finishFailed(ctx context.Context, claimed *taskqueue.Claimed, message string) {
	now := time.Now().UTC()
	o.queue.Complete(ctx, claimed.TaskID, claimed.UserID, false)
	o.store.AnalysisTasks().UpdateOne(ctx, bson.M{"task_id": claimed.TaskID},
		bson.M{"$set": bson.M{"status": domain.TaskStatusFailed, "error_message": message, "completed_at": now}})
	o.state.update(claimed.TaskID, func(s *taskState) { s.Status = domain.TaskStatusFailed; s.Error = message })
	o.hub.Publish("task:"+claimed.TaskID, map[string]any{"type": "failed", "task_id": claimed.TaskID, "error": message})
	if o.notifier != nil {
		o.notifier.Create(ctx, claimed.UserID, "analysis_failed", "分析任务失败", message, "orchestrator", map[string]any{"task_id": claimed.TaskID, "symbol": claimed.Symbol})
	}
}

func (o *Orchestrator) finishSucceeded(ctx context.Context, claimed *taskqueue.Claimed, result *AnalysisResult) {
	now := time.Now().UTC()
	report := domain.AnalysisReport{
		TaskID: claimed.TaskID, AnalysisID: result.AnalysisID, Symbol: claimed.Symbol,
		AnalysisDate: now.Format("2006-01-02"), Reports: result.Reports,
		Summary: result.Summary, Recommendation: result.Recommendation, CreatedAt: now,
	}
	o.store.AnalysisReports().InsertOne(ctx, report)

	resultData := map[string]any{
		"analysis_id": result.AnalysisID, "summary": result.Summary,
		"recommendation": result.Recommendation, "reports": result.Reports, "decision": result.Decision,
	}
	o.queue.Complete(ctx, claimed.TaskID, claimed.UserID, true)
	o.store.AnalysisTasks().UpdateOne(ctx, bson.M{"task_id": claimed.TaskID},
		bson.M{"$set": bson.M{"status": domain.TaskStatusCompleted, "completed_at": now}})
	o.state.update(claimed.TaskID, func(s *taskState) { s.Status = domain.TaskStatusCompleted; s.Progress = 100; s.ResultData = resultData })
	o.hub.Publish("task:"+claimed.TaskID, map[string]any{"type": "completed", "task_id": claimed.TaskID, "result": resultData})
	if o.notifier != nil {
		o.notifier.Create(ctx, claimed.UserID, "analysis_completed", "分析任务完成", result.Summary, "orchestrator", map[string]any{"task_id": claimed.TaskID, "symbol": claimed.Symbol})
	}
}
