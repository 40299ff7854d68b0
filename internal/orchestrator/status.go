package orchestrator

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/marketpulse/ingestor/internal/domain"
)

// TaskStatusView is what GetStatus hands back to an HTTP caller.
type TaskStatusView struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Symbol   string `json:"symbol,omitempty"`
	Progress int    `json:"progress"`
	Stage    string `json:"stage,omitempty"`
	Error    string `json:"error,omitempty"`
	Source   string `json:"source"` // memory | analysis_tasks | analysis_reports
}

// GetStatus synthesizes task state memory-first, then analysis_tasks,
// then analysis_reports (a terminal report with no surviving task
// record still counts as "completed"), per spec.md §4.7.
func (o *Orchestrator) GetStatus(ctx context.Context, taskID string) (*TaskStatusView, error) {
	if s, ok := o.state.get(taskID); ok {
		return &TaskStatusView{TaskID: taskID, Status: string(s.Status), Symbol: s.Symbol, Progress: s.Progress, Stage: s.Stage, Error: s.Error, Source: "memory"}, nil
	}

	var task domain.AnalysisTask
	err := o.store.AnalysisTasks().FindOne(ctx, bson.M{"task_id": taskID}).Decode(&task)
	if err == nil {
		progress := 0
		if task.Status.IsTerminal() {
			progress = 100
		}
		return &TaskStatusView{TaskID: taskID, Status: string(task.Status), Symbol: task.Symbol, Progress: progress, Error: task.ErrorMessage, Source: "analysis_tasks"}, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	var rep domain.AnalysisReport
	if err := o.store.AnalysisReports().FindOne(ctx, bson.M{"task_id": taskID}).Decode(&rep); err == nil {
		return &TaskStatusView{TaskID: taskID, Status: string(domain.TaskStatusCompleted), Symbol: rep.Symbol, Progress: 100, Source: "analysis_reports"}, nil
	}

	return nil, mongo.ErrNoDocuments
}

// ZombieTask is a diagnostic row surfaced by the administrative zombie
// listing (SUPPLEMENTED FEATURES item 5): a visibility lease that has
// already expired but the sweeper has not yet reclaimed.
type ZombieTask struct {
	TaskID    string    `json:"task_id"`
	WorkerID  string    `json:"worker_id"`
	TimeoutAt time.Time `json:"timeout_at"`
}
