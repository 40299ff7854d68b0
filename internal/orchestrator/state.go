package orchestrator

import (
	"sync"
	"time"

	"github.com/marketpulse/ingestor/internal/domain"
)

// taskState is the in-memory record the status/result getters consult
// before ever reading Mongo, per spec.md §4.7 ("the state-getter MUST
// consult memory first"). It is deliberately a flatter shape than
// domain.AnalysisTask: only what a polling client needs.
type taskState struct {
	TaskID      string
	UserID      string
	Symbol      string
	BatchID     string
	Status      domain.TaskStatus
	Progress    int
	Stage       string
	ResultData  map[string]any
	Error       string
	Cancelled   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// stateTable is the worker pool's shared in-process progress table,
// grounded on the teacher's work.Processor inFlight map: a plain mutex
// guarding a map, no fancier than the access pattern needs.
type stateTable struct {
	mu    sync.RWMutex
	tasks map[string]*taskState
}

func newStateTable() *stateTable {
	return &stateTable{tasks: make(map[string]*taskState)}
}

func (t *stateTable) put(s *taskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[s.TaskID] = s
}

func (t *stateTable) get(taskID string) (*taskState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.tasks[taskID]
	return s, ok
}

// update mutates the stored state for taskID under lock, returning false
// if the task isn't resident in memory (e.g. after a restart).
func (t *stateTable) update(taskID string, fn func(*taskState)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.tasks[taskID]
	if !ok {
		return false
	}
	fn(s)
	s.UpdatedAt = time.Now().UTC()
	return true
}

func (t *stateTable) markCancelled(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.tasks[taskID]
	if !ok {
		return false
	}
	s.Cancelled = true
	return true
}

func (t *stateTable) isCancelled(taskID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.tasks[taskID]
	return ok && s.Cancelled
}

func (t *stateTable) delete(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tasks, taskID)
}
