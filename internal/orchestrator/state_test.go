package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/ingestor/internal/domain"
)

func TestStateTablePutGetUpdate(t *testing.T) {
	st := newStateTable()
	now := time.Now().UTC()
	st.put(&taskState{TaskID: "t1", Status: domain.TaskStatusQueued, CreatedAt: now, UpdatedAt: now})

	got, ok := st.get("t1")
	require.True(t, ok)
	assert.Equal(t, domain.TaskStatusQueued, got.Status)

	require.True(t, st.update("t1", func(s *taskState) { s.Status = domain.TaskStatusProcessing }))
	got, _ = st.get("t1")
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)

	assert.False(t, st.update("missing", func(s *taskState) {}))
}

func TestStateTableCancellation(t *testing.T) {
	st := newStateTable()
	now := time.Now().UTC()
	st.put(&taskState{TaskID: "t1", CreatedAt: now, UpdatedAt: now})

	assert.False(t, st.isCancelled("t1"), "fresh task should not be cancelled")
	require.True(t, st.markCancelled("t1"))
	assert.True(t, st.isCancelled("t1"))
	assert.False(t, st.markCancelled("missing"))
}

func TestStateTableDelete(t *testing.T) {
	st := newStateTable()
	st.put(&taskState{TaskID: "t1"})
	st.delete("t1")
	_, ok := st.get("t1")
	assert.False(t, ok, "deleted task should not be retrievable")
}
