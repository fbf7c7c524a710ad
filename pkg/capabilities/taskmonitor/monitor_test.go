package taskmonitor

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/goalforge/pkg/log"
	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/taskstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTasks() []*models.Task {
	return []*models.Task{
		{ID: "t1", RunID: "run-1", GoalID: "goal-1", State: models.TaskStatePending},
		{ID: "t2", RunID: "run-1", GoalID: "goal-1", State: models.TaskStatePending},
	}
}

func TestMonitorCompletesWhenTasksFinish(t *testing.T) {
	ctx := context.Background()
	store := taskstore.NewMemoryStore()
	monitor := New(store, log.Discard())

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = store.CompleteTask(ctx, "run-1", "t1")
		_ = store.CompleteTask(ctx, "run-1", "t2")
	}()

	summary, err := monitor.MonitorExecution(ctx, testTasks(), 5*time.Millisecond, time.Second)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.TasksTotal)
	assert.Equal(t, 2, summary.TasksCompleted)
	assert.Equal(t, "goal-1", summary.GoalID)
}

func TestMonitorReturnsPartialSummaryOnMaxWait(t *testing.T) {
	ctx := context.Background()
	store := taskstore.NewMemoryStore()
	monitor := New(store, log.Discard())

	summary, err := monitor.MonitorExecution(ctx, testTasks(), 5*time.Millisecond, 30*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.TasksTotal)
	assert.Equal(t, 0, summary.TasksCompleted)
}

func TestMonitorHandlesEmptyTaskList(t *testing.T) {
	monitor := New(taskstore.NewMemoryStore(), log.Discard())

	summary, err := monitor.MonitorExecution(context.Background(), nil, time.Millisecond, time.Second)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.TasksTotal)
}

func TestMonitorObservesCancellation(t *testing.T) {
	store := taskstore.NewMemoryStore()
	monitor := New(store, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	_, err := monitor.MonitorExecution(ctx, testTasks(), 5*time.Millisecond, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonitorUndoClearsBoard(t *testing.T) {
	ctx := context.Background()
	store := taskstore.NewMemoryStore()
	monitor := New(store, log.Discard())

	require.NoError(t, store.Enqueue(ctx, "run-1", testTasks()))
	require.NoError(t, monitor.Undo(ctx, "run-1", models.StageExecutingTasks))

	_, err := store.Progress(ctx, "run-1")
	assert.ErrorIs(t, err, taskstore.ErrRunNotFound)
}
