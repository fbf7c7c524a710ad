// Package taskmonitor implements the execution-monitoring capability on top
// of a task store polled on a fixed interval. Tasks are completed by
// external workers; the monitor only observes.
package taskmonitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/taskstore"
)

// Monitor polls a TaskStore until every task reaches a terminal state or
// maxWait elapses. It observes context cancellation between polls, so the
// run's deadline can interrupt it. One Monitor serves all runs; each run's
// board is keyed by the RunID stamped on its tasks.
type Monitor struct {
	store  taskstore.TaskStore
	logger *slog.Logger
}

func New(store taskstore.TaskStore, logger *slog.Logger) *Monitor {
	return &Monitor{
		store:  store,
		logger: logger.With("module", "task_monitor"),
	}
}

func (m *Monitor) MonitorExecution(ctx context.Context, tasks []*models.Task, pollInterval, maxWait time.Duration) (*models.ExecutionSummary, error) {
	started := time.Now()

	if len(tasks) == 0 {
		return &models.ExecutionSummary{Waited: time.Since(started)}, nil
	}

	runID := tasks[0].RunID
	goalID := tasks[0].GoalID

	if err := m.store.Enqueue(ctx, runID, tasks); err != nil {
		return nil, fmt.Errorf("failed to enqueue tasks: %w", err)
	}

	logger := m.logger.With("run_id", runID)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()

	for {
		progress, err := m.store.Progress(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll task board: %w", err)
		}

		if progress.Done() {
			logger.InfoContext(ctx, "All tasks reached a terminal state",
				"completed", progress.Completed, "failed", progress.Failed)

			return m.summary(runID, goalID, progress, started), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			logger.WarnContext(ctx, "Bounded wait elapsed before all tasks finished",
				"completed", progress.Completed, "total", progress.Total)

			return m.summary(runID, goalID, progress, started), nil
		case <-ticker.C:
		}
	}
}

// Undo removes the run's task board, compensating the enqueue.
func (m *Monitor) Undo(ctx context.Context, runID string, _ models.Stage) error {
	return m.store.Clear(ctx, runID)
}

func (m *Monitor) summary(runID, goalID string, progress taskstore.Progress, started time.Time) *models.ExecutionSummary {
	return &models.ExecutionSummary{
		RunID:          runID,
		GoalID:         goalID,
		TasksTotal:     progress.Total,
		TasksCompleted: progress.Completed,
		TasksFailed:    progress.Failed,
		AssetsProduced: progress.Completed,
		Waited:         time.Since(started),
	}
}
