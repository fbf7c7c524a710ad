// Package taskstore provides the task board the execution-monitoring stage
// polls. Tasks are enqueued when the creating-tasks stage finishes and are
// completed by external workers; the engine only observes their progress.
package taskstore

import (
	"context"
	"errors"

	"github.com/dukex/goalforge/pkg/models"
)

// ErrRunNotFound indicates no task board exists for the given run.
var ErrRunNotFound = errors.New("task board not found for run")

// Progress summarizes the state of one run's task board.
type Progress struct {
	Total     int
	Completed int
	Failed    int
}

// Done reports whether every task reached a terminal state.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Completed+p.Failed >= p.Total
}

// TaskStore is the board shared between the engine and external executors.
type TaskStore interface {
	Enqueue(ctx context.Context, runID string, tasks []*models.Task) error
	Progress(ctx context.Context, runID string) (Progress, error)
	CompleteTask(ctx context.Context, runID, taskID string) error
	FailTask(ctx context.Context, runID, taskID string) error

	// Clear removes the run's board. Used by compensation; must be
	// idempotent.
	Clear(ctx context.Context, runID string) error
}
