// Package persistence provides the storage abstraction for goals and
// completed run results. The engine works without it; history then lives
// only in the in-memory bounded ring.
package persistence

import (
	"context"

	"github.com/dukex/goalforge/pkg/models"
)

// GoalRepository stores the goals workflow runs drive.
type GoalRepository interface {
	Create(ctx context.Context, goal *models.Goal) error
	GetByID(ctx context.Context, id string) (*models.Goal, error)
	List(ctx context.Context, workspaceID string) ([]*models.Goal, error)
	UpdateStatus(ctx context.Context, id string, status models.GoalStatus) error
	Delete(ctx context.Context, id string) error
}

// RunResultRepository stores terminal run results for diagnostics beyond the
// in-memory history window.
type RunResultRepository interface {
	Save(ctx context.Context, result *models.RunResult) error
	GetByRunID(ctx context.Context, runID string) (*models.RunResult, error)
	ListByGoal(ctx context.Context, goalID string) ([]*models.RunResult, error)
}

type Persistence interface {
	Goals() GoalRepository
	RunResults() RunResultRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
