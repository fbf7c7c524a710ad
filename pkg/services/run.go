package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/goalforge/pkg/engine"
	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/persistence"
	"github.com/go-playground/validator/v10"
)

var (
	// ErrRunNotFound is returned when a run is not found.
	ErrRunNotFound = engine.ErrRunNotFound

	// ErrRunStillRunning is returned when a run has no terminal result yet.
	ErrRunStillRunning = engine.ErrRunStillRunning
)

// Run starts workflow runs and answers progress, result and statistics
// queries. It wraps the orchestration engine and, when configured, the
// persisted run history.
type Run struct {
	orchestrator *engine.Orchestrator
	persistence  persistence.Persistence
	validate     *validator.Validate
}

// NewRun creates a new run service.
func NewRun(orchestrator *engine.Orchestrator, persistence persistence.Persistence) *Run {
	return &Run{
		orchestrator: orchestrator,
		persistence:  persistence,
		validate:     validator.New(),
	}
}

// StartRunRequest contains the parameters for starting a workflow run.
type StartRunRequest struct {
	GoalID      string          `json:"goal_id"      validate:"required"`
	WorkspaceID string          `json:"workspace_id" validate:"required"`
	Options     *models.Options `json:"options"`
}

// Start launches a workflow run in the background and returns its ID.
func (r *Run) Start(ctx context.Context, req StartRunRequest) (string, error) {
	if err := r.validate.Struct(req); err != nil {
		return "", NewValidationError("Start", "INVALID_REQUEST", err.Error(), ErrInvalidRequest)
	}

	runID, err := r.orchestrator.StartWorkflow(ctx, req.GoalID, req.WorkspaceID, req.Options)
	if err != nil {
		return "", NewValidationError("Start", "INVALID_OPTIONS", err.Error(), ErrInvalidOptions)
	}

	return runID, nil
}

// Execute runs a workflow synchronously and returns its terminal result.
func (r *Run) Execute(ctx context.Context, req StartRunRequest) (*models.RunResult, error) {
	if err := r.validate.Struct(req); err != nil {
		return nil, NewValidationError("Execute", "INVALID_REQUEST", err.Error(), ErrInvalidRequest)
	}

	return r.orchestrator.Execute(ctx, req.GoalID, req.WorkspaceID, req.Options), nil
}

// Progress returns a snapshot of a run's progress.
func (r *Run) Progress(_ context.Context, runID string) (models.ProgressSnapshot, error) {
	return r.orchestrator.GetWorkflowProgress(runID)
}

// Result returns the terminal result of a run, falling back to the persisted
// history when the in-memory window has evicted it.
func (r *Run) Result(ctx context.Context, runID string) (*models.RunResult, error) {
	result, err := r.orchestrator.GetWorkflowResult(runID)
	if err == nil {
		return result, nil
	}

	if errors.Is(err, engine.ErrRunStillRunning) || r.persistence == nil {
		return nil, err
	}

	stored, storeErr := r.persistence.RunResults().GetByRunID(ctx, runID)
	if storeErr != nil {
		if persistence.IsRunResultNotFound(storeErr) {
			return nil, ErrRunNotFound
		}

		return nil, fmt.Errorf("failed to load run result: %w", storeErr)
	}

	return stored, nil
}

// ListByGoal returns the persisted run history of one goal.
func (r *Run) ListByGoal(ctx context.Context, goalID string) ([]*models.RunResult, error) {
	if r.persistence == nil {
		var results []*models.RunResult

		for _, result := range r.orchestrator.History() {
			if result.GoalID == goalID {
				results = append(results, result)
			}
		}

		return results, nil
	}

	results, err := r.persistence.RunResults().ListByGoal(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run results: %w", err)
	}

	return results, nil
}

// Statistics returns the engine-wide aggregate counters.
func (r *Run) Statistics(_ context.Context) engine.Statistics {
	return r.orchestrator.GetEngineStatistics()
}
