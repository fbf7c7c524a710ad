package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/goalforge/pkg/models"
)

// CompensatingAction pairs a stage's forward effect with an idempotent undo.
// Undo must be safe to execute even when the forward action only partially
// applied.
type CompensatingAction struct {
	Stage models.Stage
	Name  string
	Undo  func(ctx context.Context) error
}

// RollbackSummary reports the outcome of a compensation pass.
type RollbackSummary struct {
	Attempted int
	Succeeded int
	Failures  []error
}

// Complete reports whether every attempted compensation succeeded. An empty
// pass counts as complete.
func (s RollbackSummary) Complete() bool {
	return s.Succeeded == s.Attempted
}

// CompensationRegistry accumulates compensating actions as stages succeed
// and executes them in reverse registration order on failure. Registration
// happens only after a stage's forward effects are applied.
type CompensationRegistry struct {
	mu      sync.Mutex
	actions []CompensatingAction
	logger  *slog.Logger
}

func NewCompensationRegistry(logger *slog.Logger) *CompensationRegistry {
	return &CompensationRegistry{
		logger: logger.With("module", "compensation_registry"),
	}
}

// Register appends an action. Actions registered later are undone first.
func (r *CompensationRegistry) Register(action CompensatingAction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions = append(r.actions, action)
}

// Len returns the number of registered actions.
func (r *CompensationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.actions)
}

// CompensateAll executes every registered action in LIFO order, continuing
// past individual failures. It never returns an error; failures are reported
// in the summary. An empty registry yields a complete summary.
func (r *CompensationRegistry) CompensateAll(ctx context.Context) RollbackSummary {
	r.mu.Lock()
	actions := make([]CompensatingAction, len(r.actions))
	copy(actions, r.actions)
	r.mu.Unlock()

	summary := RollbackSummary{}

	for i := len(actions) - 1; i >= 0; i-- {
		action := actions[i]
		summary.Attempted++

		err := r.execute(ctx, action)
		if err != nil {
			r.logger.ErrorContext(ctx, "Compensating action failed",
				"stage", action.Stage.String(), "action", action.Name, "error", err)
			summary.Failures = append(summary.Failures, fmt.Errorf("compensation for %s failed: %w", action.Stage, err))

			continue
		}

		summary.Succeeded++
	}

	return summary
}

// execute shields the rollback loop from panicking undo implementations.
func (r *CompensationRegistry) execute(ctx context.Context, action CompensatingAction) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("compensation panicked: %v", rec)
		}
	}()

	if action.Undo == nil {
		return nil
	}

	return action.Undo(ctx)
}
