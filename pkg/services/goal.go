package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/persistence"
	"github.com/google/uuid"
)

// ErrGoalNotFound is returned when a goal is not found.
var ErrGoalNotFound = persistence.ErrGoalNotFound

// Goal manages the goal catalog that workflow runs execute against.
type Goal struct {
	persistence persistence.Persistence
}

// NewGoal creates a new goal service.
func NewGoal(persistence persistence.Persistence) *Goal {
	return &Goal{
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (g *Goal) HealthCheck(ctx context.Context) (string, bool) {
	if g.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := g.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create adds a new goal to the repository.
func (g *Goal) Create(ctx context.Context, goal *models.Goal) (*models.Goal, error) {
	if err := g.validateGoal(goal); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	goal.ID = uuid.New().String()
	goal.CreatedAt = now
	goal.UpdatedAt = now

	if goal.Status == "" {
		goal.Status = models.GoalStatusPending
	}

	err := g.persistence.Goals().Create(ctx, goal)
	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	return goal, nil
}

// FetchByID retrieves a goal by its ID.
func (g *Goal) FetchByID(ctx context.Context, id string) (*models.Goal, error) {
	goal, err := g.persistence.Goals().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if goal == nil {
		return nil, ErrGoalNotFound
	}

	return goal, nil
}

// List retrieves the goals of a workspace; an empty workspace ID lists all.
func (g *Goal) List(ctx context.Context, workspaceID string) ([]*models.Goal, error) {
	goals, err := g.persistence.Goals().List(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	return goals, nil
}

// Delete removes a goal by its ID.
func (g *Goal) Delete(ctx context.Context, id string) error {
	existing, err := g.persistence.Goals().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if existing == nil {
		return ErrGoalNotFound
	}

	if existing.Status == models.GoalStatusInProgress {
		return ErrGoalAlreadyRunning
	}

	err = g.persistence.Goals().Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}

	return nil
}

func (g *Goal) validateGoal(goal *models.Goal) error {
	if goal == nil {
		return ErrGoalNil
	}

	if strings.TrimSpace(goal.Title) == "" {
		return NewValidationError(
			"validateGoal",
			"GOAL_TITLE_REQUIRED",
			"goal title is required",
			ErrGoalTitleRequired,
		)
	}

	if strings.TrimSpace(goal.WorkspaceID) == "" {
		return NewValidationError(
			"validateGoal",
			"WORKSPACE_ID_REQUIRED",
			"workspace ID is required",
			ErrWorkspaceIDRequired,
		)
	}

	return nil
}
