package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/persistence"
)

const dirPermissions = 0o755

// GoalRepository stores each goal as <root>/goals/<id>.json.
type GoalRepository struct {
	root string
}

func NewGoalRepository(root string) *GoalRepository {
	return &GoalRepository{root: root}
}

func (gr *GoalRepository) goalsDir() string {
	return filepath.Join(gr.root, "goals")
}

func (gr *GoalRepository) goalFile(id string) string {
	return filepath.Join(gr.goalsDir(), id+".json")
}

func (gr *GoalRepository) Create(ctx context.Context, goal *models.Goal) error {
	if err := os.MkdirAll(gr.goalsDir(), dirPermissions); err != nil {
		return persistence.NewGoalError("Create", goal.ID, err)
	}

	if _, err := os.Stat(gr.goalFile(goal.ID)); err == nil {
		return persistence.NewGoalError("Create", goal.ID, persistence.ErrGoalAlreadyExists)
	}

	return gr.write(goal)
}

func (gr *GoalRepository) GetByID(_ context.Context, id string) (*models.Goal, error) {
	data, err := os.ReadFile(gr.goalFile(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewGoalError("GetByID", id, persistence.ErrGoalNotFound)
		}

		return nil, persistence.NewGoalError("GetByID", id, err)
	}

	var goal models.Goal
	if err := json.Unmarshal(data, &goal); err != nil {
		return nil, persistence.NewGoalError("GetByID", id, fmt.Errorf("corrupt goal file: %w", err))
	}

	return &goal, nil
}

func (gr *GoalRepository) List(ctx context.Context, workspaceID string) ([]*models.Goal, error) {
	entries, err := fs.Glob(os.DirFS(gr.goalsDir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list goal files: %w", err)
	}

	goals := make([]*models.Goal, 0, len(entries))

	for _, entry := range entries {
		id := entry[:len(entry)-len(".json")]

		goal, err := gr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if workspaceID == "" || goal.WorkspaceID == workspaceID {
			goals = append(goals, goal)
		}
	}

	sort.Slice(goals, func(i, j int) bool {
		return goals[i].CreatedAt.Before(goals[j].CreatedAt)
	})

	return goals, nil
}

func (gr *GoalRepository) UpdateStatus(ctx context.Context, id string, status models.GoalStatus) error {
	goal, err := gr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	goal.Status = status
	goal.UpdatedAt = nowUTC()

	return gr.write(goal)
}

func (gr *GoalRepository) Delete(_ context.Context, id string) error {
	err := os.Remove(gr.goalFile(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewGoalError("Delete", id, persistence.ErrGoalNotFound)
		}

		return persistence.NewGoalError("Delete", id, err)
	}

	return nil
}

func (gr *GoalRepository) write(goal *models.Goal) error {
	data, err := json.MarshalIndent(goal, "", "  ")
	if err != nil {
		return persistence.NewGoalError("Save", goal.ID, err)
	}

	if err := os.WriteFile(gr.goalFile(goal.ID), data, 0o600); err != nil {
		return persistence.NewGoalError("Save", goal.ID, err)
	}

	return nil
}
