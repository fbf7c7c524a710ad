package models

import "time"

// GoalStatus represents the externally visible state of a goal. Rollback
// resets a goal to the status it had before the run started.
type GoalStatus string

const (
	GoalStatusPending    GoalStatus = "pending"
	GoalStatusInProgress GoalStatus = "in_progress"
	GoalStatusCompleted  GoalStatus = "completed"
	GoalStatusFailed     GoalStatus = "failed"
)

// Goal is the unit of work a workflow run drives to completion.
type Goal struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id" validate:"required"`
	Title       string         `json:"title"        validate:"required,min=3"`
	Description string         `json:"description"`
	Status      GoalStatus     `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
