// Package web provides HTTP request and response types for the workflow run API.
package web

import "github.com/dukex/goalforge/pkg/models"

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CreateGoalRequest represents the request body for creating a new goal.
type CreateGoalRequest struct {
	WorkspaceID string         `json:"workspace_id" validate:"required"`
	Title       string         `json:"title"        validate:"required,min=3"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// StartRunRequest represents the request body for starting a workflow run.
// Options are optional; omitted fields fall back to the engine defaults.
type StartRunRequest struct {
	GoalID      string          `json:"goal_id"      validate:"required"`
	WorkspaceID string          `json:"workspace_id" validate:"required"`
	Options     *models.Options `json:"options,omitempty"`
}

// StartRunResponse returns the identifier of a newly started run.
type StartRunResponse struct {
	RunID string `json:"run_id"`
}
