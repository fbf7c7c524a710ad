package models

import "time"

// Payloads passed between stages. The engine forwards these between
// capability implementations without interpreting anything beyond the
// counters and the quality score.

// GoalAnalysis is the output of the goal-analysis stage.
type GoalAnalysis struct {
	GoalID     string         `json:"goal_id"`
	Summary    string         `json:"summary"`
	Complexity string         `json:"complexity,omitempty"`
	Themes     []string       `json:"themes,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Requirement is a single generated requirement derived from an analysis.
type Requirement struct {
	ID          string `json:"id"`
	GoalID      string `json:"goal_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority"`
}

// TaskState tracks a task through the execution-monitoring stage.
type TaskState string

const (
	TaskStatePending   TaskState = "pending"
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
)

// Task is a unit of executable work generated from a requirement.
type Task struct {
	ID            string    `json:"id"`
	RunID         string    `json:"run_id,omitempty"`
	RequirementID string    `json:"requirement_id"`
	GoalID        string    `json:"goal_id"`
	Title         string    `json:"title"`
	State         TaskState `json:"state"`
}

// ExecutionSummary reports what the execution-monitoring stage observed.
type ExecutionSummary struct {
	RunID          string        `json:"run_id,omitempty"`
	GoalID         string        `json:"goal_id"`
	TasksTotal     int           `json:"tasks_total"`
	TasksCompleted int           `json:"tasks_completed"`
	TasksFailed    int           `json:"tasks_failed"`
	AssetsProduced int           `json:"assets_produced"`
	Waited         time.Duration `json:"waited"`
}

// QualityReport is the output of the quality-validation stage. Score lives
// in the closed range [0,100]; the engine clamps out-of-range values.
type QualityReport struct {
	Score   float64  `json:"score"`
	Details []string `json:"details,omitempty"`
}

// OutputArtifact is the packaged deliverable produced at the end of a run.
type OutputArtifact struct {
	ID           string    `json:"id"`
	GoalID       string    `json:"goal_id"`
	Deliverables []string  `json:"deliverables"`
	QualityScore float64   `json:"quality_score"`
	PackagedAt   time.Time `json:"packaged_at"`
}
