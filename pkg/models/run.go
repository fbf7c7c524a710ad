package models

import "time"

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusPending     RunStatus = "pending"
	RunStatusInProgress  RunStatus = "in_progress"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusFailed      RunStatus = "failed"
	RunStatusCancelled   RunStatus = "cancelled"
	RunStatusRollingBack RunStatus = "rolling_back"
	RunStatusRolledBack  RunStatus = "rolled_back"
)

// WorkflowRun identifies one end-to-end execution of the staged pipeline for
// a single goal. It is mutated only by the orchestration flow that owns it;
// external readers see ProgressSnapshot copies instead.
type WorkflowRun struct {
	ID           string          `json:"id"`
	GoalID       string          `json:"goal_id"`
	WorkspaceID  string          `json:"workspace_id"`
	CurrentStage Stage           `json:"current_stage"`
	Status       RunStatus       `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	Deadline     time.Time       `json:"deadline"`
	Outcomes     []*StageOutcome `json:"outcomes"`
}

// StageOutcome is the per-stage result recorded for diagnostics. Result is
// owned and interpreted by the stage's capability implementation; the engine
// only forwards it.
type StageOutcome struct {
	Stage        Stage         `json:"stage"`
	Success      bool          `json:"success"`
	Duration     time.Duration `json:"duration"`
	Result       any           `json:"result,omitempty"`
	Error        string        `json:"error,omitempty"`
	Compensation string        `json:"compensation,omitempty"`
}

// ProgressSnapshot is an immutable view of a run's progress. Percentage is
// monotonically non-decreasing within a run and reaches 100 only on
// completion.
type ProgressSnapshot struct {
	RunID           string    `json:"run_id"`
	Stage           Stage     `json:"stage"`
	Percentage      int       `json:"percentage"`
	Operation       string    `json:"operation"`
	StagesCompleted int       `json:"stages_completed"`
	Timestamp       time.Time `json:"timestamp"`
}

// RunResult is the terminal summary returned to the caller. The per-stage
// counters are domain-opaque values supplied by capability implementations.
type RunResult struct {
	RunID               string        `json:"run_id"`
	GoalID              string        `json:"goal_id"`
	WorkspaceID         string        `json:"workspace_id"`
	Success             bool          `json:"success"`
	Status              RunStatus     `json:"status"`
	Elapsed             time.Duration `json:"elapsed"`
	TasksGenerated      int           `json:"tasks_generated"`
	AssetsProduced      int           `json:"assets_produced"`
	DeliverablesCreated int           `json:"deliverables_created"`
	QualityScore        *float64      `json:"quality_score,omitempty"`
	Error               string        `json:"error,omitempty"`
	RollbackAttempted   bool          `json:"rollback_attempted"`
	RollbackSucceeded   bool          `json:"rollback_succeeded"`
	Outcomes            []*StageOutcome `json:"outcomes,omitempty"`
	StartedAt           time.Time     `json:"started_at"`
	FinishedAt          time.Time     `json:"finished_at"`
}
