// Package protocol defines the capability interfaces a workflow run is built
// from. Each capability has a primary implementation (typically AI-backed)
// and a deterministic fallback; the engine depends on nothing else.
package protocol

import (
	"context"
	"time"

	"github.com/dukex/goalforge/pkg/models"
)

// GoalAnalyzer produces an analysis of a goal before any work is generated.
type GoalAnalyzer interface {
	AnalyzeGoal(ctx context.Context, goal *models.Goal) (*models.GoalAnalysis, error)
}

// RequirementGenerator derives requirements from a goal analysis.
type RequirementGenerator interface {
	GenerateRequirements(ctx context.Context, analysis *models.GoalAnalysis) ([]*models.Requirement, error)
}

// TaskGenerator expands one requirement into executable tasks.
type TaskGenerator interface {
	GenerateTasks(ctx context.Context, requirement *models.Requirement) ([]*models.Task, error)
}

// ExecutionMonitor watches externally executing tasks until a completion
// threshold is reached or maxWait elapses. Implementations must observe
// context cancellation at their polling points.
type ExecutionMonitor interface {
	MonitorExecution(ctx context.Context, tasks []*models.Task, pollInterval, maxWait time.Duration) (*models.ExecutionSummary, error)
}

// QualityValidator scores an execution summary on the closed range [0,100].
type QualityValidator interface {
	ValidateQuality(ctx context.Context, summary *models.ExecutionSummary) (*models.QualityReport, error)
}

// OutputPackager assembles the final deliverable artifact.
type OutputPackager interface {
	PackageOutput(ctx context.Context, summary *models.ExecutionSummary, score float64) (*models.OutputArtifact, error)
}

// Finalizer performs best-effort end-of-run notification. Errors from
// Finalize never fail the run.
type Finalizer interface {
	Finalize(ctx context.Context, runID string) error
}

// Compensable is optionally implemented by capability implementations whose
// forward effects can be undone. Undo must be idempotent and safe to call
// even when the forward action only partially applied.
type Compensable interface {
	Undo(ctx context.Context, runID string, stage models.Stage) error
}

// Capabilities bundles one implementation per stage. A bundle used as a
// fallback must have every field populated; a primary bundle may leave
// fields nil, in which case the runner selects the fallback for that stage.
type Capabilities struct {
	Analyzer     GoalAnalyzer
	Requirements RequirementGenerator
	Tasks        TaskGenerator
	Monitor      ExecutionMonitor
	Quality      QualityValidator
	Packager     OutputPackager
	Finalizer    Finalizer
}
