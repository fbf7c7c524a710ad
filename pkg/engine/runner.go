package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/protocol"
)

const (
	defaultPollInterval     = 2 * time.Second
	defaultMaxExecutionWait = 10 * time.Minute
)

// RunState carries the pipeline payloads of one run between stages. The
// runner mutates it as stages produce results; the orchestrator reads the
// counters when it builds the terminal RunResult.
type RunState struct {
	Run  *models.WorkflowRun
	Goal *models.Goal

	Analysis     *models.GoalAnalysis
	Requirements []*models.Requirement
	Tasks        []*models.Task
	Summary      *models.ExecutionSummary
	Quality      *models.QualityReport
	Artifact     *models.OutputArtifact
}

// StageRunner executes one stage by dispatching to a capability
// implementation: the primary when configured, the deterministic fallback
// when the primary is absent or errors. It never retries a stage.
type StageRunner struct {
	primary  protocol.Capabilities
	fallback protocol.Capabilities
	clock    Clock
	logger   *slog.Logger

	pollInterval time.Duration
	maxWait      time.Duration
}

func NewStageRunner(primary, fallback protocol.Capabilities, clock Clock, logger *slog.Logger) *StageRunner {
	return &StageRunner{
		primary:      primary,
		fallback:     fallback,
		clock:        clock,
		logger:       logger.With("module", "stage_runner"),
		pollInterval: defaultPollInterval,
		maxWait:      defaultMaxExecutionWait,
	}
}

// SetPolling overrides the execution-monitoring cadence.
func (r *StageRunner) SetPolling(interval, maxWait time.Duration) {
	if interval > 0 {
		r.pollInterval = interval
	}

	if maxWait > 0 {
		r.maxWait = maxWait
	}
}

// RunStage executes a single stage and returns its outcome plus the
// compensable implementation that produced it, if any. Panics and unexpected
// errors surface as failed outcomes, never as raw errors.
func (r *StageRunner) RunStage(ctx context.Context, stage models.Stage, state *RunState) (outcome *models.StageOutcome, compensable protocol.Compensable) {
	started := r.clock.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "Stage panicked", "stage", stage.String(), "panic", rec)
			outcome = &models.StageOutcome{
				Stage:    stage,
				Success:  false,
				Duration: r.clock.Now().Sub(started),
				Error:    fmt.Sprintf("stage fault: %v", rec),
			}
			compensable = nil
		}
	}()

	var (
		result any
		impl   any
		err    error
	)

	switch stage {
	case models.StageAnalyzingGoal:
		result, impl, err = r.analyze(ctx, state)
	case models.StageGeneratingRequirements:
		result, impl, err = r.generateRequirements(ctx, state)
	case models.StageCreatingTasks:
		result, impl, err = r.createTasks(ctx, state)
	case models.StageExecutingTasks:
		result, impl, err = r.monitorExecution(ctx, state)
	case models.StageValidatingQuality:
		result, impl, err = r.validateQuality(ctx, state)
	case models.StagePackagingOutput:
		result, impl, err = r.packageOutput(ctx, state)
	case models.StageFinalizing:
		result, impl, err = r.finalize(ctx, state)
	default:
		err = fmt.Errorf("stage %s is not executable", stage)
	}

	outcome = &models.StageOutcome{
		Stage:    stage,
		Success:  err == nil,
		Duration: r.clock.Now().Sub(started),
		Result:   result,
	}

	if err != nil {
		outcome.Error = err.Error()

		return outcome, nil
	}

	if c, ok := impl.(protocol.Compensable); ok {
		compensable = c
		outcome.Compensation = fmt.Sprintf("undo %s", stage)
	}

	return outcome, compensable
}

func (r *StageRunner) analyze(ctx context.Context, state *RunState) (any, any, error) {
	pair := pick[protocol.GoalAnalyzer](r.primary.Analyzer, r.fallback.Analyzer)

	analysis, used, err := runWithFallback(ctx, r, models.StageAnalyzingGoal, pair,
		func(ctx context.Context, a protocol.GoalAnalyzer) (*models.GoalAnalysis, error) {
			return a.AnalyzeGoal(ctx, state.Goal)
		})
	if err != nil {
		return nil, nil, err
	}

	state.Analysis = analysis

	return analysis, used, nil
}

func (r *StageRunner) generateRequirements(ctx context.Context, state *RunState) (any, any, error) {
	pair := pick[protocol.RequirementGenerator](r.primary.Requirements, r.fallback.Requirements)

	requirements, used, err := runWithFallback(ctx, r, models.StageGeneratingRequirements, pair,
		func(ctx context.Context, g protocol.RequirementGenerator) ([]*models.Requirement, error) {
			return g.GenerateRequirements(ctx, state.Analysis)
		})
	if err != nil {
		return nil, nil, err
	}

	if len(requirements) == 0 {
		return nil, nil, fmt.Errorf("no requirements generated for goal %s", state.Goal.ID)
	}

	state.Requirements = requirements

	return requirements, used, nil
}

func (r *StageRunner) createTasks(ctx context.Context, state *RunState) (any, any, error) {
	pair := pick[protocol.TaskGenerator](r.primary.Tasks, r.fallback.Tasks)

	tasks := make([]*models.Task, 0, len(state.Requirements))

	var usedImpl any

	for _, requirement := range state.Requirements {
		generated, used, err := runWithFallback(ctx, r, models.StageCreatingTasks, pair,
			func(ctx context.Context, g protocol.TaskGenerator) ([]*models.Task, error) {
				return g.GenerateTasks(ctx, requirement)
			})
		if err != nil {
			return nil, nil, err
		}

		usedImpl = used
		tasks = append(tasks, generated...)
	}

	if len(tasks) == 0 {
		return nil, nil, fmt.Errorf("no tasks generated for goal %s", state.Goal.ID)
	}

	// Stamp ownership so downstream stages can scope shared stores by run.
	for _, task := range tasks {
		task.RunID = state.Run.ID
	}

	state.Tasks = tasks

	return tasks, usedImpl, nil
}

func (r *StageRunner) monitorExecution(ctx context.Context, state *RunState) (any, any, error) {
	pair := pick[protocol.ExecutionMonitor](r.primary.Monitor, r.fallback.Monitor)

	summary, used, err := runWithFallback(ctx, r, models.StageExecutingTasks, pair,
		func(ctx context.Context, m protocol.ExecutionMonitor) (*models.ExecutionSummary, error) {
			return m.MonitorExecution(ctx, state.Tasks, r.pollInterval, r.maxWait)
		})
	if err != nil {
		return nil, nil, err
	}

	if summary.GoalID == "" {
		summary.GoalID = state.Goal.ID
	}

	// The run ID is engine-owned; downstream stages key compensable side
	// effects by it, so the monitor's value is always overwritten.
	summary.RunID = state.Run.ID

	state.Summary = summary

	return summary, used, nil
}

func (r *StageRunner) validateQuality(ctx context.Context, state *RunState) (any, any, error) {
	pair := pick[protocol.QualityValidator](r.primary.Quality, r.fallback.Quality)

	report, used, err := runWithFallback(ctx, r, models.StageValidatingQuality, pair,
		func(ctx context.Context, v protocol.QualityValidator) (*models.QualityReport, error) {
			return v.ValidateQuality(ctx, state.Summary)
		})
	if err != nil {
		return nil, nil, err
	}

	// Scores are a closed [0,100] range; clamp defensively.
	report.Score = clampScore(report.Score)
	state.Quality = report

	return report, used, nil
}

func (r *StageRunner) packageOutput(ctx context.Context, state *RunState) (any, any, error) {
	pair := pick[protocol.OutputPackager](r.primary.Packager, r.fallback.Packager)

	artifact, used, err := runWithFallback(ctx, r, models.StagePackagingOutput, pair,
		func(ctx context.Context, p protocol.OutputPackager) (*models.OutputArtifact, error) {
			return p.PackageOutput(ctx, state.Summary, state.Quality.Score)
		})
	if err != nil {
		return nil, nil, err
	}

	state.Artifact = artifact

	return artifact, used, nil
}

// finalize is best-effort: an error is recorded on the outcome result but
// never fails the stage.
func (r *StageRunner) finalize(ctx context.Context, state *RunState) (any, any, error) {
	finalizer := r.primary.Finalizer
	if finalizer == nil {
		finalizer = r.fallback.Finalizer
	}

	if finalizer == nil {
		return nil, nil, nil
	}

	err := finalizer.Finalize(ctx, state.Run.ID)
	if err != nil {
		r.logger.WarnContext(ctx, "Finalize notification failed", "run_id", state.Run.ID, "error", err)

		return map[string]any{"finalize_error": err.Error()}, finalizer, nil
	}

	return nil, finalizer, nil
}

// pick returns primary when configured, else fallback. The generic parameter
// keeps nil interface checks honest at the call site.
func pick[T comparable](primary, fallback T) capabilityPair[T] {
	var zero T

	return capabilityPair[T]{
		primary:  primary,
		fallback: fallback,
		hasPrime: primary != zero,
	}
}

type capabilityPair[T comparable] struct {
	primary  T
	fallback T
	hasPrime bool
}

// runWithFallback invokes the primary implementation and, when it is missing
// or errors, the deterministic fallback. Cancellation is not recoverable:
// once the run's deadline fires the fallback is not attempted.
func runWithFallback[T comparable, R any](
	ctx context.Context,
	r *StageRunner,
	stage models.Stage,
	pair capabilityPair[T],
	invoke func(context.Context, T) (R, error),
) (R, any, error) {
	var zero R

	if pair.hasPrime {
		result, err := invoke(ctx, pair.primary)
		if err == nil {
			return result, pair.primary, nil
		}

		if ctx.Err() != nil {
			return zero, nil, ctx.Err()
		}

		r.logger.WarnContext(ctx, "Primary capability failed, using fallback",
			"stage", stage.String(), "error", err)
	}

	var zeroT T
	if pair.fallback == zeroT {
		return zero, nil, fmt.Errorf("no capability configured for stage %s", stage)
	}

	result, err := invoke(ctx, pair.fallback)
	if err != nil {
		return zero, nil, err
	}

	return result, pair.fallback, nil
}

func clampScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
