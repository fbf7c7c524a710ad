// Package engine implements the staged workflow engine: a fixed seven-stage
// pipeline that drives a goal from analysis to packaged output, with progress
// tracking, deadline enforcement and best-effort compensation on failure.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/goalforge/pkg/eventbus"
	"github.com/dukex/goalforge/pkg/events"
	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/otelhelper"
	"github.com/dukex/goalforge/pkg/persistence"
	"github.com/dukex/goalforge/pkg/protocol"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const deadlineExceededReason = "deadline exceeded"

// Config assembles an Orchestrator. Fallback must carry a complete capability
// bundle; everything else is optional.
type Config struct {
	Primary  protocol.Capabilities
	Fallback protocol.Capabilities

	// Persistence stores goals and terminal results. When nil, goals are
	// synthesized from the IDs the caller passes and history lives only in
	// the in-memory registry.
	Persistence persistence.Persistence

	// EventBus receives run lifecycle events. Publishing is best-effort; a
	// failing bus never fails a run.
	EventBus eventbus.EventPublisher

	Tracer trace.Tracer
	Logger *slog.Logger
	Clock  Clock

	// NewRunID overrides run ID generation, used by tests that need
	// predictable IDs.
	NewRunID func() string

	PollInterval     time.Duration
	MaxExecutionWait time.Duration
}

// Orchestrator owns the end-to-end lifecycle of workflow runs. Each run
// executes its stages strictly sequentially; independent runs execute
// concurrently with no shared mutable state beyond the registry.
type Orchestrator struct {
	runner      *StageRunner
	registry    *RunRegistry
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	clock       Clock
	newRunID    func() string
	validate    *validator.Validate
}

func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Fallback.Analyzer == nil || cfg.Fallback.Requirements == nil ||
		cfg.Fallback.Tasks == nil || cfg.Fallback.Monitor == nil ||
		cfg.Fallback.Quality == nil || cfg.Fallback.Packager == nil {
		return nil, errors.New("fallback capabilities must be fully populated")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("goalforge")
	}

	newRunID := cfg.NewRunID
	if newRunID == nil {
		newRunID = func() string { return uuid.New().String() }
	}

	runner := NewStageRunner(cfg.Primary, cfg.Fallback, clock, logger)
	runner.SetPolling(cfg.PollInterval, cfg.MaxExecutionWait)

	return &Orchestrator{
		runner:      runner,
		registry:    NewRunRegistry(),
		persistence: cfg.Persistence,
		eventBus:    cfg.EventBus,
		tracer:      tracer,
		logger:      logger.With("module", "orchestrator"),
		clock:       clock,
		newRunID:    newRunID,
		validate:    validator.New(),
	}, nil
}

// Execute runs the whole pipeline synchronously and always returns a
// RunResult. Stage failures, faults, quality rejections and deadline expiry
// are all normalized into the result; no error or panic crosses this
// boundary.
func (o *Orchestrator) Execute(ctx context.Context, goalID, workspaceID string, opts *models.Options) *models.RunResult {
	runID := o.newRunID()

	tracker := NewProgressTracker(runID, o.clock)
	o.registry.Register(runID, tracker)

	return o.run(ctx, runID, tracker, goalID, workspaceID, opts)
}

// StartWorkflow launches a run in the background and returns its ID
// immediately. The run detaches from the caller's context; use the run's own
// timeout to bound it.
func (o *Orchestrator) StartWorkflow(ctx context.Context, goalID, workspaceID string, opts *models.Options) (string, error) {
	if opts != nil {
		if err := o.validate.Struct(opts); err != nil {
			return "", fmt.Errorf("invalid run options: %w", err)
		}
	}

	runID := o.newRunID()

	tracker := NewProgressTracker(runID, o.clock)
	o.registry.Register(runID, tracker)

	go o.run(context.WithoutCancel(ctx), runID, tracker, goalID, workspaceID, opts)

	return runID, nil
}

// GetWorkflowProgress returns a snapshot for an active run, or the final
// snapshot of a retained completed run.
func (o *Orchestrator) GetWorkflowProgress(runID string) (models.ProgressSnapshot, error) {
	return o.registry.GetProgress(runID)
}

// GetWorkflowResult returns the terminal result of a completed run.
func (o *Orchestrator) GetWorkflowResult(runID string) (*models.RunResult, error) {
	return o.registry.GetResult(runID)
}

// GetEngineStatistics returns aggregate counters across all runs.
func (o *Orchestrator) GetEngineStatistics() Statistics {
	return o.registry.Statistics()
}

// History returns the retained completed runs, oldest first.
func (o *Orchestrator) History() []*models.RunResult {
	return o.registry.History()
}

func (o *Orchestrator) run(ctx context.Context, runID string, tracker *ProgressTracker, goalID, workspaceID string, opts *models.Options) (result *models.RunResult) {
	startedAt := o.clock.Now()

	options := models.DefaultOptions()
	if opts != nil {
		options = *opts
	}

	result = &models.RunResult{
		RunID:       runID,
		GoalID:      goalID,
		WorkspaceID: workspaceID,
		Status:      models.RunStatusFailed,
		StartedAt:   startedAt,
	}

	// Outermost safety net: nothing below may surface a panic to the caller.
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("Run panicked", "run_id", runID, "panic", rec)

			result.Success = false
			result.Status = models.RunStatusFailed
			result.Error = fmt.Sprintf("internal fault: %v", rec)
		}

		result.FinishedAt = o.clock.Now()
		result.Elapsed = result.FinishedAt.Sub(result.StartedAt)

		if result.Status != models.RunStatusCompleted {
			tracker.Fail(terminalStage(result.Status))
		}

		o.registry.Complete(runID, result)
		o.persistResult(ctx, result)
	}()

	err := o.validate.Struct(options)
	if err != nil {
		result.Error = fmt.Sprintf("invalid run options: %v", err)

		return result
	}

	goal, priorStatus, err := o.resolveGoal(ctx, goalID, workspaceID)
	if err != nil {
		result.Error = err.Error()

		return result
	}

	run := &models.WorkflowRun{
		ID:           runID,
		GoalID:       goal.ID,
		WorkspaceID:  goal.WorkspaceID,
		CurrentStage: models.StageInitializing,
		Status:       models.RunStatusInProgress,
		StartedAt:    startedAt,
		Deadline:     startedAt.Add(options.Timeout()),
	}

	runCtx, cancel := context.WithTimeout(ctx, options.Timeout())
	defer cancel()

	runCtx, span := otelhelper.StartSpan(runCtx, o.tracer, "workflow.run",
		attribute.String(otelhelper.RunIDKey, runID),
		attribute.String(otelhelper.GoalIDKey, goal.ID),
		attribute.String(otelhelper.WorkspaceIDKey, goal.WorkspaceID),
	)
	defer span.End()

	o.setGoalStatus(ctx, goal, models.GoalStatusInProgress)

	o.publish(ctx, runID, events.RunStarted{
		BaseEvent:        o.baseEvent(events.RunStartedEvent, runID, goal),
		Timeout:          options.Timeout(),
		QualityThreshold: options.QualityThreshold,
		RollbackEnabled:  options.EnableRollback,
	})

	o.logger.InfoContext(runCtx, "Workflow run started",
		"run_id", runID, "goal_id", goal.ID, "workspace_id", goal.WorkspaceID,
		"timeout", options.Timeout(), "quality_threshold", options.QualityThreshold)

	state := &RunState{Run: run, Goal: goal}
	compensations := NewCompensationRegistry(o.logger)

	failure := o.runStages(runCtx, run, tracker, state, compensations, options, result)
	if failure == "" {
		tracker.Complete()
		run.Status = models.RunStatusCompleted

		result.Success = true
		result.Status = models.RunStatusCompleted
		result.Outcomes = run.Outcomes

		o.setGoalStatus(ctx, goal, models.GoalStatusCompleted)

		o.publish(ctx, runID, events.RunCompleted{
			BaseEvent:    o.baseEvent(events.RunCompletedEvent, runID, goal),
			Duration:     o.clock.Now().Sub(startedAt),
			QualityScore: state.Quality.Score,
			Deliverables: result.DeliverablesCreated,
		})

		o.logger.InfoContext(ctx, "Workflow run completed",
			"run_id", runID, "goal_id", goal.ID, "quality_score", state.Quality.Score)

		return result
	}

	// Failure path: normalize the reason, then compensate.
	otelhelper.SetError(span, errors.New(failure),
		attribute.String(otelhelper.StageKey, run.CurrentStage.String()))

	result.Error = failure
	result.Outcomes = run.Outcomes

	if failure == "run cancelled" {
		result.Status = models.RunStatusCancelled
	}

	o.publish(ctx, runID, events.RunFailed{
		BaseEvent: o.baseEvent(events.RunFailedEvent, runID, goal),
		Stage:     run.CurrentStage,
		Error:     failure,
		Duration:  o.clock.Now().Sub(startedAt),
	})

	o.logger.WarnContext(ctx, "Workflow run failed",
		"run_id", runID, "goal_id", goal.ID,
		"stage", run.CurrentStage.String(), "reason", failure)

	if !options.EnableRollback {
		run.Status = models.RunStatusFailed
		o.setGoalStatus(ctx, goal, models.GoalStatusFailed)

		return result
	}

	// Rollback must proceed even when the run context died; detach it.
	rollbackCtx := context.WithoutCancel(ctx)

	run.Status = models.RunStatusRollingBack
	summary := compensations.CompensateAll(rollbackCtx)

	result.RollbackAttempted = true
	result.RollbackSucceeded = summary.Complete()

	if summary.Complete() {
		run.Status = models.RunStatusRolledBack
		result.Status = models.RunStatusRolledBack
	} else {
		run.Status = models.RunStatusFailed
	}

	// The goal returns to its pre-run status no matter how many individual
	// compensations succeeded, so no partially-completed business state is
	// ever reported.
	o.setGoalStatus(rollbackCtx, goal, priorStatus)

	o.publish(rollbackCtx, runID, events.RunRolledBack{
		BaseEvent: o.baseEvent(events.RunRolledBackEvent, runID, goal),
		Attempted: summary.Attempted,
		Succeeded: summary.Succeeded,
		Complete:  summary.Complete(),
	})

	o.logger.InfoContext(rollbackCtx, "Workflow run rolled back",
		"run_id", runID, "goal_id", goal.ID,
		"attempted", summary.Attempted, "succeeded", summary.Succeeded)

	return result
}

// runStages iterates the seven working stages in fixed order. It returns the
// normalized failure reason, or "" when every stage (and the quality gate)
// passed. Counters on result are filled in as stages produce them.
func (o *Orchestrator) runStages(
	ctx context.Context,
	run *models.WorkflowRun,
	tracker *ProgressTracker,
	state *RunState,
	compensations *CompensationRegistry,
	options models.Options,
	result *models.RunResult,
) string {
	for _, stage := range models.WorkingStages() {
		if reason := deadlineReason(ctx); reason != "" {
			return reason
		}

		run.CurrentStage = stage
		tracker.Advance(stage)

		o.publish(ctx, run.ID, events.StageStarted{
			BaseEvent:  o.baseEvent(events.StageStartedEvent, run.ID, state.Goal),
			Stage:      stage,
			Percentage: stage.ProgressTarget(),
		})

		stageCtx, stageSpan := otelhelper.StartSpan(ctx, o.tracer, "workflow.stage",
			attribute.String(otelhelper.RunIDKey, run.ID),
			attribute.String(otelhelper.StageKey, stage.String()),
		)

		outcome, compensable := o.runner.RunStage(stageCtx, stage, state)
		run.Outcomes = append(run.Outcomes, outcome)

		if !outcome.Success {
			otelhelper.SetError(stageSpan, errors.New(outcome.Error))
		}

		stageSpan.End()

		o.publish(ctx, run.ID, events.StageCompleted{
			BaseEvent: o.baseEvent(events.StageCompletedEvent, run.ID, state.Goal),
			Stage:     stage,
			Success:   outcome.Success,
			Duration:  outcome.Duration,
		})

		if !outcome.Success {
			if reason := deadlineReason(ctx); reason != "" {
				return reason
			}

			return fmt.Sprintf("stage %s failed: %s", stage, outcome.Error)
		}

		compensations.Register(o.compensationFor(run.ID, stage, compensable))
		tracker.StageDone()
		o.collectCounters(stage, state, result)

		// The quality gate applies after the validation stage itself
		// succeeded: a score strictly below the threshold rejects the run,
		// a score equal to it passes.
		if stage == models.StageValidatingQuality && state.Quality.Score < options.QualityThreshold {
			return fmt.Sprintf("quality score %.1f below threshold %.1f",
				state.Quality.Score, options.QualityThreshold)
		}
	}

	return ""
}

// compensationFor wraps a stage's undo. Stages whose implementation is not
// compensable register a no-op so the rollback summary still accounts for
// every completed stage.
func (o *Orchestrator) compensationFor(runID string, stage models.Stage, compensable protocol.Compensable) CompensatingAction {
	action := CompensatingAction{
		Stage: stage,
		Name:  fmt.Sprintf("undo %s", stage),
	}

	if compensable != nil {
		action.Undo = func(ctx context.Context) error {
			return compensable.Undo(ctx, runID, stage)
		}
	}

	return action
}

func (o *Orchestrator) collectCounters(stage models.Stage, state *RunState, result *models.RunResult) {
	switch stage {
	case models.StageCreatingTasks:
		result.TasksGenerated = len(state.Tasks)
	case models.StageExecutingTasks:
		result.AssetsProduced = state.Summary.AssetsProduced
	case models.StageValidatingQuality:
		score := state.Quality.Score
		result.QualityScore = &score
	case models.StagePackagingOutput:
		result.DeliverablesCreated = len(state.Artifact.Deliverables)
	}
}

// resolveGoal loads the goal from persistence when configured, otherwise
// synthesizes a transient goal from the caller-provided IDs.
func (o *Orchestrator) resolveGoal(ctx context.Context, goalID, workspaceID string) (*models.Goal, models.GoalStatus, error) {
	if o.persistence == nil {
		return &models.Goal{
			ID:          goalID,
			WorkspaceID: workspaceID,
			Title:       "Goal " + goalID,
			Status:      models.GoalStatusPending,
		}, models.GoalStatusPending, nil
	}

	goal, err := o.persistence.Goals().GetByID(ctx, goalID)
	if err != nil {
		return nil, "", fmt.Errorf("goal %s could not be loaded: %w", goalID, err)
	}

	return goal, goal.Status, nil
}

// setGoalStatus is best-effort: a storage error is logged, never fatal.
func (o *Orchestrator) setGoalStatus(ctx context.Context, goal *models.Goal, status models.GoalStatus) {
	goal.Status = status

	if o.persistence == nil {
		return
	}

	err := o.persistence.Goals().UpdateStatus(ctx, goal.ID, status)
	if err != nil {
		o.logger.WarnContext(ctx, "Goal status update failed",
			"goal_id", goal.ID, "status", string(status), "error", err)
	}
}

// persistResult is best-effort: the in-memory registry already holds the
// result, storage only extends the history window.
func (o *Orchestrator) persistResult(ctx context.Context, result *models.RunResult) {
	if o.persistence == nil {
		return
	}

	err := o.persistence.RunResults().Save(context.WithoutCancel(ctx), result)
	if err != nil {
		o.logger.WarnContext(ctx, "Run result persistence failed",
			"run_id", result.RunID, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, runID string, event eventbus.Event) {
	if o.eventBus == nil {
		return
	}

	err := o.eventBus.Publish(context.WithoutCancel(ctx), runID, event)
	if err != nil {
		o.logger.WarnContext(ctx, "Event publish failed",
			"run_id", runID, "event_type", string(event.GetType()), "error", err)
	}
}

func (o *Orchestrator) baseEvent(eventType events.EventType, runID string, goal *models.Goal) events.BaseEvent {
	base := events.NewBaseEvent(eventType, runID, goal.ID)
	base.WorkspaceID = goal.WorkspaceID

	return base
}

func deadlineReason(ctx context.Context) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return deadlineExceededReason
	case ctx.Err() != nil:
		return "run cancelled"
	default:
		return ""
	}
}

func terminalStage(status models.RunStatus) models.Stage {
	if status == models.RunStatusRolledBack {
		return models.StageRolledBack
	}

	return models.StageFailed
}
