// Package fallback provides deterministic, non-AI implementations of every
// capability. They guarantee forward progress, at reduced quality, when no
// external backend is configured, and let the entire engine run in tests
// with zero outside dependencies.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/protocol"
	"github.com/google/uuid"
)

const defaultQualityScore = 85.0

// Config tunes the deterministic outputs. The zero value is usable.
type Config struct {
	// QualityScore is the fixed score ValidateQuality reports. Zero means
	// the default of 85.
	QualityScore float64

	// RequirementsPerGoal controls how many generic requirements are
	// generated. Zero means 2.
	RequirementsPerGoal int

	// TasksPerRequirement controls how many generic tasks each requirement
	// expands into. Zero means 2.
	TasksPerRequirement int
}

// Capabilities implements every protocol interface with canned results. It
// records per-run side effects in memory so Undo can discard them.
type Capabilities struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	created map[string][]string // runID -> IDs of records produced
}

func New(config Config, logger *slog.Logger) *Capabilities {
	if config.QualityScore == 0 {
		config.QualityScore = defaultQualityScore
	}

	if config.RequirementsPerGoal == 0 {
		config.RequirementsPerGoal = 2
	}

	if config.TasksPerRequirement == 0 {
		config.TasksPerRequirement = 2
	}

	return &Capabilities{
		config:  config,
		logger:  logger.With("module", "fallback_capabilities"),
		created: make(map[string][]string),
	}
}

// Bundle exposes the instance as a complete capability bundle.
func (c *Capabilities) Bundle() protocol.Capabilities {
	return protocol.Capabilities{
		Analyzer:     c,
		Requirements: c,
		Tasks:        c,
		Monitor:      c,
		Quality:      c,
		Packager:     c,
		Finalizer:    c,
	}
}

func (c *Capabilities) AnalyzeGoal(_ context.Context, goal *models.Goal) (*models.GoalAnalysis, error) {
	summary := goal.Title
	if goal.Description != "" {
		summary = fmt.Sprintf("%s: %s", goal.Title, goal.Description)
	}

	return &models.GoalAnalysis{
		GoalID:     goal.ID,
		Summary:    summary,
		Complexity: estimateComplexity(goal),
		Themes:     []string{"delivery", "validation"},
	}, nil
}

func (c *Capabilities) GenerateRequirements(_ context.Context, analysis *models.GoalAnalysis) ([]*models.Requirement, error) {
	requirements := make([]*models.Requirement, 0, c.config.RequirementsPerGoal)

	for i := range c.config.RequirementsPerGoal {
		requirements = append(requirements, &models.Requirement{
			ID:          uuid.New().String(),
			GoalID:      analysis.GoalID,
			Title:       fmt.Sprintf("Requirement %d for %s", i+1, analysis.Summary),
			Description: "Generated without an analysis backend",
			Priority:    i + 1,
		})
	}

	return requirements, nil
}

func (c *Capabilities) GenerateTasks(_ context.Context, requirement *models.Requirement) ([]*models.Task, error) {
	tasks := make([]*models.Task, 0, c.config.TasksPerRequirement)

	for i := range c.config.TasksPerRequirement {
		tasks = append(tasks, &models.Task{
			ID:            uuid.New().String(),
			RequirementID: requirement.ID,
			GoalID:        requirement.GoalID,
			Title:         fmt.Sprintf("Task %d: %s", i+1, requirement.Title),
			State:         models.TaskStatePending,
		})
	}

	return tasks, nil
}

// MonitorExecution completes every task immediately. The fallback has no
// external task store to poll, so the summary reports full completion with
// one asset per task.
func (c *Capabilities) MonitorExecution(ctx context.Context, tasks []*models.Task, _, _ time.Duration) (*models.ExecutionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, task := range tasks {
		task.State = models.TaskStateCompleted
	}

	return &models.ExecutionSummary{
		TasksTotal:     len(tasks),
		TasksCompleted: len(tasks),
		AssetsProduced: len(tasks),
	}, nil
}

func (c *Capabilities) ValidateQuality(_ context.Context, summary *models.ExecutionSummary) (*models.QualityReport, error) {
	details := []string{
		fmt.Sprintf("%d of %d tasks completed", summary.TasksCompleted, summary.TasksTotal),
	}

	if summary.TasksFailed > 0 {
		details = append(details, fmt.Sprintf("%d tasks failed", summary.TasksFailed))
	}

	return &models.QualityReport{
		Score:   c.config.QualityScore,
		Details: details,
	}, nil
}

func (c *Capabilities) PackageOutput(_ context.Context, summary *models.ExecutionSummary, score float64) (*models.OutputArtifact, error) {
	deliverables := make([]string, 0, summary.TasksCompleted+1)
	for i := range summary.TasksCompleted {
		deliverables = append(deliverables, fmt.Sprintf("asset-%d", i+1))
	}

	deliverables = append(deliverables, "delivery-summary")

	artifact := &models.OutputArtifact{
		ID:           uuid.New().String(),
		GoalID:       summary.GoalID,
		Deliverables: deliverables,
		QualityScore: score,
		PackagedAt:   time.Now().UTC(),
	}

	c.record(summary.RunID, artifact.ID)

	return artifact, nil
}

func (c *Capabilities) Finalize(ctx context.Context, runID string) error {
	c.logger.InfoContext(ctx, "Run finalized", "run_id", runID)

	return nil
}

// Undo discards everything recorded for the run. Calling it again, or for a
// run that produced nothing, is a no-op.
func (c *Capabilities) Undo(ctx context.Context, runID string, stage models.Stage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ids, ok := c.created[runID]; ok {
		c.logger.InfoContext(ctx, "Discarding records for run",
			"run_id", runID, "stage", stage.String(), "records", len(ids))
		delete(c.created, runID)
	}

	return nil
}

func (c *Capabilities) record(runID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.created[runID] = append(c.created[runID], id)
}

func estimateComplexity(goal *models.Goal) string {
	words := len(strings.Fields(goal.Title + " " + goal.Description))

	switch {
	case words > 40:
		return "high"
	case words > 12:
		return "medium"
	default:
		return "low"
	}
}
