package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dukex/goalforge/pkg/capabilities/fallback"
	"github.com/dukex/goalforge/pkg/eventbus"
	"github.com/dukex/goalforge/pkg/events"
	"github.com/dukex/goalforge/pkg/log"
	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/persistence/file"
	"github.com/dukex/goalforge/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
	err    error
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return p.err
}

func (p *capturingPublisher) ofType(eventType events.EventType) []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matched []eventbus.Event

	for _, event := range p.events {
		if event.GetType() == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

func newTestOrchestrator(t *testing.T, mutate func(*Config)) *Orchestrator {
	t.Helper()

	cfg := Config{
		Fallback: testFallback(t).Bundle(),
		Logger:   log.Discard(),
	}

	if mutate != nil {
		mutate(&cfg)
	}

	orchestrator, err := NewOrchestrator(cfg)
	require.NoError(t, err)

	return orchestrator
}

func TestNewOrchestratorRequiresCompleteFallback(t *testing.T) {
	_, err := NewOrchestrator(Config{
		Fallback: protocol.Capabilities{Analyzer: &stubAnalyzer{}},
		Logger:   log.Discard(),
	})
	assert.Error(t, err)
}

func TestExecuteCompletesWithFallbackOnly(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil)

	result := orchestrator.Execute(context.Background(), "goal-1", "ws-1", nil)

	assert.True(t, result.Success)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Empty(t, result.Error)
	assert.GreaterOrEqual(t, result.TasksGenerated, 1)
	assert.GreaterOrEqual(t, result.DeliverablesCreated, 1)
	require.NotNil(t, result.QualityScore)
	assert.InDelta(t, 85.0, *result.QualityScore, 0.0001)
	assert.False(t, result.RollbackAttempted)
	assert.Len(t, result.Outcomes, 7)

	for _, outcome := range result.Outcomes {
		assert.True(t, outcome.Success, "stage %s", outcome.Stage)
	}

	snapshot, err := orchestrator.GetWorkflowProgress(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, 100, snapshot.Percentage)
	assert.Equal(t, models.StageCompleted, snapshot.Stage)
	assert.Equal(t, 7, snapshot.StagesCompleted)
}

func TestExecuteStageFailureRollsBackCompletedStages(t *testing.T) {
	publisher := &capturingPublisher{}

	fb := testFallback(t).Bundle()
	fb.Tasks = &stubTaskGenerator{err: errors.New("generator offline")}

	orchestrator := newTestOrchestrator(t, func(cfg *Config) {
		cfg.Fallback = fb
		cfg.EventBus = publisher
	})

	result := orchestrator.Execute(context.Background(), "goal-1", "ws-1", nil)

	assert.False(t, result.Success)
	assert.Equal(t, models.RunStatusRolledBack, result.Status)
	assert.Contains(t, result.Error, "stage creating_tasks failed")
	assert.True(t, result.RollbackAttempted)
	assert.True(t, result.RollbackSucceeded)
	assert.Len(t, result.Outcomes, 3)

	// One compensation per stage completed before the failure.
	rolledBack := publisher.ofType(events.RunRolledBackEvent)
	require.Len(t, rolledBack, 1)

	event, ok := rolledBack[0].(events.RunRolledBack)
	require.True(t, ok)
	assert.Equal(t, 2, event.Attempted)
	assert.Equal(t, 2, event.Succeeded)
	assert.True(t, event.Complete)

	snapshot, err := orchestrator.GetWorkflowProgress(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.StageRolledBack, snapshot.Stage)
	assert.Equal(t, 40, snapshot.Percentage)
	assert.Equal(t, 2, snapshot.StagesCompleted)
}

func TestExecuteQualityRejectionRollsBack(t *testing.T) {
	publisher := &capturingPublisher{}

	lowQuality := fallback.New(fallback.Config{QualityScore: 50}, log.Discard())

	orchestrator := newTestOrchestrator(t, func(cfg *Config) {
		cfg.Fallback = lowQuality.Bundle()
		cfg.EventBus = publisher
	})

	result := orchestrator.Execute(context.Background(), "goal-1", "ws-1", nil)

	assert.False(t, result.Success)
	assert.Equal(t, models.RunStatusRolledBack, result.Status)
	assert.Contains(t, result.Error, "quality score 50.0 below threshold 70.0")
	require.NotNil(t, result.QualityScore)
	assert.InDelta(t, 50.0, *result.QualityScore, 0.0001)
	assert.True(t, result.RollbackAttempted)
	assert.True(t, result.RollbackSucceeded)

	// The validation stage itself completed, so its compensation runs too.
	rolledBack := publisher.ofType(events.RunRolledBackEvent)
	require.Len(t, rolledBack, 1)

	event, ok := rolledBack[0].(events.RunRolledBack)
	require.True(t, ok)
	assert.Equal(t, 5, event.Attempted)
	assert.Equal(t, 5, event.Succeeded)
}

func TestExecuteQualityGateAcceptsEqualScore(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil)

	opts := models.DefaultOptions()
	opts.QualityThreshold = 85

	result := orchestrator.Execute(context.Background(), "goal-1", "ws-1", &opts)

	assert.True(t, result.Success)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
}

func TestExecuteRollbackDisabled(t *testing.T) {
	fb := testFallback(t).Bundle()
	fb.Tasks = &stubTaskGenerator{err: errors.New("generator offline")}

	orchestrator := newTestOrchestrator(t, func(cfg *Config) {
		cfg.Fallback = fb
	})

	opts := models.DefaultOptions()
	opts.EnableRollback = false

	result := orchestrator.Execute(context.Background(), "goal-1", "ws-1", &opts)

	assert.False(t, result.Success)
	assert.Equal(t, models.RunStatusFailed, result.Status)
	assert.False(t, result.RollbackAttempted)
	assert.False(t, result.RollbackSucceeded)
}

func TestExecuteFirstStageFailureYieldsEmptyRollback(t *testing.T) {
	publisher := &capturingPublisher{}

	fb := testFallback(t).Bundle()
	fb.Analyzer = &stubAnalyzer{err: errors.New("no analyzer available")}

	orchestrator := newTestOrchestrator(t, func(cfg *Config) {
		cfg.Fallback = fb
		cfg.EventBus = publisher
	})

	result := orchestrator.Execute(context.Background(), "goal-1", "ws-1", nil)

	assert.False(t, result.Success)
	assert.Equal(t, models.RunStatusRolledBack, result.Status)
	assert.True(t, result.RollbackAttempted)
	assert.True(t, result.RollbackSucceeded)

	rolledBack := publisher.ofType(events.RunRolledBackEvent)
	require.Len(t, rolledBack, 1)

	event, ok := rolledBack[0].(events.RunRolledBack)
	require.True(t, ok)
	assert.Equal(t, 0, event.Attempted)
	assert.Equal(t, 0, event.Succeeded)
	assert.True(t, event.Complete)
}

func TestExecuteDeadlineExceeded(t *testing.T) {
	fb := testFallback(t).Bundle()
	fb.Monitor = hangingMonitor{}

	orchestrator := newTestOrchestrator(t, func(cfg *Config) {
		cfg.Fallback = fb
	})

	opts := models.DefaultOptions()
	opts.TimeoutMinutes = 0.01 // 600ms

	started := time.Now()
	result := orchestrator.Execute(context.Background(), "goal-1", "ws-1", &opts)
	elapsed := time.Since(started)

	assert.False(t, result.Success)
	assert.Equal(t, "deadline exceeded", result.Error)
	assert.True(t, result.RollbackAttempted)
	assert.True(t, result.RollbackSucceeded)
	assert.Less(t, elapsed, 10*time.Second)
}

func TestExecuteRecoversPanickingStage(t *testing.T) {
	fb := testFallback(t).Bundle()
	fb.Analyzer = &stubAnalyzer{panicMsg: "unexpected state"}

	orchestrator := newTestOrchestrator(t, func(cfg *Config) {
		cfg.Fallback = fb
	})

	var result *models.RunResult

	require.NotPanics(t, func() {
		result = orchestrator.Execute(context.Background(), "goal-1", "ws-1", nil)
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "stage fault")
}

func TestExecuteInvalidOptions(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil)

	opts := models.Options{TimeoutMinutes: -5, QualityThreshold: 70}

	result := orchestrator.Execute(context.Background(), "goal-1", "ws-1", &opts)

	assert.False(t, result.Success)
	assert.Equal(t, models.RunStatusFailed, result.Status)
	assert.Contains(t, result.Error, "invalid run options")
	assert.Empty(t, result.Outcomes)
}

func TestExecuteToleratesFailingEventBus(t *testing.T) {
	publisher := &capturingPublisher{err: errors.New("broker unreachable")}

	orchestrator := newTestOrchestrator(t, func(cfg *Config) {
		cfg.EventBus = publisher
	})

	result := orchestrator.Execute(context.Background(), "goal-1", "ws-1", nil)

	assert.True(t, result.Success)
}

func TestExecutePublishesLifecycleEvents(t *testing.T) {
	publisher := &capturingPublisher{}

	orchestrator := newTestOrchestrator(t, func(cfg *Config) {
		cfg.EventBus = publisher
	})

	result := orchestrator.Execute(context.Background(), "goal-1", "ws-1", nil)
	require.True(t, result.Success)

	assert.Len(t, publisher.ofType(events.RunStartedEvent), 1)
	assert.Len(t, publisher.ofType(events.StageStartedEvent), 7)
	assert.Len(t, publisher.ofType(events.StageCompletedEvent), 7)
	assert.Len(t, publisher.ofType(events.RunCompletedEvent), 1)
	assert.Empty(t, publisher.ofType(events.RunFailedEvent))
}

func TestExecuteResetsGoalStatusOnRollback(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	goal := &models.Goal{
		ID:          "goal-1",
		WorkspaceID: "ws-1",
		Title:       "Persisted goal",
		Status:      models.GoalStatusPending,
	}
	require.NoError(t, store.Goals().Create(ctx, goal))

	fb := testFallback(t).Bundle()
	fb.Tasks = &stubTaskGenerator{err: errors.New("generator offline")}

	orchestrator := newTestOrchestrator(t, func(cfg *Config) {
		cfg.Fallback = fb
		cfg.Persistence = store
	})

	result := orchestrator.Execute(ctx, "goal-1", "ws-1", nil)
	assert.False(t, result.Success)

	// The goal returns to its pre-run status after compensation.
	loaded, err := store.Goals().GetByID(ctx, "goal-1")
	require.NoError(t, err)
	assert.Equal(t, models.GoalStatusPending, loaded.Status)

	// The terminal result is persisted alongside.
	saved, err := store.RunResults().GetByRunID(ctx, result.RunID)
	require.NoError(t, err)
	assert.False(t, saved.Success)
}

func TestExecuteMarksGoalCompleted(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	goal := &models.Goal{
		ID:          "goal-1",
		WorkspaceID: "ws-1",
		Title:       "Persisted goal",
		Status:      models.GoalStatusPending,
	}
	require.NoError(t, store.Goals().Create(ctx, goal))

	orchestrator := newTestOrchestrator(t, func(cfg *Config) {
		cfg.Persistence = store
	})

	result := orchestrator.Execute(ctx, "goal-1", "ws-1", nil)
	require.True(t, result.Success)

	loaded, err := store.Goals().GetByID(ctx, "goal-1")
	require.NoError(t, err)
	assert.Equal(t, models.GoalStatusCompleted, loaded.Status)
}

func TestExecuteUnknownGoalFails(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	orchestrator := newTestOrchestrator(t, func(cfg *Config) {
		cfg.Persistence = store
	})

	result := orchestrator.Execute(context.Background(), "missing", "ws-1", nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "could not be loaded")
}

func TestStartWorkflowRunsInBackground(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil)

	runID, err := orchestrator.StartWorkflow(context.Background(), "goal-1", "ws-1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	// Progress is queryable immediately after the ID is handed out.
	_, err = orchestrator.GetWorkflowProgress(runID)
	require.NoError(t, err)

	var result *models.RunResult

	require.Eventually(t, func() bool {
		result, err = orchestrator.GetWorkflowResult(runID)

		return err == nil
	}, 10*time.Second, 10*time.Millisecond)

	assert.True(t, result.Success)
}

func TestStartWorkflowRejectsInvalidOptions(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil)

	opts := models.Options{TimeoutMinutes: 0, QualityThreshold: 200}

	_, err := orchestrator.StartWorkflow(context.Background(), "goal-1", "ws-1", &opts)
	assert.Error(t, err)
}

func TestGetWorkflowResultStates(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil)

	_, err := orchestrator.GetWorkflowResult("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = orchestrator.GetWorkflowProgress("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestConcurrentExecutions(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil)

	const runs = 8

	var wg sync.WaitGroup

	results := make([]*models.RunResult, runs)

	for i := range runs {
		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i] = orchestrator.Execute(context.Background(),
				fmt.Sprintf("goal-%d", i), "ws-1", nil)
		}()
	}

	wg.Wait()

	seen := make(map[string]bool, runs)

	for _, result := range results {
		require.NotNil(t, result)
		assert.True(t, result.Success)
		assert.False(t, seen[result.RunID])
		seen[result.RunID] = true
	}

	stats := orchestrator.GetEngineStatistics()
	assert.Equal(t, int64(runs), stats.TotalRuns)
	assert.Equal(t, int64(runs), stats.SuccessfulRuns)
	assert.InDelta(t, 1.0, stats.SuccessRate, 0.0001)
	assert.Zero(t, stats.ActiveRunCount)
}

func TestStatisticsMixedOutcomes(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil)

	success := orchestrator.Execute(context.Background(), "goal-1", "ws-1", nil)
	require.True(t, success.Success)

	failing := testFallback(t).Bundle()
	failing.Analyzer = &stubAnalyzer{err: errors.New("offline")}

	failingOrchestrator := newTestOrchestrator(t, func(cfg *Config) {
		cfg.Fallback = failing
	})

	failed := failingOrchestrator.Execute(context.Background(), "goal-2", "ws-1", nil)
	require.False(t, failed.Success)

	stats := orchestrator.GetEngineStatistics()
	assert.Equal(t, int64(1), stats.TotalRuns)
	assert.Equal(t, int64(1), stats.SuccessfulRuns)

	stats = failingOrchestrator.GetEngineStatistics()
	assert.Equal(t, int64(1), stats.TotalRuns)
	assert.Equal(t, int64(1), stats.FailedRuns)
}

func TestHistoryReturnsCompletedRuns(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil)

	first := orchestrator.Execute(context.Background(), "goal-1", "ws-1", nil)
	second := orchestrator.Execute(context.Background(), "goal-2", "ws-1", nil)

	history := orchestrator.History()
	require.Len(t, history, 2)
	assert.Equal(t, first.RunID, history[0].RunID)
	assert.Equal(t, second.RunID, history[1].RunID)
}
