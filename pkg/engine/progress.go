package engine

import (
	"sync"

	"github.com/dukex/goalforge/pkg/models"
)

// ProgressTracker holds the live progress of one run. The owning
// orchestration flow is the only writer; concurrent readers obtain immutable
// snapshot copies. Percentage never decreases within a run and reaches 100
// only on completion.
type ProgressTracker struct {
	mu sync.Mutex

	runID           string
	stage           models.Stage
	percentage      int
	operation       string
	stagesCompleted int
	clock           Clock
}

func NewProgressTracker(runID string, clock Clock) *ProgressTracker {
	return &ProgressTracker{
		runID:     runID,
		stage:     models.StageInitializing,
		operation: models.StageInitializing.Description(),
		clock:     clock,
	}
}

// Advance moves the tracker to the given stage and its pre-assigned target
// percentage. A target below the current percentage is ignored so observed
// progress stays monotonic.
func (t *ProgressTracker) Advance(stage models.Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stage = stage
	t.operation = stage.Description()

	if target := stage.ProgressTarget(); target > t.percentage {
		t.percentage = target
	}
}

// StageDone records the successful completion of the current stage.
func (t *ProgressTracker) StageDone() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stagesCompleted++
}

// Fail marks the run as terminally failed without touching the percentage.
func (t *ProgressTracker) Fail(stage models.Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stage = stage
	t.operation = stage.Description()
}

// Complete moves the tracker to the terminal completed state at 100%.
func (t *ProgressTracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stage = models.StageCompleted
	t.operation = models.StageCompleted.Description()
	t.percentage = models.StageCompleted.ProgressTarget()
}

// Snapshot returns an immutable copy of the current progress.
func (t *ProgressTracker) Snapshot() models.ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return models.ProgressSnapshot{
		RunID:           t.runID,
		Stage:           t.stage,
		Percentage:      t.percentage,
		Operation:       t.operation,
		StagesCompleted: t.stagesCompleted,
		Timestamp:       t.clock.Now(),
	}
}
