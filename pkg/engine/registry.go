package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/dukex/goalforge/pkg/models"
)

// historyCapacity bounds the retained run history; the oldest completed run
// is evicted on each insertion past the cap.
const historyCapacity = 100

var (
	// ErrRunNotFound indicates no active or retained run matches the ID.
	ErrRunNotFound = errors.New("workflow run not found")

	// ErrRunStillRunning indicates the run exists but has no result yet.
	ErrRunStillRunning = errors.New("workflow run still in progress")
)

// Statistics aggregates engine-wide counters across runs.
type Statistics struct {
	TotalRuns       int64         `json:"total_runs"`
	SuccessfulRuns  int64         `json:"successful_runs"`
	FailedRuns      int64         `json:"failed_runs"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration"`
	ActiveRunCount  int           `json:"active_run_count"`
}

// RunRegistry maps run IDs to live progress trackers while runs execute and
// retains a bounded history of completed results. Safe for many concurrent
// readers alongside the per-run writer.
type RunRegistry struct {
	mu sync.RWMutex

	active  map[string]*ProgressTracker
	results map[string]*models.RunResult
	finals  map[string]models.ProgressSnapshot
	history []*models.RunResult

	totalRuns      int64
	successfulRuns int64
	failedRuns     int64
	totalDuration  time.Duration
}

func NewRunRegistry() *RunRegistry {
	return &RunRegistry{
		active:  make(map[string]*ProgressTracker),
		results: make(map[string]*models.RunResult),
		finals:  make(map[string]models.ProgressSnapshot),
	}
}

// Register adds a run's tracker to the active set.
func (r *RunRegistry) Register(runID string, tracker *ProgressTracker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[runID] = tracker
}

// Complete removes the run from the active set, retains its result in the
// bounded history and updates the aggregate counters.
func (r *RunRegistry) Complete(runID string, result *models.RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tracker, ok := r.active[runID]; ok {
		r.finals[runID] = tracker.Snapshot()
	}

	delete(r.active, runID)

	r.results[runID] = result
	r.history = append(r.history, result)

	if len(r.history) > historyCapacity {
		evicted := r.history[0]
		r.history = r.history[1:]
		delete(r.results, evicted.RunID)
		delete(r.finals, evicted.RunID)
	}

	r.totalRuns++
	r.totalDuration += result.Elapsed

	if result.Success {
		r.successfulRuns++
	} else {
		r.failedRuns++
	}
}

// GetProgress returns a snapshot for an active run, or the final snapshot
// captured when the run completed.
func (r *RunRegistry) GetProgress(runID string) (models.ProgressSnapshot, error) {
	r.mu.RLock()
	tracker, isActive := r.active[runID]
	final, hasFinal := r.finals[runID]
	r.mu.RUnlock()

	if isActive {
		return tracker.Snapshot(), nil
	}

	if hasFinal {
		return final, nil
	}

	return models.ProgressSnapshot{}, ErrRunNotFound
}

// GetResult returns the terminal result of a completed run.
func (r *RunRegistry) GetResult(runID string) (*models.RunResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if result, ok := r.results[runID]; ok {
		return result, nil
	}

	if _, ok := r.active[runID]; ok {
		return nil, ErrRunStillRunning
	}

	return nil, ErrRunNotFound
}

// History returns a copy of the retained results, oldest first.
func (r *RunRegistry) History() []*models.RunResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := make([]*models.RunResult, len(r.history))
	copy(history, r.history)

	return history
}

// Statistics returns the aggregate counters.
func (r *RunRegistry) Statistics() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Statistics{
		TotalRuns:      r.totalRuns,
		SuccessfulRuns: r.successfulRuns,
		FailedRuns:     r.failedRuns,
		ActiveRunCount: len(r.active),
	}

	if r.totalRuns > 0 {
		stats.SuccessRate = float64(r.successfulRuns) / float64(r.totalRuns)
		stats.AverageDuration = r.totalDuration / time.Duration(r.totalRuns)
	}

	return stats
}
