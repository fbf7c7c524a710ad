package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/persistence"
)

// RunResultRepository stores each terminal result as <root>/runs/<id>.json.
type RunResultRepository struct {
	root string
}

func NewRunResultRepository(root string) *RunResultRepository {
	return &RunResultRepository{root: root}
}

func (rr *RunResultRepository) runsDir() string {
	return filepath.Join(rr.root, "runs")
}

func (rr *RunResultRepository) runFile(runID string) string {
	return filepath.Join(rr.runsDir(), runID+".json")
}

func (rr *RunResultRepository) Save(_ context.Context, result *models.RunResult) error {
	if err := os.MkdirAll(rr.runsDir(), dirPermissions); err != nil {
		return &persistence.RunResultError{Op: "Save", RunID: result.RunID, Err: err}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return &persistence.RunResultError{Op: "Save", RunID: result.RunID, Err: err}
	}

	if err := os.WriteFile(rr.runFile(result.RunID), data, 0o600); err != nil {
		return &persistence.RunResultError{Op: "Save", RunID: result.RunID, Err: err}
	}

	return nil
}

func (rr *RunResultRepository) GetByRunID(_ context.Context, runID string) (*models.RunResult, error) {
	data, err := os.ReadFile(rr.runFile(runID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &persistence.RunResultError{Op: "GetByRunID", RunID: runID, Err: persistence.ErrRunResultNotFound}
		}

		return nil, &persistence.RunResultError{Op: "GetByRunID", RunID: runID, Err: err}
	}

	var result models.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &persistence.RunResultError{Op: "GetByRunID", RunID: runID, Err: fmt.Errorf("corrupt result file: %w", err)}
	}

	return &result, nil
}

func (rr *RunResultRepository) ListByGoal(ctx context.Context, goalID string) ([]*models.RunResult, error) {
	entries, err := fs.Glob(os.DirFS(rr.runsDir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list run result files: %w", err)
	}

	results := make([]*models.RunResult, 0, len(entries))

	for _, entry := range entries {
		runID := entry[:len(entry)-len(".json")]

		result, err := rr.GetByRunID(ctx, runID)
		if err != nil {
			return nil, err
		}

		if goalID == "" || result.GoalID == goalID {
			results = append(results, result)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].StartedAt.Before(results[j].StartedAt)
	})

	return results, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
