package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/persistence"
)

// RunResultRepository handles run result rows.
type RunResultRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRunResultRepository(db *sql.DB, logger *slog.Logger) *RunResultRepository {
	return &RunResultRepository{db: db, logger: logger}
}

func (rr *RunResultRepository) Save(ctx context.Context, result *models.RunResult) error {
	outcomes, err := json.Marshal(result.Outcomes)
	if err != nil {
		return &persistence.RunResultError{Op: "Save", RunID: result.RunID, Err: err}
	}

	_, err = rr.db.ExecContext(ctx, `
		INSERT INTO run_results (
			run_id, goal_id, workspace_id, success, status, elapsed_ms,
			tasks_generated, assets_produced, deliverables_created,
			quality_score, error, rollback_attempted, rollback_succeeded,
			outcomes, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (run_id) DO UPDATE SET
			success = EXCLUDED.success,
			status = EXCLUDED.status,
			elapsed_ms = EXCLUDED.elapsed_ms,
			quality_score = EXCLUDED.quality_score,
			error = EXCLUDED.error,
			rollback_attempted = EXCLUDED.rollback_attempted,
			rollback_succeeded = EXCLUDED.rollback_succeeded,
			outcomes = EXCLUDED.outcomes,
			finished_at = EXCLUDED.finished_at`,
		result.RunID, result.GoalID, result.WorkspaceID, result.Success, string(result.Status),
		result.Elapsed.Milliseconds(), result.TasksGenerated, result.AssetsProduced,
		result.DeliverablesCreated, result.QualityScore, result.Error,
		result.RollbackAttempted, result.RollbackSucceeded, outcomes,
		result.StartedAt, result.FinishedAt,
	)
	if err != nil {
		return &persistence.RunResultError{Op: "Save", RunID: result.RunID, Err: err}
	}

	return nil
}

func (rr *RunResultRepository) GetByRunID(ctx context.Context, runID string) (*models.RunResult, error) {
	row := rr.db.QueryRowContext(ctx, selectRunResult+` WHERE run_id = $1`, runID)

	result, err := scanRunResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.RunResultError{Op: "GetByRunID", RunID: runID, Err: persistence.ErrRunResultNotFound}
		}

		return nil, &persistence.RunResultError{Op: "GetByRunID", RunID: runID, Err: err}
	}

	return result, nil
}

func (rr *RunResultRepository) ListByGoal(ctx context.Context, goalID string) ([]*models.RunResult, error) {
	rows, err := rr.db.QueryContext(ctx, selectRunResult+` WHERE goal_id = $1 ORDER BY started_at`, goalID)
	if err != nil {
		return nil, &persistence.RunResultError{Op: "ListByGoal", RunID: "", Err: err}
	}
	defer rows.Close()

	results := make([]*models.RunResult, 0)

	for rows.Next() {
		result, err := scanRunResult(rows)
		if err != nil {
			return nil, &persistence.RunResultError{Op: "ListByGoal", RunID: "", Err: err}
		}

		results = append(results, result)
	}

	return results, rows.Err()
}

const selectRunResult = `
	SELECT run_id, goal_id, workspace_id, success, status, elapsed_ms,
		tasks_generated, assets_produced, deliverables_created,
		quality_score, error, rollback_attempted, rollback_succeeded,
		outcomes, started_at, finished_at
	FROM run_results`

func scanRunResult(row rowScanner) (*models.RunResult, error) {
	var (
		result    models.RunResult
		status    string
		elapsedMs int64
		outcomes  []byte
	)

	err := row.Scan(&result.RunID, &result.GoalID, &result.WorkspaceID, &result.Success,
		&status, &elapsedMs, &result.TasksGenerated, &result.AssetsProduced,
		&result.DeliverablesCreated, &result.QualityScore, &result.Error,
		&result.RollbackAttempted, &result.RollbackSucceeded, &outcomes,
		&result.StartedAt, &result.FinishedAt)
	if err != nil {
		return nil, err
	}

	result.Status = models.RunStatus(status)
	result.Elapsed = time.Duration(elapsedMs) * time.Millisecond

	if len(outcomes) > 0 {
		if err := json.Unmarshal(outcomes, &result.Outcomes); err != nil {
			return nil, err
		}
	}

	return &result, nil
}
