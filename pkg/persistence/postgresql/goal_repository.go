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
	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// GoalRepository handles goal rows.
type GoalRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewGoalRepository(db *sql.DB, logger *slog.Logger) *GoalRepository {
	return &GoalRepository{db: db, logger: logger}
}

func (gr *GoalRepository) Create(ctx context.Context, goal *models.Goal) error {
	metadata, err := json.Marshal(goal.Metadata)
	if err != nil {
		return persistence.NewGoalError("Create", goal.ID, err)
	}

	now := time.Now().UTC()
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = now
	}

	goal.UpdatedAt = now

	_, err = gr.db.ExecContext(ctx, `
		INSERT INTO goals (id, workspace_id, title, description, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		goal.ID, goal.WorkspaceID, goal.Title, goal.Description, string(goal.Status), metadata, goal.CreatedAt, goal.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return persistence.NewGoalError("Create", goal.ID, persistence.ErrGoalAlreadyExists)
		}

		return persistence.NewGoalError("Create", goal.ID, err)
	}

	return nil
}

func (gr *GoalRepository) GetByID(ctx context.Context, id string) (*models.Goal, error) {
	row := gr.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, title, description, status, metadata, created_at, updated_at
		FROM goals WHERE id = $1`, id)

	goal, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewGoalError("GetByID", id, persistence.ErrGoalNotFound)
		}

		return nil, persistence.NewGoalError("GetByID", id, err)
	}

	return goal, nil
}

func (gr *GoalRepository) List(ctx context.Context, workspaceID string) ([]*models.Goal, error) {
	query := `
		SELECT id, workspace_id, title, description, status, metadata, created_at, updated_at
		FROM goals`

	var (
		rows *sql.Rows
		err  error
	)

	if workspaceID != "" {
		rows, err = gr.db.QueryContext(ctx, query+` WHERE workspace_id = $1 ORDER BY created_at`, workspaceID)
	} else {
		rows, err = gr.db.QueryContext(ctx, query+` ORDER BY created_at`)
	}

	if err != nil {
		return nil, persistence.NewGoalError("List", "", err)
	}
	defer rows.Close()

	goals := make([]*models.Goal, 0)

	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, persistence.NewGoalError("List", "", err)
		}

		goals = append(goals, goal)
	}

	return goals, rows.Err()
}

func (gr *GoalRepository) UpdateStatus(ctx context.Context, id string, status models.GoalStatus) error {
	result, err := gr.db.ExecContext(ctx,
		`UPDATE goals SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return persistence.NewGoalError("UpdateStatus", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewGoalError("UpdateStatus", id, err)
	}

	if affected == 0 {
		return persistence.NewGoalError("UpdateStatus", id, persistence.ErrGoalNotFound)
	}

	return nil
}

func (gr *GoalRepository) Delete(ctx context.Context, id string) error {
	result, err := gr.db.ExecContext(ctx, `DELETE FROM goals WHERE id = $1`, id)
	if err != nil {
		return persistence.NewGoalError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewGoalError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewGoalError("Delete", id, persistence.ErrGoalNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (*models.Goal, error) {
	var (
		goal     models.Goal
		status   string
		metadata []byte
	)

	err := row.Scan(&goal.ID, &goal.WorkspaceID, &goal.Title, &goal.Description,
		&status, &metadata, &goal.CreatedAt, &goal.UpdatedAt)
	if err != nil {
		return nil, err
	}

	goal.Status = models.GoalStatus(status)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &goal.Metadata); err != nil {
			return nil, err
		}
	}

	return &goal, nil
}
