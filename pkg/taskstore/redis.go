package taskstore

import (
	"context"
	"fmt"

	"github.com/dukex/goalforge/pkg/models"
	redis "github.com/redis/go-redis/v9"
)

const boardKeyPrefix = "goalforge:tasks:"

// RedisStore is a TaskStore backed by a redis hash per run, so external
// workers in other processes can complete tasks.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func boardKey(runID string) string {
	return boardKeyPrefix + runID
}

func (s *RedisStore) Enqueue(ctx context.Context, runID string, tasks []*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	fields := make([]any, 0, len(tasks)*2)
	for _, task := range tasks {
		fields = append(fields, task.ID, string(models.TaskStatePending))
	}

	err := s.client.HSet(ctx, boardKey(runID), fields...).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue tasks for run %s: %w", runID, err)
	}

	return nil
}

func (s *RedisStore) Progress(ctx context.Context, runID string) (Progress, error) {
	board, err := s.client.HGetAll(ctx, boardKey(runID)).Result()
	if err != nil {
		return Progress{}, fmt.Errorf("failed to read task board for run %s: %w", runID, err)
	}

	if len(board) == 0 {
		return Progress{}, ErrRunNotFound
	}

	progress := Progress{Total: len(board)}

	for _, state := range board {
		switch models.TaskState(state) {
		case models.TaskStateCompleted:
			progress.Completed++
		case models.TaskStateFailed:
			progress.Failed++
		}
	}

	return progress, nil
}

func (s *RedisStore) CompleteTask(ctx context.Context, runID, taskID string) error {
	return s.setState(ctx, runID, taskID, models.TaskStateCompleted)
}

func (s *RedisStore) FailTask(ctx context.Context, runID, taskID string) error {
	return s.setState(ctx, runID, taskID, models.TaskStateFailed)
}

func (s *RedisStore) Clear(ctx context.Context, runID string) error {
	err := s.client.Del(ctx, boardKey(runID)).Err()
	if err != nil {
		return fmt.Errorf("failed to clear task board for run %s: %w", runID, err)
	}

	return nil
}

func (s *RedisStore) setState(ctx context.Context, runID, taskID string, state models.TaskState) error {
	exists, err := s.client.HExists(ctx, boardKey(runID), taskID).Result()
	if err != nil {
		return fmt.Errorf("failed to check task %s for run %s: %w", taskID, runID, err)
	}

	if !exists {
		return ErrRunNotFound
	}

	err = s.client.HSet(ctx, boardKey(runID), taskID, string(state)).Err()
	if err != nil {
		return fmt.Errorf("failed to update task %s for run %s: %w", taskID, runID, err)
	}

	return nil
}
