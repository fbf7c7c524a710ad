package taskstore

import (
	"context"
	"sync"

	"github.com/dukex/goalforge/pkg/models"
)

// MemoryStore is an in-process TaskStore for tests and single-binary runs.
type MemoryStore struct {
	mu     sync.RWMutex
	boards map[string]map[string]models.TaskState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		boards: make(map[string]map[string]models.TaskState),
	}
}

func (s *MemoryStore) Enqueue(_ context.Context, runID string, tasks []*models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, ok := s.boards[runID]
	if !ok {
		board = make(map[string]models.TaskState)
		s.boards[runID] = board
	}

	for _, task := range tasks {
		board[task.ID] = models.TaskStatePending
	}

	return nil
}

func (s *MemoryStore) Progress(_ context.Context, runID string) (Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	board, ok := s.boards[runID]
	if !ok {
		return Progress{}, ErrRunNotFound
	}

	progress := Progress{Total: len(board)}

	for _, state := range board {
		switch state {
		case models.TaskStateCompleted:
			progress.Completed++
		case models.TaskStateFailed:
			progress.Failed++
		}
	}

	return progress, nil
}

func (s *MemoryStore) CompleteTask(_ context.Context, runID, taskID string) error {
	return s.setState(runID, taskID, models.TaskStateCompleted)
}

func (s *MemoryStore) FailTask(_ context.Context, runID, taskID string) error {
	return s.setState(runID, taskID, models.TaskStateFailed)
}

func (s *MemoryStore) Clear(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.boards, runID)

	return nil
}

func (s *MemoryStore) setState(runID, taskID string, state models.TaskState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, ok := s.boards[runID]
	if !ok {
		return ErrRunNotFound
	}

	board[taskID] = state

	return nil
}
