package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrGoalNotFound indicates a goal was not found by the given identifier.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrGoalAlreadyExists indicates a goal with the same identifier already exists.
	ErrGoalAlreadyExists = errors.New("goal already exists")

	// ErrRunResultNotFound indicates no stored result matches the run identifier.
	ErrRunResultNotFound = errors.New("run result not found")
)

// GoalError wraps goal-related errors with additional context.
type GoalError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	GoalID string // Goal ID if applicable
	Err    error  // Underlying error
}

func (e *GoalError) Error() string {
	return fmt.Sprintf("%s operation failed for goal %s: %v", e.Op, e.GoalID, e.Err)
}

func (e *GoalError) Unwrap() error {
	return e.Err
}

func (e *GoalError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewGoalError creates a new goal error with context.
func NewGoalError(op, goalID string, err error) *GoalError {
	return &GoalError{
		Op:     op,
		GoalID: goalID,
		Err:    err,
	}
}

// RunResultError wraps run-result errors with additional context.
type RunResultError struct {
	Op    string
	RunID string
	Err   error
}

func (e *RunResultError) Error() string {
	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunResultError) Unwrap() error {
	return e.Err
}

func (e *RunResultError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsGoalNotFound checks if an error indicates a goal was not found.
func IsGoalNotFound(err error) bool {
	return errors.Is(err, ErrGoalNotFound)
}

// IsRunResultNotFound checks if an error indicates a stored run result was not found.
func IsRunResultNotFound(err error) bool {
	return errors.Is(err, ErrRunResultNotFound)
}
