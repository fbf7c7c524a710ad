// Package scheduler starts workflow runs on cron schedules. Each schedule
// binds one goal to a cron expression; overlapping fires are skipped so a
// slow run never stacks up behind itself.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/goalforge/pkg/models"
	"github.com/robfig/cron/v3"
)

// RunStarter is the subset of the run service the scheduler needs.
type RunStarter interface {
	StartWorkflow(ctx context.Context, goalID, workspaceID string, opts *models.Options) (string, error)
}

// Schedule binds a goal to a cron expression.
type Schedule struct {
	ID          string
	CronExpr    string
	GoalID      string
	WorkspaceID string
	Options     *models.Options
}

// Validate checks the schedule's fields and cron expression.
func (s Schedule) Validate() error {
	if s.ID == "" {
		return errors.New("schedule ID is required")
	}

	if s.GoalID == "" {
		return errors.New("schedule goal ID is required")
	}

	if s.WorkspaceID == "" {
		return errors.New("schedule workspace ID is required")
	}

	if s.CronExpr == "" {
		return errors.New("schedule cron expression is required")
	}

	if _, err := cron.ParseStandard(s.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// Scheduler owns the cron runner and the registered schedules.
type Scheduler struct {
	starter RunStarter
	logger  *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	started bool
}

func NewScheduler(starter RunStarter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		starter: starter,
		logger:  logger.With("module", "scheduler"),
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers a schedule. The binding survives Start/Stop cycles.
func (s *Scheduler) Add(schedule Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[schedule.ID]; exists {
		return fmt.Errorf("schedule '%s' already registered", schedule.ID)
	}

	entryID, err := s.cron.AddFunc(schedule.CronExpr, func() {
		s.fire(schedule)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job for schedule %s: %w", schedule.ID, err)
	}

	s.entries[schedule.ID] = entryID

	s.logger.Info("Schedule registered",
		"schedule_id", schedule.ID, "goal_id", schedule.GoalID, "cron", schedule.CronExpr)

	return nil
}

// Remove drops a schedule by ID.
func (s *Scheduler) Remove(scheduleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[scheduleID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, scheduleID)
	}
}

// Len returns the number of registered schedules.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	s.cron.Start()
	s.started = true

	s.logger.Info("Scheduler started", "schedules", len(s.entries))
}

// Stop halts the cron runner and waits for in-flight fires to hand off.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()

		return nil
	}

	stopCtx := s.cron.Stop()
	s.started = false
	s.mu.Unlock()

	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) fire(schedule Schedule) {
	runID, err := s.starter.StartWorkflow(context.Background(),
		schedule.GoalID, schedule.WorkspaceID, schedule.Options)
	if err != nil {
		s.logger.Error("Scheduled run failed to start",
			"schedule_id", schedule.ID, "goal_id", schedule.GoalID, "error", err)

		return
	}

	s.logger.Info("Scheduled run started",
		"schedule_id", schedule.ID, "goal_id", schedule.GoalID, "run_id", runID)
}
