package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/dukex/goalforge/pkg/log"
	"github.com/dukex/goalforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStarter struct {
	mu    sync.Mutex
	goals []string
}

func (r *recordingStarter) StartWorkflow(_ context.Context, goalID, _ string, _ *models.Options) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.goals = append(r.goals, goalID)

	return "run-" + goalID, nil
}

func validSchedule() Schedule {
	return Schedule{
		ID:          "nightly",
		CronExpr:    "0 2 * * *",
		GoalID:      "goal-1",
		WorkspaceID: "ws-1",
	}
}

func TestScheduleValidate(t *testing.T) {
	assert.NoError(t, validSchedule().Validate())

	missing := validSchedule()
	missing.ID = ""
	assert.Error(t, missing.Validate())

	noGoal := validSchedule()
	noGoal.GoalID = ""
	assert.Error(t, noGoal.Validate())

	badCron := validSchedule()
	badCron.CronExpr = "not a cron"
	assert.Error(t, badCron.Validate())
}

func TestSchedulerAddRemove(t *testing.T) {
	scheduler := NewScheduler(&recordingStarter{}, log.Discard())

	require.NoError(t, scheduler.Add(validSchedule()))
	assert.Equal(t, 1, scheduler.Len())

	err := scheduler.Add(validSchedule())
	assert.ErrorContains(t, err, "already registered")

	scheduler.Remove("nightly")
	assert.Equal(t, 0, scheduler.Len())

	// Removing an unknown schedule is a no-op.
	scheduler.Remove("missing")
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	scheduler := NewScheduler(&recordingStarter{}, log.Discard())

	bad := validSchedule()
	bad.CronExpr = "* * *"

	assert.Error(t, scheduler.Add(bad))
	assert.Equal(t, 0, scheduler.Len())
}

func TestSchedulerFireStartsRun(t *testing.T) {
	starter := &recordingStarter{}
	scheduler := NewScheduler(starter, log.Discard())

	scheduler.fire(validSchedule())

	starter.mu.Lock()
	defer starter.mu.Unlock()
	assert.Equal(t, []string{"goal-1"}, starter.goals)
}

func TestSchedulerStartStop(t *testing.T) {
	scheduler := NewScheduler(&recordingStarter{}, log.Discard())

	require.NoError(t, scheduler.Add(validSchedule()))

	scheduler.Start()
	scheduler.Start() // idempotent

	require.NoError(t, scheduler.Stop(context.Background()))
	require.NoError(t, scheduler.Stop(context.Background())) // idempotent
}
