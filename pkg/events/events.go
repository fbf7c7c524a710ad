// Package events defines event types for workflow run lifecycle
// notifications.
package events

import (
	"time"

	"github.com/dukex/goalforge/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every run lifecycle event.
const Topic = "goalforge.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunStartedEvent     EventType = "run.started"
	StageStartedEvent   EventType = "run.stage.started"
	StageCompletedEvent EventType = "run.stage.completed"
	RunCompletedEvent   EventType = "run.completed"
	RunFailedEvent      EventType = "run.failed"
	RunRolledBackEvent  EventType = "run.rolled_back"
)

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id"`
	GoalID      string    `json:"goal_id"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
}

// NewBaseEvent builds the shared envelope for a run lifecycle event.
func NewBaseEvent(eventType EventType, runID, goalID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		GoalID:    goalID,
	}
}

type RunStarted struct {
	BaseEvent

	Timeout          time.Duration `json:"timeout"`
	QualityThreshold float64       `json:"quality_threshold"`
	RollbackEnabled  bool          `json:"rollback_enabled"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type StageStarted struct {
	BaseEvent

	Stage      models.Stage `json:"stage"`
	Percentage int          `json:"percentage"`
}

func (e StageStarted) GetType() EventType {
	return StageStartedEvent
}

type StageCompleted struct {
	BaseEvent

	Stage    models.Stage  `json:"stage"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
}

func (e StageCompleted) GetType() EventType {
	return StageCompletedEvent
}

type RunCompleted struct {
	BaseEvent

	Duration     time.Duration `json:"duration"`
	QualityScore float64       `json:"quality_score"`
	Deliverables int           `json:"deliverables"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	Stage    models.Stage  `json:"stage"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunRolledBack struct {
	BaseEvent

	Attempted int  `json:"attempted"`
	Succeeded int  `json:"succeeded"`
	Complete  bool `json:"complete"`
}

func (e RunRolledBack) GetType() EventType {
	return RunRolledBackEvent
}
