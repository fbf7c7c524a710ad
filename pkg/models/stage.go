// Package models defines the core domain models for staged goal delivery.
package models

import "encoding/json"

// Stage is one ordered phase of a workflow run. Stages execute in strictly
// increasing order for a given run; no stage is skipped or repeated.
type Stage int

const (
	StageInitializing Stage = iota
	StageAnalyzingGoal
	StageGeneratingRequirements
	StageCreatingTasks
	StageExecutingTasks
	StageValidatingQuality
	StagePackagingOutput
	StageFinalizing
	StageCompleted

	// Terminal error states.
	StageFailed
	StageRolledBack
)

var stageNames = map[Stage]string{
	StageInitializing:           "initializing",
	StageAnalyzingGoal:          "analyzing_goal",
	StageGeneratingRequirements: "generating_requirements",
	StageCreatingTasks:          "creating_tasks",
	StageExecutingTasks:         "executing_tasks",
	StageValidatingQuality:      "validating_quality",
	StagePackagingOutput:        "packaging_output",
	StageFinalizing:             "finalizing",
	StageCompleted:              "completed",
	StageFailed:                 "failed",
	StageRolledBack:             "rolled_back",
}

func (s Stage) String() string {
	name, ok := stageNames[s]
	if !ok {
		return "unknown"
	}

	return name
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	for stage, n := range stageNames {
		if n == name {
			*s = stage

			return nil
		}
	}

	*s = StageInitializing

	return nil
}

// WorkingStages returns the seven stages a run executes between
// initialization and completion, in pipeline order.
func WorkingStages() []Stage {
	return []Stage{
		StageAnalyzingGoal,
		StageGeneratingRequirements,
		StageCreatingTasks,
		StageExecutingTasks,
		StageValidatingQuality,
		StagePackagingOutput,
		StageFinalizing,
	}
}

// Progress percentages are pre-assigned per stage, front-loaded toward the
// expensive execution-monitoring stage.
var stagePercentages = map[Stage]int{
	StageInitializing:           0,
	StageAnalyzingGoal:          10,
	StageGeneratingRequirements: 25,
	StageCreatingTasks:          40,
	StageExecutingTasks:         60,
	StageValidatingQuality:      75,
	StagePackagingOutput:        90,
	StageFinalizing:             95,
	StageCompleted:              100,
}

// ProgressTarget returns the percentage reported when the stage begins.
func (s Stage) ProgressTarget() int {
	return stagePercentages[s]
}

// Description returns the human-readable operation reported while the
// stage runs.
var stageDescriptions = map[Stage]string{
	StageInitializing:           "Initializing workflow",
	StageAnalyzingGoal:          "Analyzing goal",
	StageGeneratingRequirements: "Generating requirements",
	StageCreatingTasks:          "Creating tasks",
	StageExecutingTasks:         "Monitoring task execution",
	StageValidatingQuality:      "Validating output quality",
	StagePackagingOutput:        "Packaging deliverables",
	StageFinalizing:             "Finalizing run",
	StageCompleted:              "Workflow completed",
	StageFailed:                 "Workflow failed",
	StageRolledBack:             "Workflow rolled back",
}

func (s Stage) Description() string {
	return stageDescriptions[s]
}
