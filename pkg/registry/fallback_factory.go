package registry

import (
	"log/slog"

	"github.com/dukex/goalforge/pkg/capabilities/fallback"
	"github.com/dukex/goalforge/pkg/protocol"
)

// FallbackFactory builds the deterministic capability bundle. It is the one
// provider every deployment carries.
type FallbackFactory struct{}

func (FallbackFactory) ID() string {
	return "fallback"
}

func (FallbackFactory) Schema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"quality_score": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": 100,
			},
			"requirements_per_goal": map[string]any{
				"type":    "integer",
				"minimum": 1,
			},
			"tasks_per_requirement": map[string]any{
				"type":    "integer",
				"minimum": 1,
			},
		},
	}
}

func (FallbackFactory) Create(config map[string]any, logger *slog.Logger) (protocol.Capabilities, error) {
	cfg := fallback.Config{}

	if score, ok := config["quality_score"].(float64); ok {
		cfg.QualityScore = score
	}

	if n, ok := config["requirements_per_goal"].(float64); ok {
		cfg.RequirementsPerGoal = int(n)
	}

	if n, ok := config["tasks_per_requirement"].(float64); ok {
		cfg.TasksPerRequirement = int(n)
	}

	return fallback.New(cfg, logger).Bundle(), nil
}

// RegisterDefaults registers the built-in providers.
func RegisterDefaults(r *Registry) {
	r.Register(FallbackFactory{})
}
