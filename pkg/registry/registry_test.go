package registry

import (
	"context"
	"testing"

	"github.com/dukex/goalforge/pkg/log"
	"github.com/dukex/goalforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultRegistry() *Registry {
	registry := NewRegistry(log.Discard())
	RegisterDefaults(registry)

	return registry
}

func TestRegistryCreateFallbackProvider(t *testing.T) {
	registry := newDefaultRegistry()

	capabilities, err := registry.Create("fallback", map[string]any{
		"quality_score":         float64(92),
		"requirements_per_goal": float64(3),
	})
	require.NoError(t, err)
	require.NotNil(t, capabilities.Quality)

	report, err := capabilities.Quality.ValidateQuality(context.Background(), &models.ExecutionSummary{
		TasksTotal:     2,
		TasksCompleted: 2,
	})
	require.NoError(t, err)
	assert.InDelta(t, 92.0, report.Score, 0.0001)

	requirements, err := capabilities.Requirements.GenerateRequirements(context.Background(), &models.GoalAnalysis{
		GoalID:  "goal-1",
		Summary: "three requirements expected",
	})
	require.NoError(t, err)
	assert.Len(t, requirements, 3)
}

func TestRegistryCreateNilConfig(t *testing.T) {
	registry := newDefaultRegistry()

	capabilities, err := registry.Create("fallback", nil)
	require.NoError(t, err)
	assert.NotNil(t, capabilities.Analyzer)
}

func TestRegistryRejectsInvalidConfig(t *testing.T) {
	registry := newDefaultRegistry()

	_, err := registry.Create("fallback", map[string]any{
		"quality_score": float64(150),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	_, err = registry.Create("fallback", map[string]any{
		"unknown_key": true,
	})
	require.Error(t, err)
}

func TestRegistryUnknownProvider(t *testing.T) {
	registry := newDefaultRegistry()

	_, err := registry.Create("missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegistryAvailableAndHealth(t *testing.T) {
	registry := NewRegistry(log.Discard())

	message, ok := registry.HealthCheck()
	assert.False(t, ok)
	assert.Contains(t, message, "No capability providers")

	RegisterDefaults(registry)

	assert.Equal(t, []string{"fallback"}, registry.Available())

	_, ok = registry.HealthCheck()
	assert.True(t, ok)
}
