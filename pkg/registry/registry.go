// Package registry manages capability providers: named factories that build
// the capability bundles workflow runs execute with, each with a JSON schema
// describing its configuration.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dukex/goalforge/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// CapabilityFactory builds a capability bundle from validated configuration.
type CapabilityFactory interface {
	// ID returns the provider name used to select this factory.
	ID() string

	// Schema returns the JSON schema the configuration must satisfy.
	Schema() map[string]any

	// Create builds the bundle. Config has already been validated against
	// Schema.
	Create(config map[string]any, logger *slog.Logger) (protocol.Capabilities, error)
}

type Registry struct {
	logger    *slog.Logger
	factories map[string]CapabilityFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[string]CapabilityFactory),
	}
}

// Register adds a factory, replacing any existing one with the same ID.
func (r *Registry) Register(factory CapabilityFactory) {
	r.factories[factory.ID()] = factory
}

// Available returns the registered provider names, sorted.
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Create validates config against the provider's schema and builds the
// capability bundle.
func (r *Registry) Create(providerID string, config map[string]any) (protocol.Capabilities, error) {
	factory, ok := r.factories[providerID]
	if !ok {
		return protocol.Capabilities{}, fmt.Errorf("capability provider '%s' not registered", providerID)
	}

	if err := r.validateConfig(factory.Schema(), config); err != nil {
		return protocol.Capabilities{}, fmt.Errorf("invalid config for provider '%s': %w", providerID, err)
	}

	return factory.Create(config, r.logger)
}

// HealthCheck reports whether at least one provider is registered.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.factories) == 0 {
		return "No capability providers registered", false
	}

	return fmt.Sprintf("%d capability providers registered", len(r.factories)), true
}

func (r *Registry) validateConfig(schema, config map[string]any) error {
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}
