// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/goalforge/pkg/registry"
)

// NewRegistry builds the capability provider registry with the built-in
// providers registered.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	registry.RegisterDefaults(reg)

	return reg
}
