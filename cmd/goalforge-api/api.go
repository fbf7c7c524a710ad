// Package main provides the Goalforge API server implementation.
package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dukex/goalforge/pkg/capabilities/fallback"
	"github.com/dukex/goalforge/pkg/capabilities/taskmonitor"
	"github.com/dukex/goalforge/pkg/engine"
	"github.com/dukex/goalforge/pkg/eventbus"
	"github.com/dukex/goalforge/pkg/persistence"
	"github.com/dukex/goalforge/pkg/registry"
	"github.com/dukex/goalforge/pkg/services"
	"github.com/dukex/goalforge/pkg/taskstore"
	"github.com/dukex/goalforge/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	orchestrator *engine.Orchestrator
	validate     *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	taskStore taskstore.TaskStore,
	capabilityProvider string,
) (*API, error) {
	primary, err := registry.Create(capabilityProvider, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build capability provider: %w", err)
	}

	// A configured task board replaces the provider's monitor so externally
	// executed tasks are observed instead of simulated.
	if taskStore != nil {
		primary.Monitor = taskmonitor.New(taskStore, logger)
	}

	cfg := engine.Config{
		Primary:     primary,
		Fallback:    fallback.New(fallback.Config{}, logger).Bundle(),
		Persistence: persistence,
		Logger:      logger,
	}
	if eventBus != nil {
		cfg.EventBus = eventBus
	}

	orchestrator, err := engine.NewOrchestrator(cfg)
	if err != nil {
		return nil, err
	}

	return &API{
		persistence:  persistence,
		logger:       logger,
		orchestrator: orchestrator,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (a *API) App() *fiber.App {
	goalService := services.NewGoal(a.persistence)
	runService := services.NewRun(a.orchestrator, a.persistence)

	handlers := web.NewAPIHandlers(goalService, runService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Goalforge API")
	})

	g := app.Group("/goals")
	g.Get("/", handlers.GetGoals)
	g.Post("/", handlers.CreateGoal)
	g.Get("/:id", handlers.GetGoal)
	g.Delete("/:id", handlers.DeleteGoal)
	g.Get("/:id/runs", handlers.GetGoalRuns)

	r := app.Group("/runs")
	r.Post("/", handlers.StartRun)
	r.Get("/:id/progress", handlers.GetRunProgress)
	r.Get("/:id/result", handlers.GetRunResult)

	app.Get("/statistics", handlers.GetStatistics)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
