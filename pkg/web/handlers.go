// Package web provides HTTP handlers and REST API endpoints for workflow runs.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	goalService *services.Goal
	runService  *services.Run
	validator   *validator.Validate
}

func NewAPIHandlers(
	goalService *services.Goal,
	runService *services.Run,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		goalService: goalService,
		runService:  runService,
		validator:   validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.goalService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Goalforge API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Goalforge API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateGoal(c fiber.Ctx) error {
	var req CreateGoalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	goal := &models.Goal{
		WorkspaceID: req.WorkspaceID,
		Title:       req.Title,
		Description: req.Description,
		Metadata:    req.Metadata,
	}

	created, err := h.goalService.Create(c.Context(), goal)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetGoals(c fiber.Ctx) error {
	goals, err := h.goalService.List(c.Context(), c.Query("workspace_id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"goals":       goals,
		"total_count": len(goals),
	})
}

func (h *APIHandlers) GetGoal(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Goal ID is required")
	}

	goal, err := h.goalService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(goal)
}

func (h *APIHandlers) DeleteGoal(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Goal ID is required")
	}

	err := h.goalService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	var req StartRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	runID, err := h.runService.Start(c.Context(), services.StartRunRequest{
		GoalID:      req.GoalID,
		WorkspaceID: req.WorkspaceID,
		Options:     req.Options,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(StartRunResponse{RunID: runID})
}

func (h *APIHandlers) GetRunProgress(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	snapshot, err := h.runService.Progress(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(snapshot)
}

func (h *APIHandlers) GetRunResult(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	result, err := h.runService.Result(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetGoalRuns(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Goal ID is required")
	}

	results, err := h.runService.ListByGoal(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs":        results,
		"total_count": len(results),
	})
}

func (h *APIHandlers) GetStatistics(c fiber.Ctx) error {
	return c.JSON(h.runService.Statistics(c.Context()))
}
