package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/goalforge/pkg/capabilities/fallback"
	"github.com/dukex/goalforge/pkg/engine"
	"github.com/dukex/goalforge/pkg/log"
	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/persistence/file"
	"github.com/dukex/goalforge/pkg/services"
	"github.com/dukex/goalforge/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *services.Goal, *services.Run) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())

	orchestrator, err := engine.NewOrchestrator(engine.Config{
		Fallback:    fallback.New(fallback.Config{}, log.Discard()).Bundle(),
		Persistence: persistence,
		Logger:      log.Discard(),
	})
	require.NoError(t, err)

	goalService := services.NewGoal(persistence)
	runService := services.NewRun(orchestrator, persistence)
	handlers := web.NewAPIHandlers(goalService, runService, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Get("/health", handlers.HealthCheck)
	app.Get("/statistics", handlers.GetStatistics)

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

	return app, goalService, runService
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()

	var (
		body []byte
		err  error
	)

	if str, ok := payload.(string); ok {
		body = []byte(str)
	} else {
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func getPath(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

func TestAPIHandlers_CreateGoal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		validateResult func(t *testing.T, body []byte)
	}{
		{
			name: "successful creation",
			requestBody: web.CreateGoalRequest{
				WorkspaceID: "ws-1",
				Title:       "Launch the beta program",
				Description: "Everything needed for the beta",
				Metadata:    map[string]any{"team": "growth"},
			},
			expectedStatus: http.StatusCreated,
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				var goal models.Goal
				require.NoError(t, json.Unmarshal(body, &goal))
				assert.NotEmpty(t, goal.ID)
				assert.Equal(t, "Launch the beta program", goal.Title)
				assert.Equal(t, models.GoalStatusPending, goal.Status)
				assert.Equal(t, "growth", goal.Metadata["team"])
			},
		},
		{
			name: "validation error - missing title",
			requestBody: web.CreateGoalRequest{
				WorkspaceID: "ws-1",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - title too short",
			requestBody: web.CreateGoalRequest{
				WorkspaceID: "ws-1",
				Title:       "Go",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - missing workspace",
			requestBody: web.CreateGoalRequest{
				Title: "Launch the beta program",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _, _ := setupTestApp(t)

			resp := postJSON(t, app, "/goals/", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.validateResult != nil {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				tt.validateResult(t, body)
			}

			_ = resp.Body.Close()
		})
	}
}

func TestAPIHandlers_GetGoal(t *testing.T) {
	t.Parallel()

	app, goalService, _ := setupTestApp(t)

	created, err := goalService.Create(context.Background(), &models.Goal{
		WorkspaceID: "ws-1",
		Title:       "Existing goal",
	})
	require.NoError(t, err)

	resp := getPath(t, app, "/goals/"+created.ID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var goal models.Goal

	decodeBody(t, resp, &goal)
	assert.Equal(t, created.ID, goal.ID)

	resp = getPath(t, app, "/goals/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	}

	decodeBody(t, resp, &problem)
	assert.Equal(t, "not_found", problem.Type)
	assert.Equal(t, "Goal not found", problem.Detail)
}

func TestAPIHandlers_ListAndDeleteGoals(t *testing.T) {
	t.Parallel()

	app, goalService, _ := setupTestApp(t)

	created, err := goalService.Create(context.Background(), &models.Goal{
		WorkspaceID: "ws-1",
		Title:       "Disposable goal",
	})
	require.NoError(t, err)

	resp := getPath(t, app, "/goals/?workspace_id=ws-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Goals      []*models.Goal `json:"goals"`
		TotalCount int            `json:"total_count"`
	}

	decodeBody(t, resp, &listing)
	assert.Equal(t, 1, listing.TotalCount)

	req := httptest.NewRequest(http.MethodDelete, "/goals/"+created.ID, nil)

	deleteResp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, deleteResp.StatusCode)
	_ = deleteResp.Body.Close()

	resp = getPath(t, app, "/goals/"+created.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAPIHandlers_StartRunLifecycle(t *testing.T) {
	t.Parallel()

	app, goalService, _ := setupTestApp(t)

	goal, err := goalService.Create(context.Background(), &models.Goal{
		WorkspaceID: "ws-1",
		Title:       "Run me to completion",
	})
	require.NoError(t, err)

	resp := postJSON(t, app, "/runs/", web.StartRunRequest{
		GoalID:      goal.ID,
		WorkspaceID: "ws-1",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started web.StartRunResponse

	decodeBody(t, resp, &started)
	require.NotEmpty(t, started.RunID)

	progressResp := getPath(t, app, "/runs/"+started.RunID+"/progress")
	assert.Equal(t, http.StatusOK, progressResp.StatusCode)

	var snapshot models.ProgressSnapshot

	decodeBody(t, progressResp, &snapshot)
	assert.Equal(t, started.RunID, snapshot.RunID)

	// The run executes in the background; poll until the result lands.
	var result models.RunResult

	require.Eventually(t, func() bool {
		resultResp := getPath(t, app, "/runs/"+started.RunID+"/result")
		defer func() { _ = resultResp.Body.Close() }()

		if resultResp.StatusCode != http.StatusOK {
			return false
		}

		body, readErr := io.ReadAll(resultResp.Body)
		require.NoError(t, readErr)
		require.NoError(t, json.Unmarshal(body, &result))

		return true
	}, 10*time.Second, 20*time.Millisecond)

	assert.True(t, result.Success)
	assert.Equal(t, models.RunStatusCompleted, result.Status)

	runsResp := getPath(t, app, "/goals/"+goal.ID+"/runs")
	assert.Equal(t, http.StatusOK, runsResp.StatusCode)

	var runsListing struct {
		Runs       []*models.RunResult `json:"runs"`
		TotalCount int                 `json:"total_count"`
	}

	decodeBody(t, runsResp, &runsListing)
	assert.Equal(t, 1, runsListing.TotalCount)
}

func TestAPIHandlers_StartRunValidation(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	resp := postJSON(t, app, "/runs/", web.StartRunRequest{GoalID: "goal-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	opts := models.Options{TimeoutMinutes: -1, QualityThreshold: 70}

	resp = postJSON(t, app, "/runs/", web.StartRunRequest{
		GoalID:      "goal-1",
		WorkspaceID: "ws-1",
		Options:     &opts,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAPIHandlers_RunNotFound(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	resp := getPath(t, app, "/runs/missing/progress")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp = getPath(t, app, "/runs/missing/result")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAPIHandlers_Statistics(t *testing.T) {
	t.Parallel()

	app, _, runService := setupTestApp(t)

	result, err := runService.Execute(context.Background(), services.StartRunRequest{
		GoalID:      "goal-1",
		WorkspaceID: "ws-1",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	resp := getPath(t, app, "/statistics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stats engine.Statistics

	decodeBody(t, resp, &stats)
	assert.Equal(t, int64(1), stats.TotalRuns)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	resp := getPath(t, app, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
	}

	decodeBody(t, resp, &health)
	assert.Equal(t, "healthy", health.Status)
}
