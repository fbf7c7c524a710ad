// Package main provides the goalforge CLI: one-shot workflow runs from the
// terminal, without an API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/goalforge/pkg/capabilities/fallback"
	"github.com/dukex/goalforge/pkg/engine"
	"github.com/dukex/goalforge/pkg/log"
	"github.com/dukex/goalforge/pkg/models"
	"github.com/dukex/goalforge/pkg/scheduler"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "goalforge",
		Usage:                 "Run a goal through the staged workflow pipeline",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			{
				Name:    "run",
				Aliases: []string{"r"},
				Usage:   "Execute a workflow run and print its result",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "goal-id",
						Usage:    "ID of the goal to run",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "workspace-id",
						Usage: "Workspace owning the goal",
						Value: "default",
					},
					&cli.FloatFlag{
						Name:  "timeout-minutes",
						Usage: "Overall run deadline in minutes",
						Value: models.DefaultTimeoutMinutes,
					},
					&cli.FloatFlag{
						Name:  "quality-threshold",
						Usage: "Minimum accepted quality score (0-100)",
						Value: models.DefaultQualityThreshold,
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Run compensating actions when the run fails",
						Value: true,
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "warn",
						Sources: cli.EnvVars("LOG_LEVEL"),
					},
				},
				Action: runGoal,
			},
			{
				Name:  "schedule",
				Usage: "Run a goal on a cron schedule until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "goal-id",
						Usage:    "ID of the goal to run",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "workspace-id",
						Usage: "Workspace owning the goal",
						Value: "default",
					},
					&cli.StringFlag{
						Name:     "cron",
						Usage:    "Standard cron expression (e.g. '*/5 * * * *')",
						Required: true,
					},
					&cli.FloatFlag{
						Name:  "timeout-minutes",
						Usage: "Overall run deadline in minutes",
						Value: models.DefaultTimeoutMinutes,
					},
					&cli.FloatFlag{
						Name:  "quality-threshold",
						Usage: "Minimum accepted quality score (0-100)",
						Value: models.DefaultQualityThreshold,
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Run compensating actions when the run fails",
						Value: true,
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "info",
						Sources: cli.EnvVars("LOG_LEVEL"),
					},
				},
				Action: scheduleGoal,
			},
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runGoal(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("cli")

	orchestrator, err := engine.NewOrchestrator(engine.Config{
		Fallback: fallback.New(fallback.Config{}, logger).Bundle(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	opts := models.Options{
		TimeoutMinutes:   command.Float("timeout-minutes"),
		EnableRollback:   command.Bool("rollback"),
		QualityThreshold: command.Float("quality-threshold"),
	}

	result := orchestrator.Execute(ctx,
		command.String("goal-id"), command.String("workspace-id"), &opts)

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(encoded))

	if !result.Success {
		return errors.New("run failed: " + result.Error)
	}

	return nil
}

func scheduleGoal(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("cli")

	orchestrator, err := engine.NewOrchestrator(engine.Config{
		Fallback: fallback.New(fallback.Config{}, logger).Bundle(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler(orchestrator, logger)

	err = sched.Add(scheduler.Schedule{
		ID:          "cli",
		CronExpr:    command.String("cron"),
		GoalID:      command.String("goal-id"),
		WorkspaceID: command.String("workspace-id"),
		Options: &models.Options{
			TimeoutMinutes:   command.Float("timeout-minutes"),
			EnableRollback:   command.Bool("rollback"),
			QualityThreshold: command.Float("quality-threshold"),
		},
	})
	if err != nil {
		return err
	}

	sched.Start()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down scheduler")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return sched.Stop(stopCtx)
}
