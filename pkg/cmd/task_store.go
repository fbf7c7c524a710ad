package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/goalforge/pkg/taskstore"
	redis "github.com/redis/go-redis/v9"
)

// NewTaskStore builds the task board backing the execution-monitoring stage.
// "none" disables the board so runs fall back to deterministic monitoring.
func NewTaskStore(provider, redisURL string, logger *slog.Logger) (taskstore.TaskStore, error) {
	switch provider {
	case "redis":
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}

		logger.Info("Using Redis task board", "addr", opts.Addr)

		return taskstore.NewRedisStore(redis.NewClient(opts)), nil
	case "memory":
		return taskstore.NewMemoryStore(), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported task store provider: %s", provider)
	}
}
