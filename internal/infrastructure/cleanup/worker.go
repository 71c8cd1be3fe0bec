// Package cleanup provides the background sweeper for in-memory and
// persisted state that expires on its own schedule.
package cleanup

import (
	"context"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/pkg/config"
)

// Task is one sweep. Run returns how many items it removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Config holds cleanup worker configuration
type Config struct {
	CleanupInterval  time.Duration
	VerboseReporting bool
}

// NewConfig reads the worker settings from the central config package.
func NewConfig() *Config {
	return &Config{
		CleanupInterval:  config.CleanupInterval,
		VerboseReporting: config.CleanupVerbose,
	}
}

// Worker runs every task on a fixed interval
type Worker struct {
	tasks  []Task
	config *Config
	logger *logging.ChanneledLogger
}

// NewWorker creates a cleanup worker over tasks
func NewWorker(cfg *Config, logger *logging.ChanneledLogger, tasks ...Task) *Worker {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Worker{tasks: tasks, config: cfg, logger: logger}
}

// Start blocks, sweeping on every tick until ctx is cancelled
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	w.logger.System().Info("Cleanup worker started",
		"interval", w.config.CleanupInterval, "tasks", len(w.tasks))

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown().Info("Cleanup worker stopping")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes each task in order. A failing task does not stop the rest.
func (w *Worker) RunOnce(ctx context.Context) int {
	start := time.Now()
	var total int
	for _, task := range w.tasks {
		if ctx.Err() != nil {
			return total
		}
		n, err := task.Run(ctx)
		if err != nil {
			w.logger.System().Error("Cleanup task failed", "task", task.Name, "error", err)
			continue
		}
		total += n
		if w.config.VerboseReporting {
			w.logger.System().Debug("Cleanup task finished", "task", task.Name, "removed", n)
		}
	}

	if total > 0 {
		w.logger.System().Info("Cleanup finished", "removed", total, "duration", time.Since(start))
	} else if w.config.VerboseReporting {
		w.logger.System().Info("Cleanup completed - nothing expired", "duration", time.Since(start))
	}
	return total
}
