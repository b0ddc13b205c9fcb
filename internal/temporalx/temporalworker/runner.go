package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/neurocanvas-backend/internal/config"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
	"github.com/yungbote/neurocanvas-backend/internal/temporalx"
	"github.com/yungbote/neurocanvas-backend/internal/temporalx/mediapoll"
)

const (
	startMaxWait    = time.Minute
	startBackoff    = 250 * time.Millisecond
	startBackoffMax = 5 * time.Second
)

// Runner hosts the media poll workflow and activity on the configured task
// queue.
type Runner struct {
	log     *logger.Logger
	tc      temporalsdkclient.Client
	cfg     config.TemporalConfig
	stepper mediapoll.Stepper
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg config.TemporalConfig, stepper mediapoll.Stepper) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if stepper == nil {
		return nil, fmt.Errorf("temporal worker missing media stepper")
	}
	return &Runner{log: log.With("component", "TemporalWorker"), tc: tc, cfg: cfg, stepper: stepper}, nil
}

// Start starts the worker and stops it when ctx ends. It retries while the
// server or namespace is still coming up.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)
	deadline := time.Now().Add(startMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		notFound := errors.As(startErr, &nfe)
		if notFound && r.cfg.AutoRegister {
			if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if time.Now().After(deadline) {
			if notFound {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)
		wait := startBackoff << (attempt - 1)
		if wait > startBackoffMax || wait <= 0 {
			wait = startBackoffMax
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	concurrency := r.cfg.WorkerConcurrency
	if concurrency < 1 {
		concurrency = 4
	}
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	acts := &mediapoll.Activities{Log: r.log, Stepper: r.stepper}
	w.RegisterWorkflowWithOptions(mediapoll.Workflow, workflow.RegisterOptions{Name: mediapoll.WorkflowName})
	w.RegisterActivityWithOptions(acts.Step, activity.RegisterOptions{Name: mediapoll.ActivityStep})
	return w
}
