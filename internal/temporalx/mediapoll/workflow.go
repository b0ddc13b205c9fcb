package mediapoll

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	defaultPollInterval  = 5 * time.Second
	continueStepLimit    = 1000
	continueHistoryLimit = 10000
)

// Workflow steps one media job until it is terminal. Each step is a single
// provider round trip, so history grows by one activity per poll. A step that
// keeps failing past its retry policy is logged and polled again on the next
// tick; the job's own deadline turns an endless outage into a timeout.
func Workflow(ctx workflow.Context, in Input) error {
	if strings.TrimSpace(in.JobID) == "" {
		return fmt.Errorf("mediapoll: missing job_id")
	}
	interval := in.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    interval,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	})

	for steps := 1; ; steps++ {
		var out StepResult
		if err := workflow.ExecuteActivity(ctx, ActivityStep, in.JobID).Get(ctx, &out); err != nil {
			if !transient(err) {
				return err
			}
			workflow.GetLogger(ctx).Warn("media poll step failed; retrying next tick", "job_id", in.JobID, "error", err)
		} else if out.Done {
			return nil
		}
		if err := workflow.Sleep(ctx, interval); err != nil {
			return err
		}
		if shouldContinueAsNew(ctx, steps) {
			return workflow.NewContinueAsNewError(ctx, Workflow, in)
		}
	}
}

func shouldContinueAsNew(ctx workflow.Context, steps int) bool {
	if steps >= continueStepLimit {
		return true
	}
	info := workflow.GetInfo(ctx)
	return info != nil && info.GetCurrentHistoryLength() >= continueHistoryLimit
}

func transient(err error) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.NonRetryable() {
		return false
	}
	var canceled *temporal.CanceledError
	return !errors.As(err, &canceled)
}
