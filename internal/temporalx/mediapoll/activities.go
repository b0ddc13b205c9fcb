package mediapoll

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/neurocanvas-backend/internal/observability"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

const errNotConfigured = "media_poll_not_configured"

// Stepper advances one media job by a single round trip.
type Stepper interface {
	Step(ctx context.Context, jobID uuid.UUID) (bool, error)
}

type Activities struct {
	Log     *logger.Logger
	Stepper Stepper
}

func (a *Activities) Step(ctx context.Context, jobID string) (StepResult, error) {
	res := StepResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.Stepper == nil {
		return res, temporal.NewNonRetryableApplicationError("mediapoll: activity not configured", errNotConfigured, nil)
	}
	id, err := uuid.Parse(res.JobID)
	if err != nil || id == uuid.Nil {
		// Nothing to retry; end the workflow.
		res.Done = true
		return res, nil
	}
	observability.Current().IncMediaPoll("temporal")
	done, err := a.Stepper.Step(ctx, id)
	if err != nil {
		if a.Log != nil {
			a.Log.Warn("media poll step failed", "job_id", id, "error", err)
		}
		return res, err
	}
	res.Done = done
	return res, nil
}
