package mediapoll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	temporalsdkclient "go.temporal.io/sdk/client"
)

// Scheduler starts one workflow per media job. The workflow id is derived
// from the job id so a repeated Schedule never starts a second poller.
type Scheduler struct {
	tc           temporalsdkclient.Client
	taskQueue    string
	pollInterval time.Duration
}

func NewScheduler(tc temporalsdkclient.Client, taskQueue string, pollInterval time.Duration) (*Scheduler, error) {
	if tc == nil {
		return nil, fmt.Errorf("mediapoll: temporal client required")
	}
	return &Scheduler{tc: tc, taskQueue: taskQueue, pollInterval: pollInterval}, nil
}

func WorkflowID(jobID uuid.UUID) string { return "media-job-" + jobID.String() }

func (s *Scheduler) Name() string { return "temporal" }

func (s *Scheduler) Schedule(ctx context.Context, jobID uuid.UUID) error {
	_, err := s.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        WorkflowID(jobID),
		TaskQueue: s.taskQueue,
	}, WorkflowName, Input{JobID: jobID.String(), PollInterval: s.pollInterval})
	if err != nil {
		return fmt.Errorf("start media workflow %s: %w", jobID, err)
	}
	return nil
}
