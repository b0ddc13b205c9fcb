package mediapoll

import "time"

const (
	WorkflowName = "media_poll"
	ActivityStep = "media_poll_step"
)

type Input struct {
	JobID        string        `json:"job_id"`
	PollInterval time.Duration `json:"poll_interval"`
}

type StepResult struct {
	JobID string `json:"job_id"`
	Done  bool   `json:"done"`
}
