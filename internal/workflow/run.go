package workflow

import "time"

// RunStatus is the outcome of a whole run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// StepStatus is the outcome of one step
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepResult records what one step did. Times are unix milliseconds.
type StepResult struct {
	Name       string     `json:"name"`
	Kind       StepKind   `json:"kind"`
	Status     StepStatus `json:"status"`
	Output     string     `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  int64      `json:"startedAt,omitempty"`
	FinishedAt int64      `json:"finishedAt,omitempty"`
}

// Duration is how long the step ran
func (s StepResult) Duration() time.Duration {
	if s.StartedAt == 0 || s.FinishedAt < s.StartedAt {
		return 0
	}
	return time.Duration(s.FinishedAt-s.StartedAt) * time.Millisecond
}

// Run is one execution of a workflow against a file
type Run struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Workflow   string       `json:"workflow"`
	File       string       `json:"file"`
	ReviewID   string       `json:"reviewId,omitempty"`
	FixedPath  string       `json:"fixedPath,omitempty"`
	StartedAt  int64        `json:"startedAt"`
	FinishedAt int64        `json:"finishedAt,omitempty"`
	Status     RunStatus    `json:"status"`
	Steps      []StepResult `json:"steps"`
}

// Failed returns the steps that failed
func (r *Run) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			failed = append(failed, s)
		}
	}
	return failed
}

// Duration is how long the run took
func (r *Run) Duration() time.Duration {
	if r.FinishedAt < r.StartedAt {
		return 0
	}
	return time.Duration(r.FinishedAt-r.StartedAt) * time.Millisecond
}
