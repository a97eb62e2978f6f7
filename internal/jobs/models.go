package jobs

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus validates a user-supplied status string.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[status]; !ok {
		return "", fmt.Errorf("unknown status %q", value)
	}
	return status, nil
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one slice-directory to STL conversion tracked in the store.
type Job struct {
	ID           string
	UploadID     string
	Status       Status
	Progress     int
	Message      string
	OutputFile   string
	ErrorMessage string
	ParamsJSON   string
	SeriesJSON   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SetProgress advances the progress indicator. Progress never moves
// backwards and never changes once the job is terminal.
func (j *Job) SetProgress(percent int, message string) {
	if j.Status.IsTerminal() {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent > j.Progress {
		j.Progress = percent
	}
	if message != "" {
		j.Message = message
	}
}

// SetProcessing marks the job as picked up by a worker.
func (j *Job) SetProcessing() {
	if j.Status == StatusPending {
		j.Status = StatusProcessing
	}
}

// SetCompleted marks the job finished with its output artifact.
func (j *Job) SetCompleted(outputFile string) {
	if j.Status.IsTerminal() {
		return
	}
	j.Status = StatusCompleted
	j.Progress = 100
	j.Message = "conversion complete"
	j.OutputFile = outputFile
	j.ErrorMessage = ""
}

// SetFailed marks the job failed. Progress is left where it was so the
// failure point stays visible.
func (j *Job) SetFailed(message string) {
	if j.Status.IsTerminal() {
		return
	}
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.Message = message
}
