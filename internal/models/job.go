package models

import (
	"time"

	v1 "clipforge/internal/contracts/video/v1"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// Finished reports whether the job reached a terminal state.
func (s JobStatus) Finished() bool {
	return s == JobCompleted || s == JobFailed
}

// Progress messages written by the job lifecycle.
const (
	MessageQueued    = "Job queued"
	MessageStarted   = "Starting video generation..."
	MessageCompleted = "Video generation complete!"

	ProgressStarted = 5
	ProgressDone    = 100

	MaxErrorLength = 2000
)

type Job struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"`
	Message     string          `json:"message"`
	VideoData   v1.VideoRequest `json:"video_data"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      *Video          `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// NewJob returns a queued job for req.
func NewJob(id string, req v1.VideoRequest, now time.Time) *Job {
	return &Job{
		ID:        id,
		Status:    JobQueued,
		Progress:  0,
		Message:   MessageQueued,
		VideoData: req,
		CreatedAt: now.UTC(),
	}
}

// FailureMessage is the job message shown after a failure.
func FailureMessage(msg string) string {
	return "Error: " + msg
}

// TruncateError caps stored error text at MaxErrorLength bytes without
// splitting a UTF-8 sequence.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorLength {
		return msg
	}
	cut := MaxErrorLength
	for cut > 0 && !isRuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

type JobFilter struct {
	Status JobStatus
	Limit  int
}

// JobCounts is the per-status tally printed by clipforgectl queue.
type JobCounts map[JobStatus]int
