package ports

import (
	"context"
	"time"

	"clipforge/internal/models"
)

// JobStore persists jobs for both the API and the worker. Transition methods
// return a conflict error when the job is not in the required state and a
// not-found error for unknown ids.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, f models.JobFilter) ([]models.Job, error)
	Counts(ctx context.Context) (models.JobCounts, error)

	// NextQueued returns the oldest queued job, or nil when none is waiting.
	NextQueued(ctx context.Context) (*models.Job, error)
	// QueuedIDs lists queued job ids oldest first.
	QueuedIDs(ctx context.Context) ([]string, error)
	// QueuePosition is the 0-based FIFO index of a queued job, -1 otherwise.
	QueuePosition(ctx context.Context, id string) (int, error)

	Claim(ctx context.Context, id string) (*models.Job, error)
	UpdateProgress(ctx context.Context, id string, progress int, message string) error
	Complete(ctx context.Context, id string, result *models.Video) error
	Fail(ctx context.Context, id string, errMsg string) error
	Requeue(ctx context.Context, id string) error
	// StaleProcessing lists jobs left in processing, oldest first.
	StaleProcessing(ctx context.Context) ([]models.Job, error)

	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
	Ping(ctx context.Context) error
}

type VideoStore interface {
	CreateVideo(ctx context.Context, v *models.Video) error
	GetVideo(ctx context.Context, id int64) (*models.Video, error)
	ListVideos(ctx context.Context, f models.VideoFilter) ([]models.Video, error)
	SearchVideos(ctx context.Context, query string, limit int) ([]models.Video, error)
	CountVideos(ctx context.Context) (int, error)
	DeleteVideo(ctx context.Context, id int64) error
}

// Store is what a backend (postgres or the JSON file) provides.
type Store interface {
	JobStore
	VideoStore
	Close() error
}

// JobQueue hands job ids from the API to the worker. Pop returns "" with a
// nil error when nothing arrived within its wait window.
type JobQueue interface {
	Push(ctx context.Context, jobID string) error
	Pop(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	Close() error
}
