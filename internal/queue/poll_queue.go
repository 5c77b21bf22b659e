package queue

import (
	"context"
	"time"

	"clipforge/internal/models"
)

// NextQueuedFinder is the part of the job store the poll queue reads.
type NextQueuedFinder interface {
	NextQueued(ctx context.Context) (*models.Job, error)
	Ping(ctx context.Context) error
}

// PollQueue has no transport of its own: the job store is the queue, and Pop
// polls it for the oldest queued job.
type PollQueue struct {
	store    NextQueuedFinder
	interval time.Duration
}

func NewPollQueue(store NextQueuedFinder, interval time.Duration) *PollQueue {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &PollQueue{store: store, interval: interval}
}

// Push is a no-op; creating the job record already queued it.
func (q *PollQueue) Push(ctx context.Context, jobID string) error { return nil }

// Pop returns the oldest queued job id, or "" after waiting one interval when
// nothing is queued.
func (q *PollQueue) Pop(ctx context.Context) (string, error) {
	j, err := q.store.NextQueued(ctx)
	if err != nil {
		return "", err
	}
	if j != nil {
		return j.ID, nil
	}

	t := time.NewTimer(q.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.C:
		return "", nil
	}
}

func (q *PollQueue) Ping(ctx context.Context) error { return q.store.Ping(ctx) }

func (q *PollQueue) Close() error { return nil }
