package worker

import (
	"context"
	"time"

	"clipforge/internal/pkg/logger"
	"clipforge/internal/ports"
)

// JobProcessor handles one job id taken off the queue.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

// Run recovers interrupted jobs, then processes queued jobs one at a time
// until ctx is cancelled.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	if n, err := Recover(ctx, d.Jobs, d.Queue, log); err != nil {
		log.Warn("startup recovery failed", "error", err.Error())
	} else if n > 0 {
		log.Info("requeued interrupted jobs", "count", n)
	}

	retry := d.RetryDelay
	if retry <= 0 {
		retry = time.Second
	}

	for ctx.Err() == nil {
		jobID, err := d.Queue.Pop(ctx)
		switch {
		case ctx.Err() != nil:
		case err != nil:
			log.Warn("queue pop failed, backing off", "error", err.Error(), "retry_in", retry.String())
			sleep(ctx, retry)
		case jobID != "":
			runOne(ctx, d.Processor, jobID, log)
		}
	}
	log.Info("worker stopping")
	return ctx.Err()
}

// runOne processes a single job. Failures are already recorded on the job,
// so they are only logged here.
func runOne(ctx context.Context, p JobProcessor, jobID string, log *logger.Logger) {
	log = log.WithJobID(jobID)
	start := time.Now()
	log.Info("processing job")

	err := p.ProcessJob(logger.ContextWithJobID(ctx, jobID), jobID)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		log.WithError(err).Error("job failed", "duration_ms", elapsed)
		return
	}
	log.Info("job finished", "duration_ms", elapsed)
}

// Recover puts jobs left processing by a previous worker back in the queue and
// pushes every queued id so a fresh queue backend sees them. Duplicate pushes
// are harmless: only the first pop can claim a job.
func Recover(ctx context.Context, jobs ports.JobStore, q ports.JobQueue, log *logger.Logger) (int, error) {
	stale, err := jobs.StaleProcessing(ctx)
	if err != nil {
		return 0, err
	}
	requeued := 0
	for _, j := range stale {
		if err := jobs.Requeue(ctx, j.ID); err != nil {
			log.Warn("failed to requeue job", "job_id", j.ID, "error", err.Error())
			continue
		}
		requeued++
	}

	ids, err := jobs.QueuedIDs(ctx)
	if err != nil {
		return requeued, err
	}
	for _, id := range ids {
		if err := q.Push(ctx, id); err != nil {
			return requeued, err
		}
	}
	return requeued, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
