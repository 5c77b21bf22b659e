package processor

import (
	"context"
	"time"

	"clipforge/internal/models"
	"clipforge/internal/pipeline"
	"clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/ports"
)

// Runner executes the generation stages for one job.
type Runner interface {
	Run(ctx context.Context, st *pipeline.State, rep pipeline.Reporter) error
}

type Deps struct {
	Jobs            ports.JobStore
	Pipeline        Runner
	WorkDir         string
	KeepWorkFiles   bool
	MaxScriptLength int
	Log             *logger.Logger
}

type Processor struct {
	jobs     ports.JobStore
	pipeline Runner
	log      *logger.Logger

	jobParser *JobParser
	cleanup   *Cleanup

	// completeDelay is the pause between attempts to record a finished job.
	completeDelay time.Duration
}

const completeAttempts = 3

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("processor")

	return &Processor{
		jobs:      d.Jobs,
		pipeline:  d.Pipeline,
		log:       log,
		jobParser: NewJobParser(d.MaxScriptLength),
		cleanup:   NewCleanup(d.WorkDir, d.KeepWorkFiles, log),

		completeDelay: 500 * time.Millisecond,
	}
}

// ProcessJob claims the job, runs the pipeline and records the outcome. A job
// another worker already took, or one that vanished, is skipped without error.
func (p *Processor) ProcessJob(ctx context.Context, jobID string) error {
	log := p.log.FromContext(ctx).WithJobID(jobID)

	// 1. Claim
	job, err := p.jobs.Claim(ctx, jobID)
	if err != nil {
		if errors.IsConflict(err) || errors.IsNotFound(err) {
			log.Info("job not claimable, skipping", "reason", string(errors.GetCode(err)))
			return nil
		}
		return errors.Wrap(err, "processor.claim", "failed to claim job")
	}
	log.Info("job claimed", "title", job.VideoData.Title, "format", job.VideoData.Format)

	// 2. Parse
	parsed, err := p.jobParser.Parse(job)
	if err != nil {
		return p.failJob(ctx, jobID, err)
	}
	if parsed.VoiceFallback {
		log.Warn("unknown voice, narration uses the default", "voice", parsed.Request.Voice)
	}

	// 3. Work dir
	workDir, err := p.cleanup.Prepare(jobID)
	if err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.workdir", "failed to create work dir"))
	}
	defer p.cleanup.CleanupJob(jobID)

	st, err := pipeline.NewState(jobID, parsed.Request, workDir)
	if err != nil {
		return p.failJob(ctx, jobID, err)
	}

	// 4. Run
	start := time.Now()
	if err := p.pipeline.Run(ctx, st, p.reporter(jobID)); err != nil {
		if ctx.Err() != nil {
			return p.requeueJob(ctx, jobID, err)
		}
		return p.failJob(ctx, jobID, err)
	}
	if st.Result == nil {
		return p.failJob(ctx, jobID, errors.Internal("pipeline finished without a video record"))
	}

	// 5. Complete
	if err := p.completeJob(ctx, jobID, st.Result); err != nil {
		return errors.Wrap(err, "processor.complete", "failed to mark job completed")
	}
	log.Info("job completed",
		"video_id", st.Result.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// requeueJob hands an interrupted job back to the queue so the next worker
// start picks it up again.
func (p *Processor) requeueJob(ctx context.Context, jobID string, cause error) error {
	log := p.log.FromContext(ctx).WithJobID(jobID)
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.jobs.Requeue(writeCtx, jobID); err != nil {
		log.Warn("failed to requeue interrupted job", "error", err.Error())
		return cause
	}
	log.Info("job interrupted, requeued", "stage", errors.GetStage(cause))
	return cause
}

func (p *Processor) reporter(jobID string) pipeline.Reporter {
	return pipeline.ReporterFunc(func(ctx context.Context, progress int, message string) error {
		return p.jobs.UpdateProgress(ctx, jobID, progress, message)
	})
}

// completeJob records the result. The video and its objects already exist,
// so a job left in processing here would be rerun by recovery and stored
// twice. The write is detached from ctx and retried; a conflict or a missing
// job is final.
func (p *Processor) completeJob(ctx context.Context, jobID string, result *models.Video) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	var err error
	for attempt := 1; attempt <= completeAttempts; attempt++ {
		err = p.jobs.Complete(writeCtx, jobID, result)
		if err == nil || errors.IsConflict(err) || errors.IsNotFound(err) {
			return err
		}
		p.log.FromContext(ctx).WithJobID(jobID).Warn("recording completion failed",
			"attempt", attempt,
			"error", err.Error(),
		)
		if attempt < completeAttempts {
			select {
			case <-time.After(p.completeDelay * time.Duration(attempt)):
			case <-writeCtx.Done():
				return err
			}
		}
	}
	return err
}

// failJob records the failure with a fresh context so it lands even when ctx
// is already done.
func (p *Processor) failJob(ctx context.Context, jobID string, cause error) error {
	log := p.log.FromContext(ctx).WithJobID(jobID)

	msg := models.TruncateError(cause.Error())

	var appErr *errors.Error
	if errors.As(cause, &appErr) {
		log.Error("job failed",
			"code", string(appErr.Code),
			"op", appErr.Op,
			"stage", errors.GetStage(cause),
			"message", appErr.Message,
		)
	} else {
		log.Error("job failed", "error", msg)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.jobs.Fail(writeCtx, jobID, msg); err != nil {
		log.Warn("failed to record job failure", "error", err.Error())
	}
	return cause
}
