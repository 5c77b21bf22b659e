// Package pipeline runs the ordered stages that turn a video request into a
// finished, stored clip.
package pipeline

import (
	"context"
	"time"

	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
)

type Stage string

const (
	StageNarration   Stage = "narration"
	StagePrompts     Stage = "prompts"
	StageImages      Stage = "images"
	StageComposition Stage = "composition"
	StageEffects     Stage = "effects"
	StageSubtitles   Stage = "subtitles"
	StagePersistence Stage = "persistence"
)

// Step is one stage. Progress and Message are reported before Run starts.
type Step struct {
	Stage    Stage
	Progress int
	Message  string
	Run      func(ctx context.Context, st *State) error
}

// Reporter records stage progress on the job.
type Reporter interface {
	Report(ctx context.Context, progress int, message string) error
}

type ReporterFunc func(ctx context.Context, progress int, message string) error

func (f ReporterFunc) Report(ctx context.Context, progress int, message string) error {
	return f(ctx, progress, message)
}

type Pipeline struct {
	steps []Step
	log   *logger.Logger
}

// New checks that the steps report strictly increasing progress below 100.
func New(log *logger.Logger, steps ...Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, apperrors.Validation("pipeline has no steps")
	}
	last := 0
	for _, s := range steps {
		if s.Run == nil {
			return nil, apperrors.Validationf("step %s has no run function", s.Stage)
		}
		if s.Progress <= last || s.Progress >= 100 {
			return nil, apperrors.Validationf("step %s progress %d must be above %d and below 100", s.Stage, s.Progress, last)
		}
		last = s.Progress
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Pipeline{steps: steps, log: log.WithComponent("pipeline")}, nil
}

// Run executes the steps in order and stops at the first failure. The
// returned error carries the failing stage. A cancelled context stops the
// run before the next step starts.
func (p *Pipeline) Run(ctx context.Context, st *State, rep Reporter) error {
	total := time.Now()
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return apperrors.Stage(string(step.Stage), err)
		}

		stageCtx := logger.ContextWithStage(ctx, string(step.Stage))
		log := p.log.FromContext(stageCtx)

		if rep != nil {
			if err := rep.Report(stageCtx, step.Progress, step.Message); err != nil {
				if ctx.Err() != nil {
					return apperrors.Stage(string(step.Stage), ctx.Err())
				}
				log.Warn("progress update failed", "progress", step.Progress, "error", err.Error())
			}
		}

		log.Info("stage started", "progress", step.Progress)
		start := time.Now()
		if err := step.Run(stageCtx, st); err != nil {
			log.Error("stage failed",
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err.Error(),
			)
			return apperrors.Stage(string(step.Stage), err)
		}
		log.Info("stage finished", "duration_ms", time.Since(start).Milliseconds())
	}
	p.log.FromContext(ctx).Info("pipeline finished", "duration_ms", time.Since(total).Milliseconds())
	return nil
}
