package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"clipforge/internal/catalog"
	v1 "clipforge/internal/contracts/video/v1"
	"clipforge/internal/models"
	"clipforge/internal/pipeline/compose"
	"clipforge/internal/pipeline/prompts"
	"clipforge/internal/pipeline/subtitles"
	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/ffmpeg"
	"clipforge/internal/pkg/logger"
)

const (
	NarrationFile = "narration.mp3"
	SubtitleFile  = "subtitles.srt"
)

type Narrator interface {
	Generate(ctx context.Context, script, voice, outPath string) (string, error)
}

type Prompter interface {
	Generate(ctx context.Context, req v1.VideoRequest) ([]prompts.ImagePrompt, error)
}

type Illustrator interface {
	Generate(ctx context.Context, ps []prompts.ImagePrompt, format catalog.Format, dir string) ([]string, error)
}

type Composer interface {
	Duration(ctx context.Context, audio string) (float64, error)
	Normalize(ctx context.Context, images []string, size ffmpeg.Size, dir string) ([]string, error)
	Animate(ctx context.Context, scenes []string, audio string, total float64, size ffmpeg.Size, dir string) (string, error)
	Burn(ctx context.Context, video, srt string, size ffmpeg.Size, dir string) (string, error)
}

type Captioner interface {
	Build(ctx context.Context, script string, total float64, scenes int) ([]subtitles.Segment, error)
}

// Persister stores the finished clip and returns its library record.
type Persister interface {
	Persist(ctx context.Context, st *State) (*models.Video, error)
}

type Deps struct {
	Narrator    Narrator
	Prompter    Prompter
	Illustrator Illustrator
	Composer    Composer
	Captioner   Captioner
	Persister   Persister
	Log         *logger.Logger
}

// NewVideo wires the standard stage sequence.
func NewVideo(d Deps) (*Pipeline, error) {
	if d.Narrator == nil || d.Prompter == nil || d.Illustrator == nil ||
		d.Composer == nil || d.Captioner == nil || d.Persister == nil {
		return nil, apperrors.Validation("pipeline dependencies are incomplete")
	}
	if d.Log == nil {
		d.Log = logger.NewDefault()
	}
	s := &stages{Deps: d}
	return New(d.Log,
		Step{StageNarration, 15, "Generating narration...", s.narration},
		Step{StagePrompts, 30, "Creating image prompts...", s.prompts},
		Step{StageImages, 45, "Generating images...", s.images},
		Step{StageComposition, 65, "Composing video...", s.composition},
		Step{StageEffects, 75, "Applying zoom and pan effects...", s.effects},
		Step{StageSubtitles, 85, "Adding subtitles...", s.subtitles},
		Step{StagePersistence, 95, "Saving video...", s.persistence},
	)
}

type stages struct {
	Deps
}

func (s *stages) narration(ctx context.Context, st *State) error {
	out := filepath.Join(st.WorkDir, NarrationFile)
	provider, err := s.Narrator.Generate(ctx, st.Request.Script, st.Request.Voice, out)
	if err != nil {
		return err
	}
	d, err := s.Composer.Duration(ctx, out)
	if err != nil {
		return err
	}
	st.NarrationPath, st.NarrationProvider, st.AudioDuration = out, provider, d
	return nil
}

func (s *stages) prompts(ctx context.Context, st *State) error {
	ps, err := s.Prompter.Generate(ctx, st.Request)
	if err != nil {
		return err
	}
	if len(ps) == 0 {
		return apperrors.Internal("no image prompts produced")
	}
	st.Prompts = ps
	return nil
}

func (s *stages) images(ctx context.Context, st *State) error {
	dir := filepath.Join(st.WorkDir, "images")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(err, "pipeline.images", "create image dir")
	}
	paths, err := s.Illustrator.Generate(ctx, st.Prompts, st.Format, dir)
	if err != nil {
		return err
	}
	st.ImagePaths = paths
	return nil
}

func (s *stages) composition(ctx context.Context, st *State) error {
	if st.AudioDuration <= 0 {
		d, err := s.Composer.Duration(ctx, st.NarrationPath)
		if err != nil {
			return err
		}
		st.AudioDuration = d
	}
	scenes, err := s.Composer.Normalize(ctx, st.ImagePaths, compose.Size(st.Format), st.WorkDir)
	if err != nil {
		return err
	}
	st.ScenePaths = scenes
	return nil
}

func (s *stages) effects(ctx context.Context, st *State) error {
	video, err := s.Composer.Animate(ctx, st.ScenePaths, st.NarrationPath, st.AudioDuration, compose.Size(st.Format), st.WorkDir)
	if err != nil {
		return err
	}
	st.VideoPath = video
	return nil
}

func (s *stages) subtitles(ctx context.Context, st *State) error {
	segs, err := s.Captioner.Build(ctx, st.Request.Script, st.AudioDuration, len(st.ScenePaths))
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		s.Log.FromContext(ctx).Warn("no subtitle segments, leaving video uncaptioned")
		return nil
	}

	path := filepath.Join(st.WorkDir, SubtitleFile)
	var b strings.Builder
	if err := subtitles.WriteSRT(&b, segs); err != nil {
		return apperrors.Wrap(err, "pipeline.subtitles", "render srt")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return apperrors.Wrap(err, "pipeline.subtitles", "write srt")
	}

	video, err := s.Composer.Burn(ctx, st.VideoPath, path, compose.Size(st.Format), st.WorkDir)
	if err != nil {
		return err
	}
	st.Segments, st.SubtitlePath, st.VideoPath = segs, path, video
	return nil
}

func (s *stages) persistence(ctx context.Context, st *State) error {
	v, err := s.Persister.Persist(ctx, st)
	if err != nil {
		return err
	}
	st.Result = v
	return nil
}

func unknownFormat(format string) error {
	return apperrors.ValidationField("format", "must be one of "+strings.Join(catalog.FormatNames(), ", ")).
		WithField("value", format)
}
