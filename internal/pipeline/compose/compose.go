// Package compose assembles narration and stills into a finished clip with
// ffmpeg.
package compose

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"clipforge/internal/catalog"
	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/ffmpeg"
	"clipforge/internal/pkg/logger"
)

// Media is the subset of the ffmpeg client the composer drives.
type Media interface {
	Duration(ctx context.Context, path string) (float64, error)
	NormalizeImage(ctx context.Context, src, dst string, size ffmpeg.Size) error
	MotionSegment(ctx context.Context, src, dst string, effect ffmpeg.Effect, seconds float64, size ffmpeg.Size, fps int) error
	Concat(ctx context.Context, segments []string, listPath, dst string) error
	MuxAudio(ctx context.Context, video, audio, dst string, fps int) error
	BurnSubtitles(ctx context.Context, video, srt, dst string, style ffmpeg.SubtitleStyle) error
	ExtractFrame(ctx context.Context, video, dst string, at float64) error
}

var effects = []ffmpeg.Effect{
	ffmpeg.EffectZoomIn,
	ffmpeg.EffectZoomOut,
	ffmpeg.EffectPanLeft,
	ffmpeg.EffectPanRight,
}

const (
	NormalizedPattern = "scene_%03d.png"
	SegmentPattern    = "segment_%03d.mp4"
	SilentVideoName   = "slideshow.mp4"
	MixedVideoName    = "video_with_audio.mp4"
	SubtitledName     = "final.mp4"
	ThumbnailName     = "thumbnail.jpg"
)

type Composer struct {
	media Media
	fps   int
	pick  func(n int) int
	log   *logger.Logger
}

type Option func(*Composer)

// WithPicker replaces the random effect choice; pick returns an index in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(c *Composer) { c.pick = pick }
}

func New(media Media, fps int, log *logger.Logger, opts ...Option) *Composer {
	if fps <= 0 {
		fps = 30
	}
	if log == nil {
		log = logger.NewDefault()
	}
	c := &Composer{media: media, fps: fps, pick: rand.IntN, log: log.WithComponent("compose")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Size converts a catalog format into an ffmpeg output size.
func Size(f catalog.Format) ffmpeg.Size {
	return ffmpeg.Size{Width: f.Width, Height: f.Height}
}

func (c *Composer) Duration(ctx context.Context, audio string) (float64, error) {
	return c.media.Duration(ctx, audio)
}

// Normalize brings every image to the output resolution, preserving order.
func (c *Composer) Normalize(ctx context.Context, images []string, size ffmpeg.Size, dir string) ([]string, error) {
	if len(images) == 0 {
		return nil, apperrors.Validation("no images to compose")
	}
	out := make([]string, len(images))
	for i, src := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dst := filepath.Join(dir, fmt.Sprintf(NormalizedPattern, i))
		if err := c.media.NormalizeImage(ctx, src, dst, size); err != nil {
			return nil, err
		}
		out[i] = dst
	}
	return out, nil
}

// SceneDuration splits the narration evenly across n scenes.
func SceneDuration(total float64, n int) float64 {
	if n <= 0 {
		return total
	}
	return total / float64(n)
}

// Animate renders a camera move per scene, joins the scenes and lays the
// narration underneath. It returns the path of the muxed clip.
func (c *Composer) Animate(ctx context.Context, scenes []string, audio string, total float64, size ffmpeg.Size, dir string) (string, error) {
	if len(scenes) == 0 {
		return "", apperrors.Validation("no scenes to animate")
	}
	if total <= 0 {
		return "", apperrors.Validationf("invalid narration duration %.2f", total)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", apperrors.Wrap(err, "compose.animate", "resolve work dir")
	}

	log := c.log.FromContext(ctx)
	per := SceneDuration(total, len(scenes))
	segments := make([]string, len(scenes))
	for i, src := range scenes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		effect := effects[c.pick(len(effects))]
		dst := filepath.Join(abs, fmt.Sprintf(SegmentPattern, i))
		start := time.Now()
		if err := c.media.MotionSegment(ctx, src, dst, effect, per, size, c.fps); err != nil {
			return "", err
		}
		log.Debug("segment rendered",
			"index", i,
			"effect", string(effect),
			"seconds", per,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		segments[i] = dst
	}

	silent := filepath.Join(abs, SilentVideoName)
	if err := c.media.Concat(ctx, segments, filepath.Join(abs, "segments.txt"), silent); err != nil {
		return "", err
	}
	mixed := filepath.Join(abs, MixedVideoName)
	if err := c.media.MuxAudio(ctx, silent, audio, mixed, c.fps); err != nil {
		return "", err
	}
	return mixed, nil
}

// Burn renders subtitles into video and returns the output path.
func (c *Composer) Burn(ctx context.Context, video, srt string, size ffmpeg.Size, dir string) (string, error) {
	dst := filepath.Join(dir, SubtitledName)
	if err := c.media.BurnSubtitles(ctx, video, srt, dst, ffmpeg.DefaultSubtitleStyle(size)); err != nil {
		return "", err
	}
	return dst, nil
}

// Thumbnail grabs a frame a little into the clip, or the first frame for
// very short clips.
func (c *Composer) Thumbnail(ctx context.Context, video string, duration float64, dir string) (string, error) {
	at := 1.0
	if duration < 2 {
		at = 0
	}
	dst := filepath.Join(dir, ThumbnailName)
	if err := c.media.ExtractFrame(ctx, video, dst, at); err != nil {
		return "", err
	}
	if _, err := os.Stat(dst); err != nil {
		return "", apperrors.Wrap(err, "compose.thumbnail", "thumbnail not written")
	}
	return dst, nil
}
