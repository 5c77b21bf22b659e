// Package ffmpeg wraps the ffmpeg and ffprobe binaries used to turn narration
// and still images into a finished clip.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "clipforge/internal/pkg/errors"
)

type Client struct {
	ffmpegPath  string
	ffprobePath string
}

func NewClient(ffmpegPath, ffprobePath string) *Client {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Client{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Effect is the camera motion applied to one still.
type Effect string

const (
	EffectZoomIn   Effect = "zoom_in"
	EffectZoomOut  Effect = "zoom_out"
	EffectPanLeft  Effect = "pan_left"
	EffectPanRight Effect = "pan_right"
)

// Size is an output resolution in pixels.
type Size struct {
	Width, Height int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Duration returns the length of a media file in seconds.
func (c *Client) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, apperrors.Wrap(err, "ffprobe", "ffprobe failed").
			WithField("path", path).
			WithField("stderr", tail(stderr.String()))
	}
	return parseDuration(out)
}

func parseDuration(out []byte) (float64, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, apperrors.Wrap(err, "ffprobe", "decode ffprobe output")
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil || d <= 0 {
		return 0, apperrors.Newf(apperrors.CodeInternal, "ffprobe reported no duration: %q", probe.Format.Duration)
	}
	return d, nil
}

// NormalizeImage scales src to cover size and center-crops the overflow.
func (c *Client) NormalizeImage(ctx context.Context, src, dst string, size Size) error {
	return c.run(ctx, "", normalizeArgs(src, dst, size))
}

func normalizeArgs(src, dst string, size Size) []string {
	return []string{
		"-y", "-v", "error",
		"-i", src,
		"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
			size.Width, size.Height, size.Width, size.Height),
		"-frames:v", "1",
		dst,
	}
}

// MotionSegment renders a still as a clip of the given duration with a
// zoompan camera move.
func (c *Client) MotionSegment(ctx context.Context, src, dst string, effect Effect, seconds float64, size Size, fps int) error {
	return c.run(ctx, "", motionArgs(src, dst, effect, seconds, size, fps))
}

func frameCount(seconds float64, fps int) int {
	n := int(seconds*float64(fps) + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}

// zoompanExpr returns the zoom, x and y expressions for an effect over
// frames output frames. Zoom runs between 1.0 and 1.3; pans hold 1.15.
func zoompanExpr(effect Effect, frames int) (z, x, y string) {
	center := "iw/2-(iw/zoom/2)"
	middle := "ih/2-(ih/zoom/2)"
	switch effect {
	case EffectZoomOut:
		return fmt.Sprintf("1.3-0.3*on/%d", frames), center, middle
	case EffectPanLeft:
		return "1.15", fmt.Sprintf("(iw-iw/zoom)*(1-on/%d)", frames), middle
	case EffectPanRight:
		return "1.15", fmt.Sprintf("(iw-iw/zoom)*on/%d", frames), middle
	default:
		return fmt.Sprintf("1+0.3*on/%d", frames), center, middle
	}
}

func motionArgs(src, dst string, effect Effect, seconds float64, size Size, fps int) []string {
	frames := frameCount(seconds, fps)
	z, x, y := zoompanExpr(effect, frames)
	// Upscaling first keeps the zoompan motion from stepping.
	vf := fmt.Sprintf("scale=%d:%d,zoompan=z='%s':x='%s':y='%s':d=%d:s=%s:fps=%d,format=yuv420p",
		size.Width*2, size.Height*2, z, x, y, frames, size, fps)
	return []string{
		"-y", "-v", "error",
		"-i", src,
		"-vf", vf,
		"-frames:v", strconv.Itoa(frames),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(fps),
		dst,
	}
}

// Concat joins segments with the concat demuxer; listPath is written first.
func (c *Client) Concat(ctx context.Context, segments []string, listPath, dst string) error {
	if len(segments) == 0 {
		return apperrors.Validation("no segments to concatenate")
	}
	if err := os.WriteFile(listPath, []byte(concatList(segments)), 0o644); err != nil {
		return apperrors.Wrap(err, "ffmpeg.concat", "write concat list")
	}
	return c.run(ctx, "", []string{
		"-y", "-v", "error",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		dst,
	})
}

func concatList(segments []string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(s, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// MuxAudio puts narration under video, trimming to the shorter stream.
func (c *Client) MuxAudio(ctx context.Context, video, audio, dst string, fps int) error {
	return c.run(ctx, "", muxArgs(video, audio, dst, fps))
}

func muxArgs(video, audio, dst string, fps int) []string {
	return []string{
		"-y", "-v", "error",
		"-i", video,
		"-i", audio,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(fps),
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		dst,
	}
}

// SubtitleStyle is passed to libass through force_style.
type SubtitleStyle struct {
	FontName     string
	FontSize     int
	MarginV      int
	Outline      int
	PrimaryColor string
	OutlineColor string
}

// DefaultSubtitleStyle is white bold text with a black outline near the
// bottom edge.
func DefaultSubtitleStyle(size Size) SubtitleStyle {
	fontSize := 16
	if size.Width > size.Height {
		fontSize = 20
	}
	return SubtitleStyle{
		FontName:     "Arial",
		FontSize:     fontSize,
		MarginV:      40,
		Outline:      2,
		PrimaryColor: "&H00FFFFFF",
		OutlineColor: "&H00000000",
	}
}

func (s SubtitleStyle) forceStyle() string {
	return fmt.Sprintf("FontName=%s,FontSize=%d,Bold=1,PrimaryColour=%s,OutlineColour=%s,BorderStyle=1,Outline=%d,Shadow=0,Alignment=2,MarginV=%d",
		s.FontName, s.FontSize, s.PrimaryColor, s.OutlineColor, s.Outline, s.MarginV)
}

// BurnSubtitles renders an SRT file into the video. ffmpeg runs inside the
// subtitle file's directory so the filter argument needs no path escaping.
func (c *Client) BurnSubtitles(ctx context.Context, video, srt, dst string, style SubtitleStyle) error {
	video, err := filepath.Abs(video)
	if err != nil {
		return apperrors.Wrap(err, "ffmpeg.subtitles", "resolve video path")
	}
	dst, err = filepath.Abs(dst)
	if err != nil {
		return apperrors.Wrap(err, "ffmpeg.subtitles", "resolve output path")
	}
	return c.run(ctx, filepath.Dir(srt), burnArgs(video, filepath.Base(srt), dst, style))
}

func burnArgs(video, srtName, dst string, style SubtitleStyle) []string {
	return []string{
		"-y", "-v", "error",
		"-i", video,
		"-vf", fmt.Sprintf("subtitles=%s:force_style='%s'", srtName, style.forceStyle()),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
		"-movflags", "+faststart",
		dst,
	}
}

// ExtractFrame writes the frame at the given offset as a JPEG.
func (c *Client) ExtractFrame(ctx context.Context, video, dst string, at float64) error {
	return c.run(ctx, "", frameArgs(video, dst, at))
}

func frameArgs(video, dst string, at float64) []string {
	return []string{
		"-y", "-v", "error",
		"-ss", strconv.FormatFloat(at, 'f', 2, 64),
		"-i", video,
		"-frames:v", "1",
		"-q:v", "2",
		dst,
	}
}

func (c *Client) run(ctx context.Context, dir string, args []string) error {
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Wrap(err, "ffmpeg", "ffmpeg failed").
			WithField("output", args[len(args)-1]).
			WithField("stderr", tail(stderr.String()))
	}
	return nil
}

// tail keeps the end of ffmpeg's stderr, where the actual error is printed.
func tail(s string) string {
	const keep = 600
	s = strings.TrimSpace(s)
	if len(s) <= keep {
		return s
	}
	return "..." + s[len(s)-keep:]
}
