package ffmpeg

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    float64
		wantErr bool
	}{
		{"ok", `{"format":{"duration":"12.480000"}}`, 12.48, false},
		{"missing", `{"format":{}}`, 0, true},
		{"zero", `{"format":{"duration":"0.000"}}`, 0, true},
		{"garbage", `not json`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDuration([]byte(tt.out))
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeArgs(t *testing.T) {
	args := strings.Join(normalizeArgs("in.png", "out.png", Size{1080, 1920}), " ")
	want := "-vf scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920 -frames:v 1 out.png"
	if !strings.Contains(args, want) {
		t.Errorf("expected %q in %q", want, args)
	}
}

func TestZoompanExpr(t *testing.T) {
	tests := []struct {
		effect Effect
		wantZ  string
		wantX  string
	}{
		{EffectZoomIn, "1+0.3*on/90", "iw/2-(iw/zoom/2)"},
		{EffectZoomOut, "1.3-0.3*on/90", "iw/2-(iw/zoom/2)"},
		{EffectPanLeft, "1.15", "(iw-iw/zoom)*(1-on/90)"},
		{EffectPanRight, "1.15", "(iw-iw/zoom)*on/90"},
		{Effect("spin"), "1+0.3*on/90", "iw/2-(iw/zoom/2)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.effect), func(t *testing.T) {
			z, x, y := zoompanExpr(tt.effect, 90)
			if z != tt.wantZ || x != tt.wantX || y != "ih/2-(ih/zoom/2)" {
				t.Errorf("got z=%s x=%s y=%s", z, x, y)
			}
		})
	}
}

func TestMotionArgs(t *testing.T) {
	args := motionArgs("img.png", "seg.mp4", EffectZoomIn, 3.0, Size{1080, 1920}, 30)
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"scale=2160:3840,zoompan=z='1+0.3*on/90'",
		"d=90:s=1080x1920:fps=30",
		"-frames:v 90",
		"-c:v libx264",
		"-r 30",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in %q", want, joined)
		}
	}
	if args[len(args)-1] != "seg.mp4" {
		t.Error("output must be the last argument")
	}
}

func TestFrameCount(t *testing.T) {
	if frameCount(2.49, 30) != 75 || frameCount(0, 30) != 1 {
		t.Errorf("unexpected frame counts %d %d", frameCount(2.49, 30), frameCount(0, 30))
	}
}

func TestMuxArgs(t *testing.T) {
	joined := strings.Join(muxArgs("v.mp4", "n.mp3", "out.mp4", 24), " ")
	for _, want := range []string{"-i v.mp4 -i n.mp3", "-c:a aac", "-shortest", "-r 24", "-c:v libx264"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in %q", want, joined)
		}
	}
}

func TestConcatList(t *testing.T) {
	got := concatList([]string{"/w/seg_000.mp4", "/w/it's.mp4"})
	want := "file '/w/seg_000.mp4'\nfile '/w/it'\\''s.mp4'\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConcatRejectsEmpty(t *testing.T) {
	c := NewClient("", "")
	if err := c.Concat(context.Background(), nil, filepath.Join(t.TempDir(), "l.txt"), "o.mp4"); err == nil {
		t.Error("expected error for empty segment list")
	}
}

func TestBurnArgs(t *testing.T) {
	style := DefaultSubtitleStyle(Size{1080, 1920})
	joined := strings.Join(burnArgs("/w/in.mp4", "subtitles.srt", "/w/out.mp4", style), " ")
	if !strings.Contains(joined, "subtitles=subtitles.srt:force_style='FontName=Arial,FontSize=16,Bold=1") {
		t.Errorf("unexpected filter in %q", joined)
	}
	if !strings.Contains(joined, "-c:a copy") {
		t.Error("audio should be copied")
	}
	if DefaultSubtitleStyle(Size{1920, 1080}).FontSize != 20 {
		t.Error("landscape should use a larger font")
	}
}

func TestFrameArgs(t *testing.T) {
	joined := strings.Join(frameArgs("v.mp4", "thumb.jpg", 1.5), " ")
	if !strings.HasPrefix(joined, "-y -v error -ss 1.50 -i v.mp4 -frames:v 1") {
		t.Errorf("unexpected args %q", joined)
	}
}

func TestRunReportsMissingBinary(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "no-ffmpeg"), "")
	err := c.NormalizeImage(context.Background(), "a.png", "b.png", Size{10, 10})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "ffmpeg failed") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestTail(t *testing.T) {
	long := strings.Repeat("a", 1000) + "END"
	got := tail(long)
	if !strings.HasSuffix(got, "END") || len(got) != 603 {
		t.Errorf("unexpected tail len=%d", len(got))
	}
	if tail("  short \n") != "short" {
		t.Error("short stderr should be trimmed only")
	}
}
