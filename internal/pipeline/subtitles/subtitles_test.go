package subtitles

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"

	"clipforge/internal/llm"
	"clipforge/internal/pkg/logger"
)

func TestSentenceSegments(t *testing.T) {
	long := "alpha beta gamma delta, epsilon zeta and eta theta iota kappa lambda mu nu xi omicron pi"
	tests := []struct {
		name   string
		script string
		target int
		want   []string
	}{
		{"enough sentences", "One. Two! Three?", 3, []string{"One", "Two", "Three"}},
		{"repeated punctuation", "Wait... what?! Yes.", 2, []string{"Wait", "what", "Yes"}},
		{"split long sentence", long + ". Short one.", 7, []string{
			"alpha beta gamma delta",
			"epsilon zeta",
			"eta theta iota kappa lambda mu nu xi omicron pi",
			"Short one",
		}},
		{"short sentences kept", "just a few words here", 7, []string{"just a few words here"}},
		{"empty", "  ", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SentenceSegments(tt.script, tt.target); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWordChunks(t *testing.T) {
	got := WordChunks("a b c d e f g h i j k l m", 6)
	want := []string{"a b c d e f", "g h i j k l", "m"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := WordChunks("", 6); got != nil {
		t.Errorf("expected nil, got %q", got)
	}
}

func TestTimings(t *testing.T) {
	t.Run("proportional", func(t *testing.T) {
		got := Timings([]string{"a b c d", "e f"}, 3)
		want := []Segment{{"a b c d", 0, 2}, {"e f", 2, 3}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("max clamp and last end", func(t *testing.T) {
		got := Timings([]string{"a", "b"}, 100)
		if got[0].End != 5 || got[1].Start != 5 || got[1].End != 100 {
			t.Errorf("unexpected timings %+v", got)
		}
	})

	t.Run("min clamp bounded by total", func(t *testing.T) {
		texts := make([]string, 20)
		for i := range texts {
			texts[i] = "w"
		}
		got := Timings(texts, 4)
		if got[0].End != 0.8 {
			t.Errorf("expected 0.8s minimum, got %+v", got[0])
		}
		for _, s := range got {
			if s.End > 4 || s.Start > s.End {
				t.Errorf("segment out of range %+v", s)
			}
		}
		if got[19].End != 4 {
			t.Errorf("last segment should end at total, got %+v", got[19])
		}
	})

	t.Run("rounding", func(t *testing.T) {
		got := Timings([]string{"a", "b", "c"}, 10)
		if got[1].Start != 3.33 || got[1].End != 6.67 || got[2].End != 10 {
			t.Errorf("unexpected rounding %+v", got)
		}
	})

	t.Run("nothing to time", func(t *testing.T) {
		if got := Timings(nil, 10); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
		if got := Timings([]string{"a"}, 0); got != nil {
			t.Errorf("expected nil for zero duration, got %+v", got)
		}
	})
}

func TestFormatTime(t *testing.T) {
	tests := map[float64]string{
		0:      "00:00:00,000",
		2.3:    "00:00:02,300",
		59.999: "00:00:59,999",
		3725.5: "01:02:05,500",
		-1:     "00:00:00,000",
	}
	for in, want := range tests {
		if got := FormatTime(in); got != want {
			t.Errorf("FormatTime(%v) = %s, want %s", in, got, want)
		}
	}
}

func TestWriteSRT(t *testing.T) {
	var b strings.Builder
	err := WriteSRT(&b, []Segment{{"Hello", 0, 2}, {"World", 2, 3.5}})
	if err != nil {
		t.Fatal(err)
	}
	want := "1\n00:00:00,000 --> 00:00:02,000\nHello\n\n2\n00:00:02,000 --> 00:00:03,500\nWorld\n"
	if b.String() != want {
		t.Errorf("got %q, want %q", b.String(), want)
	}
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
		want    []string
	}{
		{"model segments", http.StatusOK, `{"segments":["Hello world out there.","Goodbye now dear friends."]}`, []string{"Hello world out there.", "Goodbye now dear friends."}},
		{"model error", http.StatusInternalServerError, "", []string{"Hello world out there", "Goodbye now dear friends"}},
		{"model returns nothing", http.StatusOK, `{"segments":[" "]}`, []string{"Hello world out there", "Goodbye now dear friends"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				if tt.status != http.StatusOK {
					w.WriteHeader(tt.status)
					_, _ = io.WriteString(w, `{"error":{"message":"boom"}}`)
					return
				}
				_, _ = io.WriteString(w, completion(tt.content))
			}))
			defer srv.Close()

			client := llm.NewOpenAI("k", option.WithBaseURL(srv.URL+"/v1/"), option.WithMaxRetries(0))
			s := NewSegmenter(&client, "", logger.Discard())
			got, err := s.Build(context.Background(), "Hello world out there. Goodbye now dear friends.", 8, 2)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v", got)
			}
			for i, seg := range got {
				if seg.Text != tt.want[i] {
					t.Errorf("segment %d = %q, want %q", i, seg.Text, tt.want[i])
				}
			}
			if got[0].End != 4 || got[1].End != 8 {
				t.Errorf("unexpected timings %+v", got)
			}
		})
	}
}

func TestBuildWithoutModel(t *testing.T) {
	got, err := NewSegmenter(nil, "", logger.Discard()).Build(context.Background(), "one two three", 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "one two three" || got[0].End != 2 {
		t.Errorf("unexpected segments %+v", got)
	}
}
