// Package subtitles splits a script into timed captions and writes them as SRT.
package subtitles

import (
	"context"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	"github.com/openai/openai-go/v3"

	"clipforge/internal/llm"
	"clipforge/internal/pkg/logger"
)

const (
	minSegmentSeconds = 0.8
	maxSegmentSeconds = 5.0
	longSentenceWords = 15
	chunkWords        = 6
)

var (
	sentenceBoundary = regexp.MustCompile(`[.!?]+`)
	clauseBoundary   = regexp.MustCompile(`,\s*|\s+and\s+|\s+but\s+|\s+or\s+`)
)

const systemPrompt = "You are an expert video subtitle creator. Create concise, readable subtitle segments that match natural speech patterns."

type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

type segmentList struct {
	Segments []string `json:"segments" jsonschema_description:"Subtitle lines in script order, together covering every word of the script"`
}

type Segmenter struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

// NewSegmenter returns a segmenter; a nil client skips the model and splits
// on sentence boundaries.
func NewSegmenter(client *openai.Client, model string, log *logger.Logger) *Segmenter {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Segmenter{client: client, model: model, log: log.WithComponent("subtitles")}
}

// Build returns timed segments spanning [0, total].
func (s *Segmenter) Build(ctx context.Context, script string, total float64, scenes int) ([]Segment, error) {
	texts, err := s.split(ctx, script, scenes)
	if err != nil {
		return nil, err
	}
	if segs := Timings(texts, total); len(segs) > 0 {
		return segs, nil
	}
	return Timings(WordChunks(script, chunkWords), total), nil
}

func (s *Segmenter) split(ctx context.Context, script string, scenes int) ([]string, error) {
	log := s.log.FromContext(ctx)
	if s.client != nil {
		out, err := llm.Structured[segmentList](ctx, *s.client, llm.Request{
			Model:             s.model,
			System:            systemPrompt,
			User:              userPrompt(script),
			Temperature:       0.3,
			MaxTokens:         2000,
			SchemaName:        "subtitle_segments",
			SchemaDescription: "Subtitle segments for a narrated video",
			Schema:            llm.GenerateSchema[segmentList](),
		})
		if err == nil {
			if texts := nonEmpty(out.Segments); len(texts) > 0 {
				log.Info("subtitle segments generated", "count", len(texts))
				return texts, nil
			}
			log.Warn("model returned no subtitle segments, splitting sentences")
		} else {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("subtitle segmentation failed, splitting sentences", "error", err.Error())
		}
	}
	return SentenceSegments(script, scenes), nil
}

func userPrompt(script string) string {
	return `Break this video script into subtitle segments.
Each segment should:
- Be 1-2 short sentences (5-12 words each)
- Match natural speaking rhythm and pauses
- Be readable on screen (not too long)
- Cover ALL text from the script (don't skip anything)
- End at natural break points

IMPORTANT: Include EVERY word from the script, do not omit any text.

Script:
` + script
}

// SentenceSegments splits on sentence punctuation. When that yields fewer
// than 70% of target, sentences longer than 15 words are split again at
// commas and conjunctions.
func SentenceSegments(script string, target int) []string {
	sentences := nonEmpty(sentenceBoundary.Split(script, -1))
	if float64(len(sentences)) >= float64(target)*0.7 {
		return sentences
	}

	var out []string
	for _, sentence := range sentences {
		if len(strings.Fields(sentence)) > longSentenceWords {
			out = append(out, nonEmpty(clauseBoundary.Split(sentence, -1))...)
			continue
		}
		out = append(out, sentence)
	}
	if len(out) == 0 {
		if script = strings.TrimSpace(script); script != "" {
			return []string{script}
		}
	}
	return out
}

// WordChunks groups the script into runs of n words.
func WordChunks(script string, n int) []string {
	words := strings.Fields(script)
	var out []string
	for i := 0; i < len(words); i += n {
		out = append(out, strings.Join(words[i:min(i+n, len(words))], " "))
	}
	return out
}

// Timings gives each segment a share of total proportional to its word
// count, clamped to [0.8, 5.0] seconds. The last segment always ends at total.
func Timings(texts []string, total float64) []Segment {
	counts := make([]int, len(texts))
	sum := 0
	for i, t := range texts {
		counts[i] = len(strings.Fields(t))
		sum += counts[i]
	}
	if sum == 0 || total <= 0 {
		return nil
	}

	out := make([]Segment, len(texts))
	cur := 0.0
	for i, t := range texts {
		d := float64(counts[i]) / float64(sum) * total
		d = math.Max(minSegmentSeconds, math.Min(maxSegmentSeconds, d))
		end := math.Min(cur+d, total)
		out[i] = Segment{Text: strings.TrimSpace(t), Start: round2(cur), End: round2(end)}
		cur = end
	}
	out[len(out)-1].End = total
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatTime renders seconds as HH:MM:SS,mmm.
func FormatTime(seconds float64) string {
	ms := int64(math.Round(math.Max(0, seconds) * 1000))
	h := ms / 3_600_000
	m := ms % 3_600_000 / 60_000
	s := ms % 60_000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// WriteSRT writes numbered cues separated by blank lines.
func WriteSRT(w io.Writer, segs []Segment) error {
	for i, seg := range segs {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n", i+1, FormatTime(seg.Start), FormatTime(seg.End), seg.Text); err != nil {
			return err
		}
	}
	return nil
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
