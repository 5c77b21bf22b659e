// Package prompts turns a script into one image prompt per scene.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"

	v1 "clipforge/internal/contracts/video/v1"
	"clipforge/internal/llm"
	"clipforge/internal/pkg/logger"
)

const (
	textExclusions    = "text, letters, words, writing, typography, captions, subtitles, labels, signs, banners, written language, alphabet, numbers, symbols"
	qualityExclusions = "blurry, low quality, distorted, watermark, logo, signature, jpeg artifacts, pixelated, grainy"

	// DefaultNegative goes with prompts built without the model.
	DefaultNegative = "text, letters, words, writing, typography, captions, subtitles, labels, signs, blurry, low quality, distorted, ugly, bad anatomy, watermark"
)

type ImagePrompt struct {
	Prompt         string `json:"prompt" jsonschema_description:"Detailed visual description of one scene, with no text or lettering in it"`
	NegativePrompt string `json:"negative_prompt" jsonschema_description:"Comma separated things the image must not contain"`
}

type promptSet struct {
	Prompts []ImagePrompt `json:"prompts" jsonschema_description:"One prompt per scene, in script order"`
}

// Count is the number of images for a script, growing with its word count.
func Count(script string) int {
	w := len(strings.Fields(script))
	switch {
	case w < 100:
		return clamp(w/20+2, 3, 5)
	case w < 300:
		return clamp(w/40+3, 5, 7)
	case w < 500:
		return clamp(w/50+4, 7, 10)
	default:
		return clamp(w/60+5, 10, 12)
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// NegativeBase is what every model-written negative prompt must exclude.
func NegativeBase(negativeKeywords string) string {
	base := textExclusions + ", " + qualityExclusions
	if negativeKeywords = strings.TrimSpace(negativeKeywords); negativeKeywords != "" {
		base += ", " + negativeKeywords
	}
	return base
}

type Generator struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

// NewGenerator returns a generator. A nil client means prompts are always
// derived from the script itself.
func NewGenerator(client *openai.Client, model string, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Generator{client: client, model: model, log: log.WithComponent("prompts")}
}

// Generate returns exactly Count(req.Script) prompts. Model failures fall
// back to Defaults, so the only error is a cancelled context.
func (g *Generator) Generate(ctx context.Context, req v1.VideoRequest) ([]ImagePrompt, error) {
	count := Count(req.Script)
	log := g.log.FromContext(ctx)

	if g.client == nil {
		log.Info("no language model configured, using script chunks", "count", count)
		return Defaults(req.Script, req.Style, count), nil
	}

	out, err := llm.Structured[promptSet](ctx, *g.client, llm.Request{
		Model:             g.model,
		System:            systemPrompt(req, count),
		User:              "Script: " + req.Script,
		Temperature:       0.8,
		MaxTokens:         2000,
		SchemaName:        "image_prompts",
		SchemaDescription: "Image prompts for each scene of a narrated video",
		Schema:            llm.GenerateSchema[promptSet](),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("prompt generation failed, using script chunks", "error", err.Error())
		return Defaults(req.Script, req.Style, count), nil
	}

	prompts := fit(out.Prompts, count, NegativeBase(req.NegativeKeywords))
	if len(prompts) == 0 {
		log.Warn("model returned no prompts, using script chunks")
		return Defaults(req.Script, req.Style, count), nil
	}
	log.Info("image prompts generated", "count", len(prompts))
	return prompts, nil
}

// fit pads by repeating the last prompt or truncates to count, and makes sure
// every negative prompt keeps the text exclusions.
func fit(in []ImagePrompt, count int, negative string) []ImagePrompt {
	var out []ImagePrompt
	for _, p := range in {
		p.Prompt = strings.TrimSpace(p.Prompt)
		if p.Prompt == "" {
			continue
		}
		if !strings.Contains(p.NegativePrompt, textExclusions) {
			p.NegativePrompt = strings.Trim(negative+", "+strings.TrimSpace(p.NegativePrompt), ", ")
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil
	}
	for len(out) < count {
		out = append(out, out[len(out)-1])
	}
	return out[:count]
}

// Defaults splits the script into count chunks and describes each one.
func Defaults(script, style string, count int) []ImagePrompt {
	if count < 1 {
		count = 1
	}
	words := strings.Fields(script)
	chunk := max(1, len(words)/count)

	out := make([]ImagePrompt, count)
	for i := range count {
		start := min(i*chunk, len(words))
		end := min(start+chunk, len(words))
		if i == count-1 {
			end = len(words)
		}
		text := strings.Join(words[start:end], " ")
		if len(text) > 100 {
			text = truncateRunes(text, 100)
		}
		out[i] = ImagePrompt{
			Prompt:         fmt.Sprintf("%s in %s style, high quality, detailed, no text, no letters", text, style),
			NegativePrompt: DefaultNegative,
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func systemPrompt(req v1.VideoRequest, count int) string {
	keywords := "Use vivid, descriptive language"
	if req.Keywords != "" {
		keywords = "Include these keywords: " + req.Keywords
	}
	negative := NegativeBase(req.NegativeKeywords)

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert at creating detailed image prompts for AI image generation.\n")
	fmt.Fprintf(&b, "Create exactly %d unique image prompts based on the provided script.\n\n", count)
	b.WriteString("Requirements:\n")
	b.WriteString("1. Each prompt represents a key scene or moment from the script, in script order\n")
	fmt.Fprintf(&b, "2. Use the style: %s\n", req.Style)
	fmt.Fprintf(&b, "3. %s\n", keywords)
	b.WriteString("4. Make prompts detailed and vivid, 1-2 sentences each\n")
	b.WriteString("5. Do NOT include any text, letters, words, or writing in the scene descriptions\n")
	b.WriteString("6. Focus on visual elements: people, objects, landscapes, atmosphere, lighting, colors\n")
	fmt.Fprintf(&b, "7. Every negative prompt must include: %s\n", negative)
	return b.String()
}
