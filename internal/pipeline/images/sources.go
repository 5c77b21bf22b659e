package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"clipforge/internal/catalog"
	"clipforge/internal/pipeline/prompts"
	apperrors "clipforge/internal/pkg/errors"
)

const GeminiImageModel = "gemini-2.5-flash-image"

// Source produces encoded image bytes for one prompt.
type Source interface {
	Name() string
	Generate(ctx context.Context, p prompts.ImagePrompt, format catalog.Format) ([]byte, error)
}

type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini connects to the Gemini API with an API key.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	return newGemini(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func newGemini(ctx context.Context, cc *genai.ClientConfig) (*Gemini, error) {
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, apperrors.Upstream("gemini", err)
	}
	return &Gemini{client: client, model: GeminiImageModel}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Generate asks for an image in the video's own aspect ratio; format names
// are already Gemini ratios ("9:16", "16:9", "1:1").
func (g *Gemini) Generate(ctx context.Context, p prompts.ImagePrompt, format catalog.Format) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: format.Name},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(geminiPrompt(p)), cfg)
	if err != nil {
		return nil, apperrors.Upstream(g.Name(), err)
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, apperrors.Upstream(g.Name(), fmt.Errorf("no image in response"))
}

func geminiPrompt(p prompts.ImagePrompt) string {
	if p.NegativePrompt == "" {
		return p.Prompt
	}
	return p.Prompt + ". Avoid: " + p.NegativePrompt
}

type DallE struct {
	client openai.Client
}

func NewDallE(client openai.Client) *DallE {
	return &DallE{client: client}
}

func (d *DallE) Name() string { return "dall-e-3" }

func (d *DallE) Generate(ctx context.Context, p prompts.ImagePrompt, format catalog.Format) ([]byte, error) {
	res, err := d.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         p.Prompt,
		Model:          openai.ImageModelDallE3,
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(format.ImageSize),
		Quality:        openai.ImageGenerateParamsQualityStandard,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, apperrors.Upstream(d.Name(), err)
	}
	if len(res.Data) == 0 || res.Data[0].B64JSON == "" {
		return nil, apperrors.Upstream(d.Name(), fmt.Errorf("no image in response"))
	}
	b, err := base64.StdEncoding.DecodeString(res.Data[0].B64JSON)
	if err != nil {
		return nil, apperrors.Upstream(d.Name(), err)
	}
	return b, nil
}

var placeholderColor = color.RGBA{R: 50, G: 50, B: 100, A: 255}

// Placeholder renders a solid frame at the format's resolution.
func Placeholder(format catalog.Format) ([]byte, error) {
	w, h := format.Width, format.Height
	if w <= 0 || h <= 0 {
		w, h = 1080, 1080
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: placeholderColor}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperrors.Wrap(err, "images.placeholder", "encode placeholder")
	}
	return buf.Bytes(), nil
}
