package narration

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go/v3"

	"clipforge/internal/catalog"
	apperrors "clipforge/internal/pkg/errors"
)

// OpenAITTS is the tts-1 fallback narrator.
type OpenAITTS struct {
	client openai.Client
}

func NewOpenAITTS(client openai.Client) *OpenAITTS {
	return &OpenAITTS{client: client}
}

func (o *OpenAITTS) Name() string { return "openai-tts" }

func (o *OpenAITTS) Synthesize(ctx context.Context, text, voice string, w io.Writer) error {
	res, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input: text,
		Model: openai.SpeechModelTTS1,
		Voice: openai.AudioSpeechNewParamsVoice(catalog.OpenAIVoice(voice)),
	})
	if err != nil {
		return apperrors.Upstream(o.Name(), err)
	}
	defer res.Body.Close()

	n, err := io.Copy(w, res.Body)
	if err != nil {
		return apperrors.Upstream(o.Name(), err)
	}
	if n == 0 {
		return apperrors.Upstream(o.Name(), fmt.Errorf("empty audio response"))
	}
	return nil
}
