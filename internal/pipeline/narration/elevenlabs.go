package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clipforge/internal/catalog"
	apperrors "clipforge/internal/pkg/errors"
)

const (
	ElevenLabsBaseURL = "https://api.elevenlabs.io"
	ElevenLabsModel   = "eleven_turbo_v2_5"
)

// ElevenLabs calls the text-to-speech REST endpoint directly.
type ElevenLabs struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewElevenLabs(apiKey, baseURL string) *ElevenLabs {
	if baseURL == "" {
		baseURL = ElevenLabsBaseURL
	}
	return &ElevenLabs{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   ElevenLabsModel,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

// Synthesize writes MP3 audio for text. Unknown voices use the default voice.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voice string, w io.Writer) error {
	v, _ := catalog.ResolveVoice(voice)

	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": e.model,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=mp3_44100_128", e.baseURL, url.PathEscape(v.ElevenLabsID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	res, err := e.client.Do(req)
	if err != nil {
		return apperrors.Upstream(e.Name(), err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return apperrors.Upstream(e.Name(), fmt.Errorf("elevenlabs http %d: %s", res.StatusCode, strings.TrimSpace(string(snippet))))
	}

	n, err := io.Copy(w, res.Body)
	if err != nil {
		return apperrors.Upstream(e.Name(), err)
	}
	if n == 0 {
		return apperrors.Upstream(e.Name(), fmt.Errorf("empty audio response"))
	}
	return nil
}
