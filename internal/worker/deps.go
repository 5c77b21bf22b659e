package worker

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"

	"clipforge/internal/config"
	"clipforge/internal/llm"
	"clipforge/internal/pipeline"
	"clipforge/internal/pipeline/compose"
	"clipforge/internal/pipeline/images"
	"clipforge/internal/pipeline/narration"
	"clipforge/internal/pipeline/prompts"
	"clipforge/internal/pipeline/subtitles"
	"clipforge/internal/pkg/ffmpeg"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/ports"
	"clipforge/internal/worker/processor"
)

type Deps struct {
	Jobs      ports.JobStore
	Queue     ports.JobQueue
	Processor JobProcessor
	Log       *logger.Logger
	// RetryDelay is the pause after a failed pop; zero means one second.
	RetryDelay time.Duration
}

// NewProcessor wires the generation clients from cfg into a processor.
// Providers whose API key is missing are left out of their fallback chain.
func NewProcessor(ctx context.Context, cfg *config.Config, store ports.Store, sp ports.StorageProvider, log *logger.Logger) (*processor.Processor, error) {
	var oai *openai.Client
	if cfg.OpenAIAPIKey != "" {
		c := llm.NewOpenAI(cfg.OpenAIAPIKey)
		oai = &c
	}

	var synths []narration.Synthesizer
	if cfg.ElevenLabsAPIKey != "" {
		synths = append(synths, narration.NewElevenLabs(cfg.ElevenLabsAPIKey, ""))
	}
	var sources []images.Source
	if cfg.GoogleAPIKey != "" {
		g, err := images.NewGemini(ctx, cfg.GoogleAPIKey)
		if err != nil {
			log.Warn("gemini unavailable, skipping it", "error", err.Error())
		} else {
			sources = append(sources, g)
		}
	}
	if oai != nil {
		synths = append(synths, narration.NewOpenAITTS(*oai))
		sources = append(sources, images.NewDallE(*oai))
	}

	composer := compose.New(ffmpeg.NewClient(cfg.FFmpegPath, cfg.FFprobePath), cfg.DefaultFPS, log)

	pl, err := pipeline.NewVideo(pipeline.Deps{
		Narrator: narration.New(log, synths...),
		Prompter: prompts.NewGenerator(oai, cfg.PromptModel, log),
		Illustrator: images.New(log,
			images.WithSources(sources...),
			images.WithConcurrency(cfg.ImageConcurrency),
			images.WithDelay(cfg.ImageRateLimitDelay),
		),
		Composer:  composer,
		Captioner: subtitles.NewSegmenter(oai, cfg.SubtitleModel, log),
		Persister: processor.NewOutputHandler(store, sp, composer, log),
		Log:       log,
	})
	if err != nil {
		return nil, err
	}

	return processor.New(processor.Deps{
		Jobs:            store,
		Pipeline:        pl,
		WorkDir:         cfg.WorkDir,
		KeepWorkFiles:   cfg.KeepWorkFiles,
		MaxScriptLength: cfg.MaxScriptLength,
		Log:             log,
	}), nil
}
