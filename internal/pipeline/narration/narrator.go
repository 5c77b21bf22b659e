// Package narration turns a script into an MP3 voice-over, trying each
// configured text-to-speech provider in order.
package narration

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
)

type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text, voice string, w io.Writer) error
}

type Narrator struct {
	providers []Synthesizer
	log       *logger.Logger
}

// New keeps the non-nil providers in the order given.
func New(log *logger.Logger, providers ...Synthesizer) *Narrator {
	if log == nil {
		log = logger.NewDefault()
	}
	n := &Narrator{log: log.WithComponent("narration")}
	for _, p := range providers {
		if p != nil {
			n.providers = append(n.providers, p)
		}
	}
	return n
}

// Providers lists provider names in fallback order.
func (n *Narrator) Providers() []string {
	out := make([]string, len(n.providers))
	for i, p := range n.providers {
		out[i] = p.Name()
	}
	return out
}

// Generate writes the narration to outPath and reports which provider made it.
func (n *Narrator) Generate(ctx context.Context, script, voice, outPath string) (string, error) {
	if len(n.providers) == 0 {
		return "", apperrors.Unavailable("narration").WithField("reason", "no text-to-speech provider configured")
	}

	log := n.log.FromContext(ctx)
	var errs []error
	for _, p := range n.providers {
		start := time.Now()
		err := writeAtomic(outPath, func(w io.Writer) error {
			return p.Synthesize(ctx, script, voice, w)
		})
		if err == nil {
			log.Info("narration generated",
				"provider", p.Name(),
				"voice", voice,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return p.Name(), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Warn("narration provider failed, trying next",
			"provider", p.Name(),
			"error", err.Error(),
		)
		errs = append(errs, err)
	}
	return "", apperrors.Upstream("narration", errors.Join(errs...))
}

// writeAtomic leaves no partial file behind when fn fails.
func writeAtomic(path string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".narration-*")
	if err != nil {
		return apperrors.Wrap(err, "narration.write", "create temp file")
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(err, "narration.write", "close temp file")
	}
	return os.Rename(tmp.Name(), path)
}
