// Package images renders one still per prompt, falling back through the
// configured sources and finally to a plain placeholder.
package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"clipforge/internal/catalog"
	"clipforge/internal/pipeline/prompts"
	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
)

type Generator struct {
	sources     []Source
	concurrency int
	delay       time.Duration
	log         *logger.Logger
}

type Option func(*Generator)

// WithConcurrency bounds in-flight requests; values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(g *Generator) { g.concurrency = max(1, n) }
}

// WithDelay sets the pause between starting consecutive requests.
func WithDelay(d time.Duration) Option {
	return func(g *Generator) { g.delay = d }
}

func WithSources(sources ...Source) Option {
	return func(g *Generator) {
		for _, s := range sources {
			if s != nil {
				g.sources = append(g.sources, s)
			}
		}
	}
}

func New(log *logger.Logger, opts ...Option) *Generator {
	if log == nil {
		log = logger.NewDefault()
	}
	g := &Generator{concurrency: 1, delay: time.Second, log: log.WithComponent("images")}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FileName is the on-disk name of the i-th image.
func FileName(i int) string {
	return fmt.Sprintf("image_%03d.png", i)
}

// Generate writes one file per prompt into dir and returns the paths in
// prompt order.
func (g *Generator) Generate(ctx context.Context, ps []prompts.ImagePrompt, format catalog.Format, dir string) ([]string, error) {
	if len(ps) == 0 {
		return nil, apperrors.Validation("no image prompts")
	}

	paths := make([]string, len(ps))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for i, p := range ps {
		if i > 0 && g.delay > 0 {
			if err := sleep(egCtx, g.delay); err != nil {
				break
			}
		}
		eg.Go(func() error {
			data, source := g.render(egCtx, i, p, format)
			if egCtx.Err() != nil {
				return egCtx.Err()
			}
			if data == nil {
				return apperrors.Internal("no image produced").WithField("index", i)
			}
			path := filepath.Join(dir, FileName(i))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return apperrors.Wrap(err, "images.generate", "write image").WithField("path", path)
			}
			paths[i] = path
			g.log.FromContext(ctx).Debug("image written", "index", i, "source", source)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

// render tries each source in turn and ends with the placeholder.
func (g *Generator) render(ctx context.Context, i int, p prompts.ImagePrompt, format catalog.Format) ([]byte, string) {
	log := g.log.FromContext(ctx)
	for _, s := range g.sources {
		data, err := s.Generate(ctx, p, format)
		if err == nil && len(data) > 0 {
			return data, s.Name()
		}
		if ctx.Err() != nil {
			return nil, ""
		}
		if err != nil {
			log.Warn("image source failed", "index", i, "source", s.Name(), "error", err.Error())
		}
	}
	log.Warn("using placeholder image", "index", i)
	data, err := Placeholder(format)
	if err != nil {
		return nil, ""
	}
	return data, "placeholder"
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
