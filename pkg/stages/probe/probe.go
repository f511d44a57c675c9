// Package probe implements the input resolution stage.
package probe

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
	"github.com/user/runcompare/pkg/stages/transform"
)

// Stage resolves media metadata of every source.
type Stage struct {
	prober ports.Prober
	fs     ports.FileSystem
	logger ports.Logger
}

// NewStage creates a new probe stage.
func NewStage(prober ports.Prober, fs ports.FileSystem, logger ports.Logger) *Stage {
	return &Stage{
		prober: prober,
		fs:     fs,
		logger: logger.WithComponent("probe"),
	}
}

// Execute probes all sources in parallel.
// Values supplied by the caller win over probed ones.
func (s *Stage) Execute(ctx context.Context, input pipeline.ProbeInput) (pipeline.ProbeResult, error) {
	resolved := make([]pipeline.VideoSource, len(input.Sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range input.Sources {
		i, src := i, src
		g.Go(func() error {
			out, err := s.resolve(gctx, src)
			if err != nil {
				return fmt.Errorf("source %d: %w", i, err)
			}
			resolved[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return pipeline.ProbeResult{}, fmt.Errorf("%w: %v", pipeline.ErrCancelled, ctx.Err())
		}
		return pipeline.ProbeResult{}, err
	}

	return pipeline.ProbeResult{Sources: resolved}, nil
}

func (s *Stage) resolve(ctx context.Context, src pipeline.VideoSource) (pipeline.VideoSource, error) {
	exists, err := s.fs.Exists(src.Path)
	if err != nil || !exists {
		return src, fmt.Errorf("%w: %s not found", pipeline.ErrSourceUnavailable, src.Path)
	}

	info, err := s.prober.Probe(ctx, src.Path)
	if err != nil {
		return src, fmt.Errorf("%w: %s: %v", pipeline.ErrSourceUnavailable, src.Path, err)
	}
	if !info.HasVideo {
		return src, fmt.Errorf("%w: %s has no video track", pipeline.ErrSourceUnavailable, src.Path)
	}

	out := Merge(src, info)
	if out.DurationMs <= 0 || out.Width <= 0 || out.Height <= 0 {
		return src, fmt.Errorf("%w: %s has no usable duration or size", pipeline.ErrSourceUnavailable, src.Path)
	}

	s.logger.Debug("%s: %dx%d coded, rotation %d, %d ms, codec %s, audio %v",
		src.Path, out.CodedWidth, out.CodedHeight, out.Rotation, out.DurationMs, info.VideoCodec, out.HasAudio)
	return out, nil
}

// Merge fills the unset metadata of a source from probed media info.
// The displayed size is the coded size turned upright.
func Merge(src pipeline.VideoSource, info ports.MediaInfo) pipeline.VideoSource {
	out := src
	if out.DurationMs <= 0 {
		out.DurationMs = info.DurationMs
	}
	if out.Rotation == 0 {
		out.Rotation = info.Rotation
	}
	if out.CodedWidth <= 0 || out.CodedHeight <= 0 {
		out.CodedWidth, out.CodedHeight = info.CodedWidth, info.CodedHeight
	}
	if !out.HasAudio {
		out.HasAudio = info.HasAudio
	}

	if out.Width <= 0 || out.Height <= 0 {
		out.Width, out.Height = out.CodedWidth, out.CodedHeight
		if transform.QuarterTurns(out.Rotation)%2 == 1 {
			out.Width, out.Height = out.Height, out.Width
		}
	}
	return out
}
