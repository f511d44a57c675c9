// Package ffmpegexport renders a timeline with a single ffmpeg filtergraph.
package ffmpegexport

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
)

// Exporter implements ports.Exporter by letting ffmpeg decode, rotate,
// scale, freeze, place and encode every source in one process.
// Overlay layers are rasterised to PNG files in the work directory.
type Exporter struct {
	renderer ports.Renderer
	fs       ports.FileSystem
	logger   ports.Logger
	run      Runner
}

// New creates a new filtergraph exporter.
func New(renderer ports.Renderer, fs ports.FileSystem, logger ports.Logger) *Exporter {
	return &Exporter{
		renderer: renderer,
		fs:       fs,
		logger:   logger.WithComponent("ffmpeg"),
		run:      Run,
	}
}

// WithRunner replaces the ffmpeg runner.
func (e *Exporter) WithRunner(run Runner) *Exporter {
	e.run = run
	return e
}

// Name returns the backend name.
func (e *Exporter) Name() string {
	return "ffmpeg"
}

// Export renders the timeline into timeline.OutputPath.
func (e *Exporter) Export(ctx context.Context, t pipeline.Timeline, progress ports.ProgressFunc) error {
	overlays, err := e.writeOverlays(ctx, t)
	if err != nil {
		return err
	}

	args, err := Args(t, overlays)
	if err != nil {
		return err
	}

	e.logger.Debug("Running ffmpeg with %d inputs", countInputs(args))
	if err := e.run(ctx, args, t.Plan.TotalMs, progress); err != nil {
		return err
	}
	if progress != nil {
		progress(1)
	}
	return nil
}

// writeOverlays saves every non-empty overlay layer as a PNG in the work dir.
func (e *Exporter) writeOverlays(ctx context.Context, t pipeline.Timeline) (map[int]string, error) {
	overlays := make(map[int]string)
	if t.Layer == nil {
		return overlays, nil
	}
	if err := e.fs.MkdirAll(t.WorkDir); err != nil {
		return nil, errors.Wrap(err, "create work dir")
	}

	for _, seg := range t.Plan.Segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := t.Layer(seg.Index)
		if err != nil {
			return nil, errors.Wrapf(err, "overlay layer %d", seg.Index)
		}
		if img == nil {
			continue
		}
		data, err := e.renderer.EncodeImage(img, ports.FormatPNG, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "encode overlay layer %d", seg.Index)
		}
		path := filepath.Join(t.WorkDir, fmt.Sprintf("overlay-%03d.png", seg.Index))
		if err := e.fs.WriteFile(path, data); err != nil {
			return nil, errors.Wrapf(err, "write overlay layer %d", seg.Index)
		}
		overlays[seg.Index] = path
	}
	return overlays, nil
}

func countInputs(args []string) int {
	n := 0
	for _, a := range args {
		if a == "-i" {
			n++
		}
	}
	return n
}

// Ensure Exporter implements ports.Exporter
var _ ports.Exporter = (*Exporter)(nil)
