// Package smartexporter selects an export backend with fallback support.
package smartexporter

import (
	"context"
	"errors"
	"strings"

	"github.com/user/runcompare/pkg/adapters/ffmpegexport"
	"github.com/user/runcompare/pkg/adapters/frameexport"
	"github.com/user/runcompare/pkg/adapters/framereader"
	"github.com/user/runcompare/pkg/adapters/h264encoder"
	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
)

// Backend names an export backend.
type Backend string

const (
	// BackendAuto runs the filtergraph backend and falls back to frames.
	BackendAuto Backend = "auto"
	// BackendFFmpeg renders everything in one ffmpeg filtergraph.
	BackendFFmpeg Backend = "ffmpeg"
	// BackendFrames decodes, composes and encodes frame by frame.
	BackendFrames Backend = "frames"
)

// ParseBackend parses a configuration name into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(s)) {
	case BackendAuto, "":
		return BackendAuto, nil
	case BackendFFmpeg, "filtergraph":
		return BackendFFmpeg, nil
	case BackendFrames, "frame":
		return BackendFrames, nil
	default:
		return "", errors.New("smartexporter: unknown backend " + s)
	}
}

// Info describes the selected backend.
type Info struct {
	Backend   Backend
	Requested Backend
}

// Deps are the collaborators shared by both backends.
type Deps struct {
	Renderer ports.Renderer
	Sink     ports.DebugSink
	FS       ports.FileSystem
	Logger   ports.Logger
}

// Options configures backend selection.
type Options struct {
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string
	// Workers is the compositing worker count of the frames backend.
	Workers int
}

var (
	// ErrNoBackendAvailable is returned when ffmpeg cannot be found.
	ErrNoBackendAvailable = errors.New("smartexporter: no export backend available")
)

// New creates an exporter for the preferred backend.
//
// Both backends need ffmpeg. Auto tries the filtergraph backend first and
// reruns the export with the frames backend when ffmpeg rejects the graph.
func New(preferred Backend, deps Deps, opts Options) (ports.Exporter, Info, error) {
	if opts.FFmpegPath != "" {
		h264encoder.SetFFmpegPath(opts.FFmpegPath)
	}
	if !h264encoder.IsFFmpegAvailable() {
		return nil, Info{}, ErrNoBackendAvailable
	}
	return build(preferred, deps, opts), Info{Backend: preferred, Requested: preferred}, nil
}

func build(preferred Backend, deps Deps, opts Options) ports.Exporter {
	graph := ffmpegexport.New(deps.Renderer, deps.FS, deps.Logger)
	frames := frameexport.New(framereader.New(), h264encoder.New(), deps.Renderer, deps.Sink, deps.FS, deps.Logger, opts.Workers)

	switch preferred {
	case BackendFFmpeg:
		return graph
	case BackendFrames:
		return frames
	default:
		return NewFallback(graph, frames, deps.Logger)
	}
}

// Fallback runs a primary exporter and retries with a secondary one when
// the primary fails for any reason other than cancellation.
// It holds no per-call state and is safe for concurrent exports.
type Fallback struct {
	primary   ports.Exporter
	secondary ports.Exporter
	logger    ports.Logger
}

// NewFallback creates a fallback exporter.
func NewFallback(primary, secondary ports.Exporter, logger ports.Logger) *Fallback {
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Name returns the preferred backend.
func (f *Fallback) Name() string {
	return f.primary.Name()
}

// Export runs the primary backend, then the secondary one if it failed.
func (f *Fallback) Export(ctx context.Context, t pipeline.Timeline, progress ports.ProgressFunc) error {
	_, err := f.ExportWithBackend(ctx, t, progress)
	return err
}

// ExportWithBackend is Export that also reports which backend produced the result.
func (f *Fallback) ExportWithBackend(ctx context.Context, t pipeline.Timeline, progress ports.ProgressFunc) (string, error) {
	err := f.primary.Export(ctx, t, progress)
	if err == nil || ctx.Err() != nil {
		return f.primary.Name(), err
	}

	f.logger.Warn("%s backend failed, falling back to %s: %v", f.primary.Name(), f.secondary.Name(), err)
	return f.secondary.Name(), f.secondary.Export(ctx, t, progress)
}

// Ensure Fallback implements ports.Exporter
var (
	_ ports.Exporter        = (*Fallback)(nil)
	_ ports.BackendSelector = (*Fallback)(nil)
)
