// Package juxtapose provides the high-level API for rendering run comparison videos.
package juxtapose

import (
	"context"
	"fmt"

	"github.com/user/runcompare/pkg/adapters/filesink"
	"github.com/user/runcompare/pkg/adapters/ggrenderer"
	"github.com/user/runcompare/pkg/adapters/logger"
	"github.com/user/runcompare/pkg/adapters/nullsink"
	"github.com/user/runcompare/pkg/adapters/osfilesystem"
	"github.com/user/runcompare/pkg/adapters/smartexporter"
	"github.com/user/runcompare/pkg/adapters/smartprober"
	"github.com/user/runcompare/pkg/config"
	"github.com/user/runcompare/pkg/orchestrator"
	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
	"github.com/user/runcompare/pkg/stages/layout"
	"github.com/user/runcompare/pkg/stages/overlay"
	"github.com/user/runcompare/pkg/stages/padding"
	"github.com/user/runcompare/pkg/stages/plan"
	"github.com/user/runcompare/pkg/stages/probe"
	"github.com/user/runcompare/pkg/stages/transform"
)

// Deps are the adapters an Engine runs on.
type Deps struct {
	Prober   ports.Prober
	Exporter ports.Exporter
	Renderer ports.Renderer
	FS       ports.FileSystem
	Sink     ports.DebugSink
	Logger   ports.Logger
}

// Engine renders comparison videos. It is safe for sequential reuse;
// concurrent exports should use separate engines.
type Engine struct {
	deps   Deps
	stages orchestrator.Stages
	orch   *orchestrator.Orchestrator
}

// New creates an Engine with the default adapters for cfg.
// The logger may be nil.
func New(cfg config.Config, log ports.Logger) (*Engine, error) {
	if log == nil {
		log = logger.NewNoop()
	}

	backend, err := smartexporter.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrInvalidRequest, err)
	}

	renderer := ggrenderer.New()
	fs := osfilesystem.New()
	var sink ports.DebugSink = nullsink.New()
	if cfg.Debug {
		if err := fs.MkdirAll(cfg.DebugDir); err != nil {
			return nil, fmt.Errorf("create debug directory: %w", err)
		}
		sink = filesink.New(cfg.DebugDir, fs, renderer)
	}

	exporter, info, err := smartexporter.New(backend, smartexporter.Deps{
		Renderer: renderer,
		Sink:     sink,
		FS:       fs,
		Logger:   log,
	}, smartexporter.Options{
		FFmpegPath: cfg.FFmpegPath,
		Workers:    cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrEncodeFailed, err)
	}
	log.Debug("Selected %s backend (requested %s)", info.Backend, info.Requested)

	return NewWithDeps(cfg, Deps{
		Prober:   smartprober.New(log),
		Exporter: exporter,
		Renderer: renderer,
		FS:       fs,
		Sink:     sink,
		Logger:   log,
	}), nil
}

// NewWithDeps creates an Engine on caller supplied adapters.
func NewWithDeps(cfg config.Config, deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoop()
	}
	if deps.Sink == nil {
		deps.Sink = nullsink.New()
	}

	stages := orchestrator.Stages{
		Probe:     probe.NewStage(deps.Prober, deps.FS, deps.Logger),
		Plan:      plan.NewStage(deps.Logger),
		Layout:    layout.NewStage(),
		Transform: transform.NewStage(),
		Padding:   padding.NewStage(),
		Overlay:   overlay.NewStage(deps.Renderer, deps.Logger),
	}

	return &Engine{
		deps:   deps,
		stages: stages,
		orch: orchestrator.New(stages, deps.Exporter, deps.Renderer, deps.Prober,
			deps.FS, deps.Sink, deps.Logger, cfg.ToOrchestratorConfig()),
	}
}

// Export renders req. Failures are reported in the result.
func (e *Engine) Export(ctx context.Context, req pipeline.ExportRequest, progress ports.ProgressFunc) pipeline.ExportResult {
	return e.orch.Export(ctx, req, progress)
}

// Plan resolves the sources of req and returns its segment plan without encoding.
func (e *Engine) Plan(ctx context.Context, req pipeline.ExportRequest) (pipeline.Plan, error) {
	if err := req.Validate(); err != nil {
		return pipeline.Plan{}, err
	}
	probed, err := e.stages.Probe.Execute(ctx, pipeline.ProbeInput{Sources: req.Sources})
	if err != nil {
		return pipeline.Plan{}, err
	}
	return e.stages.Plan.Execute(ctx, pipeline.PlanInput{
		Sources:       probed.Sources,
		Sync:          req.Sync,
		MaxDurationMs: req.MaxDurationMs,
	})
}

// Backend returns the name of the export backend.
func (e *Engine) Backend() string {
	return e.deps.Exporter.Name()
}

// Compare renders req with the default configuration and adapters.
// For custom dependencies (e.g., a custom logger), use New or NewWithDeps.
//
// Example:
//
//	req, err := juxtapose.NewRequestBuilder(pipeline.HorizontalSideBySide).
//	    AddSource("anna.mp4").WithLaps(1200, 31800, 62400).WithName("Anna").
//	    AddSource("ben.mp4").WithLaps(800, 32100, 63900).WithName("Ben").
//	    WithSync(pipeline.SyncLap).
//	    WithOutput("compare.mp4").
//	    Build()
//	result := juxtapose.Compare(ctx, req)
func Compare(ctx context.Context, req pipeline.ExportRequest) pipeline.ExportResult {
	engine, err := New(config.Defaults(), nil)
	if err != nil {
		return pipeline.ExportResult{
			OutputPath:   req.OutputPath,
			ErrorKind:    pipeline.KindOf(err),
			ErrorMessage: err.Error(),
		}
	}
	return engine.Export(ctx, req, nil)
}
