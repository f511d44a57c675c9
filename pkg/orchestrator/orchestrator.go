// Package orchestrator coordinates all pipeline stages of one export.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
	"github.com/user/runcompare/pkg/progress"
	"github.com/user/runcompare/pkg/stages/layout"
	"github.com/user/runcompare/pkg/stages/overlay"
)

// Config contains all configuration for the orchestrator.
type Config struct {
	// Layout
	GridWidth   int
	GridHeight  int
	MaxLongEdge int

	// Style
	Background color.RGBA
	Theme      pipeline.OverlayTheme

	// Encoding
	Encode pipeline.EncodeSettings

	// WorkRoot is the parent of per-export scratch directories (default: os.TempDir()).
	WorkRoot string

	// ProgressInterval bounds how often progress is reported (default: 250ms).
	ProgressInterval time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	l := pipeline.DefaultLayoutInput()
	return Config{
		GridWidth:        l.GridWidth,
		GridHeight:       l.GridHeight,
		MaxLongEdge:      l.MaxLongEdge,
		Background:       color.RGBA{A: 255},
		Theme:            pipeline.DefaultOverlayTheme(),
		Encode:           pipeline.DefaultEncodeSettings(),
		ProgressInterval: progress.DefaultInterval,
	}
}

// Stages are the pipeline stages run before the export backend.
type Stages struct {
	Probe     pipeline.Stage[pipeline.ProbeInput, pipeline.ProbeResult]
	Plan      pipeline.Stage[pipeline.PlanInput, pipeline.Plan]
	Layout    pipeline.Stage[pipeline.LayoutInput, pipeline.LayoutResult]
	Transform pipeline.Stage[pipeline.TransformInput, pipeline.TransformResult]
	Padding   pipeline.Stage[pipeline.PaddingInput, pipeline.PaddingResult]
	Overlay   pipeline.Stage[pipeline.OverlayInput, pipeline.OverlayResult]
}

// Orchestrator coordinates the execution of all pipeline stages.
type Orchestrator struct {
	stages   Stages
	exporter ports.Exporter
	renderer ports.Renderer
	prober   ports.Prober
	fs       ports.FileSystem
	sink     ports.DebugSink
	logger   ports.Logger
	config   Config
}

// New creates a new Orchestrator. The prober verifies the duration of the
// written file and may be nil.
func New(
	stages Stages,
	exporter ports.Exporter,
	renderer ports.Renderer,
	prober ports.Prober,
	fs ports.FileSystem,
	sink ports.DebugSink,
	logger ports.Logger,
	config Config,
) *Orchestrator {
	return &Orchestrator{
		stages:   stages,
		exporter: exporter,
		renderer: renderer,
		prober:   prober,
		fs:       fs,
		sink:     sink,
		logger:   logger,
		config:   config,
	}
}

// Export runs one export. It never panics; failures are reported in the result.
// The output path is only written once the backend succeeded.
func (o *Orchestrator) Export(ctx context.Context, req pipeline.ExportRequest, report ports.ProgressFunc) (result pipeline.ExportResult) {
	start := time.Now()
	result.OutputPath = req.OutputPath

	defer func() {
		if p := recover(); p != nil {
			result = o.fail(result, fmt.Errorf("%w: panic: %v", pipeline.ErrEncodeFailed, p))
		}
	}()

	result, err := o.run(ctx, req, report, result)
	if err != nil {
		return o.fail(result, err)
	}

	o.logger.Info("Export completed in %d ms", time.Since(start).Milliseconds())
	return result
}

func (o *Orchestrator) fail(result pipeline.ExportResult, err error) pipeline.ExportResult {
	result.Success = false
	result.FileSizeBytes = 0
	result.ErrorKind = pipeline.KindOf(err)
	result.ErrorMessage = err.Error()
	if result.ErrorKind == pipeline.ErrorCancelled {
		o.logger.Info("Export cancelled")
	} else {
		o.logger.Error("Export failed: %s", err)
	}
	return result
}

// run executes the stages. Errors carry one of the pipeline sentinels.
func (o *Orchestrator) run(ctx context.Context, req pipeline.ExportRequest, report ports.ProgressFunc, result pipeline.ExportResult) (pipeline.ExportResult, error) {
	if err := req.Validate(); err != nil {
		return result, err
	}
	o.logger.Info("Starting export of %d sources (%s layout, %s sync)", len(req.Sources), req.Orientation, req.Sync)

	// 1. Resolve sources
	o.logger.Info("Resolving sources")
	probed, err := o.stages.Probe.Execute(ctx, pipeline.ProbeInput{Sources: req.Sources})
	if err != nil {
		return result, cancelled(ctx, err)
	}

	// 2. Plan segments
	plan, err := o.stages.Plan.Execute(ctx, pipeline.PlanInput{
		Sources:       probed.Sources,
		Sync:          req.Sync,
		MaxDurationMs: req.MaxDurationMs,
	})
	if err != nil {
		return result, cancelled(ctx, err)
	}
	result.SegmentCount = len(plan.Segments)
	result.Truncated = plan.Truncated
	o.logger.Info("Planned %d segments covering %d ms", len(plan.Segments), plan.TotalMs)
	if plan.Truncated {
		o.logger.Info("Plan truncated: %s", plan.Reason)
	}
	o.saveJSON(o.sink.SavePlanJSON, plan)

	// 3. Layout
	layoutResult, err := o.stages.Layout.Execute(ctx, o.buildLayoutInput(req, probed.Sources))
	if err != nil {
		return result, cancelled(ctx, err)
	}
	result.Canvas = layoutResult.Canvas
	o.logger.Info("Layout calculated: %dx%d canvas", layoutResult.Canvas.Width, layoutResult.Canvas.Height)
	o.saveJSON(o.sink.SaveLayoutJSON, layoutResult)
	if o.sink.Enabled() {
		o.sink.SaveLayoutSVG(layout.RenderSVG(layoutResult))
	}

	// 4. Transforms
	transforms, err := o.stages.Transform.Execute(ctx, pipeline.TransformInput{Sources: probed.Sources, Layout: layoutResult})
	if err != nil {
		return result, cancelled(ctx, err)
	}

	// 5. Freeze padding
	padding, err := o.stages.Padding.Execute(ctx, pipeline.PaddingInput{Plan: plan})
	if err != nil {
		return result, fmt.Errorf("%w: %v", pipeline.ErrInvalidRequest, err)
	}

	// 6. Overlays
	overlays, err := o.stages.Overlay.Execute(ctx, pipeline.OverlayInput{
		Request: req,
		Plan:    plan,
		Layout:  layoutResult,
		Theme:   o.config.Theme,
	})
	if err != nil {
		return result, cancelled(ctx, err)
	}
	rasterizer := overlay.NewRasterizer(o.renderer, o.logger, layoutResult.Canvas, overlays.Specs)

	// 7. Export into a temp file next to the destination
	workDir := filepath.Join(o.workRoot(), "runcompare-"+uuid.NewString())
	if err := o.fs.MkdirAll(workDir); err != nil {
		return result, fmt.Errorf("%w: work dir: %v", pipeline.ErrEncodeFailed, err)
	}
	defer o.remove(workDir, o.fs.RemoveAll)

	tmpPath := TempPath(req.OutputPath)
	committed := false
	defer func() {
		if !committed {
			o.remove(tmpPath, o.fs.Remove)
		}
	}()

	throttle := progress.NewThrottle(report, o.config.ProgressInterval)
	timeline := pipeline.Timeline{
		Sources:    probed.Sources,
		Plan:       plan,
		Layout:     layoutResult,
		Transforms: transforms.Transforms,
		Freezes:    padding.Freezes,
		Layer:      o.layerFunc(rasterizer),
		Background: o.config.Background,
		Encode:     o.config.Encode,
		WorkDir:    workDir,
		OutputPath: tmpPath,
	}

	o.logger.Info("Exporting with %s backend", o.exporter.Name())
	result.Backend = o.exporter.Name()
	if selector, ok := o.exporter.(ports.BackendSelector); ok {
		result.Backend, err = selector.ExportWithBackend(ctx, timeline, throttle.Func())
	} else {
		err = o.exporter.Export(ctx, timeline, throttle.Func())
	}
	result.SkippedOverlays = rasterizer.Skipped()
	if result.SkippedOverlays > 0 {
		o.logger.Warn("%d overlay elements skipped", result.SkippedOverlays)
	}
	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("%w: %v", pipeline.ErrCancelled, err)
		}
		return result, fmt.Errorf("%w: %s backend: %v", pipeline.ErrEncodeFailed, result.Backend, err)
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: %v", pipeline.ErrCancelled, err)
	}

	// 8. Verify and swap into place
	size, err := o.fs.Size(tmpPath)
	if err != nil || size == 0 {
		return result, fmt.Errorf("%w: backend produced no output", pipeline.ErrEncodeFailed)
	}
	result.DurationMs = o.outputDuration(ctx, tmpPath, plan.TotalMs)

	if err := o.fs.Rename(tmpPath, req.OutputPath); err != nil {
		o.logger.Error("Failed to write output: %s", err)
		return result, fmt.Errorf("%w: %v", pipeline.ErrEncodeFailed, err)
	}
	committed = true
	throttle.Complete()

	result.Success = true
	result.FileSizeBytes = size
	o.logger.Info("Output saved to %s (%d bytes)", req.OutputPath, size)
	return result, nil
}

func (o *Orchestrator) buildLayoutInput(req pipeline.ExportRequest, sources []pipeline.VideoSource) pipeline.LayoutInput {
	dims := make([]pipeline.Dimension, len(sources))
	for i, s := range sources {
		dims[i] = pipeline.Dimension{Width: s.Width, Height: s.Height}
	}
	return pipeline.LayoutInput{
		Orientation: req.Orientation,
		Sources:     dims,
		GridWidth:   o.config.GridWidth,
		GridHeight:  o.config.GridHeight,
		MaxLongEdge: o.config.MaxLongEdge,
	}
}

// layerFunc rasterises overlay layers on demand and mirrors them to the debug sink.
func (o *Orchestrator) layerFunc(r *overlay.Rasterizer) pipeline.LayerFunc {
	return func(segment int) (image.Image, error) {
		img, err := r.Layer(segment)
		if err == nil && img != nil && o.sink.Enabled() {
			o.sink.SaveOverlayLayer(segment, img)
		}
		return img, err
	}
}

// outputDuration probes the written file, falling back to the planned duration.
func (o *Orchestrator) outputDuration(ctx context.Context, path string, planned int) int {
	if o.prober == nil {
		return planned
	}
	info, err := o.prober.Probe(ctx, path)
	if err != nil || info.DurationMs <= 0 {
		if err == nil {
			err = errors.New("no duration")
		}
		o.logger.Warn("Could not verify output: %v", err)
		return planned
	}
	return info.DurationMs
}

func (o *Orchestrator) saveJSON(save func([]byte) error, v interface{}) {
	if !o.sink.Enabled() {
		return
	}
	if data, err := json.MarshalIndent(v, "", "  "); err == nil {
		save(data)
	}
}

func (o *Orchestrator) remove(path string, remove func(string) error) {
	exists, err := o.fs.Exists(path)
	if err != nil || !exists {
		return
	}
	if err := remove(path); err != nil {
		o.logger.Warn("Could not remove temporary file %s: %v", path, err)
	}
}

func (o *Orchestrator) workRoot() string {
	if o.config.WorkRoot != "" {
		return o.config.WorkRoot
	}
	return os.TempDir()
}

// TempPath returns a unique hidden file name next to outputPath.
func TempPath(outputPath string) string {
	dir, base := filepath.Split(outputPath)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp.mp4", base, uuid.NewString()))
}

// cancelled reclassifies stage errors caused by cancellation.
func cancelled(ctx context.Context, err error) error {
	if ctx.Err() != nil && !errors.Is(err, pipeline.ErrCancelled) {
		return fmt.Errorf("%w: %v", pipeline.ErrCancelled, err)
	}
	return err
}
