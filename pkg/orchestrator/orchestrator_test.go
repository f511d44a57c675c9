package orchestrator

import (
	"context"
	"errors"
	"image/color"
	"strings"
	"testing"

	"github.com/user/runcompare/pkg/adapters/logger"
	"github.com/user/runcompare/pkg/mocks"
	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
	"github.com/user/runcompare/pkg/stages/layout"
	"github.com/user/runcompare/pkg/stages/overlay"
	"github.com/user/runcompare/pkg/stages/padding"
	"github.com/user/runcompare/pkg/stages/plan"
	"github.com/user/runcompare/pkg/stages/probe"
	"github.com/user/runcompare/pkg/stages/transform"
)

type fixture struct {
	fs       *mocks.FileSystem
	sink     *mocks.DebugSink
	exporter *mocks.Exporter
	prober   *mocks.Prober
	verify   *mocks.Prober
	orch     *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		fs:   mocks.NewFileSystem(),
		sink: mocks.NewDebugSink(true),
		prober: mocks.NewProber(map[string]ports.MediaInfo{
			"/in/a.mp4": {DurationMs: 10000, CodedWidth: 1920, CodedHeight: 1080, HasVideo: true, HasAudio: true},
			"/in/b.mp4": {DurationMs: 12000, CodedWidth: 1920, CodedHeight: 1080, Rotation: 90, HasVideo: true},
			"/in/c.mp4": {DurationMs: 9000, CodedWidth: 1280, CodedHeight: 720, HasVideo: true},
			"/in/d.mp4": {DurationMs: 9500, CodedWidth: 1280, CodedHeight: 720, HasVideo: true},
		}),
		verify: &mocks.Prober{ProbeFunc: func(ctx context.Context, path string) (ports.MediaInfo, error) {
			return ports.MediaInfo{DurationMs: 1234, HasVideo: true}, nil
		}},
	}
	for _, p := range []string{"/in/a.mp4", "/in/b.mp4", "/in/c.mp4", "/in/d.mp4"} {
		f.fs.WriteFile(p, []byte("source"))
	}
	f.exporter = &mocks.Exporter{FS: f.fs}

	renderer := &mocks.Renderer{}
	log := logger.NewNoop()
	stages := Stages{
		Probe:     probe.NewStage(f.prober, f.fs, log),
		Plan:      plan.NewStage(log),
		Layout:    layout.NewStage(),
		Transform: transform.NewStage(),
		Padding:   padding.NewStage(),
		Overlay:   overlay.NewStage(renderer, log),
	}
	config := DefaultConfig()
	config.WorkRoot = "/work"
	f.orch = New(stages, f.exporter, renderer, f.verify, f.fs, f.sink, log, config)
	return f
}

func simpleRequest() pipeline.ExportRequest {
	return pipeline.ExportRequest{
		Sources: []pipeline.VideoSource{
			{Path: "/in/a.mp4", StartOffsetMs: 1000},
			{Path: "/in/b.mp4"},
		},
		Orientation: pipeline.HorizontalSideBySide,
		Sync:        pipeline.SyncSimple,
		Display: []pipeline.DisplayText{
			{Name: "Anna", Category: "U18", Time: "1:02.34"},
			{Name: "Ben"},
		},
		OutputPath: "/out/compare.mp4",
	}
}

// leftovers lists files and directories under the scratch locations.
func (f *fixture) leftovers() []string {
	var out []string
	for path := range f.fs.GetAllFiles() {
		if strings.HasPrefix(path, "/work/") || strings.Contains(path, ".tmp.mp4") {
			out = append(out, path)
		}
	}
	return out
}

func TestOrchestrator_Export(t *testing.T) {
	f := newFixture()

	var updates []float64
	result := f.orch.Export(context.Background(), simpleRequest(), func(p float64) { updates = append(updates, p) })

	if !result.Success {
		t.Fatalf("expected success, got %s (%s)", result.ErrorMessage, result.ErrorKind)
	}
	if result.OutputPath != "/out/compare.mp4" || result.FileSizeBytes != 3 {
		t.Errorf("unexpected output %s (%d bytes)", result.OutputPath, result.FileSizeBytes)
	}
	if result.DurationMs != 1234 {
		t.Errorf("duration: expected probed 1234, got %d", result.DurationMs)
	}
	if result.SegmentCount != 1 || result.Truncated {
		t.Errorf("plan: expected 1 untruncated segment, got %d (truncated=%v)", result.SegmentCount, result.Truncated)
	}
	if result.Backend != "mock" {
		t.Errorf("backend: expected mock, got %s", result.Backend)
	}
	if result.Canvas.Width == 0 || result.Canvas.Height == 0 {
		t.Error("canvas not reported")
	}
	if _, ok := f.fs.GetFile("/out/compare.mp4"); !ok {
		t.Error("output file missing")
	}
	if left := f.leftovers(); len(left) != 0 {
		t.Errorf("temporary artefacts left: %v", left)
	}
	if len(updates) == 0 || updates[len(updates)-1] != 1 {
		t.Errorf("expected progress to end at 1, got %v", updates)
	}

	// The backend writes a temp file next to the destination.
	tl := f.exporter.Timeline
	if !strings.HasPrefix(tl.OutputPath, "/out/.compare.mp4.") || !strings.HasSuffix(tl.OutputPath, ".tmp.mp4") {
		t.Errorf("unexpected temp path %s", tl.OutputPath)
	}
	if !strings.HasPrefix(tl.WorkDir, "/work/runcompare-") {
		t.Errorf("unexpected work dir %s", tl.WorkDir)
	}
	if len(tl.Sources) != 2 || !tl.Sources[0].HasAudio || tl.Sources[1].Width != 1080 {
		t.Errorf("timeline sources not resolved: %+v", tl.Sources)
	}
	if len(tl.Transforms) != 2 || len(tl.Freezes) != 1 {
		t.Errorf("timeline incomplete: %d transforms, %d freeze rows", len(tl.Transforms), len(tl.Freezes))
	}
	// Source a starts 1s in, so both consume 9s.
	if r := tl.Plan.Segments[0].Ranges[0]; r.StartMs != 1000 || r.EndMs != 10000 {
		t.Errorf("source a range: got %+v", r)
	}
	if exists, _ := f.fs.Exists(tl.WorkDir); exists {
		t.Errorf("work dir %s not removed", tl.WorkDir)
	}
	img, err := tl.Layer(0)
	if err != nil || img == nil {
		t.Errorf("expected an overlay layer, got %v, %v", img, err)
	}

	if len(f.sink.PlanJSON) == 0 || len(f.sink.LayoutJSON) == 0 || len(f.sink.LayoutSVG) == 0 {
		t.Error("expected debug plan and layout output")
	}
	if _, ok := f.sink.OverlayLayers[0]; !ok {
		t.Error("expected overlay layer in debug sink")
	}
}

func TestOrchestrator_LapSyncTruncated(t *testing.T) {
	f := newFixture()
	req := simpleRequest()
	req.Sync = pipeline.SyncLap
	req.Sources[0] = pipeline.VideoSource{Path: "/in/a.mp4", LapBoundariesMs: []int{0, 3000, 6000, 9000}}
	req.Sources[1] = pipeline.VideoSource{Path: "/in/b.mp4", LapBoundariesMs: []int{500, 3200, 6600}}

	result := f.orch.Export(context.Background(), req, nil)
	if !result.Success {
		t.Fatalf("expected success, got %s", result.ErrorMessage)
	}
	if result.SegmentCount != 2 || !result.Truncated {
		t.Errorf("expected 2 segments, truncated; got %d, %v", result.SegmentCount, result.Truncated)
	}
	if got := f.exporter.Timeline.Plan.Reason; got != pipeline.TruncationBoundaryMismatch {
		t.Errorf("reason: expected boundary mismatch, got %s", got)
	}
}

func TestOrchestrator_Grid(t *testing.T) {
	f := newFixture()
	req := simpleRequest()
	req.Orientation = pipeline.Grid2x2
	req.Display = nil
	req.Sources = append(req.Sources, pipeline.VideoSource{Path: "/in/c.mp4"}, pipeline.VideoSource{Path: "/in/d.mp4"})

	result := f.orch.Export(context.Background(), req, nil)
	if !result.Success {
		t.Fatalf("expected success, got %s", result.ErrorMessage)
	}
	if result.Canvas.Width != 1920 || result.Canvas.Height != 1080 {
		t.Errorf("canvas: expected 1920x1080, got %dx%d", result.Canvas.Width, result.Canvas.Height)
	}
	// No display text: nothing to draw.
	if img, _ := f.exporter.Timeline.Layer(0); img != nil {
		t.Error("expected no overlay layer")
	}
}

func TestOrchestrator_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture, req *pipeline.ExportRequest)
		want  pipeline.ErrorKind
	}{
		{
			name: "missing source",
			setup: func(f *fixture, req *pipeline.ExportRequest) {
				req.Sources[1].Path = "/in/missing.mp4"
			},
			want: pipeline.ErrorSourceUnavailable,
		},
		{
			name: "invalid request",
			setup: func(f *fixture, req *pipeline.ExportRequest) {
				req.Orientation = pipeline.Grid2x2
			},
			want: pipeline.ErrorInvalidRequest,
		},
		{
			name: "backend failure after partial write",
			setup: func(f *fixture, req *pipeline.ExportRequest) {
				f.exporter.ExportFunc = func(ctx context.Context, tl pipeline.Timeline, p ports.ProgressFunc) error {
					f.fs.WriteFile(tl.OutputPath, []byte("partial"))
					return errors.New("ffmpeg exited with status 1")
				}
			},
			want: pipeline.ErrorEncodeFailed,
		},
		{
			name: "backend wrote nothing",
			setup: func(f *fixture, req *pipeline.ExportRequest) {
				f.exporter.ExportFunc = func(context.Context, pipeline.Timeline, ports.ProgressFunc) error { return nil }
			},
			want: pipeline.ErrorEncodeFailed,
		},
		{
			name: "backend panics",
			setup: func(f *fixture, req *pipeline.ExportRequest) {
				f.exporter.ExportFunc = func(ctx context.Context, tl pipeline.Timeline, p ports.ProgressFunc) error {
					f.fs.WriteFile(tl.OutputPath, []byte("partial"))
					panic("index out of range")
				}
			},
			want: pipeline.ErrorEncodeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.fs.WriteFile("/out/compare.mp4", []byte("previous"))
			req := simpleRequest()
			tt.setup(f, &req)

			result := f.orch.Export(context.Background(), req, nil)

			if result.Success {
				t.Fatal("expected failure")
			}
			if result.ErrorKind != tt.want {
				t.Errorf("kind: expected %s, got %s (%s)", tt.want, result.ErrorKind, result.ErrorMessage)
			}
			if result.ErrorMessage == "" {
				t.Error("expected an error message")
			}
			// The previous file at the destination is untouched.
			if data, _ := f.fs.GetFile("/out/compare.mp4"); string(data) != "previous" {
				t.Errorf("destination overwritten: %q", data)
			}
			if left := f.leftovers(); len(left) != 0 {
				t.Errorf("temporary artefacts left: %v", left)
			}
		})
	}
}

func TestOrchestrator_ProgressCompletesOnlyAfterRename(t *testing.T) {
	f := newFixture()
	f.fs.RenameFunc = func(oldPath, newPath string) error { return errors.New("disk full") }

	var updates []float64
	result := f.orch.Export(context.Background(), simpleRequest(), func(p float64) { updates = append(updates, p) })

	if result.Success || result.ErrorKind != pipeline.ErrorEncodeFailed {
		t.Fatalf("expected encode failure, got success=%v kind=%s", result.Success, result.ErrorKind)
	}
	for _, p := range updates {
		if p >= 1 {
			t.Errorf("completion reported for a failed export: %v", updates)
			break
		}
	}
}

// selectingExporter writes the output and reports the backend it used.
type selectingExporter struct {
	mocks.Exporter
	used string
}

func (s *selectingExporter) ExportWithBackend(ctx context.Context, tl pipeline.Timeline, p ports.ProgressFunc) (string, error) {
	return s.used, s.Export(ctx, tl, p)
}

func TestOrchestrator_ReportsBackendThatRan(t *testing.T) {
	f := newFixture()
	exp := &selectingExporter{Exporter: mocks.Exporter{FS: f.fs}, used: "frames"}
	f.orch.exporter = exp

	result := f.orch.Export(context.Background(), simpleRequest(), nil)

	if !result.Success {
		t.Fatalf("expected success, got %s", result.ErrorMessage)
	}
	if result.Backend != "frames" {
		t.Errorf("backend: expected frames, got %s", result.Backend)
	}
}

func TestOrchestrator_Cancelled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.exporter.ExportFunc = func(ctx context.Context, tl pipeline.Timeline, p ports.ProgressFunc) error {
		f.fs.WriteFile(tl.OutputPath, []byte("partial"))
		p(0.3)
		cancel()
		return ctx.Err()
	}

	result := f.orch.Export(ctx, simpleRequest(), nil)

	if result.Success || result.ErrorKind != pipeline.ErrorCancelled {
		t.Fatalf("expected cancelled, got success=%v kind=%s", result.Success, result.ErrorKind)
	}
	if _, ok := f.fs.GetFile("/out/compare.mp4"); ok {
		t.Error("no file may exist at the destination after cancellation")
	}
	if left := f.leftovers(); len(left) != 0 {
		t.Errorf("temporary artefacts left: %v", left)
	}
}

func TestOrchestrator_CancelledBeforeStart(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := f.orch.Export(ctx, simpleRequest(), nil)
	if result.ErrorKind != pipeline.ErrorCancelled {
		t.Errorf("expected cancelled, got %s (%s)", result.ErrorKind, result.ErrorMessage)
	}
	if f.exporter.Called {
		t.Error("backend should not run")
	}
}

func TestOrchestrator_SkippedOverlays(t *testing.T) {
	f := newFixture()
	renderer := &mocks.Renderer{}
	renderer.CreateCanvasFunc = func(width, height int, bg color.Color) ports.Canvas {
		return &mocks.Canvas{DrawTextFunc: func(text string, x, y int, style ports.TextStyle) {
			if text == "Ben" {
				panic("missing glyph")
			}
		}}
	}
	log := logger.NewNoop()
	f.orch = New(Stages{
		Probe:     probe.NewStage(f.prober, f.fs, log),
		Plan:      plan.NewStage(log),
		Layout:    layout.NewStage(),
		Transform: transform.NewStage(),
		Padding:   padding.NewStage(),
		Overlay:   overlay.NewStage(renderer, log),
	}, f.exporter, renderer, nil, f.fs, f.sink, log, f.orch.config)
	f.exporter.ExportFunc = func(ctx context.Context, tl pipeline.Timeline, p ports.ProgressFunc) error {
		if _, err := tl.Layer(0); err != nil {
			return err
		}
		return f.fs.WriteFile(tl.OutputPath, []byte("mp4"))
	}

	result := f.orch.Export(context.Background(), simpleRequest(), nil)
	if !result.Success {
		t.Fatalf("expected success, got %s", result.ErrorMessage)
	}
	if result.SkippedOverlays != 1 {
		t.Errorf("expected 1 skipped overlay, got %d", result.SkippedOverlays)
	}
	if result.DurationMs != 9000 {
		t.Errorf("duration without prober: expected 9000, got %d", result.DurationMs)
	}
}

func TestOrchestrator_VerifyFallsBackToPlan(t *testing.T) {
	f := newFixture()
	f.verify.ProbeFunc = func(ctx context.Context, path string) (ports.MediaInfo, error) {
		return ports.MediaInfo{}, errors.New("moov atom not found")
	}

	result := f.orch.Export(context.Background(), simpleRequest(), nil)
	if !result.Success {
		t.Fatalf("expected success, got %s", result.ErrorMessage)
	}
	if result.DurationMs != 9000 {
		t.Errorf("duration: expected planned 9000, got %d", result.DurationMs)
	}
}

func TestTempPath(t *testing.T) {
	a := TempPath("/out/run.mp4")
	b := TempPath("/out/run.mp4")
	if a == b {
		t.Error("temp paths must be unique")
	}
	if !strings.HasPrefix(a, "/out/.run.mp4.") || !strings.HasSuffix(a, ".tmp.mp4") {
		t.Errorf("unexpected temp path %s", a)
	}
	if got := TempPath("run.mp4"); !strings.HasPrefix(got, ".run.mp4.") {
		t.Errorf("relative temp path: got %s", got)
	}
}
