package juxtapose

import (
	"context"
	"errors"
	"testing"

	"github.com/user/runcompare/pkg/config"
	"github.com/user/runcompare/pkg/mocks"
	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
)

func TestRequestBuilder(t *testing.T) {
	req, err := NewRequestBuilder(pipeline.VerticalStacked).
		AddSource("a.mp4").WithLaps(0, 30000, 60000).WithName("Anna").
		AddSource("b.mp4").WithLaps(200, 31000, 61500).
		WithSync(pipeline.SyncLap).
		WithMaxDuration(45000).
		WithOutput("out.mp4").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Orientation != pipeline.VerticalStacked || req.Sync != pipeline.SyncLap {
		t.Errorf("unexpected mode %s / %s", req.Orientation, req.Sync)
	}
	if len(req.Sources) != 2 || req.Sources[1].LapBoundariesMs[0] != 200 {
		t.Errorf("unexpected sources %+v", req.Sources)
	}
	if len(req.Display) != 2 || req.Display[0].Name != "Anna" || !req.Display[1].Empty() {
		t.Errorf("unexpected display %+v", req.Display)
	}
	if req.MaxDurationMs != 45000 || req.OutputPath != "out.mp4" {
		t.Errorf("unexpected limits %d %s", req.MaxDurationMs, req.OutputPath)
	}
}

func TestRequestBuilder_NoDisplay(t *testing.T) {
	req, err := NewRequestBuilder(pipeline.HorizontalSideBySide).
		AddSource("a.mp4").WithStartOffset(1500).
		AddSource("b.mp4").
		WithOutput("out.mp4").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Display != nil {
		t.Errorf("expected no display, got %+v", req.Display)
	}
	if req.Sources[0].StartOffsetMs != 1500 {
		t.Errorf("offset: got %d", req.Sources[0].StartOffsetMs)
	}
}

func TestRequestBuilder_Invalid(t *testing.T) {
	_, err := NewRequestBuilder(pipeline.Grid2x2).
		AddSource("a.mp4").
		AddSource("b.mp4").
		WithOutput("out.mp4").
		Build()
	if !errors.Is(err, pipeline.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}

	// Options before any source are ignored.
	b := NewRequestBuilder(pipeline.HorizontalSideBySide).WithLaps(1, 2).WithName("x")
	if _, err := b.Build(); err == nil {
		t.Error("expected error without sources")
	}
}

func TestQualityPreset(t *testing.T) {
	tests := []struct {
		preset QualityPreset
		want   int
	}{
		{QualityLow, 35},
		{QualityMedium, 25},
		{QualityHigh, 15},
		{"unknown", 25},
	}
	for _, tt := range tests {
		if got := tt.preset.CRF(); got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.preset, tt.want, got)
		}
	}

	cfg := config.Defaults()
	ApplyQuality(&cfg, QualityHigh)
	if cfg.Quality != 15 {
		t.Errorf("ApplyQuality: got %d", cfg.Quality)
	}
}

func newEngine() (*Engine, *mocks.FileSystem, *mocks.Exporter) {
	fs := mocks.NewFileSystem()
	fs.WriteFile("/in/a.mp4", []byte("a"))
	fs.WriteFile("/in/b.mp4", []byte("b"))
	prober := mocks.NewProber(map[string]ports.MediaInfo{
		"/in/a.mp4": {DurationMs: 64000, CodedWidth: 1280, CodedHeight: 720, HasVideo: true},
		"/in/b.mp4": {DurationMs: 66000, CodedWidth: 1280, CodedHeight: 720, HasVideo: true},
	})
	exporter := &mocks.Exporter{FS: fs}

	cfg := config.Defaults()
	cfg.WorkDir = "/work"
	engine := NewWithDeps(cfg, Deps{
		Prober:   prober,
		Exporter: exporter,
		Renderer: &mocks.Renderer{},
		FS:       fs,
	})
	return engine, fs, exporter
}

func lapRequest(t *testing.T) pipeline.ExportRequest {
	t.Helper()
	req, err := NewRequestBuilder(pipeline.HorizontalSideBySide).
		AddSource("/in/a.mp4").WithLaps(1000, 31000, 62000).WithName("Anna").
		AddSource("/in/b.mp4").WithLaps(500, 32500, 65500).WithName("Ben").
		WithSync(pipeline.SyncLap).
		WithOutput("/out/compare.mp4").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return req
}

func TestEngine_Plan(t *testing.T) {
	engine, _, exporter := newEngine()

	p, err := engine.Plan(context.Background(), lapRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(p.Segments))
	}
	if p.Segments[0].TargetMs != 32000 || p.Segments[1].TargetMs != 33000 {
		t.Errorf("targets: got %d, %d", p.Segments[0].TargetMs, p.Segments[1].TargetMs)
	}
	if p.TotalMs != 65000 {
		t.Errorf("total: expected 65000, got %d", p.TotalMs)
	}
	if exporter.Called {
		t.Error("planning must not export")
	}
}

func TestEngine_PlanInvalid(t *testing.T) {
	engine, _, _ := newEngine()
	req := lapRequest(t)
	req.Sources[1].Path = "/in/missing.mp4"

	if _, err := engine.Plan(context.Background(), req); !errors.Is(err, pipeline.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestEngine_Export(t *testing.T) {
	engine, fs, _ := newEngine()

	result := engine.Export(context.Background(), lapRequest(t), nil)
	if !result.Success {
		t.Fatalf("expected success, got %s", result.ErrorMessage)
	}
	if result.SegmentCount != 2 || result.DurationMs <= 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if _, ok := fs.GetFile("/out/compare.mp4"); !ok {
		t.Error("output file missing")
	}
	if engine.Backend() != "mock" {
		t.Errorf("backend: got %s", engine.Backend())
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.Backend = "quantum"
	if _, err := New(cfg, nil); !errors.Is(err, pipeline.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}
