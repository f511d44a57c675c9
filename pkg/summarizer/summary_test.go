package summarizer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/user/runcompare/pkg/mocks"
	"github.com/user/runcompare/pkg/pipeline"
)

func sampleRequest() pipeline.ExportRequest {
	return pipeline.ExportRequest{
		Sources: []pipeline.VideoSource{
			{Path: "anna.mp4", LapBoundariesMs: []int{0, 30000, 61000}},
			{Path: "ben.mp4", StartOffsetMs: 500},
		},
		Orientation: pipeline.VerticalStacked,
		Sync:        pipeline.SyncLap,
		Display:     []pipeline.DisplayText{{Name: "Anna"}, {}},
		OutputPath:  "out.mp4",
	}
}

func samplePlan() pipeline.Plan {
	return pipeline.Plan{
		Mode: pipeline.SyncLap,
		Segments: []pipeline.Segment{
			{Index: 0, TargetMs: 31000, Ranges: []pipeline.TimeRange{{StartMs: 0, EndMs: 30000}, {StartMs: 500, EndMs: 31500}}},
			{Index: 1, TargetMs: 31500, DestStartMs: 31000, Ranges: []pipeline.TimeRange{{StartMs: 30000, EndMs: 61000}, {StartMs: 31500, EndMs: 63000}}},
		},
		TotalMs:   62500,
		Truncated: true,
		Reason:    pipeline.TruncationBoundaryMismatch,
	}
}

func TestNewSummary(t *testing.T) {
	before := time.Now()
	summary := NewSummary()
	after := time.Now()

	if summary.GeneratedAt.Before(before) || summary.GeneratedAt.After(after) {
		t.Errorf("GeneratedAt should be between %v and %v, got %v", before, after, summary.GeneratedAt)
	}
}

func TestBuilder_WithRequest(t *testing.T) {
	summary := NewBuilder().WithRequest(sampleRequest()).Build()

	if summary.Settings.Orientation != "vertical" || summary.Settings.Sync != "lap" {
		t.Errorf("unexpected settings %+v", summary.Settings)
	}
	if len(summary.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(summary.Sources))
	}
	if summary.Sources[0].Name != "Anna" || summary.Sources[0].Laps != 2 {
		t.Errorf("source 0: %+v", summary.Sources[0])
	}
	if summary.Sources[1].Laps != 0 || summary.Sources[1].StartOffsetMs != 500 {
		t.Errorf("source 1: %+v", summary.Sources[1])
	}
}

func TestBuilder_WithPlan(t *testing.T) {
	summary := NewBuilder().WithPlan(samplePlan()).Build()

	if len(summary.Plan.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(summary.Plan.Segments))
	}
	seg := summary.Plan.Segments[1]
	if seg.DestStartMs != 31000 || seg.ConsumedMs[0] != 31000 || seg.ConsumedMs[1] != 31500 {
		t.Errorf("segment 1: %+v", seg)
	}
	if !summary.Plan.Truncated || summary.Plan.Reason != "boundary count mismatch" {
		t.Errorf("truncation: %v %q", summary.Plan.Truncated, summary.Plan.Reason)
	}
}

func TestBuilder_WithResult(t *testing.T) {
	failed := pipeline.ExportResult{
		ErrorKind:    pipeline.ErrorSourceUnavailable,
		ErrorMessage: "missing.mp4",
		Backend:      "ffmpeg",
	}
	summary := NewBuilder().WithResult(failed, 1500*time.Millisecond).Build()

	if summary.Result.Success || summary.Result.ErrorKind != "source-unavailable" {
		t.Errorf("unexpected result %+v", summary.Result)
	}
	if summary.Result.ElapsedMs != 1500 || summary.Settings.Backend != "ffmpeg" {
		t.Errorf("elapsed %d, backend %s", summary.Result.ElapsedMs, summary.Settings.Backend)
	}
}

func TestMarkdownFormatter_Format(t *testing.T) {
	summary := NewBuilder().
		WithRequest(sampleRequest()).
		WithEncode(pipeline.DefaultEncodeSettings()).
		WithPlan(samplePlan()).
		WithResult(pipeline.ExportResult{
			Success:       true,
			OutputPath:    "out.mp4",
			FileSizeBytes: 3 * 1024 * 1024,
			DurationMs:    62500,
			Backend:       "frames",
			Canvas:        pipeline.Dimension{Width: 1080, Height: 1920},
		}, 4*time.Second).
		Build()
	summary.GeneratedAt = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	out := NewMarkdownFormatter().Format(summary)

	checks := []string{
		"# Run Comparison Summary",
		"2024-01-15 10:30:00 UTC",
		"| Status | Success |",
		"| Orientation | vertical |",
		"| Backend | frames |",
		"| CRF | 25 |",
		"| 1 | Anna | anna.mp4 | 0.00 | 2 |",
		"| 2 | - | ben.mp4 | 0.50 | 0 |",
		"| Segment | Starts at | Length | Source 1 | Source 2 |",
		"| 2 | 31.00 | 31.50 | 31.00 | 31.50 |",
		"Total: 1:02.50",
		"Plan truncated: boundary count mismatch",
		"| Canvas | 1080x1920 |",
		"| Size | 3.00 MB |",
	}
	for _, c := range checks {
		if !strings.Contains(out, c) {
			t.Errorf("expected %q in output:\n%s", c, out)
		}
	}
}

func TestMarkdownFormatter_Failure(t *testing.T) {
	summary := NewBuilder().
		WithRequest(sampleRequest()).
		WithResult(pipeline.ExportResult{ErrorKind: pipeline.ErrorEncodeFailed, ErrorMessage: "a|b"}, 0).
		Build()

	out := NewMarkdownFormatter().Format(summary)

	if !strings.Contains(out, "| Status | Failed |") || !strings.Contains(out, `a\|b`) {
		t.Errorf("failure not rendered:\n%s", out)
	}
	if strings.Contains(out, "## Video") {
		t.Error("failed export should not list video details")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d): expected %s, got %s", tt.n, tt.want, got)
		}
	}
}

func TestWriter_Write(t *testing.T) {
	fs := mocks.NewFileSystem()
	w := NewWriter(FormatFunc(func(s *Summary) string { return "report" }), fs)

	if err := w.Write("reports/run.md", NewSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data, ok := fs.GetFile("reports/run.md"); !ok || string(data) != "report" {
		t.Errorf("unexpected file content %q", data)
	}
	if ok, _ := fs.Exists("reports"); !ok {
		t.Error("expected parent directory to be created")
	}

	fs.WriteFileFunc = func(string, []byte) error { return errors.New("disk full") }
	if err := w.Write("run.md", NewSummary()); err == nil {
		t.Error("expected write error")
	}
}
