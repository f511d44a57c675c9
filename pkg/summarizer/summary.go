// Package summarizer provides summary generation for export results.
package summarizer

import (
	"time"

	"github.com/user/runcompare/pkg/pipeline"
)

// Summary contains all data collected during one export.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Request settings
	Settings Settings

	// Inputs in request order
	Sources []SourceInfo

	// Segment plan
	Plan PlanInfo

	// Video output details
	Video VideoInfo

	// Outcome
	Result ResultInfo
}

// Settings contains the export configuration.
type Settings struct {
	Orientation   string
	Sync          string
	MaxDurationMs int
	Backend       string
	FPS           float64
	CRF           int
	Bitrate       int // kbps, 0 = quality driven
}

// SourceInfo describes one input video.
type SourceInfo struct {
	Path          string
	Name          string
	StartOffsetMs int
	Laps          int
}

// SegmentInfo describes one planned segment.
type SegmentInfo struct {
	Index       int
	TargetMs    int
	DestStartMs int
	ConsumedMs  []int // Per source
}

// PlanInfo contains the segment plan.
type PlanInfo struct {
	Segments  []SegmentInfo
	TotalMs   int
	Truncated bool
	Reason    string
}

// VideoInfo contains information about the output video.
type VideoInfo struct {
	Path            string
	DurationMs      int
	FileSize        int64
	CanvasWidth     int
	CanvasHeight    int
	SkippedOverlays int
}

// ResultInfo contains the outcome of the export.
type ResultInfo struct {
	Success   bool
	ErrorKind string
	Error     string
	ElapsedMs int64
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithRequest records the request settings and sources.
func (b *Builder) WithRequest(req pipeline.ExportRequest) *Builder {
	b.summary.Settings.Orientation = req.Orientation.String()
	b.summary.Settings.Sync = req.Sync.String()
	b.summary.Settings.MaxDurationMs = req.MaxDurationMs

	b.summary.Sources = make([]SourceInfo, len(req.Sources))
	for i, src := range req.Sources {
		laps := 0
		if src.HasLaps() {
			laps = len(src.LapBoundariesMs) - 1
		}
		b.summary.Sources[i] = SourceInfo{
			Path:          src.Path,
			Name:          req.DisplayFor(i).Name,
			StartOffsetMs: src.StartOffsetMs,
			Laps:          laps,
		}
	}
	return b
}

// WithEncode records the encode settings.
func (b *Builder) WithEncode(settings pipeline.EncodeSettings) *Builder {
	b.summary.Settings.FPS = settings.FPS
	b.summary.Settings.CRF = settings.Quality
	b.summary.Settings.Bitrate = settings.Bitrate
	return b
}

// WithPlan records the segment plan.
func (b *Builder) WithPlan(plan pipeline.Plan) *Builder {
	info := PlanInfo{
		TotalMs:   plan.TotalMs,
		Truncated: plan.Truncated,
	}
	if plan.Truncated {
		info.Reason = plan.Reason.String()
	}
	for _, seg := range plan.Segments {
		consumed := make([]int, len(seg.Ranges))
		for i, r := range seg.Ranges {
			consumed[i] = r.DurationMs()
		}
		info.Segments = append(info.Segments, SegmentInfo{
			Index:       seg.Index,
			TargetMs:    seg.TargetMs,
			DestStartMs: seg.DestStartMs,
			ConsumedMs:  consumed,
		})
	}
	b.summary.Plan = info
	return b
}

// WithResult records the export outcome.
func (b *Builder) WithResult(result pipeline.ExportResult, elapsed time.Duration) *Builder {
	b.summary.Settings.Backend = result.Backend
	b.summary.Video = VideoInfo{
		Path:            result.OutputPath,
		DurationMs:      result.DurationMs,
		FileSize:        result.FileSizeBytes,
		CanvasWidth:     result.Canvas.Width,
		CanvasHeight:    result.Canvas.Height,
		SkippedOverlays: result.SkippedOverlays,
	}
	b.summary.Result = ResultInfo{
		Success:   result.Success,
		ElapsedMs: elapsed.Milliseconds(),
	}
	if !result.Success {
		b.summary.Result.ErrorKind = result.ErrorKind.String()
		b.summary.Result.Error = result.ErrorMessage
	}
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
