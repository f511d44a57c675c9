package juxtapose

import (
	"github.com/user/runcompare/pkg/config"
	"github.com/user/runcompare/pkg/pipeline"
)

// QualityPreset represents a video quality preset name.
type QualityPreset string

const (
	QualityLow    QualityPreset = "low"
	QualityMedium QualityPreset = "medium"
	QualityHigh   QualityPreset = "high"
)

// CRF returns the encoder quality of the preset (0-63, lower is better).
func (p QualityPreset) CRF() int {
	switch p {
	case QualityLow:
		return 35
	case QualityHigh:
		return 15
	default: // medium
		return 25
	}
}

// ApplyQuality sets the encode quality of cfg from a preset.
func ApplyQuality(cfg *config.Config, preset QualityPreset) {
	cfg.Quality = preset.CRF()
}

// RequestBuilder provides a fluent interface for building an ExportRequest.
// Source options apply to the most recently added source.
type RequestBuilder struct {
	req     pipeline.ExportRequest
	display []pipeline.DisplayText
}

// NewRequestBuilder creates a builder for the given orientation in simple sync.
func NewRequestBuilder(orientation pipeline.Orientation) *RequestBuilder {
	return &RequestBuilder{
		req: pipeline.ExportRequest{
			Orientation: orientation,
			Sync:        pipeline.SyncSimple,
		},
	}
}

// AddSource appends an input video.
func (b *RequestBuilder) AddSource(path string) *RequestBuilder {
	b.req.Sources = append(b.req.Sources, pipeline.VideoSource{Path: path})
	b.display = append(b.display, pipeline.DisplayText{})
	return b
}

// WithStartOffset sets where the current source starts in simple sync.
func (b *RequestBuilder) WithStartOffset(ms int) *RequestBuilder {
	if s := b.current(); s != nil {
		s.StartOffsetMs = ms
	}
	return b
}

// WithLaps sets the lap boundaries of the current source.
func (b *RequestBuilder) WithLaps(boundariesMs ...int) *RequestBuilder {
	if s := b.current(); s != nil {
		s.LapBoundariesMs = append([]int(nil), boundariesMs...)
	}
	return b
}

// WithName sets the athlete name shown over the current source.
func (b *RequestBuilder) WithName(name string) *RequestBuilder {
	if d := b.currentDisplay(); d != nil {
		d.Name = name
	}
	return b
}

// WithDisplay sets all display text of the current source.
func (b *RequestBuilder) WithDisplay(text pipeline.DisplayText) *RequestBuilder {
	if d := b.currentDisplay(); d != nil {
		*d = text
	}
	return b
}

// WithSync sets the sync mode.
func (b *RequestBuilder) WithSync(mode pipeline.SyncMode) *RequestBuilder {
	b.req.Sync = mode
	return b
}

// WithMaxDuration caps the output duration (0 = unlimited).
func (b *RequestBuilder) WithMaxDuration(ms int) *RequestBuilder {
	b.req.MaxDurationMs = ms
	return b
}

// WithOutput sets the output file path.
func (b *RequestBuilder) WithOutput(path string) *RequestBuilder {
	b.req.OutputPath = path
	return b
}

// Build validates and returns the request.
func (b *RequestBuilder) Build() (pipeline.ExportRequest, error) {
	req := b.req
	req.Sources = append([]pipeline.VideoSource(nil), b.req.Sources...)
	for _, d := range b.display {
		if !d.Empty() {
			req.Display = append([]pipeline.DisplayText(nil), b.display...)
			break
		}
	}
	return req, req.Validate()
}

func (b *RequestBuilder) current() *pipeline.VideoSource {
	if len(b.req.Sources) == 0 {
		return nil
	}
	return &b.req.Sources[len(b.req.Sources)-1]
}

func (b *RequestBuilder) currentDisplay() *pipeline.DisplayText {
	if len(b.display) == 0 {
		return nil
	}
	return &b.display[len(b.display)-1]
}
