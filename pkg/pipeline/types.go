package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/math/f64"
)

// =============================================================================
// Common Types
// =============================================================================

// Dimension represents width and height.
type Dimension struct {
	Width  int
	Height int
}

// Rectangle represents a rectangular area.
type Rectangle struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Orientation selects how sources are arranged on the output canvas.
type Orientation int

const (
	// HorizontalSideBySide places two sources next to each other.
	HorizontalSideBySide Orientation = iota
	// VerticalStacked places two sources on top of each other.
	VerticalStacked
	// Grid2x2 places four sources in fixed quadrants.
	Grid2x2
)

// String returns the configuration name of the orientation.
func (o Orientation) String() string {
	switch o {
	case HorizontalSideBySide:
		return "horizontal"
	case VerticalStacked:
		return "vertical"
	case Grid2x2:
		return "grid"
	default:
		return "unknown"
	}
}

// SourceCount returns how many sources the orientation lays out.
func (o Orientation) SourceCount() int {
	if o == Grid2x2 {
		return 4
	}
	return 2
}

// ParseOrientation parses a configuration name into an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(s) {
	case "horizontal", "side-by-side", "":
		return HorizontalSideBySide, nil
	case "vertical", "stacked":
		return VerticalStacked, nil
	case "grid", "2x2":
		return Grid2x2, nil
	default:
		return 0, fmt.Errorf("%w: unknown orientation %q", ErrInvalidRequest, s)
	}
}

// SyncMode selects how source timelines are aligned.
type SyncMode int

const (
	// SyncSimple aligns every source at its start offset.
	SyncSimple SyncMode = iota
	// SyncLap aligns sources lap by lap using their boundaries.
	SyncLap
)

// String returns the configuration name of the sync mode.
func (m SyncMode) String() string {
	switch m {
	case SyncSimple:
		return "simple"
	case SyncLap:
		return "lap"
	default:
		return "unknown"
	}
}

// ParseSyncMode parses a configuration name into a SyncMode.
func ParseSyncMode(s string) (SyncMode, error) {
	switch strings.ToLower(s) {
	case "simple", "":
		return SyncSimple, nil
	case "lap", "lap-sync", "lapsync":
		return SyncLap, nil
	default:
		return 0, fmt.Errorf("%w: unknown sync mode %q", ErrInvalidRequest, s)
	}
}

// =============================================================================
// Request Types
// =============================================================================

// VideoSource describes one input run video.
type VideoSource struct {
	Path string

	// Width and Height are the displayed (post-rotation) dimensions.
	Width  int
	Height int

	// CodedWidth and CodedHeight are the stored pixel dimensions before rotation.
	CodedWidth  int
	CodedHeight int

	DurationMs      int
	Rotation        int   // Degrees from container metadata
	StartOffsetMs   int   // Simple mode start point
	LapBoundariesMs []int // Ascending; two or more entries enable lap sync
	HasAudio        bool
}

// HasLaps reports whether the source carries enough boundaries for lap sync.
func (v VideoSource) HasLaps() bool {
	return len(v.LapBoundariesMs) >= 2
}

// DisplayText is the athlete information drawn over one source.
type DisplayText struct {
	Name      string
	Category  string
	Section   string
	Time      string
	Penalties string
}

// Empty reports whether no field carries text.
func (d DisplayText) Empty() bool {
	return d.Name == "" && d.Category == "" && d.Section == "" && d.Time == "" && d.Penalties == ""
}

// ExportRequest is the immutable description of one export call.
type ExportRequest struct {
	Sources       []VideoSource
	Orientation   Orientation
	Sync          SyncMode
	MaxDurationMs int // 0 means unlimited
	Display       []DisplayText
	OutputPath    string
}

// Validate checks the structural constraints of the request.
func (r ExportRequest) Validate() error {
	want := r.Orientation.SourceCount()
	if len(r.Sources) != want {
		return fmt.Errorf("%w: %s layout needs %d sources, got %d", ErrInvalidRequest, r.Orientation, want, len(r.Sources))
	}
	if len(r.Display) != 0 && len(r.Display) != len(r.Sources) {
		return fmt.Errorf("%w: %d display entries for %d sources", ErrInvalidRequest, len(r.Display), len(r.Sources))
	}
	if r.OutputPath == "" {
		return fmt.Errorf("%w: output path is empty", ErrInvalidRequest)
	}
	if r.MaxDurationMs < 0 {
		return fmt.Errorf("%w: negative max duration", ErrInvalidRequest)
	}
	for i, src := range r.Sources {
		if src.Path == "" {
			return fmt.Errorf("%w: source %d has no path", ErrInvalidRequest, i)
		}
		if src.StartOffsetMs < 0 {
			return fmt.Errorf("%w: source %d has a negative start offset", ErrInvalidRequest, i)
		}
	}
	return nil
}

// DisplayFor returns the display text of a source, or an empty value.
func (r ExportRequest) DisplayFor(index int) DisplayText {
	if index < 0 || index >= len(r.Display) {
		return DisplayText{}
	}
	return r.Display[index]
}

// =============================================================================
// Probe Stage Types
// =============================================================================

// ProbeInput contains the sources to resolve.
type ProbeInput struct {
	Sources []VideoSource
}

// ProbeResult contains the sources with media metadata filled in.
type ProbeResult struct {
	Sources []VideoSource
}

// =============================================================================
// Plan Stage Types
// =============================================================================

// TimeRange is a source-local [StartMs, EndMs) span.
type TimeRange struct {
	StartMs int
	EndMs   int
}

// DurationMs returns the span length.
func (r TimeRange) DurationMs() int {
	return r.EndMs - r.StartMs
}

// Segment is one aligned slice of the output timeline.
type Segment struct {
	Index       int
	Ranges      []TimeRange // Per source, in request order
	TargetMs    int         // Longest consumed duration
	DestStartMs int         // Sum of all earlier targets
}

// DestEndMs returns where the segment ends on the output timeline.
func (s Segment) DestEndMs() int {
	return s.DestStartMs + s.TargetMs
}

// TruncationReason records why planning stopped before the natural end.
type TruncationReason int

const (
	TruncationNone TruncationReason = iota
	// TruncationBoundaryMismatch means sources carried different lap counts.
	TruncationBoundaryMismatch
	// TruncationInvalidRange means a clamped lap range was empty.
	TruncationInvalidRange
	// TruncationMaxDuration means the duration cap was reached.
	TruncationMaxDuration
)

// String returns a short description of the reason.
func (t TruncationReason) String() string {
	switch t {
	case TruncationNone:
		return "none"
	case TruncationBoundaryMismatch:
		return "boundary count mismatch"
	case TruncationInvalidRange:
		return "invalid lap range"
	case TruncationMaxDuration:
		return "max duration reached"
	default:
		return "unknown"
	}
}

// PlanInput contains parameters for segment planning.
type PlanInput struct {
	Sources       []VideoSource
	Sync          SyncMode
	MaxDurationMs int
}

// Plan is the ordered segment list covering the output timeline.
type Plan struct {
	Mode      SyncMode
	Segments  []Segment
	TotalMs   int
	Truncated bool
	Reason    TruncationReason
}

// =============================================================================
// Layout Stage Types
// =============================================================================

// LayoutInput contains parameters for layout calculation.
type LayoutInput struct {
	Orientation Orientation
	Sources     []Dimension // Displayed source sizes
	GridWidth   int         // Grid2x2 canvas width (default: 1920)
	GridHeight  int         // Grid2x2 canvas height (default: 1080)
	MaxLongEdge int         // Canvas long edge limit (default: 1920)
}

// DefaultLayoutInput returns LayoutInput with default values.
func DefaultLayoutInput() LayoutInput {
	return LayoutInput{
		Orientation: HorizontalSideBySide,
		GridWidth:   1920,
		GridHeight:  1080,
		MaxLongEdge: 1920,
	}
}

// LayoutResult contains the canvas size and one rectangle per source.
type LayoutResult struct {
	Canvas Dimension
	Rects  []Rectangle
	Scale  float64 // Uniform downscale applied to fit MaxLongEdge (1 = none)
}

// =============================================================================
// Transform Stage Types
// =============================================================================

// TransformInput contains the sources and their target rectangles.
type TransformInput struct {
	Sources []VideoSource
	Layout  LayoutResult
}

// Transform places one coded source frame inside its layout rectangle.
type Transform struct {
	QuarterTurns int     // Clockwise rotation to upright, 0..3
	Scale        float64 // Uniform scale after rotation
	Width        int     // Scaled upright width
	Height       int     // Scaled upright height
	OffsetX      int     // Canvas position of the scaled image
	OffsetY      int
	Matrix       f64.Aff3 // Coded source pixels to canvas pixels
}

// TransformResult contains one transform per source.
type TransformResult struct {
	Transforms []Transform
}

// =============================================================================
// Padding Stage Types
// =============================================================================

// FreezeSampleBackoffMs is how far before a range end the held frame is sampled.
const FreezeSampleBackoffMs = 5

// Freeze describes how one source fills one segment.
type Freeze struct {
	ConsumedMs int
	FreezeMs   int // Held last frame after the consumed range
	SampleAtMs int // Source-local instant of the held frame
}

// PaddingInput contains the plan to reconcile.
type PaddingInput struct {
	Plan Plan
}

// PaddingResult contains freeze instructions indexed [segment][source].
type PaddingResult struct {
	Freezes [][]Freeze
}

// =============================================================================
// Overlay Stage Types
// =============================================================================

// OverlayKind identifies an overlay element.
type OverlayKind int

const (
	OverlayPanel OverlayKind = iota
	OverlayName
	OverlayInfo
	OverlayLapTime
	OverlayLapDelta
)

// String returns the element name.
func (k OverlayKind) String() string {
	switch k {
	case OverlayPanel:
		return "panel"
	case OverlayName:
		return "name"
	case OverlayInfo:
		return "info"
	case OverlayLapTime:
		return "lap-time"
	case OverlayLapDelta:
		return "lap-delta"
	default:
		return "unknown"
	}
}

// Standing compares one lap against the best of the other sources.
type Standing int

const (
	StandingTied Standing = iota
	StandingAhead
	StandingBehind
)

// AllSegments marks an overlay visible for the whole export.
const AllSegments = -1

// OverlaySpec is one text or panel element in canvas coordinates.
type OverlaySpec struct {
	Kind     OverlayKind
	Source   int
	Segment  int // AllSegments or a segment index
	Text     string
	Rect     Rectangle
	Color    color.RGBA
	FontSize float64
	Bold     bool
	Z        int
	Standing Standing
}

// VisibleIn reports whether the overlay is drawn during a segment.
func (o OverlaySpec) VisibleIn(segment int) bool {
	return o.Segment == AllSegments || o.Segment == segment
}

// OverlayTheme defines overlay styling.
type OverlayTheme struct {
	PanelColor    color.RGBA
	TextColor     color.RGBA
	AheadColor    color.RGBA
	BehindColor   color.RGBA
	TiedColor     color.RGBA
	NameFontSize  float64
	InfoFontSize  float64
	LapFontSize   float64
	Inset         int
	Padding       int
	MinPanelWidth int
	Separator     string
}

// DefaultOverlayTheme returns a default overlay theme.
func DefaultOverlayTheme() OverlayTheme {
	return OverlayTheme{
		PanelColor:    color.RGBA{R: 0, G: 0, B: 0, A: 150},
		TextColor:     color.RGBA{R: 255, G: 255, B: 255, A: 255},
		AheadColor:    color.RGBA{R: 74, G: 222, B: 128, A: 255},
		BehindColor:   color.RGBA{R: 248, G: 113, B: 113, A: 255},
		TiedColor:     color.RGBA{R: 251, G: 191, B: 36, A: 255},
		NameFontSize:  28,
		InfoFontSize:  18,
		LapFontSize:   24,
		Inset:         16,
		Padding:       12,
		MinPanelWidth: 120,
		Separator:     " • ",
	}
}

// OverlayInput contains everything the overlay generator reads.
type OverlayInput struct {
	Request ExportRequest
	Plan    Plan
	Layout  LayoutResult
	Theme   OverlayTheme
}

// OverlayResult contains the overlay elements.
type OverlayResult struct {
	Specs []OverlaySpec
}

// =============================================================================
// Composite Stage Types
// =============================================================================

// Tick is one output frame to compose.
type Tick struct {
	Index       int           // Output frame number
	TimestampMs int           // Output timeline position
	Sources     []image.Image // Coded source frames in request order; nil draws nothing
}

// CompositeInput contains a batch of ticks sharing one overlay layer.
type CompositeInput struct {
	Canvas     Dimension
	Background color.RGBA
	Transforms []Transform
	Overlay    image.Image // Drawn over every tick; may be nil
	Ticks      []Tick
}

// ComposedFrame is a finished output frame.
type ComposedFrame struct {
	Index       int
	TimestampMs int
	Image       image.Image
}

// CompositeResult contains the composed frames in tick order.
type CompositeResult struct {
	Frames []ComposedFrame
}

// =============================================================================
// Encode Stage Types
// =============================================================================

// EncodeInput starts an encode session.
type EncodeInput struct {
	OutputPath string
	Canvas     Dimension
	Settings   EncodeSettings
}

// EncodeResult summarises a finished encode session.
type EncodeResult struct {
	FrameCount int
	DurationMs int
}

// =============================================================================
// Export Types
// =============================================================================

// EncodeSettings configures the output encode.
type EncodeSettings struct {
	FPS              float64
	Quality          int // CRF: 0-63 (lower is higher quality)
	Bitrate          int // Target video bitrate in kbps (0 = quality driven)
	AudioBitrateKbps int
}

// DefaultEncodeSettings returns EncodeSettings with default values.
func DefaultEncodeSettings() EncodeSettings {
	return EncodeSettings{
		FPS:              30.0,
		Quality:          25,
		AudioBitrateKbps: 128,
	}
}

// LayerFunc renders the overlay layer for a segment. A nil image means no overlay.
type LayerFunc func(segment int) (image.Image, error)

// Timeline is the fully derived composition handed to an export backend.
type Timeline struct {
	Sources    []VideoSource // Resolved sources
	Plan       Plan
	Layout     LayoutResult
	Transforms []Transform
	Freezes    [][]Freeze
	Layer      LayerFunc
	Background color.RGBA // Canvas fill behind the sources
	Encode     EncodeSettings
	WorkDir    string // Scratch directory owned by the caller
	OutputPath string // Where the backend writes the finished file
}

// ErrorKind classifies a failed export.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorInvalidRequest
	ErrorSourceUnavailable
	ErrorEncodeFailed
	ErrorCancelled
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorInvalidRequest:
		return "invalid-request"
	case ErrorSourceUnavailable:
		return "source-unavailable"
	case ErrorEncodeFailed:
		return "encode-failed"
	case ErrorCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ExportResult reports the outcome of one export call.
type ExportResult struct {
	Success       bool
	OutputPath    string
	FileSizeBytes int64
	DurationMs    int
	ErrorMessage  string

	ErrorKind       ErrorKind
	SegmentCount    int
	Truncated       bool
	SkippedOverlays int
	Backend         string
	Canvas          Dimension
}
