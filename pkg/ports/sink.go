package ports

import (
	"image"
)

// DebugSink abstracts debug output for intermediate results.
// It allows saving intermediate processing results for debugging purposes.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SavePlanJSON saves the segment plan as JSON.
	SavePlanJSON(data []byte) error

	// SaveLayoutJSON saves the layout calculation result as JSON.
	SaveLayoutJSON(data []byte) error

	// SaveLayoutSVG saves the layout visualization as SVG.
	SaveLayoutSVG(data []byte) error

	// SaveOverlayLayer saves the rendered overlay layer of a segment.
	SaveOverlayLayer(segment int, img image.Image) error

	// SaveComposedFrame saves a composed frame.
	SaveComposedFrame(index int, img image.Image) error
}
