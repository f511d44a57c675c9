package overlay

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"sync"

	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
)

// Rasterizer draws overlay specs onto transparent layers, one per segment.
// A spec that fails to draw is logged and skipped.
type Rasterizer struct {
	renderer ports.Renderer
	logger   ports.Logger
	canvas   pipeline.Dimension
	specs    []pipeline.OverlaySpec

	mu      sync.Mutex
	skipped map[int]bool // spec index
	cache   map[int]image.Image
}

// NewRasterizer creates a rasterizer for specs on a canvas of the given size.
func NewRasterizer(renderer ports.Renderer, logger ports.Logger, canvas pipeline.Dimension, specs []pipeline.OverlaySpec) *Rasterizer {
	ordered := make([]pipeline.OverlaySpec, len(specs))
	copy(ordered, specs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Z < ordered[j].Z
	})

	return &Rasterizer{
		renderer: renderer,
		logger:   logger.WithComponent("overlay"),
		canvas:   canvas,
		specs:    ordered,
		skipped:  make(map[int]bool),
		cache:    make(map[int]image.Image),
	}
}

// Layer returns the overlay layer of a segment, or nil when nothing is visible.
// It satisfies pipeline.LayerFunc and never fails.
func (r *Rasterizer) Layer(segment int) (image.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if img, ok := r.cache[segment]; ok {
		return img, nil
	}

	var canvas ports.Canvas
	for i, spec := range r.specs {
		if !spec.VisibleIn(segment) || r.skipped[i] {
			continue
		}
		if canvas == nil {
			canvas = r.renderer.CreateCanvas(r.canvas.Width, r.canvas.Height, color.Transparent)
		}
		if err := r.draw(canvas, spec); err != nil {
			r.skipped[i] = true
			r.logger.Warn("Overlay %s for source %d skipped: %v", spec.Kind, spec.Source, err)
		}
	}

	var img image.Image
	if canvas != nil {
		img = canvas.ToImage()
	}
	r.cache[segment] = img
	return img, nil
}

// Skipped returns how many overlay specs failed to render.
func (r *Rasterizer) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.skipped)
}

// draw renders one spec, converting renderer panics into errors.
func (r *Rasterizer) draw(canvas ports.Canvas, spec pipeline.OverlaySpec) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("render panic: %v", p)
		}
	}()

	if spec.Rect.Width <= 0 || spec.Rect.Height <= 0 {
		return fmt.Errorf("empty rect %+v", spec.Rect)
	}
	bounds := image.Rect(0, 0, r.canvas.Width, r.canvas.Height)
	area := image.Rect(spec.Rect.X, spec.Rect.Y, spec.Rect.X+spec.Rect.Width, spec.Rect.Y+spec.Rect.Height)
	if !area.Overlaps(bounds) {
		return fmt.Errorf("rect %+v is outside the %dx%d canvas", spec.Rect, r.canvas.Width, r.canvas.Height)
	}

	switch spec.Kind {
	case pipeline.OverlayPanel:
		radius := spec.Rect.Height / 8
		canvas.DrawRoundedRect(spec.Rect.X, spec.Rect.Y, spec.Rect.Width, spec.Rect.Height, radius, spec.Color)
	default:
		if spec.Text == "" {
			return fmt.Errorf("empty text")
		}
		if spec.FontSize <= 0 {
			return fmt.Errorf("invalid font size %.1f", spec.FontSize)
		}
		canvas.DrawText(spec.Text, spec.Rect.X, spec.Rect.Y+spec.Rect.Height/2, ports.TextStyle{
			FontSize: spec.FontSize,
			Bold:     spec.Bold,
			Color:    spec.Color,
			Align:    ports.AlignLeft,
		})
	}
	return nil
}
