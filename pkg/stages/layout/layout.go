// Package layout implements the layout calculation stage.
package layout

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/user/runcompare/pkg/pipeline"
)

// Stage calculates where each source is placed on the output canvas.
// This is a pure function with no external dependencies.
type Stage struct{}

// NewStage creates a new layout stage.
func NewStage() *Stage {
	return &Stage{}
}

// Execute calculates the layout based on the input parameters.
func (s *Stage) Execute(ctx context.Context, input pipeline.LayoutInput) (pipeline.LayoutResult, error) {
	return ComputeLayout(input)
}

// ComputeLayout performs the layout calculation.
// This is exposed as a standalone function for testing and reuse.
//
// Rules:
// - HorizontalSideBySide: every source is scaled to the smallest height and placed left to right
// - VerticalStacked: every source is scaled to the smallest width and placed top to bottom
// - Grid2x2: fixed quadrants of a fixed canvas; sources fit inside them later
// - If the long edge exceeds MaxLongEdge, one uniform factor shrinks canvas and rects;
//   shrunk sizes round down so their sum stays within MaxLongEdge
// All sizes are even so the result can be encoded as 4:2:0 video.
func ComputeLayout(input pipeline.LayoutInput) (pipeline.LayoutResult, error) {
	want := input.Orientation.SourceCount()
	if len(input.Sources) != want {
		return pipeline.LayoutResult{}, fmt.Errorf("%w: %s layout needs %d sources, got %d",
			pipeline.ErrInvalidRequest, input.Orientation, want, len(input.Sources))
	}
	for i, d := range input.Sources {
		if d.Width <= 0 || d.Height <= 0 {
			return pipeline.LayoutResult{}, fmt.Errorf("%w: source %d has no size (%dx%d)",
				pipeline.ErrInvalidRequest, i, d.Width, d.Height)
		}
	}

	var sizes []pipeline.Dimension
	switch input.Orientation {
	case pipeline.HorizontalSideBySide:
		sizes = normalizeHeights(input.Sources)
	case pipeline.VerticalStacked:
		sizes = normalizeWidths(input.Sources)
	case pipeline.Grid2x2:
		sizes = gridCells(input)
	default:
		return pipeline.LayoutResult{}, fmt.Errorf("%w: unknown orientation %d", pipeline.ErrInvalidRequest, input.Orientation)
	}

	scale := 1.0
	long := longEdge(input.Orientation, sizes)
	if input.MaxLongEdge > 0 && long > input.MaxLongEdge {
		scale = float64(input.MaxLongEdge) / float64(long)
		for i := range sizes {
			sizes[i] = pipeline.Dimension{
				Width:  evenFloor(float64(sizes[i].Width) * scale),
				Height: evenFloor(float64(sizes[i].Height) * scale),
			}
		}
	}

	return place(input.Orientation, sizes, scale), nil
}

// normalizeHeights scales every source to the smallest source height.
func normalizeHeights(sources []pipeline.Dimension) []pipeline.Dimension {
	common := sources[0].Height
	for _, d := range sources[1:] {
		if d.Height < common {
			common = d.Height
		}
	}
	h := even(float64(common))

	sizes := make([]pipeline.Dimension, len(sources))
	for i, d := range sources {
		sizes[i] = pipeline.Dimension{
			Width:  even(float64(d.Width) * float64(h) / float64(d.Height)),
			Height: h,
		}
	}
	return sizes
}

// normalizeWidths scales every source to the smallest source width.
func normalizeWidths(sources []pipeline.Dimension) []pipeline.Dimension {
	common := sources[0].Width
	for _, d := range sources[1:] {
		if d.Width < common {
			common = d.Width
		}
	}
	w := even(float64(common))

	sizes := make([]pipeline.Dimension, len(sources))
	for i, d := range sources {
		sizes[i] = pipeline.Dimension{
			Width:  w,
			Height: even(float64(d.Height) * float64(w) / float64(d.Width)),
		}
	}
	return sizes
}

// gridCells returns four equal quadrant sizes of the configured grid canvas.
func gridCells(input pipeline.LayoutInput) []pipeline.Dimension {
	w, h := input.GridWidth, input.GridHeight
	if w <= 0 || h <= 0 {
		def := pipeline.DefaultLayoutInput()
		w, h = def.GridWidth, def.GridHeight
	}
	cell := pipeline.Dimension{Width: even(float64(w) / 2), Height: even(float64(h) / 2)}
	return []pipeline.Dimension{cell, cell, cell, cell}
}

// longEdge returns the long edge of the canvas the sizes would produce.
func longEdge(o pipeline.Orientation, sizes []pipeline.Dimension) int {
	canvas := canvasFor(o, sizes)
	if canvas.Width > canvas.Height {
		return canvas.Width
	}
	return canvas.Height
}

func canvasFor(o pipeline.Orientation, sizes []pipeline.Dimension) pipeline.Dimension {
	switch o {
	case pipeline.HorizontalSideBySide:
		c := pipeline.Dimension{}
		for _, s := range sizes {
			c.Width += s.Width
			if s.Height > c.Height {
				c.Height = s.Height
			}
		}
		return c
	case pipeline.VerticalStacked:
		c := pipeline.Dimension{}
		for _, s := range sizes {
			c.Height += s.Height
			if s.Width > c.Width {
				c.Width = s.Width
			}
		}
		return c
	default:
		return pipeline.Dimension{Width: sizes[0].Width * 2, Height: sizes[0].Height * 2}
	}
}

// place assigns positions to the sized rects.
func place(o pipeline.Orientation, sizes []pipeline.Dimension, scale float64) pipeline.LayoutResult {
	rects := make([]pipeline.Rectangle, len(sizes))
	x, y := 0, 0
	for i, s := range sizes {
		switch o {
		case pipeline.HorizontalSideBySide:
			rects[i] = pipeline.Rectangle{X: x, Y: 0, Width: s.Width, Height: s.Height}
			x += s.Width
		case pipeline.VerticalStacked:
			rects[i] = pipeline.Rectangle{X: 0, Y: y, Width: s.Width, Height: s.Height}
			y += s.Height
		default:
			rects[i] = pipeline.Rectangle{
				X:      (i % 2) * s.Width,
				Y:      (i / 2) * s.Height,
				Width:  s.Width,
				Height: s.Height,
			}
		}
	}

	return pipeline.LayoutResult{
		Canvas: canvasFor(o, sizes),
		Rects:  rects,
		Scale:  scale,
	}
}

// even rounds to the nearest even integer, never below 2.
func even(v float64) int {
	n := int(math.Round(v/2)) * 2
	if n < 2 {
		return 2
	}
	return n
}

// evenFloor rounds down to an even integer, never below 2.
func evenFloor(v float64) int {
	n := int(math.Floor(v/2)) * 2
	if n < 2 {
		return 2
	}
	return n
}

// RenderSVG draws the layout as an SVG document for debugging.
func RenderSVG(layout pipeline.LayoutResult) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		layout.Canvas.Width, layout.Canvas.Height, layout.Canvas.Width, layout.Canvas.Height)
	fmt.Fprintf(&b, `  <rect width="%d" height="%d" fill="#111"/>`+"\n", layout.Canvas.Width, layout.Canvas.Height)
	for i, r := range layout.Rects {
		fmt.Fprintf(&b, `  <rect x="%d" y="%d" width="%d" height="%d" fill="none" stroke="#4ade80" stroke-width="2"/>`+"\n",
			r.X, r.Y, r.Width, r.Height)
		fmt.Fprintf(&b, `  <text x="%d" y="%d" fill="#fff" font-family="sans-serif" font-size="24" text-anchor="middle">source %d (%dx%d)</text>`+"\n",
			r.X+r.Width/2, r.Y+r.Height/2, i, r.Width, r.Height)
	}
	b.WriteString("</svg>\n")
	return []byte(b.String())
}
