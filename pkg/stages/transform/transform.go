// Package transform implements the source placement stage.
package transform

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/image/math/f64"

	"github.com/user/runcompare/pkg/pipeline"
)

// Stage computes how each coded source frame maps onto the canvas.
// This is a pure function with no external dependencies.
type Stage struct{}

// NewStage creates a new transform stage.
func NewStage() *Stage {
	return &Stage{}
}

// Execute computes one transform per source.
func (s *Stage) Execute(ctx context.Context, input pipeline.TransformInput) (pipeline.TransformResult, error) {
	if len(input.Sources) != len(input.Layout.Rects) {
		return pipeline.TransformResult{}, fmt.Errorf("%w: %d sources for %d layout rects",
			pipeline.ErrInvalidRequest, len(input.Sources), len(input.Layout.Rects))
	}

	transforms := make([]pipeline.Transform, len(input.Sources))
	for i, src := range input.Sources {
		w, h := CodedSize(src)
		if w <= 0 || h <= 0 {
			return pipeline.TransformResult{}, fmt.Errorf("%w: source %d has no coded size", pipeline.ErrInvalidRequest, i)
		}
		transforms[i] = Compute(w, h, src.Rotation, input.Layout.Rects[i])
	}
	return pipeline.TransformResult{Transforms: transforms}, nil
}

// QuarterTurns converts rotation metadata into clockwise quarter turns.
// Values that are not a multiple of 90 degrees yield 0.
func QuarterTurns(degrees int) int {
	d := ((degrees % 360) + 360) % 360
	if d%90 != 0 {
		return 0
	}
	return d / 90
}

// CodedSize returns the stored frame size of a source, deriving it from the
// displayed size when the resolver did not report one.
func CodedSize(src pipeline.VideoSource) (int, int) {
	if src.CodedWidth > 0 && src.CodedHeight > 0 {
		return src.CodedWidth, src.CodedHeight
	}
	if QuarterTurns(src.Rotation)%2 == 1 {
		return src.Height, src.Width
	}
	return src.Width, src.Height
}

// Compute rotates a codedW x codedH frame upright, scales it uniformly to fit
// rect and centers it inside rect.
func Compute(codedW, codedH, rotation int, rect pipeline.Rectangle) pipeline.Transform {
	q := QuarterTurns(rotation)

	uprightW, uprightH := codedW, codedH
	if q%2 == 1 {
		uprightW, uprightH = codedH, codedW
	}

	scale := math.Min(
		float64(rect.Width)/float64(uprightW),
		float64(rect.Height)/float64(uprightH),
	)
	w := int(math.Round(float64(uprightW) * scale))
	h := int(math.Round(float64(uprightH) * scale))
	ox := rect.X + (rect.Width-w)/2
	oy := rect.Y + (rect.Height-h)/2

	return pipeline.Transform{
		QuarterTurns: q,
		Scale:        scale,
		Width:        w,
		Height:       h,
		OffsetX:      ox,
		OffsetY:      oy,
		Matrix:       matrix(q, scale, float64(codedW), float64(codedH), float64(ox), float64(oy)),
	}
}

// matrix builds the coded-to-canvas affine transform.
// Rows are X = m[0]*x + m[1]*y + m[2] and Y = m[3]*x + m[4]*y + m[5].
func matrix(q int, s, w, h, ox, oy float64) f64.Aff3 {
	switch q {
	case 1:
		return f64.Aff3{0, -s, s*h + ox, s, 0, oy}
	case 2:
		return f64.Aff3{-s, 0, s*w + ox, 0, -s, s*h + oy}
	case 3:
		return f64.Aff3{0, s, ox, -s, 0, s*w + oy}
	default:
		return f64.Aff3{s, 0, ox, 0, s, oy}
	}
}

// Apply maps a coded source point to canvas coordinates.
func Apply(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}
