package layout

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/user/runcompare/pkg/pipeline"
)

func TestComputeLayout_HorizontalNormalizesAndDownscales(t *testing.T) {
	input := pipeline.DefaultLayoutInput()
	input.Sources = []pipeline.Dimension{
		{Width: 1920, Height: 1080},
		{Width: 1280, Height: 720},
	}

	result, err := ComputeLayout(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both normalize to 720 high (1280 wide each), 2560 wide canvas, then 0.75 downscale.
	if result.Scale != 0.75 {
		t.Errorf("scale: expected 0.75, got %f", result.Scale)
	}
	if result.Canvas != (pipeline.Dimension{Width: 1920, Height: 540}) {
		t.Errorf("canvas: expected 1920x540, got %+v", result.Canvas)
	}

	expected := []pipeline.Rectangle{
		{X: 0, Y: 0, Width: 960, Height: 540},
		{X: 960, Y: 0, Width: 960, Height: 540},
	}
	for i, want := range expected {
		if result.Rects[i] != want {
			t.Errorf("rects[%d]: expected %+v, got %+v", i, want, result.Rects[i])
		}
	}

	if sum := result.Rects[0].Width + result.Rects[1].Width; sum != result.Canvas.Width {
		t.Errorf("canvas width %d should equal sum of rect widths %d", result.Canvas.Width, sum)
	}
}

func TestComputeLayout_DownscaleStaysWithinLongEdge(t *testing.T) {
	tests := []struct {
		name        string
		orientation pipeline.Orientation
		sources     []pipeline.Dimension
		maxLongEdge int
	}{
		{"horizontal odd widths", pipeline.HorizontalSideBySide,
			[]pipeline.Dimension{{Width: 1922, Height: 1000}, {Width: 1918, Height: 1000}}, 1920},
		{"horizontal mixed aspect", pipeline.HorizontalSideBySide,
			[]pipeline.Dimension{{Width: 1366, Height: 766}, {Width: 1030, Height: 578}}, 1000},
		{"vertical odd heights", pipeline.VerticalStacked,
			[]pipeline.Dimension{{Width: 1000, Height: 1922}, {Width: 1000, Height: 1918}}, 1920},
		{"vertical portrait phones", pipeline.VerticalStacked,
			[]pipeline.Dimension{{Width: 1078, Height: 1922}, {Width: 718, Height: 1282}}, 1279},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := pipeline.DefaultLayoutInput()
			input.Orientation = tt.orientation
			input.Sources = tt.sources
			input.MaxLongEdge = tt.maxLongEdge

			result, err := ComputeLayout(input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			long := result.Canvas.Width
			if result.Canvas.Height > long {
				long = result.Canvas.Height
			}
			if long > tt.maxLongEdge {
				t.Errorf("long edge %d exceeds %d (canvas %+v)", long, tt.maxLongEdge, result.Canvas)
			}

			sum := 0
			for i, r := range result.Rects {
				if r.Width%2 != 0 || r.Height%2 != 0 {
					t.Errorf("rects[%d] not even: %+v", i, r)
				}
				if tt.orientation == pipeline.HorizontalSideBySide {
					sum += r.Width
					if r.Height != result.Rects[0].Height {
						t.Errorf("rects[%d] height %d differs from %d", i, r.Height, result.Rects[0].Height)
					}
				} else {
					sum += r.Height
					if r.Width != result.Rects[0].Width {
						t.Errorf("rects[%d] width %d differs from %d", i, r.Width, result.Rects[0].Width)
					}
				}
			}
			edge := result.Canvas.Width
			if tt.orientation == pipeline.VerticalStacked {
				edge = result.Canvas.Height
			}
			if sum != edge {
				t.Errorf("rects add up to %d, canvas edge is %d", sum, edge)
			}
		})
	}
}

func TestComputeLayout_HorizontalPreservesAspect(t *testing.T) {
	input := pipeline.DefaultLayoutInput()
	input.MaxLongEdge = 0
	input.Sources = []pipeline.Dimension{
		{Width: 1080, Height: 1920},
		{Width: 1280, Height: 720},
	}

	result, err := ComputeLayout(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, src := range input.Sources {
		r := result.Rects[i]
		if r.Height != 720 {
			t.Errorf("rects[%d] height: expected 720, got %d", i, r.Height)
		}
		want := float64(src.Width) / float64(src.Height)
		got := float64(r.Width) / float64(r.Height)
		if math.Abs(want-got) > 0.01 {
			t.Errorf("rects[%d] aspect: expected %.3f, got %.3f", i, want, got)
		}
	}
	if result.Rects[1].X != result.Rects[0].Width {
		t.Errorf("second rect should start where the first ends, got x=%d", result.Rects[1].X)
	}
}

func TestComputeLayout_VerticalIsTransposed(t *testing.T) {
	input := pipeline.DefaultLayoutInput()
	input.Orientation = pipeline.VerticalStacked
	input.Sources = []pipeline.Dimension{
		{Width: 1080, Height: 1920},
		{Width: 720, Height: 1280},
	}

	result, err := ComputeLayout(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Normalized to 720 wide: 720x1280 each, 2560 high, then scaled by 0.75.
	if result.Canvas != (pipeline.Dimension{Width: 540, Height: 1920}) {
		t.Errorf("canvas: expected 540x1920, got %+v", result.Canvas)
	}
	if result.Rects[1].Y != result.Rects[0].Height {
		t.Errorf("second rect should start below the first, got y=%d", result.Rects[1].Y)
	}
	if result.Rects[0].X != 0 || result.Rects[1].X != 0 {
		t.Errorf("stacked rects should start at x=0")
	}
}

func TestComputeLayout_Grid(t *testing.T) {
	input := pipeline.DefaultLayoutInput()
	input.Orientation = pipeline.Grid2x2
	input.Sources = []pipeline.Dimension{
		{Width: 1920, Height: 1080},
		{Width: 1080, Height: 1920},
		{Width: 640, Height: 480},
		{Width: 3840, Height: 2160},
	}

	result, err := ComputeLayout(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Canvas != (pipeline.Dimension{Width: 1920, Height: 1080}) {
		t.Errorf("canvas: expected 1920x1080, got %+v", result.Canvas)
	}
	expected := []pipeline.Rectangle{
		{X: 0, Y: 0, Width: 960, Height: 540},
		{X: 960, Y: 0, Width: 960, Height: 540},
		{X: 0, Y: 540, Width: 960, Height: 540},
		{X: 960, Y: 540, Width: 960, Height: 540},
	}
	for i, want := range expected {
		if result.Rects[i] != want {
			t.Errorf("rects[%d]: expected %+v, got %+v", i, want, result.Rects[i])
		}
	}
	if result.Scale != 1 {
		t.Errorf("scale: expected 1, got %f", result.Scale)
	}
}

func TestComputeLayout_EvenDimensions(t *testing.T) {
	input := pipeline.DefaultLayoutInput()
	input.Sources = []pipeline.Dimension{
		{Width: 1001, Height: 777},
		{Width: 333, Height: 999},
	}

	result, err := ComputeLayout(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Canvas.Width%2 != 0 || result.Canvas.Height%2 != 0 {
		t.Errorf("canvas must be even, got %+v", result.Canvas)
	}
	for i, r := range result.Rects {
		if r.Width%2 != 0 || r.Height%2 != 0 {
			t.Errorf("rects[%d] must be even, got %+v", i, r)
		}
	}
}

func TestComputeLayout_Deterministic(t *testing.T) {
	input := pipeline.DefaultLayoutInput()
	input.Sources = []pipeline.Dimension{
		{Width: 1920, Height: 1080},
		{Width: 1280, Height: 720},
	}

	first, _ := ComputeLayout(input)
	for i := 0; i < 10; i++ {
		again, _ := ComputeLayout(input)
		if again.Canvas != first.Canvas || again.Rects[0] != first.Rects[0] || again.Rects[1] != first.Rects[1] {
			t.Fatalf("layout changed between runs: %+v vs %+v", first, again)
		}
	}
}

func TestComputeLayout_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input pipeline.LayoutInput
	}{
		{
			name: "grid with two sources",
			input: pipeline.LayoutInput{
				Orientation: pipeline.Grid2x2,
				Sources:     []pipeline.Dimension{{Width: 10, Height: 10}, {Width: 10, Height: 10}},
			},
		},
		{
			name: "zero sized source",
			input: pipeline.LayoutInput{
				Orientation: pipeline.HorizontalSideBySide,
				Sources:     []pipeline.Dimension{{Width: 10, Height: 10}, {Width: 0, Height: 10}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeLayout(tt.input)
			if !errors.Is(err, pipeline.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestStage_Execute(t *testing.T) {
	stage := NewStage()
	input := pipeline.DefaultLayoutInput()
	input.Sources = []pipeline.Dimension{{Width: 640, Height: 360}, {Width: 640, Height: 360}}

	result, err := stage.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Canvas != (pipeline.Dimension{Width: 1280, Height: 360}) {
		t.Errorf("canvas: expected 1280x360, got %+v", result.Canvas)
	}
}

func TestRenderSVG(t *testing.T) {
	svg := string(RenderSVG(pipeline.LayoutResult{
		Canvas: pipeline.Dimension{Width: 200, Height: 100},
		Rects: []pipeline.Rectangle{
			{X: 0, Y: 0, Width: 100, Height: 100},
			{X: 100, Y: 0, Width: 100, Height: 100},
		},
	}))

	if !strings.HasPrefix(svg, "<svg") {
		t.Errorf("expected svg document, got %q", svg[:20])
	}
	if strings.Count(svg, "stroke=") != 2 {
		t.Errorf("expected 2 outlined rects, got %d", strings.Count(svg, "stroke="))
	}
	if !strings.Contains(svg, "source 1 (100x100)") {
		t.Errorf("expected label for source 1")
	}
}
