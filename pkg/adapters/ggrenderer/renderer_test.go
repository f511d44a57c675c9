package ggrenderer

import (
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/math/f64"

	"github.com/user/runcompare/pkg/ports"
)

func TestRenderer_CreateCanvas(t *testing.T) {
	r := New()

	canvas := r.CreateCanvas(100, 100, color.White)
	if canvas == nil {
		t.Fatal("expected canvas to be created")
	}

	img := canvas.ToImage()
	bounds := img.Bounds()

	if bounds.Dx() != 100 || bounds.Dy() != 100 {
		t.Errorf("expected 100x100, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderer_EncodeDecodeJPEG(t *testing.T) {
	r := New()

	// Create test image
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	// Encode
	data, err := r.EncodeImage(img, ports.FormatJPEG, 80)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty data")
	}

	// Decode
	decoded, err := r.DecodeImage(data, ports.FormatJPEG)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}

	bounds := decoded.Bounds()
	if bounds.Dx() != 50 || bounds.Dy() != 50 {
		t.Errorf("expected 50x50, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderer_EncodeDecodePNG(t *testing.T) {
	r := New()

	img := image.NewRGBA(image.Rect(0, 0, 30, 30))

	// Encode
	data, err := r.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}

	// Decode
	decoded, err := r.DecodeImage(data, ports.FormatPNG)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}

	bounds := decoded.Bounds()
	if bounds.Dx() != 30 || bounds.Dy() != 30 {
		t.Errorf("expected 30x30, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderer_ResizeImage(t *testing.T) {
	r := New()

	// Create 100x100 image
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	// Resize to 50x50
	resized := r.ResizeImage(img, 50, 50)

	bounds := resized.Bounds()
	if bounds.Dx() != 50 || bounds.Dy() != 50 {
		t.Errorf("expected 50x50, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestCanvas_DrawRect(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(100, 100, color.White)

	// Draw red rectangle
	canvas.DrawRect(10, 10, 30, 30, color.RGBA{R: 255, A: 255})

	img := canvas.ToImage()

	// Check that pixel inside rectangle is red
	c := img.At(20, 20)
	red, _, _, _ := c.RGBA()
	if red == 0 {
		t.Error("expected red pixel inside rectangle")
	}
}

func TestCanvas_DrawImage(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(100, 100, color.White)

	// Create small red image
	small := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			small.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	// Draw at position (10, 10)
	canvas.DrawImage(small, 10, 10)

	img := canvas.ToImage()

	// Check pixel at (15, 15) should be red
	c := img.At(15, 15)
	red, _, _, _ := c.RGBA()
	if red == 0 {
		t.Error("expected red pixel from drawn image")
	}
}

func TestCanvas_DrawImageTransformed(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(100, 100, color.Black)

	// 20x10 red image turned a quarter clockwise and placed at (40, 40).
	src := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			src.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	canvas.DrawImageTransformed(src, f64.Aff3{0, -1, 50, 1, 0, 40})

	img := canvas.ToImage()
	if red, _, _, _ := img.At(45, 50).RGBA(); red == 0 {
		t.Error("expected red pixel inside the rotated image")
	}
	if red, _, _, _ := img.At(55, 45).RGBA(); red != 0 {
		t.Error("expected background right of the rotated image")
	}
	if red, _, _, _ := img.At(45, 65).RGBA(); red != 0 {
		t.Error("expected background below the rotated image")
	}
}

func TestRenderer_MeasureText(t *testing.T) {
	r := New()

	short, h := r.MeasureText("Ann", ports.TextStyle{FontSize: 20})
	long, _ := r.MeasureText("Annabelle", ports.TextStyle{FontSize: 20})
	big, bigH := r.MeasureText("Ann", ports.TextStyle{FontSize: 40})
	bold, _ := r.MeasureText("Annabelle", ports.TextStyle{FontSize: 20, Bold: true})

	if short <= 0 || h <= 0 {
		t.Fatalf("expected positive size, got %fx%f", short, h)
	}
	if long <= short {
		t.Errorf("longer text should measure wider: %f <= %f", long, short)
	}
	if big <= short || bigH <= h {
		t.Errorf("larger font should measure bigger")
	}
	if bold < long {
		t.Errorf("bold text should not measure narrower: %f < %f", bold, long)
	}

	if w, _ := r.MeasureText("x", ports.TextStyle{FontSize: 0}); w != 0 {
		t.Errorf("expected zero width for invalid font size, got %f", w)
	}
	// Unreadable font files fall back to the built-in face.
	if w, _ := r.MeasureText("Ann", ports.TextStyle{FontSize: 20, FontPath: "/nonexistent.ttf"}); w != short {
		t.Errorf("expected fallback width %f, got %f", short, w)
	}
}

func TestCanvas_DrawText(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(200, 50, color.White)

	style := ports.TextStyle{
		FontSize: 14,
		Color:    color.Black,
		Align:    ports.AlignLeft,
	}

	canvas.DrawText("Hello World", 10, 25, style)

	img := canvas.ToImage()
	dark := 0
	for y := 0; y < 50; y++ {
		for x := 0; x < 200; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r < 0x8000 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Error("expected text pixels on the canvas")
	}
}
