package mocks

import (
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/math/f64"

	"github.com/user/runcompare/pkg/ports"
)

// Renderer is a mock implementation of ports.Renderer.
// Text measures 10 pixels per rune at font size 20, scaled linearly.
type Renderer struct {
	CreateCanvasFunc func(width, height int, bg color.Color) ports.Canvas
	DecodeImageFunc  func(data []byte, format ports.ImageFormat) (image.Image, error)
	EncodeImageFunc  func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error)
	ResizeImageFunc  func(img image.Image, width, height int) image.Image
	MeasureTextFunc  func(text string, style ports.TextStyle) (float64, float64)

	mu       sync.Mutex
	Canvases []*Canvas
}

func (m *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	if m.CreateCanvasFunc != nil {
		return m.CreateCanvasFunc(width, height, bg)
	}
	c := &Canvas{width: width, height: height, measure: m.MeasureText}
	m.mu.Lock()
	m.Canvases = append(m.Canvases, c)
	m.mu.Unlock()
	return c
}

func (m *Renderer) DecodeImage(data []byte, format ports.ImageFormat) (image.Image, error) {
	if m.DecodeImageFunc != nil {
		return m.DecodeImageFunc(data, format)
	}
	return image.NewRGBA(image.Rect(0, 0, 100, 100)), nil
}

func (m *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	if m.EncodeImageFunc != nil {
		return m.EncodeImageFunc(img, format, quality)
	}
	return []byte{}, nil
}

func (m *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	if m.ResizeImageFunc != nil {
		return m.ResizeImageFunc(img, width, height)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

func (m *Renderer) MeasureText(text string, style ports.TextStyle) (float64, float64) {
	if m.MeasureTextFunc != nil {
		return m.MeasureTextFunc(text, style)
	}
	k := style.FontSize / 20
	return float64(len([]rune(text))) * 10 * k, style.FontSize
}

var _ ports.Renderer = (*Renderer)(nil)

// Canvas is a mock implementation of ports.Canvas that records draw calls.
type Canvas struct {
	width   int
	height  int
	img     *image.RGBA
	measure func(text string, style ports.TextStyle) (float64, float64)

	DrawTextFunc func(text string, x, y int, style ports.TextStyle)

	Texts       []string
	Rects       int
	Images      int
	Transformed []f64.Aff3
}

func (m *Canvas) DrawImage(img image.Image, x, y int) {
	m.Images++
}

func (m *Canvas) DrawImageTransformed(img image.Image, mat f64.Aff3) {
	m.Transformed = append(m.Transformed, mat)
}

func (m *Canvas) DrawRect(x, y, w, h int, c color.Color) {
	m.Rects++
}

func (m *Canvas) DrawRoundedRect(x, y, w, h, radius int, c color.Color) {
	m.Rects++
}

func (m *Canvas) DrawText(text string, x, y int, style ports.TextStyle) {
	if m.DrawTextFunc != nil {
		m.DrawTextFunc(text, x, y, style)
	}
	m.Texts = append(m.Texts, text)
}

func (m *Canvas) MeasureText(text string, style ports.TextStyle) (float64, float64) {
	if m.measure != nil {
		return m.measure(text, style)
	}
	return float64(len(text)) * style.FontSize / 2, style.FontSize
}

func (m *Canvas) ToImage() image.Image {
	if m.img != nil {
		return m.img
	}
	return image.NewRGBA(image.Rect(0, 0, m.width, m.height))
}

var _ ports.Canvas = (*Canvas)(nil)
