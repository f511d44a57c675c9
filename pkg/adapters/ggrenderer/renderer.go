// Package ggrenderer provides a renderer implementation using the gg library.
package ggrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"

	"github.com/user/runcompare/pkg/ports"
)

// Renderer implements ports.Renderer using the gg library.
// Font faces are cached and shared by every canvas it creates.
type Renderer struct {
	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	path string
	size float64
	bold bool
}

// New creates a new Renderer.
func New() *Renderer {
	return &Renderer{faces: make(map[faceKey]font.Face)}
}

// CreateCanvas creates a new drawing canvas.
func (r *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	dc := gg.NewContext(width, height)
	dc.SetColor(bg)
	dc.Clear()
	return &Canvas{dc: dc, r: r}
}

// DecodeImage decodes image data into an image.Image.
func (r *Renderer) DecodeImage(data []byte, format ports.ImageFormat) (image.Image, error) {
	reader := bytes.NewReader(data)

	switch format {
	case ports.FormatJPEG:
		return jpeg.Decode(reader)
	case ports.FormatPNG:
		return png.Decode(reader)
	default:
		// Try to auto-detect
		img, _, err := image.Decode(reader)
		return img, err
	}
}

// EncodeImage encodes an image to the specified format.
func (r *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case ports.FormatJPEG:
		opts := &jpeg.Options{Quality: quality}
		if err := jpeg.Encode(&buf, img, opts); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
	case ports.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode PNG: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %d", format)
	}

	return buf.Bytes(), nil
}

// ResizeImage resizes an image to the specified dimensions.
func (r *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// MeasureText returns the advance width and line height of text.
func (r *Renderer) MeasureText(text string, style ports.TextStyle) (float64, float64) {
	face, err := r.face(style)
	if err != nil {
		return 0, 0
	}
	width := float64(font.MeasureString(face, text)) / 64
	height := float64(face.Metrics().Height) / 64
	return width, height
}

// face returns a cached font face for the style.
// A FontPath that fails to load falls back to the built-in Go font.
func (r *Renderer) face(style ports.TextStyle) (font.Face, error) {
	if style.FontSize <= 0 {
		return nil, fmt.Errorf("invalid font size %.1f", style.FontSize)
	}
	key := faceKey{path: style.FontPath, size: style.FontSize, bold: style.Bold}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[key]; ok {
		return f, nil
	}

	var (
		face font.Face
		err  error
	)
	if style.FontPath != "" {
		face, err = gg.LoadFontFace(style.FontPath, style.FontSize)
	}
	if face == nil || err != nil {
		face, err = goFace(style.FontSize, style.Bold)
		if err != nil {
			return nil, err
		}
	}
	r.faces[key] = face
	return face, nil
}

func goFace(size float64, bold bool) (font.Face, error) {
	data := goregular.TTF
	if bold {
		data = gobold.TTF
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse go font: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Ensure Renderer implements ports.Renderer
var _ ports.Renderer = (*Renderer)(nil)

// Canvas implements ports.Canvas using gg.Context.
type Canvas struct {
	dc *gg.Context
	r  *Renderer
}

// DrawImage draws an image at the specified position.
func (c *Canvas) DrawImage(img image.Image, x, y int) {
	c.dc.DrawImage(img, x, y)
}

// DrawImageTransformed draws img through a source-to-canvas affine matrix
// with bilinear sampling.
func (c *Canvas) DrawImageTransformed(img image.Image, m f64.Aff3) {
	dst, ok := c.dc.Image().(*image.RGBA)
	if !ok {
		return
	}
	draw.BiLinear.Transform(dst, m, img, img.Bounds(), draw.Over, nil)
}

// DrawRect draws a filled rectangle.
func (c *Canvas) DrawRect(x, y, w, h int, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	c.dc.Fill()
}

// DrawRoundedRect draws a filled rounded rectangle.
func (c *Canvas) DrawRoundedRect(x, y, w, h, radius int, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawRoundedRectangle(float64(x), float64(y), float64(w), float64(h), float64(radius))
	c.dc.Fill()
}

// DrawText draws text at the specified position.
func (c *Canvas) DrawText(text string, x, y int, style ports.TextStyle) {
	face, err := c.r.face(style)
	if err != nil {
		panic(err)
	}
	c.dc.SetFontFace(face)
	if style.Color != nil {
		c.dc.SetColor(style.Color)
	} else {
		c.dc.SetColor(color.White)
	}

	// Calculate alignment offset
	ax := 0.0
	switch style.Align {
	case ports.AlignCenter:
		ax = 0.5
	case ports.AlignRight:
		ax = 1.0
	}

	c.dc.DrawStringAnchored(text, float64(x), float64(y), ax, 0.5)
}

// MeasureText returns the width and height of the text.
func (c *Canvas) MeasureText(text string, style ports.TextStyle) (float64, float64) {
	return c.r.MeasureText(text, style)
}

// ToImage returns the canvas as an image.Image.
func (c *Canvas) ToImage() image.Image {
	return c.dc.Image()
}

// Ensure Canvas implements ports.Canvas
var _ ports.Canvas = (*Canvas)(nil)
