// Package filesink provides a file-based debug sink implementation.
package filesink

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/user/runcompare/pkg/ports"
)

// Sink saves debug output to files.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
}

// New creates a new FileSink.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SavePlanJSON saves the segment plan as JSON.
func (s *Sink) SavePlanJSON(data []byte) error {
	path := filepath.Join(s.baseDir, "plan.json")
	return s.fs.WriteFile(path, data)
}

// SaveLayoutJSON saves the layout calculation result as JSON.
func (s *Sink) SaveLayoutJSON(data []byte) error {
	path := filepath.Join(s.baseDir, "layout.json")
	return s.fs.WriteFile(path, data)
}

// SaveLayoutSVG saves the layout visualization as SVG.
func (s *Sink) SaveLayoutSVG(data []byte) error {
	path := filepath.Join(s.baseDir, "layout.svg")
	return s.fs.WriteFile(path, data)
}

// SaveOverlayLayer saves the overlay layer of a segment as PNG.
func (s *Sink) SaveOverlayLayer(segment int, img image.Image) error {
	return s.savePNG(filepath.Join(s.baseDir, "overlays"), fmt.Sprintf("segment-%03d.png", segment), img)
}

// SaveComposedFrame saves a composed frame.
func (s *Sink) SaveComposedFrame(index int, img image.Image) error {
	return s.savePNG(filepath.Join(s.baseDir, "frames", "composed"), fmt.Sprintf("frame-%04d.png", index), img)
}

func (s *Sink) savePNG(dir, name string, img image.Image) error {
	if err := s.fs.MkdirAll(dir); err != nil {
		return err
	}
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.fs.WriteFile(filepath.Join(dir, name), data)
}

// Ensure Sink implements ports.DebugSink
var _ ports.DebugSink = (*Sink)(nil)
