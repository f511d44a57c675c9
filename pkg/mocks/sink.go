package mocks

import (
	"image"
	"sync"

	"github.com/user/runcompare/pkg/ports"
)

// DebugSink is a mock implementation of ports.DebugSink.
type DebugSink struct {
	mu sync.RWMutex

	enabled bool

	PlanJSON       []byte
	LayoutJSON     []byte
	LayoutSVG      []byte
	OverlayLayers  map[int]image.Image
	ComposedFrames map[int]image.Image
}

// NewDebugSink creates a new mock DebugSink.
func NewDebugSink(enabled bool) *DebugSink {
	return &DebugSink{
		enabled:        enabled,
		OverlayLayers:  make(map[int]image.Image),
		ComposedFrames: make(map[int]image.Image),
	}
}

func (m *DebugSink) Enabled() bool {
	return m.enabled
}

func (m *DebugSink) SavePlanJSON(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlanJSON = data
	return nil
}

func (m *DebugSink) SaveLayoutJSON(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LayoutJSON = data
	return nil
}

func (m *DebugSink) SaveLayoutSVG(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LayoutSVG = data
	return nil
}

func (m *DebugSink) SaveOverlayLayer(segment int, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OverlayLayers[segment] = img
	return nil
}

func (m *DebugSink) SaveComposedFrame(index int, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ComposedFrames[index] = img
	return nil
}

var _ ports.DebugSink = (*DebugSink)(nil)

// NullSink is a no-op implementation of ports.DebugSink.
type NullSink struct{}

func (m *NullSink) Enabled() bool                                       { return false }
func (m *NullSink) SavePlanJSON(data []byte) error                      { return nil }
func (m *NullSink) SaveLayoutJSON(data []byte) error                    { return nil }
func (m *NullSink) SaveLayoutSVG(data []byte) error                     { return nil }
func (m *NullSink) SaveOverlayLayer(segment int, img image.Image) error { return nil }
func (m *NullSink) SaveComposedFrame(index int, img image.Image) error  { return nil }

var _ ports.DebugSink = (*NullSink)(nil)
