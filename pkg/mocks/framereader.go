package mocks

import (
	"context"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/user/runcompare/pkg/ports"
)

// FrameReader is a mock implementation of ports.FrameReader.
// Each stream yields solid frames at req.FPS covering req.DurationMs.
type FrameReader struct {
	OpenFunc func(ctx context.Context, req ports.FrameRequest) (ports.FrameStream, error)
	Fill     color.RGBA

	mu       sync.Mutex
	Requests []ports.FrameRequest
	Streams  []*FrameStream
}

func (m *FrameReader) Open(ctx context.Context, req ports.FrameRequest) (ports.FrameStream, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, req)
	}
	fps := req.FPS
	if fps <= 0 {
		fps = 30
	}
	count := int(float64(req.DurationMs) * fps / 1000)
	if count < 1 {
		count = 1
	}
	s := &FrameStream{req: req, count: count, step: 1000 / fps, fill: m.Fill}
	m.mu.Lock()
	m.Streams = append(m.Streams, s)
	m.mu.Unlock()
	return s, nil
}

var _ ports.FrameReader = (*FrameReader)(nil)

// FrameStream is a mock implementation of ports.FrameStream.
type FrameStream struct {
	req   ports.FrameRequest
	count int
	step  float64
	fill  color.RGBA
	next  int

	Closed bool
}

func (m *FrameStream) Next() (ports.VideoFrame, error) {
	if m.next >= m.count {
		return ports.VideoFrame{}, io.EOF
	}
	img := image.NewRGBA(image.Rect(0, 0, m.req.Width, m.req.Height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = m.fill.R, m.fill.G, m.fill.B, 255
	}
	f := ports.VideoFrame{
		Image:       img,
		TimestampMs: int(float64(m.next) * m.step),
		Duration:    int(m.step),
	}
	m.next++
	return f, nil
}

func (m *FrameStream) Close() error {
	m.Closed = true
	return nil
}

var _ ports.FrameStream = (*FrameStream)(nil)
