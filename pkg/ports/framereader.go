package ports

import (
	"context"
	"image"
)

// VideoFrame represents a decoded video frame with timing information.
type VideoFrame struct {
	Image       *image.RGBA
	TimestampMs int // Relative to the requested start
	Duration    int // Duration in milliseconds
}

// FrameRequest selects a span of a video to decode.
type FrameRequest struct {
	Path       string
	StartMs    int
	DurationMs int
	Width      int // Coded width
	Height     int // Coded height
	FPS        float64
}

// FrameStream yields decoded frames in presentation order.
type FrameStream interface {
	// Next returns the next frame, or io.EOF after the last one.
	Next() (VideoFrame, error)

	// Close releases decoder resources.
	Close() error
}

// FrameReader abstracts video decoding operations.
type FrameReader interface {
	// Open starts decoding the requested span without applying rotation metadata.
	Open(ctx context.Context, req FrameRequest) (FrameStream, error)
}
