// Package encode implements the video encoding stage.
package encode

import (
	"context"
	"fmt"

	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
)

// Stage streams composed frames into an MP4 file.
// Frames arrive in batches between Begin and Finish.
type Stage struct {
	encoder ports.VideoEncoder
	logger  ports.Logger

	active  bool
	frames  int
	lastTs  int
	frameMs int
}

// NewStage creates a new encode stage.
func NewStage(encoder ports.VideoEncoder, logger ports.Logger) *Stage {
	return &Stage{
		encoder: encoder,
		logger:  logger.WithComponent("encode"),
	}
}

// Begin starts an encode session.
func (s *Stage) Begin(input pipeline.EncodeInput) error {
	if s.active {
		return fmt.Errorf("encode session already active")
	}
	if input.Settings.FPS <= 0 {
		return fmt.Errorf("invalid frame rate %.2f", input.Settings.FPS)
	}

	opts := ports.EncoderOptions{
		Bitrate: input.Settings.Bitrate,
		Quality: input.Settings.Quality,
	}
	if err := s.encoder.Begin(input.OutputPath, input.Canvas.Width, input.Canvas.Height, input.Settings.FPS, opts); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	s.active = true
	s.frames = 0
	s.lastTs = -1
	s.frameMs = int(1000/input.Settings.FPS + 0.5)
	s.logger.Debug("Encoding at %.1f fps", input.Settings.FPS)
	return nil
}

// Write encodes a batch of frames. Timestamps must increase strictly.
func (s *Stage) Write(ctx context.Context, frames []pipeline.ComposedFrame) error {
	if !s.active {
		return fmt.Errorf("encode session not started")
	}

	for _, frame := range frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if frame.TimestampMs <= s.lastTs {
			return fmt.Errorf("frame %d at %dms is not after %dms", frame.Index, frame.TimestampMs, s.lastTs)
		}
		if err := s.encoder.EncodeFrame(frame.Image, frame.TimestampMs); err != nil {
			return fmt.Errorf("encode frame at %dms: %w", frame.TimestampMs, err)
		}
		s.lastTs = frame.TimestampMs
		s.frames++
	}
	return nil
}

// Finish finalizes the output file.
func (s *Stage) Finish() (pipeline.EncodeResult, error) {
	if !s.active {
		return pipeline.EncodeResult{}, fmt.Errorf("encode session not started")
	}
	s.active = false

	if s.frames == 0 {
		s.encoder.Abort()
		return pipeline.EncodeResult{}, fmt.Errorf("no frames to encode")
	}
	if err := s.encoder.End(); err != nil {
		return pipeline.EncodeResult{}, fmt.Errorf("end encoding: %w", err)
	}

	result := pipeline.EncodeResult{
		FrameCount: s.frames,
		DurationMs: s.lastTs + s.frameMs,
	}
	s.logger.Debug("Encoding completed")
	return result, nil
}

// Abort discards the session and its partial output. It is safe to call at any time.
func (s *Stage) Abort() {
	if !s.active {
		return
	}
	s.active = false
	s.encoder.Abort()
}
