// Package framereader decodes spans of a video into raw RGBA frames
// by streaming them out of an ffmpeg process.
package framereader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/user/runcompare/pkg/adapters/h264encoder"
	"github.com/user/runcompare/pkg/ports"
)

var (
	// ErrDecodeFailed is returned when ffmpeg cannot decode the requested span.
	ErrDecodeFailed = errors.New("framereader: decode failed")

	// ErrInvalidRequest is returned for requests without a usable frame size.
	ErrInvalidRequest = errors.New("framereader: invalid request")
)

// Reader implements ports.FrameReader with ffmpeg.
// Rotation metadata is ignored so frames arrive in coded orientation.
type Reader struct{}

// New creates a new Reader.
func New() *Reader {
	return &Reader{}
}

// Args builds the ffmpeg command line that writes req as raw RGBA to stdout.
func Args(req ports.FrameRequest) []string {
	in := ffmpeg.KwArgs{
		"noautorotate": "",
		"ss":           seconds(req.StartMs),
	}
	if req.DurationMs > 0 {
		in["t"] = seconds(req.DurationMs)
	}
	return ffmpeg.Input(req.Path, in).
		Output("pipe:1", ffmpeg.KwArgs{
			"an":      "",
			"f":       "rawvideo",
			"pix_fmt": "rgba",
			"r":       fmt.Sprintf("%.3f", fps(req)),
			"s":       fmt.Sprintf("%dx%d", req.Width, req.Height),
		}).GetArgs()
}

// Open starts ffmpeg for the requested span.
func (r *Reader) Open(ctx context.Context, req ports.FrameRequest) (ports.FrameStream, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, errors.Wrapf(ErrInvalidRequest, "frame size %dx%d", req.Width, req.Height)
	}
	ffmpegPath, err := h264encoder.FindFFmpeg()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s := &stream{
		ctx:    ctx,
		width:  req.Width,
		height: req.Height,
		step:   1000 / fps(req),
	}
	s.cmd = exec.CommandContext(ctx, ffmpegPath, Args(req)...)
	s.cmd.Stderr = &s.stderr
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdout pipe")
	}
	s.stdout = stdout
	if err := s.cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start ffmpeg")
	}
	return s, nil
}

type stream struct {
	ctx    context.Context
	width  int
	height int
	step   float64

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer

	mu     sync.Mutex
	index  int
	done   bool
	closed bool
}

// Next reads one frame; io.EOF marks the natural end of the span.
func (s *stream) Next() (ports.VideoFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done || s.closed {
		return ports.VideoFrame{}, io.EOF
	}
	if err := s.ctx.Err(); err != nil {
		return ports.VideoFrame{}, err
	}

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	_, err := io.ReadFull(s.stdout, img.Pix)
	switch {
	case err == io.EOF:
		s.done = true
		if werr := s.cmd.Wait(); werr != nil && s.ctx.Err() == nil {
			return ports.VideoFrame{}, errors.Wrapf(ErrDecodeFailed, "%v: %s", werr, s.stderr.String())
		}
		if s.ctx.Err() != nil {
			return ports.VideoFrame{}, s.ctx.Err()
		}
		return ports.VideoFrame{}, io.EOF
	case err != nil:
		s.done = true
		s.cmd.Wait()
		if s.ctx.Err() != nil {
			return ports.VideoFrame{}, s.ctx.Err()
		}
		return ports.VideoFrame{}, errors.Wrapf(ErrDecodeFailed, "frame %d: %v", s.index, err)
	}

	frame := ports.VideoFrame{
		Image:       img,
		TimestampMs: int(float64(s.index) * s.step),
		Duration:    int(s.step),
	}
	s.index++
	return frame, nil
}

// Close stops ffmpeg if it is still running.
func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if !s.done {
		s.stdout.Close()
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		s.cmd.Wait()
	}
	return nil
}

func fps(req ports.FrameRequest) float64 {
	if req.FPS <= 0 {
		return 30
	}
	return req.FPS
}

func seconds(ms int) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000)
}

// Ensure Reader implements ports.FrameReader
var _ ports.FrameReader = (*Reader)(nil)
