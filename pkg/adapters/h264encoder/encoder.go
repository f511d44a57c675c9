// Package h264encoder provides H.264 video encoding through an ffmpeg process.
package h264encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/user/runcompare/pkg/ports"
)

// Encoder implements ports.VideoEncoder by piping raw RGBA frames into
// ffmpeg/libx264. Output is yuv420p MP4 with the moov atom up front.
type Encoder struct {
	mu sync.Mutex

	width      int
	height     int
	fps        float64
	outputPath string

	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stderr     bytes.Buffer
	frame      *image.RGBA
	frameCount int
}

// New creates a new H.264 encoder.
func New() *Encoder {
	return &Encoder{}
}

// Begin starts ffmpeg writing to outputPath.
func (e *Encoder) Begin(outputPath string, width, height int, fps float64, opts ports.EncoderOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ffmpegPath, err := FindFFmpeg()
	if err != nil {
		return err
	}
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return fmt.Errorf("%w: %dx%d must be positive and even", ErrEncodingFailed, width, height)
	}
	if fps <= 0 {
		fps = 30
	}

	e.width = width
	e.height = height
	e.fps = fps
	e.outputPath = outputPath
	e.frame = image.NewRGBA(image.Rect(0, 0, width, height))
	e.frameCount = 0
	e.stderr.Reset()

	args := Args(outputPath, width, height, fps, opts)
	e.cmd = exec.Command(ffmpegPath, args...)
	e.cmd.Stderr = &e.stderr

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	e.stdin = stdin

	if err := e.cmd.Start(); err != nil {
		e.stdin = nil
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return nil
}

// Args builds the ffmpeg command line for a raw RGBA stdin stream.
func Args(outputPath string, width, height int, fps float64, opts ports.EncoderOptions) []string {
	out := ffmpeg.KwArgs{
		"c:v":      "libx264",
		"preset":   "fast",
		"pix_fmt":  "yuv420p",
		"crf":      CRF(opts.Quality),
		"movflags": "+faststart",
		"f":        "mp4",
	}
	if opts.Bitrate > 0 {
		out["b:v"] = fmt.Sprintf("%dk", opts.Bitrate)
	}

	return ffmpeg.Input("pipe:0", ffmpeg.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "rgba",
		"s":       fmt.Sprintf("%dx%d", width, height),
		"r":       fmt.Sprintf("%.3f", fps),
	}).Output(outputPath, out).OverWriteOutput().GetArgs()
}

// CRF converts the 0-63 quality scale into x264's 0-51 CRF.
func CRF(quality int) int {
	if quality <= 0 || quality > 63 {
		return 23
	}
	return quality * 51 / 63
}

// EncodeFrame writes one frame. Frames of a different size are drawn
// onto a canvas of the encoder size.
func (e *Encoder) EncodeFrame(img image.Image, timestampMs int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stdin == nil {
		return ErrNotInitialized
	}

	pix := e.pixels(img)
	if _, err := e.stdin.Write(pix); err != nil {
		return fmt.Errorf("%w: write frame %d: %v\nstderr: %s", ErrEncodingFailed, e.frameCount, err, e.stderr.String())
	}
	e.frameCount++
	return nil
}

func (e *Encoder) pixels(img image.Image) []byte {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect == e.frame.Rect && rgba.Stride == e.width*4 {
		return rgba.Pix
	}
	draw.Draw(e.frame, e.frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
	draw.Draw(e.frame, e.frame.Bounds(), img, img.Bounds().Min, draw.Src)
	return e.frame.Pix
}

// End closes the input and waits for ffmpeg to finish the file.
func (e *Encoder) End() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stdin == nil {
		return ErrNotInitialized
	}

	e.stdin.Close()
	e.stdin = nil

	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: %v\nstderr: %s", ErrEncodingFailed, err, e.stderr.String())
	}
	if e.frameCount == 0 {
		return fmt.Errorf("%w: no frames", ErrEncodingFailed)
	}
	return nil
}

// Abort kills ffmpeg and removes the partial output.
func (e *Encoder) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stdin != nil {
		e.stdin.Close()
		e.stdin = nil
	}
	if e.cmd != nil && e.cmd.Process != nil && e.cmd.ProcessState == nil {
		e.cmd.Process.Kill()
		e.cmd.Wait()
	}
	if e.outputPath != "" {
		os.Remove(e.outputPath)
	}
}

// FrameCount returns the number of frames written so far.
func (e *Encoder) FrameCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameCount
}

// Ensure Encoder implements ports.VideoEncoder
var _ ports.VideoEncoder = (*Encoder)(nil)
