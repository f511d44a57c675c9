package h264encoder

import "errors"

var (
	// ErrNotInitialized is returned when encoder methods are called before initialization.
	ErrNotInitialized = errors.New("h264encoder: encoder not initialized")

	// ErrEncodingFailed is returned when encoding a frame fails.
	ErrEncodingFailed = errors.New("h264encoder: encoding failed")

	// ErrFFmpegNotFound is returned when ffmpeg cannot be located.
	ErrFFmpegNotFound = errors.New("h264encoder: ffmpeg not found in PATH")

	// ErrFrameSize is returned when a frame does not match the encoder size.
	ErrFrameSize = errors.New("h264encoder: frame size mismatch")
)
