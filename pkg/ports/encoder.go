package ports

import (
	"image"
)

// VideoEncoder abstracts streaming video encoding into a file.
type VideoEncoder interface {
	// Begin initializes the encoder with the output path, dimensions and frame rate.
	Begin(outputPath string, width, height int, fps float64, opts EncoderOptions) error

	// EncodeFrame encodes a single frame at the specified timestamp.
	EncodeFrame(img image.Image, timestampMs int) error

	// End finalizes encoding and closes the output file.
	End() error

	// Abort stops encoding and discards the partial output.
	Abort()
}

// EncoderOptions configures video encoding parameters.
type EncoderOptions struct {
	Bitrate int // Target bitrate in kbps
	Quality int // CRF value: 0-63 (lower is higher quality)
}
