package ports

import (
	"context"
)

// MediaInfo contains container metadata of a video file.
type MediaInfo struct {
	DurationMs  int
	CodedWidth  int
	CodedHeight int
	Rotation    int // Degrees, as stored in the container
	VideoCodec  string
	HasVideo    bool
	HasAudio    bool
}

// Prober abstracts media metadata inspection.
type Prober interface {
	// Probe reads metadata of the file at path.
	Probe(ctx context.Context, path string) (MediaInfo, error)
}
