package frameexport

import (
	"image"
	"io"

	"github.com/user/runcompare/pkg/ports"
)

// cursor walks one decoded span and answers which frame is on screen at a
// span-local instant. Instants past sampleAt hold the frame at sampleAt,
// which is how a source freezes once its consumed range ends.
type cursor struct {
	stream   ports.FrameStream
	sampleAt int

	current image.Image
	pending *ports.VideoFrame
	eof     bool
}

func newCursor(stream ports.FrameStream, sampleAt int) *cursor {
	return &cursor{stream: stream, sampleAt: sampleAt}
}

// at returns the latest frame with a timestamp at or before local.
// Instants must not decrease between calls. A span that produced no
// frames yields nil.
func (c *cursor) at(local int) (image.Image, error) {
	if local > c.sampleAt {
		local = c.sampleAt
	}

	for !c.eof {
		if c.pending == nil {
			f, err := c.stream.Next()
			if err == io.EOF {
				c.eof = true
				break
			}
			if err != nil {
				return nil, err
			}
			c.pending = &f
		}
		if c.pending.TimestampMs > local {
			break
		}
		c.current = c.pending.Image
		c.pending = nil
	}

	if c.current == nil && c.pending != nil {
		// Decoding started slightly after the requested instant.
		return c.pending.Image, nil
	}
	return c.current, nil
}
