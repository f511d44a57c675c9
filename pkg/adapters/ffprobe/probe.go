// Package ffprobe reads media metadata by running ffprobe through ffmpeg-go.
package ffprobe

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/user/runcompare/pkg/ports"
)

// ErrProbeFailed is returned when ffprobe fails or reports nothing usable.
var ErrProbeFailed = errors.New("ffprobe: probe failed")

// Prober implements ports.Prober with ffprobe.
type Prober struct {
	run func(path string) (string, error)
}

// New creates a new Prober.
func New() *Prober {
	return &Prober{run: func(path string) (string, error) {
		return ffmpeg.Probe(path)
	}}
}

// Probe runs ffprobe on path. The call is abandoned when ctx is cancelled.
func (p *Prober) Probe(ctx context.Context, path string) (ports.MediaInfo, error) {
	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := p.run(path)
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		return ports.MediaInfo{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return ports.MediaInfo{}, errors.Wrapf(ErrProbeFailed, "%s: %v", path, res.err)
		}
		return Parse([]byte(res.out))
	}
}

type output struct {
	Streams []stream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type stream struct {
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Duration     string            `json:"duration"`
	Tags         map[string]string `json:"tags"`
	SideDataList []struct {
		SideDataType string  `json:"side_data_type"`
		Rotation     float64 `json:"rotation"`
	} `json:"side_data_list"`
}

// Parse converts ffprobe JSON output into MediaInfo.
func Parse(data []byte) (ports.MediaInfo, error) {
	var out output
	if err := json.Unmarshal(data, &out); err != nil {
		return ports.MediaInfo{}, errors.Wrap(err, "parse ffprobe output")
	}

	var info ports.MediaInfo
	info.DurationMs = millis(out.Format.Duration)

	for _, s := range out.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.VideoCodec = s.CodecName
			info.CodedWidth = s.Width
			info.CodedHeight = s.Height
			info.Rotation = rotation(s)
			if d := millis(s.Duration); d > 0 {
				info.DurationMs = d
			}
		}
	}

	if !info.HasVideo {
		return info, errors.Wrap(ErrProbeFailed, "no video stream")
	}
	return info, nil
}

// rotation prefers the legacy rotate tag (clockwise) and falls back to
// the display matrix side data (counter-clockwise).
func rotation(s stream) int {
	if v, ok := s.Tags["rotate"]; ok {
		if deg, err := strconv.Atoi(v); err == nil {
			return normalize(deg)
		}
	}
	for _, sd := range s.SideDataList {
		if sd.SideDataType == "Display Matrix" {
			return normalize(-int(math.Round(sd.Rotation)))
		}
	}
	return 0
}

func normalize(deg int) int {
	return ((deg % 360) + 360) % 360
}

func millis(seconds string) int {
	v, err := strconv.ParseFloat(seconds, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return int(math.Round(v * 1000))
}

// Ensure Prober implements ports.Prober
var _ ports.Prober = (*Prober)(nil)
