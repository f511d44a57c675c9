package ffmpegexport

import (
	"fmt"
	"image/color"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/user/runcompare/pkg/adapters/h264encoder"
	"github.com/user/runcompare/pkg/pipeline"
)

// ErrEmptyTimeline is returned for timelines without segments or sources.
var ErrEmptyTimeline = errors.New("ffmpegexport: empty timeline")

// SourceInputs opens one input per segment and source, limited to the
// consumed range. Rotation metadata is ignored; transforms rotate explicitly.
func SourceInputs(t pipeline.Timeline) [][]*ffmpeg.Stream {
	inputs := make([][]*ffmpeg.Stream, len(t.Plan.Segments))
	for i, seg := range t.Plan.Segments {
		row := make([]*ffmpeg.Stream, len(seg.Ranges))
		for j, r := range seg.Ranges {
			row[j] = ffmpeg.Input(t.Sources[j].Path, ffmpeg.KwArgs{
				"noautorotate": "",
				"ss":           seconds(r.StartMs),
				"t":            seconds(r.DurationMs()),
			})
		}
		inputs[i] = row
	}
	return inputs
}

// VideoGraph builds the composed video stream. overlays maps segment
// indexes to PNG layers drawn over that segment.
func VideoGraph(t pipeline.Timeline, inputs [][]*ffmpeg.Stream, overlays map[int]string) (*ffmpeg.Stream, error) {
	if len(t.Plan.Segments) == 0 || len(t.Sources) == 0 {
		return nil, ErrEmptyTimeline
	}
	if len(t.Transforms) < len(t.Sources) {
		return nil, errors.Errorf("ffmpegexport: %d transforms for %d sources", len(t.Transforms), len(t.Sources))
	}

	fps := frameRate(t.Encode.FPS)
	segments := make([]*ffmpeg.Stream, 0, len(t.Plan.Segments))
	for i, seg := range t.Plan.Segments {
		if len(seg.Ranges) != len(t.Sources) || len(t.Freezes) <= i || len(t.Freezes[i]) != len(t.Sources) {
			return nil, errors.Errorf("ffmpegexport: segment %d does not cover every source", seg.Index)
		}

		base := ffmpeg.Input(canvasSource(t.Layout.Canvas, t.Background, fps, seg.TargetMs), ffmpeg.KwArgs{"f": "lavfi"})
		for j := range t.Sources {
			tr := t.Transforms[j]
			v := upright(inputs[i][j].Video(), tr.QuarterTurns).
				Filter("scale", ffmpeg.Args{}, ffmpeg.KwArgs{"w": tr.Width, "h": tr.Height}).
				Filter("setsar", ffmpeg.Args{"1"}).
				Filter("fps", ffmpeg.Args{}, ffmpeg.KwArgs{"fps": fps}).
				Filter("setpts", ffmpeg.Args{"PTS-STARTPTS"})
			if freeze := t.Freezes[i][j].FreezeMs; freeze > 0 {
				v = v.Filter("tpad", ffmpeg.Args{}, ffmpeg.KwArgs{
					"stop_mode":     "clone",
					"stop_duration": seconds(freeze),
				})
			}
			base = ffmpeg.Filter([]*ffmpeg.Stream{base, v}, "overlay", ffmpeg.Args{}, ffmpeg.KwArgs{
				"x":          tr.OffsetX,
				"y":          tr.OffsetY,
				"eof_action": "repeat",
			})
		}

		if path, ok := overlays[seg.Index]; ok {
			layer := ffmpeg.Input(path, ffmpeg.KwArgs{"loop": 1, "t": seconds(seg.TargetMs)})
			base = ffmpeg.Filter([]*ffmpeg.Stream{base, layer}, "overlay", ffmpeg.Args{}, ffmpeg.KwArgs{
				"x":        0,
				"y":        0,
				"shortest": 1,
			})
		}

		segments = append(segments, base.Filter("trim", ffmpeg.Args{}, ffmpeg.KwArgs{"duration": seconds(seg.TargetMs)}).
			Filter("setpts", ffmpeg.Args{"PTS-STARTPTS"}))
	}

	video := segments[0]
	if len(segments) > 1 {
		video = ffmpeg.Concat(segments)
	}
	return video.Filter("format", ffmpeg.Args{}, ffmpeg.KwArgs{"pix_fmts": "yuv420p"}), nil
}

// AudioTracks returns one padded, concatenated track per source with audio.
// Tracks are never mixed.
func AudioTracks(t pipeline.Timeline, inputs [][]*ffmpeg.Stream) []*ffmpeg.Stream {
	var tracks []*ffmpeg.Stream
	for j, src := range t.Sources {
		if !src.HasAudio {
			continue
		}
		parts := make([]*ffmpeg.Stream, 0, len(t.Plan.Segments))
		for i, seg := range t.Plan.Segments {
			target := seconds(seg.TargetMs)
			parts = append(parts, inputs[i][j].Audio().
				Filter("asetpts", ffmpeg.Args{"PTS-STARTPTS"}).
				Filter("apad", ffmpeg.Args{}, ffmpeg.KwArgs{"whole_dur": target}).
				Filter("atrim", ffmpeg.Args{}, ffmpeg.KwArgs{"duration": target}))
		}
		track := parts[0]
		if len(parts) > 1 {
			track = ffmpeg.Concat(parts, ffmpeg.KwArgs{"v": 0, "a": 1})
		}
		tracks = append(tracks, track)
	}
	return tracks
}

// Args builds the complete ffmpeg command line for a timeline.
func Args(t pipeline.Timeline, overlays map[int]string) ([]string, error) {
	inputs := SourceInputs(t)
	video, err := VideoGraph(t, inputs, overlays)
	if err != nil {
		return nil, err
	}
	audio := AudioTracks(t, inputs)

	out := ffmpeg.KwArgs{
		"c:v":      "libx264",
		"pix_fmt":  "yuv420p",
		"preset":   "medium",
		"crf":      h264encoder.CRF(t.Encode.Quality),
		"r":        frameRate(t.Encode.FPS),
		"movflags": "+faststart",
		"f":        "mp4",
	}
	if t.Encode.Bitrate > 0 {
		out["b:v"] = fmt.Sprintf("%dk", t.Encode.Bitrate)
	}
	if len(audio) > 0 {
		out["c:a"] = "aac"
		out["b:a"] = fmt.Sprintf("%dk", audioBitrate(t.Encode))
	}

	streams := append([]*ffmpeg.Stream{video}, audio...)
	return ffmpeg.Output(streams, t.OutputPath, out).OverWriteOutput().GetArgs(), nil
}

// MuxArgs builds the command line that copies an encoded video and adds the
// source audio tracks.
func MuxArgs(t pipeline.Timeline, videoPath string) []string {
	audio := AudioTracks(t, SourceInputs(t))
	streams := append([]*ffmpeg.Stream{ffmpeg.Input(videoPath).Video()}, audio...)
	return ffmpeg.Output(streams, t.OutputPath, ffmpeg.KwArgs{
		"c:v":      "copy",
		"c:a":      "aac",
		"b:a":      fmt.Sprintf("%dk", audioBitrate(t.Encode)),
		"movflags": "+faststart",
		"f":        "mp4",
	}).OverWriteOutput().GetArgs()
}

// upright rotates coded frames clockwise by quarter turns.
func upright(s *ffmpeg.Stream, quarterTurns int) *ffmpeg.Stream {
	switch quarterTurns {
	case 1:
		return s.Filter("transpose", ffmpeg.Args{"clock"})
	case 2:
		return s.Filter("hflip", ffmpeg.Args{}).Filter("vflip", ffmpeg.Args{})
	case 3:
		return s.Filter("transpose", ffmpeg.Args{"cclock"})
	default:
		return s
	}
}

// canvasSource describes a lavfi color source filling one segment.
func canvasSource(canvas pipeline.Dimension, bg color.RGBA, fps string, durationMs int) string {
	return fmt.Sprintf("color=c=0x%02x%02x%02x:s=%dx%d:r=%s:d=%s",
		bg.R, bg.G, bg.B, canvas.Width, canvas.Height, fps, seconds(durationMs))
}

func frameRate(fps float64) string {
	if fps <= 0 {
		fps = 30
	}
	return fmt.Sprintf("%.3f", fps)
}

func audioBitrate(s pipeline.EncodeSettings) int {
	if s.AudioBitrateKbps <= 0 {
		return 128
	}
	return s.AudioBitrateKbps
}

func seconds(ms int) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000)
}
