// Package mp4probe reads container metadata of MP4 files with mp4ff.
package mp4probe

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/runcompare/pkg/ports"
)

// Prober implements ports.Prober for ISO-BMFF files.
type Prober struct{}

// New creates a new Prober.
func New() *Prober {
	return &Prober{}
}

// Probe reads duration, coded size, rotation and track kinds of an MP4 file.
func (p *Prober) Probe(ctx context.Context, path string) (ports.MediaInfo, error) {
	if err := ctx.Err(); err != nil {
		return ports.MediaInfo{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return ports.MediaInfo{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return FromReader(f)
}

// FromReader probes MP4 data from an io.ReadSeeker.
func FromReader(r io.ReadSeeker) (ports.MediaInfo, error) {
	file, err := mp4.DecodeFile(r, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return ports.MediaInfo{}, fmt.Errorf("decode mp4: %w", err)
	}

	moov := file.Moov
	if moov == nil && file.Init != nil {
		moov = file.Init.Moov
	}
	if moov == nil {
		return ports.MediaInfo{}, fmt.Errorf("no moov box")
	}

	rotations, err := TrackRotations(r)
	if err != nil {
		return ports.MediaInfo{}, fmt.Errorf("read track headers: %w", err)
	}

	var info ports.MediaInfo
	if moov.Mvhd != nil && moov.Mvhd.Timescale > 0 {
		info.DurationMs = int(moov.Mvhd.Duration * 1000 / uint64(moov.Mvhd.Timescale))
	}

	for i, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil {
			continue
		}
		switch trak.Mdia.Hdlr.HandlerType {
		case "soun":
			info.HasAudio = true
		case "vide":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.VideoCodec, info.CodedWidth, info.CodedHeight = sampleEntry(trak)
			if info.CodedWidth == 0 && trak.Tkhd != nil {
				info.CodedWidth = int(uint32(trak.Tkhd.Width) >> 16)
				info.CodedHeight = int(uint32(trak.Tkhd.Height) >> 16)
			}
			if mdhd := trak.Mdia.Mdhd; mdhd != nil && mdhd.Timescale > 0 && mdhd.Duration > 0 {
				info.DurationMs = int(mdhd.Duration * 1000 / uint64(mdhd.Timescale))
			}
			if i < len(rotations) {
				info.Rotation = rotations[i]
			}
		}
	}

	if !info.HasVideo {
		return info, fmt.Errorf("no video track found")
	}
	if info.DurationMs <= 0 {
		return info, fmt.Errorf("no duration in movie header")
	}
	return info, nil
}

// sampleEntry returns the codec and coded size of the first visual sample entry.
func sampleEntry(trak *mp4.TrakBox) (string, int, int) {
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return "", 0, 0
	}
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		vse, ok := child.(*mp4.VisualSampleEntryBox)
		if !ok {
			continue
		}
		codec := child.Type()
		switch codec {
		case "avc1", "avc3":
			codec = "h264"
		case "hvc1", "hev1":
			codec = "hevc"
		case "av01":
			codec = "av1"
		}
		return codec, int(vse.Width), int(vse.Height)
	}
	return "", 0, 0
}

// TrackRotations walks moov/trak/tkhd boxes and returns the clockwise
// rotation in degrees of every track, in file order.
func TrackRotations(r io.ReadSeeker) ([]int, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	var rotations []int
	if err := walk(r, 0, end, &rotations); err != nil {
		return nil, err
	}
	return rotations, nil
}

func walk(r io.ReadSeeker, start, end int64, rotations *[]int) error {
	pos := start
	for pos+8 <= end {
		if _, err := r.Seek(pos, io.SeekStart); err != nil {
			return err
		}
		hdr, err := mp4.DecodeHeader(r)
		if err != nil {
			return err
		}
		size := int64(hdr.Size)
		if size == 0 {
			size = end - pos
		}
		if size < int64(hdr.Hdrlen) || pos+size > end {
			return fmt.Errorf("box %s overruns its parent", hdr.Name)
		}

		body := pos + int64(hdr.Hdrlen)
		switch hdr.Name {
		case "moov", "trak":
			if err := walk(r, body, pos+size, rotations); err != nil {
				return err
			}
		case "tkhd":
			payload := make([]byte, size-int64(hdr.Hdrlen))
			if _, err := io.ReadFull(r, payload); err != nil {
				return err
			}
			*rotations = append(*rotations, matrixRotation(payload))
		}
		pos += size
	}
	return nil
}

// matrixRotation reads the 16.16 a/b entries of the tkhd transformation matrix.
func matrixRotation(payload []byte) int {
	if len(payload) < 4 {
		return 0
	}
	off := 40
	if payload[0] == 1 {
		off = 52
	}
	if len(payload) < off+8 {
		return 0
	}
	a := int32(binary.BigEndian.Uint32(payload[off:]))
	b := int32(binary.BigEndian.Uint32(payload[off+4:]))
	if a == 0 && b == 0 {
		return 0
	}
	deg := int(math.Round(math.Atan2(float64(b), float64(a)) * 180 / math.Pi))
	return ((deg % 360) + 360) % 360
}

// Ensure Prober implements ports.Prober
var _ ports.Prober = (*Prober)(nil)
