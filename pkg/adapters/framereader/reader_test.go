package framereader

import (
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/runcompare/pkg/adapters/h264encoder"
	"github.com/user/runcompare/pkg/ports"
)

func TestArgs(t *testing.T) {
	args := Args(ports.FrameRequest{Path: "in.mp4", StartMs: 1500, DurationMs: 2000, Width: 320, Height: 240, FPS: 25})
	joined := strings.Join(args, " ")

	for _, want := range []string{"-noautorotate", "-ss 1.500", "-t 2.000", "-i in.mp4", "-f rawvideo", "-pix_fmt rgba", "-s 320x240", "-r 25.000", "pipe:1"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in %q", want, joined)
		}
	}
	if strings.Index(joined, "-ss") > strings.Index(joined, "-i in.mp4") {
		t.Errorf("seek must be an input option: %q", joined)
	}
}

func TestOpen_InvalidSize(t *testing.T) {
	_, err := New().Open(context.Background(), ports.FrameRequest{Path: "in.mp4"})
	if err == nil {
		t.Error("expected error for zero frame size")
	}
}

// makeClip renders a short test clip with ffmpeg's test source.
func makeClip(t *testing.T, seconds string) string {
	t.Helper()
	ffmpegPath, err := h264encoder.FindFFmpeg()
	if err != nil {
		t.Skip("ffmpeg not available")
	}
	out := filepath.Join(t.TempDir(), "clip.mp4")
	cmd := exec.Command(ffmpegPath, "-y", "-f", "lavfi", "-i", "testsrc=size=160x120:rate=30",
		"-t", seconds, "-pix_fmt", "yuv420p", "-c:v", "libx264", out)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot render test clip: %v\n%s", err, b)
	}
	return out
}

func TestReader_DecodesSpan(t *testing.T) {
	clip := makeClip(t, "2")

	s, err := New().Open(context.Background(), ports.FrameRequest{
		Path: clip, StartMs: 500, DurationMs: 1000, Width: 160, Height: 120, FPS: 30,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	count := 0
	last := -1
	for {
		f, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if f.Image.Bounds().Dx() != 160 || f.Image.Bounds().Dy() != 120 {
			t.Fatalf("unexpected frame size %v", f.Image.Bounds())
		}
		if f.TimestampMs <= last {
			t.Errorf("timestamps must increase: %d after %d", f.TimestampMs, last)
		}
		last = f.TimestampMs
		count++
	}
	if count < 28 || count > 32 {
		t.Errorf("expected about 30 frames, got %d", count)
	}
}

func TestReader_CloseEarly(t *testing.T) {
	clip := makeClip(t, "3")

	s, err := New().Open(context.Background(), ports.FrameRequest{Path: clip, Width: 160, Height: 120, FPS: 30})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, err := s.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after Close, got %v", err)
	}
}

func TestReader_MissingFile(t *testing.T) {
	if !h264encoder.IsFFmpegAvailable() {
		t.Skip("ffmpeg not available")
	}
	s, err := New().Open(context.Background(), ports.FrameRequest{
		Path: filepath.Join(t.TempDir(), "missing.mp4"), Width: 16, Height: 16,
	})
	if err != nil {
		return
	}
	defer s.Close()
	if _, err := s.Next(); err == nil || err == io.EOF {
		t.Errorf("expected decode error, got %v", err)
	}
}
