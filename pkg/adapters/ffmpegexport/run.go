package ffmpegexport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/user/runcompare/pkg/adapters/h264encoder"
	"github.com/user/runcompare/pkg/ports"
)

// ErrFFmpegFailed is returned when ffmpeg exits with an error.
var ErrFFmpegFailed = errors.New("ffmpegexport: ffmpeg failed")

// Runner executes an ffmpeg command line, reporting progress against totalMs.
type Runner func(ctx context.Context, args []string, totalMs int, progress ports.ProgressFunc) error

// Run executes ffmpeg with machine-readable progress on stdout.
// The process is killed when ctx is cancelled.
func Run(ctx context.Context, args []string, totalMs int, progress ports.ProgressFunc) error {
	ffmpegPath, err := h264encoder.FindFFmpeg()
	if err != nil {
		return errors.WithStack(err)
	}

	full := append([]string{"-hide_banner", "-loglevel", "error", "-progress", "pipe:1", "-nostats"}, args...)
	cmd := exec.CommandContext(ctx, ffmpegPath, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "start ffmpeg")
	}

	ParseProgress(stdout, totalMs, progress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(ErrFFmpegFailed, "%v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ctx.Err()
}

// ParseProgress reads ffmpeg -progress key=value blocks until r is drained
// and reports out_time as a fraction of totalMs.
func ParseProgress(r io.Reader, totalMs int, progress ports.ProgressFunc) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	outUs := int64(-1)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us":
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				outUs = us
			}
		case "out_time":
			if outUs < 0 {
				if us, ok := parseClock(value); ok {
					outUs = us
				}
			}
		case "progress":
			report(progress, value == "end", outUs, totalMs)
			outUs = -1
		}
	}
	// Drain so ffmpeg never blocks on a full pipe.
	io.Copy(io.Discard, r)
}

func report(progress ports.ProgressFunc, end bool, outUs int64, totalMs int) {
	switch {
	case progress == nil:
	case end:
		progress(1)
	case outUs >= 0 && totalMs > 0:
		f := float64(outUs) / 1000 / float64(totalMs)
		if f > 1 {
			f = 1
		}
		progress(f)
	}
}

// parseClock parses "HH:MM:SS.micro" into microseconds.
func parseClock(s string) (int64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.ParseInt(parts[0], 10, 64)
	m, err2 := strconv.ParseInt(parts[1], 10, 64)
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || sec < 0 {
		return 0, false
	}
	return (h*3600+m*60)*1_000_000 + int64(sec*1_000_000), true
}
