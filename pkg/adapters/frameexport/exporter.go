// Package frameexport renders a timeline frame by frame: sources are decoded
// to RGBA, composed on the canvas and piped into the H.264 encoder.
package frameexport

import (
	"context"
	"image"
	"math"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/user/runcompare/pkg/adapters/ffmpegexport"
	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
	"github.com/user/runcompare/pkg/progress"
	"github.com/user/runcompare/pkg/stages/composite"
	"github.com/user/runcompare/pkg/stages/encode"
)

// DefaultBatchSize is how many output frames are composed together.
const DefaultBatchSize = 16

// videoShare is the part of the progress range spent on video when audio
// still has to be muxed.
const videoShare = 0.9

// Exporter implements ports.Exporter with decoded frames.
type Exporter struct {
	reader    ports.FrameReader
	encoder   ports.VideoEncoder
	renderer  ports.Renderer
	sink      ports.DebugSink
	fs        ports.FileSystem
	logger    ports.Logger
	workers   int
	batchSize int
	mux       ffmpegexport.Runner
}

// New creates a new frame exporter.
func New(
	reader ports.FrameReader,
	encoder ports.VideoEncoder,
	renderer ports.Renderer,
	sink ports.DebugSink,
	fs ports.FileSystem,
	logger ports.Logger,
	workers int,
) *Exporter {
	return &Exporter{
		reader:    reader,
		encoder:   encoder,
		renderer:  renderer,
		sink:      sink,
		fs:        fs,
		logger:    logger,
		workers:   workers,
		batchSize: DefaultBatchSize,
		mux:       ffmpegexport.Run,
	}
}

// WithMuxRunner replaces the ffmpeg runner used for muxing audio.
func (e *Exporter) WithMuxRunner(run ffmpegexport.Runner) *Exporter {
	e.mux = run
	return e
}

// WithBatchSize sets how many frames are composed per batch.
func (e *Exporter) WithBatchSize(n int) *Exporter {
	if n > 0 {
		e.batchSize = n
	}
	return e
}

// Name returns the backend name.
func (e *Exporter) Name() string {
	return "frames"
}

// Export renders the timeline into timeline.OutputPath.
func (e *Exporter) Export(ctx context.Context, t pipeline.Timeline, report ports.ProgressFunc) (err error) {
	log := e.logger.WithComponent("frames")
	if len(t.Plan.Segments) == 0 || len(t.Sources) == 0 {
		return ffmpegexport.ErrEmptyTimeline
	}
	if len(t.Transforms) < len(t.Sources) || len(t.Freezes) < len(t.Plan.Segments) {
		return errors.Errorf("frameexport: timeline misses transforms or freezes")
	}
	if report == nil {
		report = func(float64) {}
	}

	withAudio := hasAudio(t.Sources)
	videoPath := t.OutputPath
	videoProgress := report
	if withAudio {
		if err := e.fs.MkdirAll(t.WorkDir); err != nil {
			return errors.Wrap(err, "create work dir")
		}
		videoPath = filepath.Join(t.WorkDir, "video.mp4")
		videoProgress = progress.Span(report, 0, videoShare)
	}

	enc := encode.NewStage(e.encoder, e.logger)
	comp := composite.NewStage(e.renderer, e.sink, e.logger, e.workers)

	if err := enc.Begin(pipeline.EncodeInput{
		OutputPath: videoPath,
		Canvas:     t.Layout.Canvas,
		Settings:   t.Encode,
	}); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			enc.Abort()
		}
	}()

	fps := t.Encode.FPS
	if fps <= 0 {
		fps = 30
	}
	next := 0
	for i, seg := range t.Plan.Segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Debug("Decoding segment %d/%d", i+1, len(t.Plan.Segments))

		var layer image.Image
		if t.Layer != nil {
			if layer, err = t.Layer(seg.Index); err != nil {
				return errors.Wrapf(err, "overlay layer %d", seg.Index)
			}
		}

		next, err = e.renderSegment(ctx, t, i, layer, next, fps, comp, enc, videoProgress)
		if err != nil {
			return err
		}
	}

	result, err := enc.Finish()
	if err != nil {
		return err
	}
	log.Debug("Encoded %d frames", result.FrameCount)

	if withAudio {
		log.Debug("Muxing %d audio tracks", countAudio(t.Sources))
		if err := e.mux(ctx, ffmpegexport.MuxArgs(t, videoPath), t.Plan.TotalMs, progress.Span(report, videoShare, 1)); err != nil {
			return err
		}
		if err := e.fs.Remove(videoPath); err != nil {
			log.Warn("Could not remove temporary file %s: %v", videoPath, err)
		}
	} else {
		log.Debug("No audio tracks to mux")
	}

	report(1)
	return nil
}

// renderSegment streams one segment through the compositor and encoder.
// It returns the index of the first output frame after the segment.
func (e *Exporter) renderSegment(
	ctx context.Context,
	t pipeline.Timeline,
	segIdx int,
	layer image.Image,
	next int,
	fps float64,
	comp *composite.Stage,
	enc *encode.Stage,
	report ports.ProgressFunc,
) (int, error) {
	seg := t.Plan.Segments[segIdx]
	cursors, closeAll, err := e.openSegment(ctx, t, segIdx, fps)
	if err != nil {
		return next, err
	}
	defer closeAll()

	for {
		ticks := make([]pipeline.Tick, 0, e.batchSize)
		for len(ticks) < e.batchSize {
			ts := frameTimestamp(next, fps)
			if ts >= seg.DestEndMs() {
				break
			}
			ticks = append(ticks, pipeline.Tick{
				Index:       next,
				TimestampMs: ts,
				Sources:     make([]image.Image, len(cursors)),
			})
			next++
		}
		if len(ticks) == 0 {
			return next, nil
		}

		if err := fillTicks(ctx, cursors, ticks, seg.DestStartMs); err != nil {
			return next, err
		}

		result, err := comp.Execute(ctx, pipeline.CompositeInput{
			Canvas:     t.Layout.Canvas,
			Background: t.Background,
			Transforms: t.Transforms,
			Overlay:    layer,
			Ticks:      ticks,
		})
		if err != nil {
			return next, err
		}
		if err := enc.Write(ctx, result.Frames); err != nil {
			return next, err
		}

		if t.Plan.TotalMs > 0 {
			report(math.Min(1, float64(ticks[len(ticks)-1].TimestampMs)/float64(t.Plan.TotalMs)))
		}
	}
}

// openSegment starts one decoder per source for the consumed ranges of a segment.
func (e *Exporter) openSegment(ctx context.Context, t pipeline.Timeline, segIdx int, fps float64) ([]*cursor, func(), error) {
	seg := t.Plan.Segments[segIdx]
	streams := make([]ports.FrameStream, len(t.Sources))
	closeAll := func() {
		for _, s := range streams {
			if s != nil {
				s.Close()
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for j := range t.Sources {
		j := j
		g.Go(recovered(func() error {
			w, h := codedSize(t.Sources[j], t.Transforms[j])
			s, err := e.reader.Open(gctx, ports.FrameRequest{
				Path:       t.Sources[j].Path,
				StartMs:    seg.Ranges[j].StartMs,
				DurationMs: seg.Ranges[j].DurationMs(),
				Width:      w,
				Height:     h,
				FPS:        fps,
			})
			if err != nil {
				return errors.Wrapf(err, "open source %d", j)
			}
			streams[j] = s
			return nil
		}))
	}
	if err := g.Wait(); err != nil {
		closeAll()
		return nil, nil, err
	}

	cursors := make([]*cursor, len(streams))
	for j, s := range streams {
		sampleAt := t.Freezes[segIdx][j].SampleAtMs - seg.Ranges[j].StartMs
		cursors[j] = newCursor(s, sampleAt)
	}
	return cursors, closeAll, nil
}

// fillTicks advances every source cursor over the batch in parallel.
func fillTicks(ctx context.Context, cursors []*cursor, ticks []pipeline.Tick, destStart int) error {
	g, gctx := errgroup.WithContext(ctx)
	for j, c := range cursors {
		j, c := j, c
		g.Go(recovered(func() error {
			for k := range ticks {
				if err := gctx.Err(); err != nil {
					return err
				}
				img, err := c.at(ticks[k].TimestampMs - destStart)
				if err != nil {
					return errors.Wrapf(err, "decode source %d", j)
				}
				ticks[k].Sources[j] = img
			}
			return nil
		}))
	}
	return g.Wait()
}

// recovered returns fn with any panic turned into an error.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = errors.Errorf("decoder panic: %v", p)
			}
		}()
		return fn()
	}
}

// codedSize returns the stored frame size, deriving it from the displayed
// size when the container did not report it.
func codedSize(src pipeline.VideoSource, tr pipeline.Transform) (int, int) {
	if src.CodedWidth > 0 && src.CodedHeight > 0 {
		return src.CodedWidth, src.CodedHeight
	}
	if tr.QuarterTurns%2 == 1 {
		return src.Height, src.Width
	}
	return src.Width, src.Height
}

// frameTimestamp is the output timeline position of frame n.
func frameTimestamp(n int, fps float64) int {
	return int(math.Round(float64(n) * 1000 / fps))
}

func hasAudio(sources []pipeline.VideoSource) bool {
	return countAudio(sources) > 0
}

func countAudio(sources []pipeline.VideoSource) int {
	n := 0
	for _, s := range sources {
		if s.HasAudio {
			n++
		}
	}
	return n
}

// Ensure Exporter implements ports.Exporter
var _ ports.Exporter = (*Exporter)(nil)
