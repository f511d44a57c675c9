// Package composite implements the frame composition stage.
package composite

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
)

// DebugSampleInterval is how many output frames pass between composed
// frames saved to the debug sink.
const DebugSampleInterval = 30

// Stage places source frames on the canvas and draws the overlay layer on top.
type Stage struct {
	renderer   ports.Renderer
	sink       ports.DebugSink
	logger     ports.Logger
	numWorkers int
}

// NewStage creates a new composite stage.
func NewStage(renderer ports.Renderer, sink ports.DebugSink, logger ports.Logger, numWorkers int) *Stage {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Stage{
		renderer:   renderer,
		sink:       sink,
		logger:     logger.WithComponent("composite"),
		numWorkers: numWorkers,
	}
}

// Execute composes all ticks of the batch.
func (s *Stage) Execute(ctx context.Context, input pipeline.CompositeInput) (pipeline.CompositeResult, error) {
	if len(input.Ticks) == 0 {
		return pipeline.CompositeResult{Frames: []pipeline.ComposedFrame{}}, nil
	}
	if input.Canvas.Width <= 0 || input.Canvas.Height <= 0 {
		return pipeline.CompositeResult{}, fmt.Errorf("invalid canvas %dx%d", input.Canvas.Width, input.Canvas.Height)
	}

	s.logger.Debug("Compositing %d frames with %d workers", len(input.Ticks), s.numWorkers)

	result, err := s.executeParallel(ctx, input)
	if err != nil {
		return result, err
	}

	s.logger.Debug("Composition completed")
	return result, nil
}

// indexedFrame holds a frame with its batch position for sorting.
type indexedFrame struct {
	index int
	frame pipeline.ComposedFrame
}

// executeParallel composes frames using worker pool.
func (s *Stage) executeParallel(ctx context.Context, input pipeline.CompositeInput) (pipeline.CompositeResult, error) {
	numFrames := len(input.Ticks)
	jobs := make(chan int, numFrames)
	results := make(chan indexedFrame, numFrames)
	errChan := make(chan error, s.numWorkers)

	// Start workers
	var wg sync.WaitGroup
	for w := 0; w < s.numWorkers; w++ {
		wg.Add(1)
		go s.worker(ctx, &wg, input, jobs, results, errChan)
	}

	// Send jobs
	for i := 0; i < numFrames; i++ {
		jobs <- i
	}
	close(jobs)

	// Wait for workers to finish
	go func() {
		wg.Wait()
		close(results)
		close(errChan)
	}()

	// Collect results
	frames := make([]indexedFrame, 0, numFrames)
	for result := range results {
		frames = append(frames, result)

		if s.sink.Enabled() && result.frame.Index%DebugSampleInterval == 0 {
			s.sink.SaveComposedFrame(result.frame.Index, result.frame.Image)
		}
	}

	// Check for errors
	if err := <-errChan; err != nil {
		return pipeline.CompositeResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return pipeline.CompositeResult{}, err
	}

	// Sort by index to maintain order
	sort.Slice(frames, func(i, j int) bool {
		return frames[i].index < frames[j].index
	})

	composedFrames := make([]pipeline.ComposedFrame, len(frames))
	for i, f := range frames {
		composedFrames[i] = f.frame
	}

	return pipeline.CompositeResult{Frames: composedFrames}, nil
}

// worker processes frames from jobs channel.
func (s *Stage) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	input pipeline.CompositeInput,
	jobs <-chan int,
	results chan<- indexedFrame,
	errChan chan<- error,
) {
	defer wg.Done()

	for idx := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := s.composeFrame(input, idx)
		if err != nil {
			select {
			case errChan <- fmt.Errorf("compose frame %d: %w", input.Ticks[idx].Index, err):
			default:
			}
			return
		}

		results <- indexedFrame{index: idx, frame: frame}
	}
}

// composeFrame draws every source through its transform, then the overlay.
// Renderer panics come back as errors.
func (s *Stage) composeFrame(input pipeline.CompositeInput, idx int) (frame pipeline.ComposedFrame, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("render panic: %v", p)
		}
	}()

	tick := input.Ticks[idx]
	if len(tick.Sources) > len(input.Transforms) {
		return pipeline.ComposedFrame{}, fmt.Errorf("%d sources but %d transforms", len(tick.Sources), len(input.Transforms))
	}

	canvas := s.renderer.CreateCanvas(input.Canvas.Width, input.Canvas.Height, input.Background)
	for i, img := range tick.Sources {
		if img == nil {
			continue
		}
		canvas.DrawImageTransformed(img, input.Transforms[i].Matrix)
	}
	if input.Overlay != nil {
		canvas.DrawImage(input.Overlay, 0, 0)
	}

	return pipeline.ComposedFrame{
		Index:       tick.Index,
		TimestampMs: tick.TimestampMs,
		Image:       canvas.ToImage(),
	}, nil
}
