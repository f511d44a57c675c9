// Package plan implements the segment planning stage.
package plan

import (
	"context"
	"fmt"

	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
)

// Stage aligns source timelines into destination segments.
// This is a pure function with no external dependencies besides logging.
type Stage struct {
	logger ports.Logger
}

// NewStage creates a new plan stage.
func NewStage(logger ports.Logger) *Stage {
	return &Stage{
		logger: logger.WithComponent("plan"),
	}
}

// Execute computes the segment plan for the input sources.
func (s *Stage) Execute(ctx context.Context, input pipeline.PlanInput) (pipeline.Plan, error) {
	plan, err := ComputePlan(input)
	if err != nil {
		return plan, err
	}

	s.logger.Debug("Planned %d segments, %d ms total", len(plan.Segments), plan.TotalMs)
	if plan.Truncated {
		s.logger.Debug("Plan truncated: %s", plan.Reason)
	}
	return plan, nil
}

// ComputePlan performs the segment planning.
// This is exposed as a standalone function for testing and reuse.
func ComputePlan(input pipeline.PlanInput) (pipeline.Plan, error) {
	if len(input.Sources) == 0 {
		return pipeline.Plan{}, fmt.Errorf("%w: no sources to plan", pipeline.ErrInvalidRequest)
	}

	var (
		plan pipeline.Plan
		err  error
	)
	switch input.Sync {
	case pipeline.SyncLap:
		plan, err = planLaps(input)
	default:
		plan, err = planSimple(input)
	}
	if err != nil {
		return plan, err
	}

	if len(plan.Segments) == 0 {
		return plan, fmt.Errorf("%w: plan has no segments", pipeline.ErrInvalidRequest)
	}
	return plan, nil
}

// planSimple builds the single segment of a simple-mode request.
func planSimple(input pipeline.PlanInput) (pipeline.Plan, error) {
	plan := pipeline.Plan{Mode: pipeline.SyncSimple}

	length := -1
	for i, src := range input.Sources {
		remaining := src.DurationMs - src.StartOffsetMs
		if remaining <= 0 {
			return plan, fmt.Errorf("%w: source %d start offset %d ms is past its %d ms duration",
				pipeline.ErrInvalidRequest, i, src.StartOffsetMs, src.DurationMs)
		}
		if length < 0 || remaining < length {
			length = remaining
		}
	}

	if input.MaxDurationMs > 0 && length > input.MaxDurationMs {
		length = input.MaxDurationMs
		plan.Truncated = true
		plan.Reason = pipeline.TruncationMaxDuration
	}

	ranges := make([]pipeline.TimeRange, len(input.Sources))
	for i, src := range input.Sources {
		ranges[i] = pipeline.TimeRange{StartMs: src.StartOffsetMs, EndMs: src.StartOffsetMs + length}
	}

	plan.Segments = []pipeline.Segment{{
		Index:       0,
		Ranges:      ranges,
		TargetMs:    length,
		DestStartMs: 0,
	}}
	plan.TotalMs = length
	return plan, nil
}

// planLaps slices every source at its lap boundaries.
// Planning stops at the first lap where any source has an empty range, and
// before the first lap that would push the total past the duration cap.
func planLaps(input pipeline.PlanInput) (pipeline.Plan, error) {
	plan := pipeline.Plan{Mode: pipeline.SyncLap}

	count := -1
	mismatch := false
	for i, src := range input.Sources {
		if !src.HasLaps() {
			return plan, fmt.Errorf("%w: source %d needs at least 2 lap boundaries, got %d",
				pipeline.ErrInvalidRequest, i, len(src.LapBoundariesMs))
		}
		n := len(src.LapBoundariesMs) - 1
		if count >= 0 && n != count {
			mismatch = true
		}
		if count < 0 || n < count {
			count = n
		}
	}
	if mismatch {
		plan.Truncated = true
		plan.Reason = pipeline.TruncationBoundaryMismatch
	}

	total := 0
	for lap := 0; lap < count; lap++ {
		ranges := make([]pipeline.TimeRange, len(input.Sources))
		target := 0
		valid := true
		for i, src := range input.Sources {
			r := pipeline.TimeRange{
				StartMs: clamp(src.LapBoundariesMs[lap], src.DurationMs),
				EndMs:   clamp(src.LapBoundariesMs[lap+1], src.DurationMs),
			}
			if r.EndMs <= r.StartMs {
				valid = false
				break
			}
			ranges[i] = r
			if r.DurationMs() > target {
				target = r.DurationMs()
			}
		}
		if !valid {
			plan.Truncated = true
			plan.Reason = pipeline.TruncationInvalidRange
			break
		}

		if input.MaxDurationMs > 0 && total+target > input.MaxDurationMs {
			plan.Truncated = true
			plan.Reason = pipeline.TruncationMaxDuration
			if len(plan.Segments) == 0 {
				// A cap shorter than the first lap still exports the capped first lap.
				ranges, target = capRanges(ranges, input.MaxDurationMs)
				plan.Segments = append(plan.Segments, pipeline.Segment{
					Index:    0,
					Ranges:   ranges,
					TargetMs: target,
				})
				total = target
			}
			break
		}

		plan.Segments = append(plan.Segments, pipeline.Segment{
			Index:       lap,
			Ranges:      ranges,
			TargetMs:    target,
			DestStartMs: total,
		})
		total += target
	}

	plan.TotalMs = total
	return plan, nil
}

// capRanges shortens every range so none exceeds limitMs.
func capRanges(ranges []pipeline.TimeRange, limitMs int) ([]pipeline.TimeRange, int) {
	capped := make([]pipeline.TimeRange, len(ranges))
	target := 0
	for i, r := range ranges {
		if r.DurationMs() > limitMs {
			r.EndMs = r.StartMs + limitMs
		}
		capped[i] = r
		if r.DurationMs() > target {
			target = r.DurationMs()
		}
	}
	return capped, target
}

// clamp limits a boundary to [0, durationMs]. An unknown duration only clamps at zero.
func clamp(ms, durationMs int) int {
	if ms < 0 {
		return 0
	}
	if durationMs > 0 && ms > durationMs {
		return durationMs
	}
	return ms
}
