// Package padding implements the freeze-frame reconciliation stage.
package padding

import (
	"context"
	"fmt"

	"github.com/user/runcompare/pkg/pipeline"
)

// Stage fills every source up to the target duration of each segment.
type Stage struct{}

// NewStage creates a new padding stage.
func NewStage() *Stage {
	return &Stage{}
}

// Execute computes freeze instructions for every segment and source.
func (s *Stage) Execute(ctx context.Context, input pipeline.PaddingInput) (pipeline.PaddingResult, error) {
	result := Reconcile(input.Plan)
	if err := Verify(input.Plan, result); err != nil {
		return result, err
	}
	return result, nil
}

// Reconcile derives the freeze filler of every source in every segment.
// The held frame is sampled FreezeSampleBackoffMs before the consumed range
// ends so it never lands past the end of the track.
func Reconcile(plan pipeline.Plan) pipeline.PaddingResult {
	freezes := make([][]pipeline.Freeze, len(plan.Segments))
	for i, seg := range plan.Segments {
		row := make([]pipeline.Freeze, len(seg.Ranges))
		for j, r := range seg.Ranges {
			consumed := r.DurationMs()
			sample := r.EndMs - pipeline.FreezeSampleBackoffMs
			if sample < r.StartMs {
				sample = r.StartMs
			}
			row[j] = pipeline.Freeze{
				ConsumedMs: consumed,
				FreezeMs:   seg.TargetMs - consumed,
				SampleAtMs: sample,
			}
		}
		freezes[i] = row
	}
	return pipeline.PaddingResult{Freezes: freezes}
}

// Verify checks that every source fills every segment exactly.
func Verify(plan pipeline.Plan, result pipeline.PaddingResult) error {
	if len(result.Freezes) != len(plan.Segments) {
		return fmt.Errorf("padding covers %d of %d segments", len(result.Freezes), len(plan.Segments))
	}
	for i, seg := range plan.Segments {
		for j, f := range result.Freezes[i] {
			if f.FreezeMs < 0 {
				return fmt.Errorf("segment %d source %d consumes %d ms beyond target %d ms", i, j, -f.FreezeMs, seg.TargetMs)
			}
			if f.ConsumedMs+f.FreezeMs != seg.TargetMs {
				return fmt.Errorf("segment %d source %d fills %d ms of %d ms", i, j, f.ConsumedMs+f.FreezeMs, seg.TargetMs)
			}
		}
	}
	return nil
}
