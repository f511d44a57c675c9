package ports

import (
	"context"

	"github.com/user/runcompare/pkg/pipeline"
)

// ProgressFunc receives export progress as a fraction between 0 and 1.
type ProgressFunc func(fraction float64)

// Exporter renders a timeline into an MP4 file.
type Exporter interface {
	// Name identifies the backend in logs and results.
	Name() string

	// Export writes the composition described by timeline to timeline.OutputPath.
	// Implementations must stop promptly when ctx is cancelled.
	Export(ctx context.Context, timeline pipeline.Timeline, progress ProgressFunc) error
}

// BackendSelector is implemented by exporters that pick a backend per call.
type BackendSelector interface {
	// ExportWithBackend behaves like Export and also names the backend that ran.
	ExportWithBackend(ctx context.Context, timeline pipeline.Timeline, progress ProgressFunc) (string, error)
}
