package mocks

import (
	"context"

	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
)

// Exporter is a mock implementation of ports.Exporter.
// By default it writes a small placeholder file to the timeline output path.
type Exporter struct {
	FS         *FileSystem
	ExportFunc func(ctx context.Context, timeline pipeline.Timeline, progress ports.ProgressFunc) error

	Called   bool
	Timeline pipeline.Timeline
}

func (m *Exporter) Name() string {
	return "mock"
}

func (m *Exporter) Export(ctx context.Context, timeline pipeline.Timeline, progress ports.ProgressFunc) error {
	m.Called = true
	m.Timeline = timeline
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, timeline, progress)
	}
	if progress != nil {
		progress(0.5)
		progress(1)
	}
	if m.FS != nil {
		return m.FS.WriteFile(timeline.OutputPath, []byte("mp4"))
	}
	return nil
}

var _ ports.Exporter = (*Exporter)(nil)
