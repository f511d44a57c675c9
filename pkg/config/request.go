package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/user/runcompare/pkg/pipeline"
)

// RequestFile describes one export in YAML.
//
//	orientation: horizontal
//	sync: lap
//	output: compare.mp4
//	sources:
//	  - path: anna.mp4
//	    laps_ms: [1200, 31800, 62400]
//	    name: Anna
//	    time: "1:01.20"
type RequestFile struct {
	Orientation   string       `yaml:"orientation"`
	Sync          string       `yaml:"sync"`
	MaxDurationMs int          `yaml:"max_duration_ms"`
	OutputPath    string       `yaml:"output"`
	Sources       []SourceFile `yaml:"sources"`
}

// SourceFile describes one input video and the text shown over it.
type SourceFile struct {
	Path          string `yaml:"path"`
	StartOffsetMs int    `yaml:"start_offset_ms"`
	LapsMs        []int  `yaml:"laps_ms"`

	Name      string `yaml:"name"`
	Category  string `yaml:"category"`
	Section   string `yaml:"section"`
	Time      string `yaml:"time"`
	Penalties string `yaml:"penalties"`
}

// LoadRequestFile reads a request description from a YAML file.
func LoadRequestFile(path string) (RequestFile, error) {
	var req RequestFile

	data, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse %s: %w", path, err)
	}
	return req, nil
}

// ToExportRequest converts the file into a pipeline.ExportRequest.
// Display text is attached to every source when any source carries some.
func (r RequestFile) ToExportRequest() (pipeline.ExportRequest, error) {
	orientation, err := pipeline.ParseOrientation(r.Orientation)
	if err != nil {
		return pipeline.ExportRequest{}, err
	}
	sync, err := pipeline.ParseSyncMode(r.Sync)
	if err != nil {
		return pipeline.ExportRequest{}, err
	}

	req := pipeline.ExportRequest{
		Orientation:   orientation,
		Sync:          sync,
		MaxDurationMs: r.MaxDurationMs,
		OutputPath:    r.OutputPath,
	}

	hasDisplay := false
	display := make([]pipeline.DisplayText, len(r.Sources))
	for i, s := range r.Sources {
		req.Sources = append(req.Sources, pipeline.VideoSource{
			Path:            s.Path,
			StartOffsetMs:   s.StartOffsetMs,
			LapBoundariesMs: s.LapsMs,
		})
		display[i] = pipeline.DisplayText{
			Name:      s.Name,
			Category:  s.Category,
			Section:   s.Section,
			Time:      s.Time,
			Penalties: s.Penalties,
		}
		if !display[i].Empty() {
			hasDisplay = true
		}
	}
	if hasDisplay {
		req.Display = display
	}
	return req, nil
}
