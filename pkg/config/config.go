// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"image/color"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/runcompare/pkg/orchestrator"
	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
)

// Config represents the engine configuration shared by every export.
type Config struct {
	// Layout
	GridWidth   int    `yaml:"grid_width"`
	GridHeight  int    `yaml:"grid_height"`
	MaxLongEdge int    `yaml:"max_long_edge"`
	Background  string `yaml:"background"`

	// Overlays
	Theme ThemeConfig `yaml:"theme"`

	// Encoding
	FPS          float64 `yaml:"fps"`
	Quality      int     `yaml:"quality"`
	Bitrate      int     `yaml:"bitrate"`
	AudioBitrate int     `yaml:"audio_bitrate"`

	// Backend
	Backend    string `yaml:"backend"`
	FFmpegPath string `yaml:"ffmpeg_path"`
	Workers    int    `yaml:"workers"`
	WorkDir    string `yaml:"work_dir"`

	ProgressIntervalMs int `yaml:"progress_interval_ms"`

	// Debug
	Debug    bool   `yaml:"debug"`
	DebugDir string `yaml:"debug_dir"`
	LogLevel string `yaml:"log_level"`
}

// ThemeConfig represents overlay styling. Colors are hex strings.
type ThemeConfig struct {
	PanelColor    string  `yaml:"panel_color"`
	TextColor     string  `yaml:"text_color"`
	AheadColor    string  `yaml:"ahead_color"`
	BehindColor   string  `yaml:"behind_color"`
	TiedColor     string  `yaml:"tied_color"`
	NameFontSize  float64 `yaml:"name_font_size"`
	InfoFontSize  float64 `yaml:"info_font_size"`
	LapFontSize   float64 `yaml:"lap_font_size"`
	Inset         int     `yaml:"inset"`
	Padding       int     `yaml:"padding"`
	MinPanelWidth int     `yaml:"min_panel_width"`
	Separator     string  `yaml:"separator"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		// Layout
		GridWidth:   1920,
		GridHeight:  1080,
		MaxLongEdge: 1920,
		Background:  "#000000",

		Theme: ThemeConfig{
			PanelColor:    "#00000096",
			TextColor:     "#ffffff",
			AheadColor:    "#4ade80",
			BehindColor:   "#f87171",
			TiedColor:     "#fbbf24",
			NameFontSize:  28,
			InfoFontSize:  18,
			LapFontSize:   24,
			Inset:         16,
			Padding:       12,
			MinPanelWidth: 120,
			Separator:     " • ",
		},

		// Encoding
		FPS:          30.0,
		Quality:      25,
		AudioBitrate: 128,

		Backend:            "auto",
		ProgressIntervalMs: 250,

		// Debug
		DebugDir: "./debug",
		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file.
// Keys missing from the file keep their default values.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// ParseColor parses "#rrggbb" or "#rrggbbaa" into color.RGBA.
// Malformed input yields opaque black.
func ParseColor(hex string) color.RGBA {
	black := color.RGBA{A: 255}
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return black
	}

	var channels [4]uint8
	channels[3] = 255
	for i := 0; i < len(hex)/2; i++ {
		hi, ok1 := hexValue(hex[2*i])
		lo, ok2 := hexValue(hex[2*i+1])
		if !ok1 || !ok2 {
			return black
		}
		channels[i] = hi<<4 | lo
	}

	return color.RGBA{R: channels[0], G: channels[1], B: channels[2], A: channels[3]}
}

func hexValue(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// ToTheme converts the theme section to a pipeline.OverlayTheme.
// Non-positive sizes fall back to the defaults.
func (t ThemeConfig) ToTheme() pipeline.OverlayTheme {
	theme := pipeline.DefaultOverlayTheme()
	if t.PanelColor != "" {
		theme.PanelColor = ParseColor(t.PanelColor)
	}
	if t.TextColor != "" {
		theme.TextColor = ParseColor(t.TextColor)
	}
	if t.AheadColor != "" {
		theme.AheadColor = ParseColor(t.AheadColor)
	}
	if t.BehindColor != "" {
		theme.BehindColor = ParseColor(t.BehindColor)
	}
	if t.TiedColor != "" {
		theme.TiedColor = ParseColor(t.TiedColor)
	}
	if t.NameFontSize > 0 {
		theme.NameFontSize = t.NameFontSize
	}
	if t.InfoFontSize > 0 {
		theme.InfoFontSize = t.InfoFontSize
	}
	if t.LapFontSize > 0 {
		theme.LapFontSize = t.LapFontSize
	}
	if t.Inset > 0 {
		theme.Inset = t.Inset
	}
	if t.Padding > 0 {
		theme.Padding = t.Padding
	}
	if t.MinPanelWidth > 0 {
		theme.MinPanelWidth = t.MinPanelWidth
	}
	if t.Separator != "" {
		theme.Separator = t.Separator
	}
	return theme
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	if c.GridWidth > 0 {
		oc.GridWidth = c.GridWidth
	}
	if c.GridHeight > 0 {
		oc.GridHeight = c.GridHeight
	}
	if c.MaxLongEdge > 0 {
		oc.MaxLongEdge = c.MaxLongEdge
	}
	if c.Background != "" {
		oc.Background = ParseColor(c.Background)
	}
	oc.Theme = c.Theme.ToTheme()

	if c.FPS > 0 {
		oc.Encode.FPS = c.FPS
	}
	if c.Quality > 0 {
		oc.Encode.Quality = c.Quality
	}
	oc.Encode.Bitrate = c.Bitrate
	if c.AudioBitrate > 0 {
		oc.Encode.AudioBitrateKbps = c.AudioBitrate
	}

	oc.WorkRoot = c.WorkDir
	if c.ProgressIntervalMs > 0 {
		oc.ProgressInterval = time.Duration(c.ProgressIntervalMs) * time.Millisecond
	}
	return oc
}

// Level returns the configured log level.
func (c Config) Level() ports.LogLevel {
	return ports.ParseLogLevel(c.LogLevel)
}
