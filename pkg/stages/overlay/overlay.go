// Package overlay implements the athlete and lap overlay stage.
package overlay

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
)

// referenceHeight is the rect height at which theme font sizes apply unscaled.
const referenceHeight = 540.0

// Stage generates overlay elements for every source.
type Stage struct {
	renderer ports.Renderer
	logger   ports.Logger
}

// NewStage creates a new overlay stage.
// The renderer is only used to measure text.
func NewStage(renderer ports.Renderer, logger ports.Logger) *Stage {
	return &Stage{
		renderer: renderer,
		logger:   logger.WithComponent("overlay"),
	}
}

// Execute builds the overlay specs for the request.
func (s *Stage) Execute(ctx context.Context, input pipeline.OverlayInput) (pipeline.OverlayResult, error) {
	if len(input.Layout.Rects) < len(input.Request.Sources) {
		return pipeline.OverlayResult{}, fmt.Errorf("%w: %d layout rects for %d sources",
			pipeline.ErrInvalidRequest, len(input.Layout.Rects), len(input.Request.Sources))
	}

	var specs []pipeline.OverlaySpec
	for i := range input.Request.Sources {
		text := input.Request.DisplayFor(i)
		if text.Empty() {
			continue
		}
		specs = append(specs, s.athletePanel(i, text, input.Layout.Rects[i], input.Theme)...)
	}

	if input.Plan.Mode == pipeline.SyncLap {
		for _, seg := range input.Plan.Segments {
			for i := range seg.Ranges {
				specs = append(specs, s.lapPanel(seg, i, input.Layout.Rects[i], input.Theme)...)
			}
		}
	}

	s.logger.Debug("Generated %d overlay elements", len(specs))
	return pipeline.OverlayResult{Specs: specs}, nil
}

// InfoLine joins the non-empty secondary fields of a display text.
func InfoLine(text pipeline.DisplayText, separator string) string {
	var parts []string
	if text.Category != "" {
		parts = append(parts, text.Category)
	}
	if text.Section != "" {
		parts = append(parts, "Sec. "+text.Section)
	}
	if text.Time != "" {
		parts = append(parts, text.Time)
	}
	if text.Penalties != "" {
		parts = append(parts, text.Penalties)
	}
	return strings.Join(parts, separator)
}

// athletePanel places the name and info lines on a panel in the top-left
// corner of the source rect.
func (s *Stage) athletePanel(source int, text pipeline.DisplayText, rect pipeline.Rectangle, theme pipeline.OverlayTheme) []pipeline.OverlaySpec {
	k := fontScale(rect)
	nameStyle := ports.TextStyle{FontSize: theme.NameFontSize * k, Bold: true}
	infoStyle := ports.TextStyle{FontSize: theme.InfoFontSize * k}
	info := InfoLine(text, theme.Separator)

	type line struct {
		kind  pipeline.OverlayKind
		text  string
		style ports.TextStyle
		w, h  float64
	}
	var lines []line
	if text.Name != "" {
		w, h := s.renderer.MeasureText(text.Name, nameStyle)
		lines = append(lines, line{pipeline.OverlayName, text.Name, nameStyle, w, h})
	}
	if info != "" {
		w, h := s.renderer.MeasureText(info, infoStyle)
		lines = append(lines, line{pipeline.OverlayInfo, info, infoStyle, w, h})
	}

	pad := scaled(theme.Padding, k)
	inset := scaled(theme.Inset, k)
	gap := pad / 2

	widest := 0.0
	height := 2 * pad
	for i, l := range lines {
		if l.w > widest {
			widest = l.w
		}
		height += int(math.Ceil(l.h))
		if i > 0 {
			height += gap
		}
	}
	width := PanelWidth(widest, pad, theme.MinPanelWidth, rect.Width-2*inset)

	panel := pipeline.Rectangle{X: rect.X + inset, Y: rect.Y + inset, Width: width, Height: height}
	specs := []pipeline.OverlaySpec{{
		Kind:    pipeline.OverlayPanel,
		Source:  source,
		Segment: pipeline.AllSegments,
		Rect:    panel,
		Color:   theme.PanelColor,
		Z:       0,
	}}

	y := panel.Y + pad
	for _, l := range lines {
		h := int(math.Ceil(l.h))
		specs = append(specs, pipeline.OverlaySpec{
			Kind:     l.kind,
			Source:   source,
			Segment:  pipeline.AllSegments,
			Text:     l.text,
			Rect:     pipeline.Rectangle{X: panel.X + pad, Y: y, Width: panel.Width - 2*pad, Height: h},
			Color:    theme.TextColor,
			FontSize: l.style.FontSize,
			Bold:     l.style.Bold,
			Z:        1,
		})
		y += h + gap
	}
	return specs
}

// PanelWidth sizes a panel to its widest line plus padding, clamped to
// [minWidth, maxWidth]. The max wins when both bounds conflict.
func PanelWidth(textWidth float64, padding, minWidth, maxWidth int) int {
	w := int(math.Ceil(textWidth)) + 2*padding
	if w < minWidth {
		w = minWidth
	}
	if maxWidth > 0 && w > maxWidth {
		w = maxWidth
	}
	return w
}

// lapPanel places the lap time and delta of one source in one segment in the
// bottom-left corner of the source rect.
func (s *Stage) lapPanel(seg pipeline.Segment, source int, rect pipeline.Rectangle, theme pipeline.OverlayTheme) []pipeline.OverlaySpec {
	standing, delta := Compare(seg, source)
	col := theme.TiedColor
	switch standing {
	case pipeline.StandingAhead:
		col = theme.AheadColor
	case pipeline.StandingBehind:
		col = theme.BehindColor
	}

	k := fontScale(rect)
	lapStyle := ports.TextStyle{FontSize: theme.LapFontSize * k, Bold: true}
	deltaStyle := ports.TextStyle{FontSize: theme.InfoFontSize * k}

	lapText := fmt.Sprintf("Lap %d  %s", seg.Index+1, FormatDuration(seg.Ranges[source].DurationMs()))
	deltaText := FormatDelta(standing, delta)
	lw, lh := s.renderer.MeasureText(lapText, lapStyle)
	dw, dh := s.renderer.MeasureText(deltaText, deltaStyle)

	pad := scaled(theme.Padding, k)
	inset := scaled(theme.Inset, k)
	gap := pad / 2
	height := 2*pad + int(math.Ceil(lh)) + gap + int(math.Ceil(dh))
	width := PanelWidth(math.Max(lw, dw), pad, theme.MinPanelWidth, rect.Width-2*inset)

	panel := pipeline.Rectangle{
		X:      rect.X + inset,
		Y:      rect.Y + rect.Height - inset - height,
		Width:  width,
		Height: height,
	}
	lapRect := pipeline.Rectangle{X: panel.X + pad, Y: panel.Y + pad, Width: width - 2*pad, Height: int(math.Ceil(lh))}
	deltaRect := pipeline.Rectangle{X: lapRect.X, Y: lapRect.Y + lapRect.Height + gap, Width: lapRect.Width, Height: int(math.Ceil(dh))}

	return []pipeline.OverlaySpec{
		{
			Kind:     pipeline.OverlayPanel,
			Source:   source,
			Segment:  seg.Index,
			Rect:     panel,
			Color:    theme.PanelColor,
			Z:        0,
			Standing: standing,
		},
		{
			Kind:     pipeline.OverlayLapTime,
			Source:   source,
			Segment:  seg.Index,
			Text:     lapText,
			Rect:     lapRect,
			Color:    col,
			FontSize: lapStyle.FontSize,
			Bold:     true,
			Z:        1,
			Standing: standing,
		},
		{
			Kind:     pipeline.OverlayLapDelta,
			Source:   source,
			Segment:  seg.Index,
			Text:     deltaText,
			Rect:     deltaRect,
			Color:    col,
			FontSize: deltaStyle.FontSize,
			Z:        1,
			Standing: standing,
		},
	}
}

// Compare ranks one source's lap against the fastest lap of the other sources.
// The delta is the absolute difference in milliseconds.
func Compare(seg pipeline.Segment, source int) (pipeline.Standing, int) {
	self := seg.Ranges[source].DurationMs()
	best := -1
	for i, r := range seg.Ranges {
		if i == source {
			continue
		}
		if best < 0 || r.DurationMs() < best {
			best = r.DurationMs()
		}
	}
	if best < 0 {
		return pipeline.StandingTied, 0
	}

	switch {
	case self < best:
		return pipeline.StandingAhead, best - self
	case self > best:
		return pipeline.StandingBehind, self - best
	default:
		return pipeline.StandingTied, 0
	}
}

// FormatDuration renders milliseconds as "m:ss.cc", or "s.cc" under a minute.
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	centis := (ms + 5) / 10
	minutes := centis / 6000
	seconds := (centis / 100) % 60
	frac := centis % 100
	if minutes > 0 {
		return fmt.Sprintf("%d:%02d.%02d", minutes, seconds, frac)
	}
	return fmt.Sprintf("%d.%02d", seconds, frac)
}

// FormatDelta renders a signed delta label; faster laps read negative.
func FormatDelta(standing pipeline.Standing, deltaMs int) string {
	switch standing {
	case pipeline.StandingAhead:
		return "-" + FormatDuration(deltaMs) + "s"
	case pipeline.StandingBehind:
		return "+" + FormatDuration(deltaMs) + "s"
	default:
		return "±0.00s"
	}
}

// fontScale sizes text relative to the rect height.
func fontScale(rect pipeline.Rectangle) float64 {
	k := float64(rect.Height) / referenceHeight
	if k < 0.5 {
		return 0.5
	}
	if k > 2 {
		return 2
	}
	return k
}

func scaled(v int, k float64) int {
	return int(math.Round(float64(v) * k))
}
