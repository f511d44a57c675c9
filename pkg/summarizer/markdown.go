package summarizer

import (
	"fmt"
	"strings"

	"github.com/ideamans/go-l10n"

	"github.com/user/runcompare/pkg/stages/overlay"
)

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements the Formatter interface.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", l10n.T("Run Comparison Summary"))
	fmt.Fprintf(&b, "%s: %s\n\n", l10n.T("Generated"), s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	fmt.Fprintf(&b, "## %s\n\n", l10n.T("Result"))
	if s.Result.Success {
		fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", l10n.T("Status"), l10n.T("Success"))
	} else {
		fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", l10n.T("Status"), l10n.T("Failed"))
		fmt.Fprintf(&b, "| Error kind | %s |\n", s.Result.ErrorKind)
		fmt.Fprintf(&b, "| Error | %s |\n", escapeCell(s.Result.Error))
	}
	fmt.Fprintf(&b, "| Elapsed | %d ms |\n\n", s.Result.ElapsedMs)

	fmt.Fprintf(&b, "## %s\n\n| %s | %s |\n|---|---|\n", l10n.T("Settings"), l10n.T("Item"), l10n.T("Value"))
	fmt.Fprintf(&b, "| Orientation | %s |\n", s.Settings.Orientation)
	fmt.Fprintf(&b, "| Sync | %s |\n", s.Settings.Sync)
	if s.Settings.MaxDurationMs > 0 {
		fmt.Fprintf(&b, "| Max duration | %s |\n", overlay.FormatDuration(s.Settings.MaxDurationMs))
	} else {
		fmt.Fprintf(&b, "| Max duration | %s |\n", l10n.T("Unlimited"))
	}
	if s.Settings.Backend != "" {
		fmt.Fprintf(&b, "| Backend | %s |\n", s.Settings.Backend)
	}
	fmt.Fprintf(&b, "| Frame rate | %.2f fps |\n", s.Settings.FPS)
	if s.Settings.Bitrate > 0 {
		fmt.Fprintf(&b, "| Bitrate | %d kbps |\n", s.Settings.Bitrate)
	} else {
		fmt.Fprintf(&b, "| CRF | %d |\n", s.Settings.CRF)
	}
	b.WriteString("\n")

	if len(s.Sources) > 0 {
		fmt.Fprintf(&b, "## %s\n\n| # | %s | %s | %s | %s |\n|---|---|---|---|---|\n",
			l10n.T("Sources"), l10n.T("Athlete"), l10n.T("File"), l10n.T("Start"), l10n.T("Laps"))
		for i, src := range s.Sources {
			name := src.Name
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %d |\n",
				i+1, escapeCell(name), escapeCell(src.Path), overlay.FormatDuration(src.StartOffsetMs), src.Laps)
		}
		b.WriteString("\n")
	}

	if len(s.Plan.Segments) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", l10n.T("Segments"))
		fmt.Fprintf(&b, "| %s | %s | %s |", l10n.T("Segment"), l10n.T("Starts at"), l10n.T("Length"))
		for i := range s.Sources {
			fmt.Fprintf(&b, " %s |", l10n.F("Source %d", i+1))
		}
		b.WriteString("\n|---|---|---|")
		b.WriteString(strings.Repeat("---|", len(s.Sources)))
		b.WriteString("\n")
		for _, seg := range s.Plan.Segments {
			fmt.Fprintf(&b, "| %d | %s | %s |", seg.Index+1,
				overlay.FormatDuration(seg.DestStartMs), overlay.FormatDuration(seg.TargetMs))
			for i := range s.Sources {
				cell := "-"
				if i < len(seg.ConsumedMs) {
					cell = overlay.FormatDuration(seg.ConsumedMs[i])
				}
				fmt.Fprintf(&b, " %s |", cell)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s: %s\n", l10n.T("Total"), overlay.FormatDuration(s.Plan.TotalMs))
		if s.Plan.Truncated {
			fmt.Fprintf(&b, "\n%s\n", l10n.F("Plan truncated: %s", s.Plan.Reason))
		}
		b.WriteString("\n")
	}

	if s.Result.Success {
		fmt.Fprintf(&b, "## %s\n\n| %s | %s |\n|---|---|\n", l10n.T("Video Details"), l10n.T("Item"), l10n.T("Value"))
		fmt.Fprintf(&b, "| File | %s |\n", escapeCell(s.Video.Path))
		fmt.Fprintf(&b, "| Canvas | %dx%d |\n", s.Video.CanvasWidth, s.Video.CanvasHeight)
		fmt.Fprintf(&b, "| Duration | %s |\n", overlay.FormatDuration(s.Video.DurationMs))
		fmt.Fprintf(&b, "| Size | %s |\n", formatBytes(s.Video.FileSize))
		if s.Video.SkippedOverlays > 0 {
			fmt.Fprintf(&b, "| Skipped overlays | %d |\n", s.Video.SkippedOverlays)
		}
	}

	return b.String()
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGT"[exp])
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
