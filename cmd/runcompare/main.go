// Package main provides the CLI entry point for runcompare.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/user/runcompare/pkg/adapters/ggrenderer"
	"github.com/user/runcompare/pkg/adapters/logger"
	"github.com/user/runcompare/pkg/adapters/osfilesystem"
	"github.com/user/runcompare/pkg/adapters/smartprober"
	"github.com/user/runcompare/pkg/config"
	"github.com/user/runcompare/pkg/juxtapose"
	"github.com/user/runcompare/pkg/pipeline"
	"github.com/user/runcompare/pkg/ports"
	"github.com/user/runcompare/pkg/stages/overlay"
	"github.com/user/runcompare/pkg/summarizer"
)

var version = "dev"

// Exit codes per error kind.
const (
	exitInvalidRequest    = 2
	exitSourceUnavailable = 3
	exitEncodeFailed      = 4
	exitCancelled         = 130
)

func main() {
	app := &cli.App{
		Name:  "runcompare",
		Usage: l10n.T("Create synchronized comparison videos of athlete runs"),
		Description: l10n.T("runcompare places two or four run videos side by side, " +
			"aligns them at their start or lap by lap, and writes one MP4."),
		Commands: []*cli.Command{
			exportCommand(),
			planCommand(),
			versionCommand(),
		},
	}

	// Exit errors are printed and mapped to exit codes by urfave/cli.
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// requestFlags select the inputs of an export.
func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Category: l10n.T("Input"), Usage: l10n.T("YAML configuration file")},
		&cli.StringFlag{Name: "request", Aliases: []string{"r"}, Category: l10n.T("Input"), Usage: l10n.T("YAML request file describing sources, laps and display text")},
		&cli.StringFlag{Name: "orientation", Category: l10n.T("Input"), Value: "horizontal", Usage: l10n.T("Layout when sources are given as arguments (horizontal, vertical, grid)")},
		&cli.IntFlag{Name: "max-duration", Category: l10n.T("Input"), Usage: l10n.T("Cap the output duration in milliseconds (0 = unlimited)")},
		&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Category: l10n.T("Logging"), Value: "info", Usage: l10n.T("Log level (debug, info, warn, error)")},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Category: l10n.T("Logging"), Usage: l10n.T("Suppress all log output")},
	}
}

func exportCommand() *cli.Command {
	flags := append(requestFlags(),
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Category: l10n.T("Output"), Usage: l10n.T("Output MP4 file path")},
		&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Category: l10n.T("Video and Quality"), Usage: l10n.T("Export backend (auto, ffmpeg, frames)")},
		&cli.Float64Flag{Name: "fps", Category: l10n.T("Video and Quality"), Usage: l10n.T("Output frame rate")},
		&cli.StringFlag{Name: "quality", Aliases: []string{"q"}, Category: l10n.T("Video and Quality"), Usage: l10n.T("Quality preset (low, medium, high)")},
		&cli.IntFlag{Name: "crf", Category: l10n.T("Video and Quality"), Usage: l10n.T("Video CRF value (0-63, lower is better, overrides quality preset)")},
		&cli.StringFlag{Name: "ffmpeg", Category: l10n.T("Video and Quality"), Usage: l10n.T("Path to the ffmpeg executable")},
		&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Category: l10n.T("Debug"), Usage: l10n.T("Enable debug output")},
		&cli.StringFlag{Name: "debug-dir", Category: l10n.T("Debug"), Usage: l10n.T("Directory for debug output")},
		&cli.StringFlag{Name: "summary", Aliases: []string{"s"}, Category: l10n.T("Output"), Usage: l10n.T("Output execution summary to file (Markdown format)")},
	)

	return &cli.Command{
		Name:      "export",
		Usage:     l10n.T("Render a comparison video"),
		ArgsUsage: "[video...]",
		Flags:     flags,
		Action:    runExport,
	}
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     l10n.T("Print the segment plan without encoding"),
		ArgsUsage: "[video...]",
		Flags:     requestFlags(),
		Action:    runPlan,
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: l10n.T("Show version information"),
		Action: func(c *cli.Context) error {
			fmt.Println(l10n.F("runcompare version %s", version))
			return nil
		},
	}
}

func runExport(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, exitInvalidRequest)
	}
	req, err := loadRequest(c)
	if err != nil {
		return cli.Exit(err, exitInvalidRequest)
	}
	log := newLogger(c)

	ctx, cancel := signalContext(log)
	defer cancel()

	engine, err := juxtapose.New(cfg, log)
	if err != nil {
		return cli.Exit(err, exitCode(pipeline.KindOf(err)))
	}

	log.Info("Comparing %d videos into %s", len(req.Sources), req.OutputPath)

	bar := newProgressBar(c)
	var report ports.ProgressFunc
	if bar != nil {
		report = func(f float64) {
			bar.Set(int(f * 1000))
		}
	}

	start := time.Now()
	result := engine.Export(ctx, req, report)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	if path := c.String("summary"); path != "" {
		writeSummary(ctx, engine, cfg, req, result, time.Since(start), path, log)
	}

	if !result.Success {
		return cli.Exit(l10n.F("Export failed (%s): %s", result.ErrorKind, result.ErrorMessage), exitCode(result.ErrorKind))
	}

	log.Info("Output saved to %s", result.OutputPath)
	return nil
}

func runPlan(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, exitInvalidRequest)
	}
	req, err := loadRequest(c)
	if err != nil {
		return cli.Exit(err, exitInvalidRequest)
	}
	if req.OutputPath == "" {
		// Planning writes nothing.
		req.OutputPath = "plan.mp4"
	}
	log := newLogger(c)

	ctx, cancel := signalContext(log)
	defer cancel()

	engine := juxtapose.NewWithDeps(cfg, juxtaposeDeps(log))
	plan, err := engine.Plan(ctx, req)
	if err != nil {
		return cli.Exit(err, exitCode(pipeline.KindOf(err)))
	}

	fmt.Printf("%s: %s, %d %s\n", l10n.T("Sync"), plan.Mode, len(plan.Segments), l10n.T("segments"))
	for _, seg := range plan.Segments {
		fmt.Printf("  #%d  %s +%s", seg.Index+1, overlay.FormatDuration(seg.DestStartMs), overlay.FormatDuration(seg.TargetMs))
		for i, r := range seg.Ranges {
			fmt.Printf("  [%d] %s-%s", i+1, overlay.FormatDuration(r.StartMs), overlay.FormatDuration(r.EndMs))
		}
		fmt.Println()
	}
	fmt.Printf("%s: %s\n", l10n.T("Total"), overlay.FormatDuration(plan.TotalMs))
	if plan.Truncated {
		fmt.Println(l10n.F("Plan truncated: %s", plan.Reason))
	}
	return nil
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("backend") {
		cfg.Backend = c.String("backend")
	}
	if c.IsSet("fps") {
		cfg.FPS = c.Float64("fps")
	}
	if c.IsSet("quality") {
		juxtapose.ApplyQuality(&cfg, juxtapose.QualityPreset(c.String("quality")))
	}
	if c.IsSet("crf") {
		cfg.Quality = c.Int("crf")
	}
	if c.IsSet("ffmpeg") {
		cfg.FFmpegPath = c.String("ffmpeg")
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	if c.IsSet("debug-dir") {
		cfg.DebugDir = c.String("debug-dir")
	}
	return cfg, nil
}

// loadRequest builds the request from --request or from positional video paths.
func loadRequest(c *cli.Context) (pipeline.ExportRequest, error) {
	var req pipeline.ExportRequest

	if path := c.String("request"); path != "" {
		rf, err := config.LoadRequestFile(path)
		if err != nil {
			return req, err
		}
		if req, err = rf.ToExportRequest(); err != nil {
			return req, err
		}
	} else {
		if c.NArg() == 0 {
			return req, errors.New(l10n.T("Either --request or video arguments are required"))
		}
		orientation, err := pipeline.ParseOrientation(c.String("orientation"))
		if err != nil {
			return req, err
		}
		b := juxtapose.NewRequestBuilder(orientation)
		for _, path := range c.Args().Slice() {
			b.AddSource(path)
		}
		req, _ = b.Build()
	}

	if c.IsSet("output") {
		req.OutputPath = c.String("output")
	}
	if c.IsSet("max-duration") {
		req.MaxDurationMs = c.Int("max-duration")
	}
	return req, nil
}

// juxtaposeDeps are the adapters needed to plan without an export backend.
func juxtaposeDeps(log ports.Logger) juxtapose.Deps {
	return juxtapose.Deps{
		Prober:   smartprober.New(log),
		Renderer: ggrenderer.New(),
		FS:       osfilesystem.New(),
		Logger:   log,
	}
}

func newLogger(c *cli.Context) ports.Logger {
	if c.Bool("quiet") {
		return logger.NewNoop()
	}
	return logger.NewConsole(ports.ParseLogLevel(c.String("log-level")))
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(log ports.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// newProgressBar returns nil when progress should not be drawn.
func newProgressBar(c *cli.Context) *progressbar.ProgressBar {
	if c.Bool("quiet") || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return progressbar.NewOptions(1000,
		progressbar.OptionSetDescription(l10n.T("Exporting")),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func writeSummary(ctx context.Context, engine *juxtapose.Engine, cfg config.Config, req pipeline.ExportRequest,
	result pipeline.ExportResult, elapsed time.Duration, path string, log ports.Logger) {
	builder := summarizer.NewBuilder().
		WithRequest(req).
		WithEncode(cfg.ToOrchestratorConfig().Encode).
		WithResult(result, elapsed)
	if result.SegmentCount > 0 && ctx.Err() == nil {
		if plan, err := engine.Plan(ctx, req); err == nil {
			builder.WithPlan(plan)
		}
	}

	writer := summarizer.NewWriter(summarizer.NewMarkdownFormatter(), osfilesystem.New())
	if err := writer.Write(path, builder.Build()); err != nil {
		log.Error("Failed to write summary: %s", err)
		return
	}
	log.Info("Summary saved to %s", path)
}

func exitCode(kind pipeline.ErrorKind) int {
	switch kind {
	case pipeline.ErrorInvalidRequest:
		return exitInvalidRequest
	case pipeline.ErrorSourceUnavailable:
		return exitSourceUnavailable
	case pipeline.ErrorCancelled:
		return exitCancelled
	default:
		return exitEncodeFailed
	}
}
