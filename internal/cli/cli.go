package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/rawbatch/rawbatch/internal/cli/hooks"
	"github.com/rawbatch/rawbatch/internal/cli/ui"
	"github.com/rawbatch/rawbatch/pkg/converter"
)

// Run orchestrates a conversion after configuration loading: it wires the
// presentation layer (TUI, progress bar, or plain logs) into the engine via
// hooks, executes the run, and renders the final report to stdout.
func Run(ctx context.Context, opts converter.Options, logger *slog.Logger) error {
	isTTY := term.IsTerminal(int(os.Stderr.Fd()))

	var report converter.Report
	var runErr error

	if opts.TuiEnabled && isTTY {
		report, runErr = runWithTUI(ctx, opts, logger)
	} else {
		var bar hooks.ProgressBar
		if isTTY && !opts.Verbose {
			bar = newProgressBar()
		}
		opts.EventHooks = hooks.NewCLIHooks(logger, false, opts.Verbose, nil, bar)
		report, runErr = converter.Convert(ctx, opts)
	}

	if runErr != nil && report.Summary.TotalFiles == 0 && len(report.Files) == 0 {
		// Startup failure: nothing ran, no report worth rendering.
		logger.Error("Conversion failed", slog.Any("error", runErr))
		return runErr
	}

	if err := RenderReport(os.Stdout, report, opts.OutputFormat); err != nil {
		logger.Error("Failed to render report", slog.Any("error", err))
		return err
	}

	if runErr != nil {
		return runErr
	}
	if report.Summary.FailedCount > 0 {
		return fmt.Errorf("completed with %d failed file(s)", report.Summary.FailedCount)
	}
	return nil
}

// runWithTUI drives the conversion behind a Bubble Tea program. The engine
// runs on a background goroutine and feeds the model through hook messages;
// the program exits when the user quits after completion.
func runWithTUI(ctx context.Context, opts converter.Options, logger *slog.Logger) (converter.Report, error) {
	model := ui.NewModel(opts.AppVersion)
	program := tea.NewProgram(&model, tea.WithContext(ctx), tea.WithOutput(os.Stderr))

	opts.EventHooks = hooks.NewCLIHooks(logger, true, false, program, nil)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		report converter.Report
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		report, err := converter.Convert(runCtx, opts)
		resultCh <- result{report: report, err: err}
	}()

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		logger.Warn("Interactive view exited with error", slog.Any("error", err))
	}

	// Quitting the view mid-run cancels the engine; in-flight files finish
	// and the rest are recorded as skipped.
	cancel()

	res := <-resultCh
	return res.report, res.err
}

// progressBarAdapter fits schollz/progressbar to the hooks.ProgressBar
// interface (its Describe returns nothing).
type progressBarAdapter struct {
	*progressbar.ProgressBar
}

func (a progressBarAdapter) Describe(description string) error {
	a.ProgressBar.Describe(description)
	return nil
}

// newProgressBar builds the indeterminate stderr progress bar used when the
// output is a terminal but the full-screen view is disabled.
func newProgressBar() hooks.ProgressBar {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Converting"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
	)
	return progressBarAdapter{bar}
}

// RenderReport writes the final run report to w in the requested format.
func RenderReport(w io.Writer, report converter.Report, format converter.OutputFormat) error {
	switch format {
	case converter.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case converter.OutputFormatYAML:
		data, err := yaml.Marshal(report)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return renderTextReport(w, report)
	}
}

// renderTextReport prints a human-readable summary plus one line per
// non-successful file.
func renderTextReport(w io.Writer, report converter.Report) error {
	s := report.Summary
	if _, err := fmt.Fprintf(w, "Run %s: %d converted, %d skipped, %d failed (of %d) in %.2fs\n",
		s.RunStatus, s.SuccessCount, s.SkippedCount, s.FailedCount, s.TotalFiles, s.DurationSeconds); err != nil {
		return err
	}
	if s.Metrics.TotalOutputBytes > 0 {
		if _, err := fmt.Fprintf(w, "Throughput: %.2f MB/s, compression: %.1f%%\n",
			s.Metrics.ThroughputMBPerSec, s.Metrics.CompressionPercent); err != nil {
			return err
		}
	}
	if s.FatalError != "" {
		if _, err := fmt.Fprintf(w, "Fatal error: %s\n", s.FatalError); err != nil {
			return err
		}
	}
	for _, f := range report.Files {
		switch f.Status {
		case converter.StatusFailed:
			if _, err := fmt.Fprintf(w, "  failed: %s (%s)\n", f.Path, f.Error); err != nil {
				return err
			}
		case converter.StatusSkipped:
			if _, err := fmt.Fprintf(w, "  skipped: %s (%s)\n", f.Path, f.Reason); err != nil {
				return err
			}
		}
	}
	return nil
}
