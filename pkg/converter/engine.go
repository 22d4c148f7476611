package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rawbatch/rawbatch/pkg/converter/camera"
	"github.com/rawbatch/rawbatch/pkg/converter/codec"
	"github.com/rawbatch/rawbatch/pkg/converter/profile"
)

// Engine orchestrates a conversion run: scanning, the worker pool, result
// ordering, and final report assembly.
type Engine struct {
	opts        *Options
	logger      *slog.Logger
	scanner     *Scanner
	processor   *FileProcessor
	ctx         context.Context
	cancelFunc  context.CancelFunc
	concurrency int

	fatalOccurred atomic.Bool
	fatalMu       sync.Mutex
	fatalErr      error
}

// NewEngine creates and initializes a new Engine instance, validating options
// and wiring default implementations for any dependency not injected.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: Logger implementation (slog.Handler) cannot be nil", ErrConfigValidation)
	}
	if opts.EventHooks == nil {
		opts.EventHooks = &NoOpHooks{}
	}

	logger := slog.New(opts.Logger).With(slog.String("component", "engine"))

	if opts.InputPath == "" {
		return nil, fmt.Errorf("%w: input path cannot be empty", ErrConfigValidation)
	}
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("%w: output path cannot be empty", ErrConfigValidation)
	}
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInputPathNotFound, opts.InputPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInputPathNotFound, opts.InputPath)
	}
	if err := os.MkdirAll(opts.OutputPath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: cannot create output directory %q: %v", ErrMkdirFailed, opts.OutputPath, err)
	}

	if opts.Quality == 0 {
		opts.Quality = DefaultQuality
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		return nil, fmt.Errorf("%w: quality must be between 1 and 100, got %d", ErrConfigValidation, opts.Quality)
	}

	if len(opts.Extensions) == 0 {
		opts.Extensions = append([]string(nil), DefaultExtensions...)
	}
	for i, ext := range opts.Extensions {
		opts.Extensions[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}

	if opts.OnErrorMode == "" {
		opts.OnErrorMode = DefaultOnErrorMode
	}
	switch opts.OnErrorMode {
	case OnErrorContinue, OnErrorStop:
	default:
		return nil, fmt.Errorf("%w: invalid onError mode %q", ErrConfigValidation, opts.OnErrorMode)
	}

	if opts.OutputFormat == "" {
		opts.OutputFormat = DefaultOutputFormat
	}
	switch opts.OutputFormat {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
	default:
		return nil, fmt.Errorf("%w: invalid output format %q", ErrConfigValidation, opts.OutputFormat)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
		opts.Concurrency = concurrency
	}

	// --- Dependency Initialization ---
	if opts.Decoder == nil {
		decoder := codec.NewDcrawDecoder(opts.DcrawPath, opts.Logger)
		if availErr := decoder.Available(); availErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecoderUnavailable, availErr)
		}
		opts.Decoder = decoder
		logger.Debug("Decoder not provided, using dcraw", slog.String("binary", opts.DcrawPath))
	}
	if opts.Encoder == nil {
		opts.Encoder = codec.NewJPEGEncoder()
	}
	if opts.Detector == nil {
		opts.Detector = camera.NewDetector(opts.Brand, opts.Model)
	}
	if opts.Profiles == nil && opts.ProfileDir != "" {
		catalog, catErr := profile.NewCatalog(opts.ProfileDir, 0, opts.Logger)
		if catErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigValidation, catErr)
		}
		opts.Profiles = catalog
		logger.Debug("Profile catalog loaded",
			slog.String("dir", opts.ProfileDir), slog.Int("profiles", catalog.Len()))
	}

	engineCtx, cancelFunc := context.WithCancel(ctx)

	engine := &Engine{
		opts:        &opts,
		logger:      logger,
		scanner:     NewScanner(&opts, opts.Logger),
		processor:   NewFileProcessor(&opts, opts.Logger),
		ctx:         engineCtx,
		cancelFunc:  cancelFunc,
		concurrency: concurrency,
	}
	return engine, nil
}

// Run executes the conversion run and returns the ordered report. The report
// lists files in discovery order regardless of worker interleave; every
// discovered file ends in a terminal status even when the run is cancelled.
func (e *Engine) Run() (Report, error) {
	startTime := time.Now()
	e.logger.Info("Starting conversion run",
		slog.Int("concurrency", e.concurrency),
		slog.Int("quality", e.opts.Quality),
		slog.String("onError", string(e.opts.OnErrorMode)))
	defer e.cancelFunc()

	tasks, scanErr := e.scanner.Scan(e.ctx)
	if scanErr != nil {
		if errors.Is(scanErr, context.Canceled) || errors.Is(scanErr, context.DeadlineExceeded) {
			report := buildReport(e.opts, nil, startTime, RunStatusCancelled, nil)
			e.emitRunComplete(report)
			return report, scanErr
		}
		report := buildReport(e.opts, nil, startTime, RunStatusFailedFatal, scanErr)
		e.emitRunComplete(report)
		return report, scanErr
	}

	// Each worker owns the slots it receives, so records needs no lock:
	// slot writes are disjoint and wg.Wait orders them before the read below.
	records := make([]FileRecord, len(tasks))
	taskChan := make(chan int)
	var wg sync.WaitGroup

	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go e.worker(&wg, i, tasks, records, taskChan)
	}

	for idx := range tasks {
		taskChan <- idx
	}
	close(taskChan)
	wg.Wait()

	runStatus := RunStatusCompleted
	var finalErr error
	if e.fatalOccurred.Load() {
		runStatus = RunStatusFailedFatal
		finalErr = e.firstFatalError()
	} else if e.ctx.Err() != nil {
		runStatus = RunStatusCancelled
		finalErr = e.ctx.Err()
	}

	report := buildReport(e.opts, records, startTime, runStatus, finalErr)
	e.logger.Info("Conversion run finished",
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("total", report.Summary.TotalFiles),
		slog.Int("succeeded", report.Summary.SuccessCount),
		slog.Int("failed", report.Summary.FailedCount),
		slog.Int("skipped", report.Summary.SkippedCount),
		slog.String("runStatus", string(runStatus)))
	e.emitRunComplete(report)
	return report, finalErr
}

// worker pulls task indices until the channel closes. All indices are always
// drained; after cancellation the remaining files are recorded as skipped so
// the report stays complete.
func (e *Engine) worker(wg *sync.WaitGroup, workerID int, tasks []FileTask, records []FileRecord, taskChan <-chan int) {
	defer wg.Done()
	wLogger := e.logger.With(slog.Int("workerID", workerID))
	wLogger.Debug("Worker started")

	for idx := range taskChan {
		task := tasks[idx]
		if e.ctx.Err() != nil || e.fatalOccurred.Load() {
			records[idx] = e.skipCancelled(task)
			continue
		}

		rec, err := e.processor.ProcessFile(e.ctx, task)
		records[idx] = rec
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}

		if isDiskFull(err) {
			wLogger.Error("Disk full, aborting run", slog.String("path", task.RelPath))
			e.recordFatal(fmt.Errorf("disk full while writing %s: %w", task.RelPath, err))
		} else if isOutputUnusable(err) {
			wLogger.Error("Output directory not writable, aborting run", slog.String("path", task.RelPath))
			e.recordFatal(fmt.Errorf("output directory not writable at %s: %w", task.RelPath, err))
		} else if e.opts.OnErrorMode == OnErrorStop {
			wLogger.Info("Stopping run on first error", slog.String("path", task.RelPath))
			e.recordFatal(err)
		}
	}
	wLogger.Debug("Worker shutting down")
}

// skipCancelled produces the terminal record for a file the run never reached.
func (e *Engine) skipCancelled(task FileTask) FileRecord {
	if hookErr := e.opts.EventHooks.OnFileStatusUpdate(task.RelPath, StatusSkipped, "cancelled", 0); hookErr != nil {
		e.logger.Warn("Event hook OnFileStatusUpdate failed",
			slog.String("path", task.RelPath), slog.Any("error", hookErr))
	}
	return FileRecord{
		Path:   task.RelPath,
		Status: StatusSkipped,
		Reason: SkipReasonCancelled,
	}
}

// recordFatal stores the first fatal error and cancels the run context.
func (e *Engine) recordFatal(err error) {
	e.fatalMu.Lock()
	if e.fatalErr == nil {
		e.fatalErr = err
	}
	e.fatalMu.Unlock()
	if !e.fatalOccurred.Load() {
		e.fatalOccurred.Store(true)
		e.cancelFunc()
	}
}

func (e *Engine) firstFatalError() error {
	e.fatalMu.Lock()
	defer e.fatalMu.Unlock()
	if e.fatalErr == nil {
		return errors.New("processing stopped due to fatal error")
	}
	return e.fatalErr
}

func (e *Engine) emitRunComplete(report Report) {
	if hookErr := e.opts.EventHooks.OnRunComplete(report); hookErr != nil {
		e.logger.Warn("OnRunComplete hook returned an error", slog.Any("error", hookErr))
	}
}
