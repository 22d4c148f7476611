package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rawbatch/rawbatch/pkg/converter/codec"
	"github.com/rawbatch/rawbatch/pkg/util"
)

// FileProcessor runs the conversion pipeline for a single RAW file: identify
// the camera, resolve an ICC profile, decode, encode, and atomically write
// the JPEG output. Instances are shared across workers and must stay
// stateless apart from their injected dependencies.
type FileProcessor struct {
	opts     *Options
	logger   *slog.Logger
	hooks    Hooks
	decoder  codec.Decoder
	encoder  codec.Encoder
	profiles ProfileResolver
	detector CameraDetector
}

// NewFileProcessor creates a FileProcessor wired to the resolved dependencies.
func NewFileProcessor(opts *Options, loggerHandler slog.Handler) *FileProcessor {
	logger := slog.New(loggerHandler).With(slog.String("component", "processor"))
	return &FileProcessor{
		opts:     opts,
		logger:   logger,
		hooks:    opts.EventHooks,
		decoder:  opts.Decoder,
		encoder:  opts.Encoder,
		profiles: opts.Profiles,
		detector: opts.Detector,
	}
}

// ProcessFile converts one file and returns its record. A non-nil error is
// also captured in the record; the caller decides whether it is fatal for
// the run.
func (p *FileProcessor) ProcessFile(ctx context.Context, task FileTask) (FileRecord, error) {
	startTime := time.Now()
	rec := FileRecord{Path: task.RelPath, Status: StatusProcessing}

	p.emitStatus(task.RelPath, StatusProcessing, "", 0)

	outPath := util.OutputPath(p.opts.OutputPath, task.RelPath, OutputExtension)
	rec.OutputPath = outPath

	srcInfo, err := os.Stat(task.AbsPath)
	if err != nil {
		return p.fail(&rec, startTime, fmt.Errorf("%w: %s: %v", ErrStatFailed, task.RelPath, err))
	}
	rec.InputBytes = srcInfo.Size()

	if p.opts.SkipExisting {
		if outInfo, statErr := os.Stat(outPath); statErr == nil && !outInfo.ModTime().Before(srcInfo.ModTime()) {
			rec.Status = StatusSkipped
			rec.Reason = SkipReasonUpToDate
			rec.DurationMs = time.Since(startTime).Milliseconds()
			p.logger.Debug("Skipping up-to-date file", slog.String("path", task.RelPath))
			p.emitStatus(task.RelPath, StatusSkipped, "output up to date", time.Since(startTime))
			return rec, nil
		}
	}

	// Camera identification is best effort: a file that decodes fine but
	// carries odd metadata still converts, just without a profile match.
	meta, identErr := p.decoder.Identify(ctx, task.AbsPath)
	if identErr != nil {
		if ctx.Err() != nil {
			return p.cancelled(&rec, startTime)
		}
		p.logger.Warn("Camera identification failed",
			slog.String("path", task.RelPath), slog.Any("error", identErr))
	}
	info := p.detector.Detect(meta, task.Ext)
	rec.CameraBrand = info.Brand
	rec.CameraModel = info.Model

	iccProfile, profErr := p.resolveProfile(&rec, info.Brand, info.Model)
	if profErr != nil {
		return p.fail(&rec, startTime, profErr)
	}

	img, err := p.decoder.Decode(ctx, task.AbsPath, p.opts.Decode)
	if err != nil {
		if ctx.Err() != nil {
			return p.cancelled(&rec, startTime)
		}
		return p.fail(&rec, startTime, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, task.RelPath, err))
	}

	encoded, err := p.encoder.EncodeWithProfile(img, p.opts.Quality, iccProfile)
	if err != nil {
		return p.fail(&rec, startTime, fmt.Errorf("%w: %s: %v", ErrEncodeFailed, task.RelPath, err))
	}

	// The filesystem error stays in the chain so the engine can classify
	// disk-full and unwritable-output conditions as fatal.
	if err := util.EnsureDir(filepath.Dir(outPath)); err != nil {
		return p.fail(&rec, startTime, fmt.Errorf("%w: %w", ErrMkdirFailed, err))
	}
	if err := util.WriteFileAtomic(outPath, encoded, 0o644); err != nil {
		return p.fail(&rec, startTime, fmt.Errorf("%w: %w", ErrWriteFailed, err))
	}

	rec.Status = StatusSuccess
	rec.OutputBytes = int64(len(encoded))
	rec.DurationMs = time.Since(startTime).Milliseconds()
	p.logger.Debug("File converted",
		slog.String("path", task.RelPath),
		slog.String("output", outPath),
		slog.Int64("inputBytes", rec.InputBytes),
		slog.Int64("outputBytes", rec.OutputBytes),
		slog.Int64("durationMs", rec.DurationMs))
	p.emitStatus(task.RelPath, StatusSuccess, "", time.Since(startTime))
	return rec, nil
}

// resolveProfile finds and loads the ICC profile bytes for a camera, noting
// the chosen profile in the record. With strict resolution, a miss is a
// per-file error; otherwise missing or unreadable profiles degrade to an
// unprofiled conversion.
func (p *FileProcessor) resolveProfile(rec *FileRecord, brand, model string) ([]byte, error) {
	if p.profiles == nil {
		return nil, nil
	}
	entry, ok := p.profiles.Resolve(brand, model, p.opts.Scene, p.opts.StrictProfile)
	if !ok {
		if p.opts.StrictProfile {
			return nil, fmt.Errorf("%w: %s %s (scene %q)", ErrProfileNotFound, brand, model, p.opts.Scene)
		}
		p.logger.Debug("No ICC profile matched",
			slog.String("brand", brand), slog.String("model", model), slog.String("scene", p.opts.Scene))
		return nil, nil
	}
	data, err := p.profiles.Load(entry)
	if err != nil {
		if p.opts.StrictProfile {
			return nil, fmt.Errorf("%w: %v", ErrProfileNotFound, err)
		}
		p.logger.Warn("Failed to load ICC profile, converting without it",
			slog.String("profile", entry.Path), slog.Any("error", err))
		return nil, nil
	}
	rec.IccProfile = entry.Key()
	return data, nil
}

func (p *FileProcessor) fail(rec *FileRecord, startTime time.Time, err error) (FileRecord, error) {
	rec.Status = StatusFailed
	rec.Error = err.Error()
	rec.DurationMs = time.Since(startTime).Milliseconds()
	p.logger.Error("File conversion failed", slog.String("path", rec.Path), slog.Any("error", err))
	p.emitStatus(rec.Path, StatusFailed, err.Error(), time.Since(startTime))
	return *rec, err
}

func (p *FileProcessor) cancelled(rec *FileRecord, startTime time.Time) (FileRecord, error) {
	rec.Status = StatusSkipped
	rec.Reason = SkipReasonCancelled
	rec.DurationMs = time.Since(startTime).Milliseconds()
	p.emitStatus(rec.Path, StatusSkipped, "cancelled", time.Since(startTime))
	return *rec, context.Canceled
}

func (p *FileProcessor) emitStatus(path string, status Status, message string, duration time.Duration) {
	if hookErr := p.hooks.OnFileStatusUpdate(path, status, message, duration); hookErr != nil {
		p.logger.Warn("Event hook OnFileStatusUpdate failed",
			slog.String("path", path), slog.Any("error", hookErr))
	}
}

// isDiskFull reports whether an error chain contains an out-of-space
// condition, which makes every subsequent write pointless.
func isDiskFull(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}

// isOutputUnusable reports whether a write-path error means the output tree
// itself rejected the file: permissions revoked, filesystem remounted
// read-only, or a path component replaced by a regular file. Every remaining
// file would fail the same way.
func isOutputUnusable(err error) bool {
	if !errors.Is(err, ErrMkdirFailed) && !errors.Is(err, ErrWriteFailed) {
		return false
	}
	return errors.Is(err, syscall.EACCES) ||
		errors.Is(err, syscall.EROFS) ||
		errors.Is(err, syscall.ENOTDIR)
}
