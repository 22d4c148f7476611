package converter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scanner traverses the input directory and collects RAW files matching the
// configured extension allowlist. Results are ordered lexicographically by
// relative path so runs over the same tree are deterministic.
type Scanner struct {
	opts   *Options
	hooks  Hooks
	logger *slog.Logger
	exts   map[string]struct{}
}

// NewScanner creates a new Scanner instance.
func NewScanner(opts *Options, loggerHandler slog.Handler) *Scanner {
	logger := slog.New(loggerHandler).With(slog.String("component", "scanner"))
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &Scanner{
		opts:   opts,
		hooks:  opts.EventHooks,
		logger: logger,
		exts:   exts,
	}
}

// Scan walks the input directory and returns the sorted list of eligible
// files. The OnFileDiscovered hook fires once per file, in sorted order,
// after the walk completes. Unreadable subdirectories are logged and skipped;
// an unreadable input root is an error.
func (s *Scanner) Scan(ctx context.Context) ([]FileTask, error) {
	s.logger.Info("Scanning input directory", slog.String("path", s.opts.InputPath))

	var tasks []FileTask
	walkErr := filepath.WalkDir(s.opts.InputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.opts.InputPath {
				return fmt.Errorf("read input directory %q: %w", path, err)
			}
			s.logger.Warn("Error accessing path during scan, skipping",
				slog.String("path", path), slog.Any("error", err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		// Symlinks are never followed; a cycle under the input root must not
		// hang the scan.
		if d.Type()&fs.ModeSymlink != 0 {
			s.logger.Debug("Skipping symbolic link", slog.String("path", path))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if _, ok := s.exts[ext]; !ok {
			s.logger.Debug("Skipping non-RAW file", slog.String("path", path))
			return nil
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			s.logger.Warn("Could not get absolute path", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		relPath, err := filepath.Rel(s.opts.InputPath, path)
		if err != nil {
			s.logger.Warn("Could not calculate relative path",
				slog.String("path", path), slog.String("input", s.opts.InputPath), slog.Any("error", err))
			return nil
		}
		tasks = append(tasks, FileTask{
			AbsPath: absPath,
			RelPath: filepath.ToSlash(relPath),
			Ext:     ext,
		})
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			s.logger.Info("Scan cancelled", slog.String("reason", walkErr.Error()))
			return nil, walkErr
		}
		if errors.Is(walkErr, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputPathNotFound, s.opts.InputPath)
		}
		s.logger.Error("Directory scan failed", slog.Any("error", walkErr))
		return nil, fmt.Errorf("directory scan failed: %w", walkErr)
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].RelPath < tasks[j].RelPath })

	for _, task := range tasks {
		if hookErr := s.hooks.OnFileDiscovered(task.RelPath); hookErr != nil {
			s.logger.Warn("Event hook OnFileDiscovered failed",
				slog.String("path", task.RelPath), slog.Any("error", hookErr))
		}
	}

	s.logger.Info("Scan completed", slog.Int("files", len(tasks)))
	return tasks, nil
}
