// Package converter is the core library for batch RAW-to-JPEG conversion.
// Convert scans an input tree for RAW files, decodes each through the
// configured decoder, and writes JPEG outputs that mirror the source
// directory structure. Progress is surfaced through the Hooks interface and
// the final Report lists every discovered file in deterministic order.
package converter

import (
	"context"
	"fmt"
)

// Convert is the main entry point for the core conversion library. It
// validates opts, runs the conversion, and returns the final report. The
// returned error is non-nil only for fatal conditions (invalid configuration,
// unavailable decoder, disk full, stop-on-error) or cancellation; per-file
// failures are reported in Report.Files with a nil error.
func Convert(ctx context.Context, opts Options) (Report, error) {
	if opts.Logger == nil {
		return Report{}, fmt.Errorf("%w: Logger implementation cannot be nil", ErrConfigValidation)
	}
	engine, err := NewEngine(ctx, opts)
	if err != nil {
		return Report{}, err
	}
	return engine.Run()
}
