package converter

import "errors"

// --- Exported Error Variables ---
// These errors represent specific categories of issues that might be returned
// directly by Convert or encountered during processing. Library users can
// check against these using errors.Is.

var (
	// ErrConfigValidation indicates that the provided Options struct failed validation
	// checks performed at the beginning of Convert (e.g., invalid quality, missing paths).
	// This is typically returned directly as a fatal error by Convert.
	ErrConfigValidation = errors.New("invalid configuration options provided")

	// ErrInputPathNotFound indicates the configured input root does not exist or
	// is not a directory. Always fatal.
	ErrInputPathNotFound = errors.New("input path not found or not a directory")

	// ErrStatFailed indicates a failure to get file statistics using os.Stat.
	// This might be due to permissions or the file being deleted after discovery.
	// Included in Report.Errors as a per-file failure.
	ErrStatFailed = errors.New("failed to get file stats")

	// ErrDecodeFailed indicates the RAW decoder could not produce image data for a
	// source file. Covers corrupt files, unsupported camera formats, and decoder
	// process failures. Per-file unless OnErrorMode is "stop".
	ErrDecodeFailed = errors.New("failed to decode raw file")

	// ErrDecoderUnavailable indicates the external decoder binary could not be
	// located or started at all. Returned as fatal by Convert since no file can
	// succeed without it.
	ErrDecoderUnavailable = errors.New("raw decoder unavailable")

	// ErrEncodeFailed indicates a failure while encoding the decoded image to JPEG.
	// Per-file unless OnErrorMode is "stop".
	ErrEncodeFailed = errors.New("failed to encode jpeg")

	// ErrMkdirFailed indicates a failure to create a necessary output subdirectory.
	// This is often due to filesystem permissions. Treated as fatal when the output
	// root itself cannot be created.
	ErrMkdirFailed = errors.New("failed to create output directory")

	// ErrWriteFailed indicates a failure to write or rename the final JPEG output.
	// Disk-full conditions are promoted to fatal; other write errors are per-file.
	ErrWriteFailed = errors.New("failed to write output file")

	// ErrProfileNotFound indicates no ICC profile matched the requested
	// brand/model/scene and strict profile resolution is enabled.
	// Per-file unless OnErrorMode is "stop".
	ErrProfileNotFound = errors.New("no matching icc profile")
)
