package converter

import (
	"log/slog"
	"time"

	"github.com/rawbatch/rawbatch/pkg/converter/camera"
	"github.com/rawbatch/rawbatch/pkg/converter/codec"
	"github.com/rawbatch/rawbatch/pkg/converter/profile"
)

// Hooks defines callbacks for status updates during the conversion process.
// Implementations MUST be thread-safe as methods may be called concurrently.
type Hooks interface {
	OnFileDiscovered(path string) error
	OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error
	OnRunComplete(report Report) error
}

// NoOpHooks provides a default, do-nothing implementation of the Hooks interface.
type NoOpHooks struct{}

// OnFileDiscovered implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnFileDiscovered(path string) error { return nil }

// OnFileStatusUpdate implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error {
	return nil
}

// OnRunComplete implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnRunComplete(report Report) error { return nil }

// ProfileResolver resolves and loads ICC profiles for processed files.
// *profile.Catalog satisfies this interface.
type ProfileResolver interface {
	Resolve(brand, model, scene string, strict bool) (profile.Entry, bool)
	Load(entry profile.Entry) ([]byte, error)
	Stats() profile.CacheStats
}

// CameraDetector resolves decoder metadata to normalized camera identification.
// *camera.Detector satisfies this interface.
type CameraDetector interface {
	Detect(meta codec.Metadata, ext string) camera.Info
}

// Options holds all configuration for a Convert run.
type Options struct {
	// --- Core Paths ---
	InputPath  string `mapstructure:"inputPath"`  // Required: Path to the RAW source directory
	OutputPath string `mapstructure:"outputPath"` // Required: Path to the JPEG output directory

	// --- Application Info ---
	AppVersion string `mapstructure:"-"` // Application version (e.g., "v1.2.0", "dev"). Populated by caller.

	// --- Behavior & Control ---
	ConfigFilePath string      `mapstructure:"-"`          // Path to the loaded config file (for reporting)
	Verbose        bool        `mapstructure:"verbose"`    // Enable debug logging
	TuiEnabled     bool        `mapstructure:"tuiEnabled"` // Hint for CLI to use TUI (ignored if Verbose)
	OnErrorMode    OnErrorMode `mapstructure:"onError"`    // Behavior on file processing error ("continue", "stop")
	ProfileName    string      `mapstructure:"-"`          // Name of the config profile used (for reporting)

	// --- Conversion ---
	Quality      int                `mapstructure:"quality"`      // JPEG quality factor (1-100)
	Extensions   []string           `mapstructure:"extensions"`   // RAW extension allowlist, lowercase without dot
	Concurrency  int                `mapstructure:"concurrency"`  // Number of workers (0=default)
	SkipExisting bool               `mapstructure:"skipExisting"` // Skip files whose output is newer than the source
	Decode       codec.DecodeParams `mapstructure:"decode"`       // RAW rendering parameters

	// --- Camera & Color Management ---
	ProfileDir    string `mapstructure:"profileDir"`    // Directory of ICC camera profiles
	Brand         string `mapstructure:"brand"`         // Camera brand override for profile lookup
	Model         string `mapstructure:"model"`         // Camera model override for profile lookup
	Scene         string `mapstructure:"scene"`         // Scene profile selector (e.g. "landscape")
	StrictProfile bool   `mapstructure:"strictProfile"` // Fail files with no exact profile match

	// --- Decoder ---
	DcrawPath string `mapstructure:"dcrawPath"` // Path to the dcraw binary ("" = PATH lookup)

	// --- Output & Formatting ---
	OutputFormat OutputFormat `mapstructure:"outputFormat"` // ("text", "json", "yaml") for the final report

	// --- Injected Dependencies ---
	EventHooks Hooks           `mapstructure:"-"` // Required: Callback interface (NoOpHooks if unused)
	Logger     slog.Handler    `mapstructure:"-"` // Required: Logging backend
	Decoder    codec.Decoder   `mapstructure:"-"` // Optional: RAW decoder (default DcrawDecoder)
	Encoder    codec.Encoder   `mapstructure:"-"` // Optional: JPEG encoder (default JPEGEncoder)
	Profiles   ProfileResolver `mapstructure:"-"` // Optional: ICC profile catalog (default from ProfileDir)
	Detector   CameraDetector  `mapstructure:"-"` // Optional: Camera detection (default camera.Detector)
}
