package converter

// Constants defining default values for various configuration options.
// These are used when setting up Viper defaults in the configuration loading process.
const (
	// DefaultQuality is the default JPEG quality factor (1-100).
	DefaultQuality = 95
	// DefaultConcurrency determines the default number of workers. Conversion is
	// sequential unless explicitly raised; RAW decoding saturates a core per file.
	DefaultConcurrency = 1
	// DefaultTuiEnabled is the default state for the Terminal UI.
	DefaultTuiEnabled = true
	// DefaultOnErrorMode is the default behavior on non-fatal file errors.
	DefaultOnErrorMode = OnErrorContinue
	// DefaultOutputFormat is the default format for the final summary report.
	DefaultOutputFormat = OutputFormatText
	// DefaultSkipExisting is the default state for skipping up-to-date outputs.
	DefaultSkipExisting = false
	// DefaultStrictProfile is the default state for strict ICC profile resolution.
	DefaultStrictProfile = false
	// DefaultVerbose is the default state for verbose logging.
	DefaultVerbose = false
	// DefaultDcrawPath is the decoder binary name resolved via PATH when no
	// explicit path is configured.
	DefaultDcrawPath = "dcraw"
)

// DefaultExtensions lists the RAW file extensions recognized when no explicit
// allowlist is configured. Entries are lowercase and without a leading dot.
var DefaultExtensions = []string{
	"arw", "cr2", "cr3", "dng", "nef", "raw", "orf", "rw2", "pef", "srw", "mos",
}

// Constants related to report schema.
const (
	// ReportSchemaVersion indicates the version of the JSON report structure.
	ReportSchemaVersion = "1.0"
)

// Constants defining skip reasons used in the Report.
const (
	SkipReasonCancelled = "cancelled"
	SkipReasonUpToDate  = "up_to_date"
)

// OutputExtension is the extension appended to converted files.
const OutputExtension = ".jpg"
