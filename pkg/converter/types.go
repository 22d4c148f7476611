package converter

// Status defines the possible processing states of a file during conversion.
type Status string

// Constants representing the defined file processing statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// OnErrorMode defines the behavior when a non-fatal error occurs during file processing.
type OnErrorMode string

const (
	OnErrorContinue OnErrorMode = "continue"
	OnErrorStop     OnErrorMode = "stop"
)

// RunStatus summarizes how the run as a whole terminated.
type RunStatus string

const (
	RunStatusCompleted   RunStatus = "completed"
	RunStatusCancelled   RunStatus = "cancelled"
	RunStatusFailedFatal RunStatus = "failed_fatally"
)

// OutputFormat defines the format for the final summary report printed to standard output when TUI is disabled.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// FileTask identifies a single discovered RAW file queued for conversion.
// AbsPath is the absolute path on disk; RelPath is slash-separated and
// relative to the input root, and is the identifier used in hooks and reports.
type FileTask struct {
	AbsPath string
	RelPath string
	Ext     string
}

// IsTerminal reports whether a status represents a finished file.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusSkipped:
		return true
	}
	return false
}
