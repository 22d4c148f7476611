package converter

import (
	"time"

	"github.com/rawbatch/rawbatch/pkg/converter/profile"
)

// Report summarizes the result of a single Convert run. Files appear in
// discovery order regardless of how workers interleaved.
type Report struct {
	Summary ReportSummary `json:"summary" yaml:"summary"`
	Files   []FileRecord  `json:"files" yaml:"files"`
}

// ReportSummary contains aggregated statistics for a Convert run.
type ReportSummary struct {
	InputPath       string            `json:"inputPath" yaml:"inputPath"`
	OutputPath      string            `json:"outputPath" yaml:"outputPath"`
	ProfileUsed     string            `json:"profileUsed,omitempty" yaml:"profileUsed,omitempty"`
	ConfigFilePath  string            `json:"configFilePath,omitempty" yaml:"configFilePath,omitempty"`
	RunStatus       RunStatus         `json:"runStatus" yaml:"runStatus"`
	FatalError      string            `json:"fatalError,omitempty" yaml:"fatalError,omitempty"`
	TotalFiles      int               `json:"totalFiles" yaml:"totalFiles"`
	SuccessCount    int               `json:"successCount" yaml:"successCount"`
	FailedCount     int               `json:"failedCount" yaml:"failedCount"`
	SkippedCount    int               `json:"skippedCount" yaml:"skippedCount"`
	DurationSeconds float64           `json:"durationSeconds" yaml:"durationSeconds"`
	Concurrency     int               `json:"concurrency" yaml:"concurrency"`
	Quality         int               `json:"quality" yaml:"quality"`
	Metrics         ConversionMetrics `json:"metrics" yaml:"metrics"`
	Timestamp       time.Time         `json:"timestamp" yaml:"timestamp"`
	SchemaVersion   string            `json:"schemaVersion,omitempty" yaml:"schemaVersion,omitempty"`
}

// ConversionMetrics aggregates throughput statistics over successful files.
type ConversionMetrics struct {
	TotalInputBytes    int64              `json:"totalInputBytes" yaml:"totalInputBytes"`
	TotalOutputBytes   int64              `json:"totalOutputBytes" yaml:"totalOutputBytes"`
	ThroughputMBPerSec float64            `json:"throughputMBPerSec" yaml:"throughputMBPerSec"`
	CompressionPercent float64            `json:"compressionPercent" yaml:"compressionPercent"`
	ProfileCache       profile.CacheStats `json:"profileCache" yaml:"profileCache"`
}

// FileRecord details the outcome for a single discovered file.
type FileRecord struct {
	Path        string `json:"path" yaml:"path"`
	OutputPath  string `json:"outputPath,omitempty" yaml:"outputPath,omitempty"`
	Status      Status `json:"status" yaml:"status"`
	Reason      string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
	CameraBrand string `json:"cameraBrand,omitempty" yaml:"cameraBrand,omitempty"`
	CameraModel string `json:"cameraModel,omitempty" yaml:"cameraModel,omitempty"`
	IccProfile  string `json:"iccProfile,omitempty" yaml:"iccProfile,omitempty"`
	InputBytes  int64  `json:"inputBytes,omitempty" yaml:"inputBytes,omitempty"`
	OutputBytes int64  `json:"outputBytes,omitempty" yaml:"outputBytes,omitempty"`
	DurationMs  int64  `json:"durationMs" yaml:"durationMs"`
}

// buildReport assembles the final Report from ordered per-file records.
func buildReport(opts *Options, records []FileRecord, startTime time.Time, runStatus RunStatus, fatalErr error) Report {
	summary := ReportSummary{
		InputPath:       opts.InputPath,
		OutputPath:      opts.OutputPath,
		ProfileUsed:     opts.ProfileName,
		ConfigFilePath:  opts.ConfigFilePath,
		RunStatus:       runStatus,
		TotalFiles:      len(records),
		DurationSeconds: time.Since(startTime).Seconds(),
		Concurrency:     opts.Concurrency,
		Quality:         opts.Quality,
		Timestamp:       time.Now().UTC(),
		SchemaVersion:   ReportSchemaVersion,
	}
	if fatalErr != nil {
		summary.FatalError = fatalErr.Error()
	}

	for _, rec := range records {
		switch rec.Status {
		case StatusSuccess:
			summary.SuccessCount++
			summary.Metrics.TotalInputBytes += rec.InputBytes
			summary.Metrics.TotalOutputBytes += rec.OutputBytes
		case StatusFailed:
			summary.FailedCount++
		case StatusSkipped:
			summary.SkippedCount++
		}
	}

	if summary.DurationSeconds > 0 {
		summary.Metrics.ThroughputMBPerSec = float64(summary.Metrics.TotalInputBytes) / (1024 * 1024) / summary.DurationSeconds
	}
	if summary.Metrics.TotalInputBytes > 0 {
		summary.Metrics.CompressionPercent = 100 * (1 - float64(summary.Metrics.TotalOutputBytes)/float64(summary.Metrics.TotalInputBytes))
	}
	if opts.Profiles != nil {
		summary.Metrics.ProfileCache = opts.Profiles.Stats()
	}

	return Report{Summary: summary, Files: records}
}
