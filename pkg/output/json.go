package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/sdejongh/treesync/pkg/models"
)

// JSONFormatter writes the run result as a single JSON document for
// automation and scripting
type JSONFormatter struct {
	writer io.Writer
}

// JSONReport is the document written on completion
type JSONReport struct {
	OperationID string              `json:"operation_id"`
	RootA       string              `json:"root_a"`
	RootB       string              `json:"root_b"`
	Mode        string              `json:"mode"`
	DryRun      bool                `json:"dry_run"`
	Status      string              `json:"status"`
	ExitCode    int                 `json:"exit_code"`
	StartTime   time.Time           `json:"start_time"`
	EndTime     time.Time           `json:"end_time"`
	DurationMs  int64               `json:"duration_ms"`
	Stats       JSONStats           `json:"stats"`
	Results     []models.PathResult `json:"results"`
	Conflicts   []models.Conflict   `json:"conflicts"`
	Errors      []JSONError         `json:"errors,omitempty"`
}

// JSONStats mirrors models.Statistics with plain integers
type JSONStats struct {
	FilesScannedA    int32 `json:"files_scanned_a"`
	FilesScannedB    int32 `json:"files_scanned_b"`
	PathsTotal       int32 `json:"paths_total"`
	FilesUnchanged   int32 `json:"files_unchanged"`
	FilesCopied      int32 `json:"files_copied"`
	FilesDeleted     int32 `json:"files_deleted"`
	FilesAgreed      int32 `json:"files_agreed"`
	FilesIgnored     int32 `json:"files_ignored"`
	FilesErrored     int32 `json:"files_errored"`
	Conflicts        int32 `json:"conflicts"`
	BytesTransferred int64 `json:"bytes_transferred"`
}

// JSONError represents an error entry
type JSONError struct {
	Path      string    `json:"path,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{writer: os.Stdout}
}

// Start initializes the formatter
func (f *JSONFormatter) Start(writer io.Writer, totalActions int, totalBytes int64, maxWorkers int) error {
	if writer != nil {
		f.writer = writer
	}
	return nil
}

// Progress is not streamed so the output stays a single parseable document
func (f *JSONFormatter) Progress(update ProgressUpdate) error {
	return nil
}

// Complete writes the report document
func (f *JSONFormatter) Complete(report *models.SyncReport) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewJSONReport(report))
}

// Error is a no-op; errors are listed in the report document
func (f *JSONFormatter) Error(err error) error {
	return nil
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}

// NewJSONReport converts a report into its JSON document form
func NewJSONReport(report *models.SyncReport) JSONReport {
	stats := &report.Stats
	doc := JSONReport{
		OperationID: report.OperationID,
		RootA:       report.RootA,
		RootB:       report.RootB,
		Mode:        report.Mode.String(),
		DryRun:      report.DryRun,
		Status:      string(report.Status),
		ExitCode:    report.Status.ExitCode(),
		StartTime:   report.StartTime,
		EndTime:     report.EndTime,
		DurationMs:  report.Duration.Milliseconds(),
		Stats: JSONStats{
			FilesScannedA:    stats.FilesScannedA.Load(),
			FilesScannedB:    stats.FilesScannedB.Load(),
			PathsTotal:       stats.PathsTotal.Load(),
			FilesUnchanged:   stats.FilesUnchanged.Load(),
			FilesCopied:      stats.FilesCopied.Load(),
			FilesDeleted:     stats.FilesDeleted.Load(),
			FilesAgreed:      stats.FilesAgreed.Load(),
			FilesIgnored:     stats.FilesIgnored.Load(),
			FilesErrored:     stats.FilesErrored.Load(),
			Conflicts:        stats.Conflicts.Load(),
			BytesTransferred: stats.BytesTransferred.Load(),
		},
		Results:   report.Results,
		Conflicts: report.Conflicts,
	}

	if doc.Results == nil {
		doc.Results = []models.PathResult{}
	}
	if doc.Conflicts == nil {
		doc.Conflicts = []models.Conflict{}
	}

	for _, e := range report.Errors {
		doc.Errors = append(doc.Errors, JSONError{
			Path:      e.FilePath,
			Operation: string(e.Operation),
			Error:     e.Error,
			Timestamp: e.Timestamp,
		})
	}

	return doc
}
