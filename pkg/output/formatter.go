package output

import (
	"io"

	"github.com/sdejongh/treesync/pkg/models"
)

// Progress event types
const (
	EventActionStart    = "action_start"
	EventActionComplete = "action_complete"
	EventActionError    = "action_error"
	EventConflict       = "conflict"
)

// ProgressUpdate represents a progress notification during a run
type ProgressUpdate struct {
	Type          string
	Path          string
	Action        models.Action
	From          models.Side
	To            models.Side
	Bytes         int64
	CurrentAction int
	TotalActions  int
	Error         error
}

// Formatter defines the interface for output formatting
// Implementations include human-readable, JSON and progress bar formatters
type Formatter interface {
	// Start initializes the formatter once the plan is known.
	// maxWorkers indicates the number of parallel workers for display purposes
	Start(writer io.Writer, totalActions int, totalBytes int64, maxWorkers int) error

	// Progress reports progress while actions are applied
	Progress(update ProgressUpdate) error

	// Complete finalizes output and displays summary
	Complete(report *models.SyncReport) error

	// Error reports an error during the run
	Error(err error) error

	// Name returns the formatter name
	Name() string
}
