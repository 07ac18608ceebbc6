package models

import (
	"sync/atomic"
	"time"
)

// SyncReport represents the results of a reconciliation run
type SyncReport struct {
	// Operation details
	OperationID string
	RootA       string
	RootB       string
	Mode        Mode
	DryRun      bool

	// Timing
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Statistics
	Stats Statistics

	// Results holds one entry per path that needed attention
	Results []PathResult

	// Conflicts left unresolved or resolved by decision
	Conflicts []Conflict

	// Errors encountered
	Errors []SyncError

	// Overall status
	Status SyncStatus
}

// Statistics holds run metrics. Counters are updated concurrently by
// executor workers.
type Statistics struct {
	FilesScannedA atomic.Int32
	FilesScannedB atomic.Int32
	PathsTotal    atomic.Int32 // union of baseline and both snapshots

	FilesUnchanged atomic.Int32
	FilesCopied    atomic.Int32
	FilesDeleted   atomic.Int32
	FilesAgreed    atomic.Int32 // both sides already converged
	FilesIgnored   atomic.Int32 // one-sided change the mode does not propagate
	FilesErrored   atomic.Int32
	Conflicts      atomic.Int32

	BytesTransferred atomic.Int64
}

// Action is what the engine decided for a path
type Action string

const (
	// ActionCopy propagates a file's content to the other side
	ActionCopy Action = "copy"
	// ActionDelete propagates a deletion to the other side
	ActionDelete Action = "delete"
	// ActionAgree records that both sides already agree
	ActionAgree Action = "agree"
	// ActionIgnore is a one-sided change the mode does not propagate
	ActionIgnore Action = "ignore"
	// ActionConflict marks an unresolved conflict
	ActionConflict Action = "conflict"
)

// Outcome is what happened to a planned action
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomePlanned Outcome = "planned" // dry-run
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// PathResult is the per-path entry of the run result
type PathResult struct {
	Path    string  `json:"path"`
	Action  Action  `json:"action"`
	From    Side    `json:"from,omitempty"`
	To      Side    `json:"to,omitempty"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	Error   string  `json:"error,omitempty"`
	Bytes   int64   `json:"bytes,omitempty"`
}

// SyncStatus represents the overall result
type SyncStatus string

const (
	// StatusSuccess indicates both trees are fully reconciled
	StatusSuccess SyncStatus = "success"
	// StatusConflicts indicates the run completed with unresolved conflicts
	StatusConflicts SyncStatus = "conflicts"
	// StatusPartial indicates some actions failed
	StatusPartial SyncStatus = "partial"
	// StatusFailed indicates the run was aborted by an I/O failure
	StatusFailed SyncStatus = "failed"
	// StatusCancelled indicates the run was interrupted
	StatusCancelled SyncStatus = "cancelled"
)

// SyncError represents an error during a run
type SyncError struct {
	FilePath  string
	Operation Action
	Error     string
	Timestamp time.Time
}

// ExitCode returns the appropriate exit code for the sync status
func (s SyncStatus) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusConflicts:
		return 1
	case StatusPartial:
		return 2
	case StatusFailed:
		return 3
	case StatusCancelled:
		return 4
	default:
		return 3
	}
}

// UnresolvedConflicts returns the conflicts that were not resolved
func (r *SyncReport) UnresolvedConflicts() []Conflict {
	var out []Conflict
	for _, c := range r.Conflicts {
		if !c.IsResolved() {
			out = append(out, c)
		}
	}
	return out
}
