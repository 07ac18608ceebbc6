package models

import (
	"time"
)

// ChangeStatus is how one side's live state relates to its half of the baseline
type ChangeStatus string

const (
	// StatusUnchanged: live state equals the baseline (or both are absent)
	StatusUnchanged ChangeStatus = "unchanged"
	// StatusAdded: absent in the baseline, present now
	StatusAdded ChangeStatus = "added"
	// StatusModified: present in both, fingerprints differ
	StatusModified ChangeStatus = "modified"
	// StatusDeleted: present in the baseline, absent now
	StatusDeleted ChangeStatus = "deleted"
)

// Changed returns true for any status other than unchanged
func (s ChangeStatus) Changed() bool {
	return s != StatusUnchanged
}

// Conflict represents a path changed on both sides to differing states
type Conflict struct {
	// Path is the relative path of the conflicting file
	Path string `json:"path"`

	// Type categorizes the conflict
	Type ConflictType `json:"type"`

	// StatusA and StatusB are the per-side change statuses
	StatusA ChangeStatus `json:"status_a"`
	StatusB ChangeStatus `json:"status_b"`

	// A and B are the current fingerprints on each side (nil = absent)
	A *Fingerprint `json:"a,omitempty"`
	B *Fingerprint `json:"b,omitempty"`

	// DetectedAt is when the conflict was detected
	DetectedAt time.Time `json:"detected_at"`

	// Decision is the operator or policy decision, if any
	Decision Decision `json:"decision,omitempty"`

	// ResolvedAt is set once a non-skip decision was turned into an action
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// ConflictType categorizes different kinds of conflicts
type ConflictType string

const (
	// ConflictModifyModify indicates both sides modified the file differently
	ConflictModifyModify ConflictType = "modify-modify"
	// ConflictCreateCreate indicates both sides created the file differently
	ConflictCreateCreate ConflictType = "create-create"
	// ConflictDeleteModify indicates A deleted, B modified
	ConflictDeleteModify ConflictType = "delete-modify"
	// ConflictModifyDelete indicates A modified, B deleted
	ConflictModifyDelete ConflictType = "modify-delete"
)

// ClassifyConflict returns the conflict type for two differing changes
func ClassifyConflict(statusA, statusB ChangeStatus) ConflictType {
	switch {
	case statusA == StatusDeleted:
		return ConflictDeleteModify
	case statusB == StatusDeleted:
		return ConflictModifyDelete
	case statusA == StatusAdded && statusB == StatusAdded:
		return ConflictCreateCreate
	default:
		return ConflictModifyModify
	}
}

// Decision is a resolution choice for a single conflict
type Decision string

const (
	// DecisionSkip leaves the conflict unresolved
	DecisionSkip Decision = "skip"
	// DecisionKeepA makes side A's state win
	DecisionKeepA Decision = "keep-a"
	// DecisionKeepB makes side B's state win
	DecisionKeepB Decision = "keep-b"
)

// IsResolved returns true if the conflict has been resolved
func (c *Conflict) IsResolved() bool {
	return c.ResolvedAt != nil
}

// Resolve records the decision that resolved the conflict
func (c *Conflict) Resolve(decision Decision, at time.Time) {
	c.Decision = decision
	c.ResolvedAt = &at
}
