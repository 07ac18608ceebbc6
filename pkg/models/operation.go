package models

import (
	"fmt"
	"time"
)

// SyncMode defines how changes are allowed to flow between the two sides
type SyncMode string

const (
	// ModeTwoWay propagates changes in both directions
	ModeTwoWay SyncMode = "twoway"
	// ModeMirror propagates source changes, including deletions, to the target
	ModeMirror SyncMode = "mirror"
	// ModeBackup propagates source changes to the target but never deletions
	ModeBackup SyncMode = "backup"
)

// Side identifies one of the two directory trees of a pairing
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

// Other returns the opposite side
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Label returns the side name used in output
func (s Side) Label() string {
	if s == SideB {
		return "B"
	}
	return "A"
}

// Mode is a sync mode together with its designated source side.
// Source is ignored in two-way mode.
type Mode struct {
	Kind   SyncMode
	Source Side
}

// OneWay returns true for mirror and backup modes
func (m Mode) OneWay() bool {
	return m.Kind == ModeMirror || m.Kind == ModeBackup
}

func (m Mode) String() string {
	if m.OneWay() {
		return fmt.Sprintf("%s(%s->%s)", m.Kind, m.Source.Label(), m.Source.Other().Label())
	}
	return string(m.Kind)
}

// FingerprintMethod defines how file states are fingerprinted
type FingerprintMethod string

const (
	// FingerprintHash uses size and SHA-256 content hash
	FingerprintHash FingerprintMethod = "hash"
	// FingerprintMD5 uses size and MD5 content hash (faster, weaker)
	FingerprintMD5 FingerprintMethod = "md5"
	// FingerprintTimestamp uses size and modification time only
	FingerprintTimestamp FingerprintMethod = "timestamp"
)

// ConflictPolicy defines what happens to detected conflicts
type ConflictPolicy string

const (
	// ConflictSkip reports conflicts and leaves both sides untouched
	ConflictSkip ConflictPolicy = "skip"
	// ConflictAsk prompts the operator for each conflict
	ConflictAsk ConflictPolicy = "ask"
	// ConflictKeepA resolves every conflict in favour of side A
	ConflictKeepA ConflictPolicy = "keep-a"
	// ConflictKeepB resolves every conflict in favour of side B
	ConflictKeepB ConflictPolicy = "keep-b"
)

// SyncOperation represents one reconciliation run's configuration
type SyncOperation struct {
	ID              string
	RootA           string
	RootB           string
	Mode            SyncMode
	Source          Side
	Fingerprint     FingerprintMethod
	ConflictPolicy  ConflictPolicy
	ExcludePatterns []string
	DryRun          bool
	MaxWorkers      int
	BandwidthLimit  int64 // bytes per second, 0 = unlimited
	BufferSize      int
	CreatedAt       time.Time
}

// EffectiveMode returns the mode with its source side defaulted
func (op *SyncOperation) EffectiveMode() Mode {
	source := op.Source
	if source == "" {
		source = SideA
	}
	return Mode{Kind: op.Mode, Source: source}
}

// Validate checks if the operation configuration is valid
func (op *SyncOperation) Validate() error {
	if op.RootA == "" {
		return &ValidationError{Field: "RootA", Message: "side A root is required"}
	}
	if op.RootB == "" {
		return &ValidationError{Field: "RootB", Message: "side B root is required"}
	}
	switch op.Mode {
	case ModeTwoWay, ModeMirror, ModeBackup:
	default:
		return &ValidationError{Field: "Mode", Message: fmt.Sprintf("unknown sync mode %q", op.Mode)}
	}
	switch op.Source {
	case "", SideA, SideB:
	default:
		return &ValidationError{Field: "Source", Message: fmt.Sprintf("unknown side %q", op.Source)}
	}
	switch op.Fingerprint {
	case FingerprintHash, FingerprintMD5, FingerprintTimestamp:
	default:
		return &ValidationError{Field: "Fingerprint", Message: fmt.Sprintf("unknown fingerprint method %q", op.Fingerprint)}
	}
	switch op.ConflictPolicy {
	case ConflictSkip, ConflictAsk, ConflictKeepA, ConflictKeepB:
	default:
		return &ValidationError{Field: "ConflictPolicy", Message: fmt.Sprintf("unknown conflict policy %q", op.ConflictPolicy)}
	}
	if op.MaxWorkers < 1 {
		return &ValidationError{Field: "MaxWorkers", Message: "max workers must be at least 1"}
	}
	if op.BufferSize < 1024 {
		return &ValidationError{Field: "BufferSize", Message: "buffer size must be at least 1024 bytes"}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
