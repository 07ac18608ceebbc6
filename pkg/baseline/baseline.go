// Package baseline persists, per pair of directory trees, the file states
// both sides were last known to agree on.
package baseline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/sdejongh/treesync/pkg/models"
)

// ErrLocked is returned by Acquire when another run holds the pairing
var ErrLocked = errors.New("pairing is locked by another run")

// Entry is the fingerprint pair last agreed for one path. A nil half means
// the file was absent on that side.
type Entry struct {
	A *models.Fingerprint `json:"a,omitempty"`
	B *models.Fingerprint `json:"b,omitempty"`
}

// Empty returns true when the path is absent on both sides
func (e Entry) Empty() bool {
	return e.A == nil && e.B == nil
}

// Half returns the entry's fingerprint for one side
func (e Entry) Half(side models.Side) *models.Fingerprint {
	if side == models.SideB {
		return e.B
	}
	return e.A
}

// Agreed returns the entry recording both sides at fp. A nil fp yields nil,
// which Commit treats as a tombstone.
func Agreed(fp *models.Fingerprint) *Entry {
	if fp == nil {
		return nil
	}
	a, b := *fp, *fp
	return &Entry{A: &a, B: &b}
}

// Baseline maps relative paths to their agreed entries. A missing path is
// equivalent to an empty entry.
type Baseline map[string]Entry

// Get returns the entry for path
func (b Baseline) Get(path string) Entry {
	return b[path]
}

// Paths returns the tracked paths in sorted order
func (b Baseline) Paths() []string {
	paths := make([]string, 0, len(b))
	for p := range b {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Apply merges updates into a copy of the baseline. Nil and empty entries
// remove the path.
func (b Baseline) Apply(updates map[string]*Entry) Baseline {
	merged := make(Baseline, len(b)+len(updates))
	for p, e := range b {
		merged[p] = e
	}
	for p, e := range updates {
		if e == nil || e.Empty() {
			delete(merged, p)
			continue
		}
		merged[p] = *e
	}
	return merged
}

// Pairing identifies one (side A root, side B root) combination
type Pairing struct {
	Key   string
	RootA string
	RootB string
}

// NewPairing derives a pairing from two absolute roots. The key is stable
// for the same roots in the same order.
func NewPairing(rootA, rootB string) Pairing {
	rootA = filepath.Clean(rootA)
	rootB = filepath.Clean(rootB)

	sum := sha256.Sum256([]byte(rootA + "\x00" + rootB))
	return Pairing{
		Key:   hex.EncodeToString(sum[:8]),
		RootA: rootA,
		RootB: rootB,
	}
}

func (p Pairing) String() string {
	return fmt.Sprintf("%s (%s <-> %s)", p.Key, p.RootA, p.RootB)
}

// Lease is held for the duration of one run against a pairing
type Lease interface {
	Release() error
}

// Store is the durable baseline storage
type Store interface {
	// Acquire takes the exclusive lease for a pairing, failing with
	// ErrLocked if another run holds it
	Acquire(ctx context.Context, pairing Pairing) (Lease, error)

	// Load returns the pairing's baseline; empty on the first run
	Load(ctx context.Context, pairing Pairing) (Baseline, error)

	// Commit atomically applies all updates of a run. A nil entry is a
	// tombstone. Either every update lands or none does.
	Commit(ctx context.Context, pairing Pairing, updates map[string]*Entry) error

	// Reset forgets the pairing's baseline entirely
	Reset(ctx context.Context, pairing Pairing) error
}

// CommitError reports that a run's baseline updates could not be persisted
type CommitError struct {
	Pairing Pairing
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("failed to commit baseline for %s: %v", e.Pairing.Key, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
