package sync

import (
	"sort"

	"github.com/sdejongh/treesync/pkg/baseline"
	"github.com/sdejongh/treesync/pkg/models"
)

// PathState is the three-way view of one path: its baseline entry, the live
// fingerprint on each side and the resulting per-side change status
type PathState struct {
	Path    string
	Base    baseline.Entry
	A       *models.Fingerprint
	B       *models.Fingerprint
	StatusA models.ChangeStatus
	StatusB models.ChangeStatus
}

// Live returns the scanned fingerprint of one side (nil = absent)
func (p PathState) Live(side models.Side) *models.Fingerprint {
	if side == models.SideB {
		return p.B
	}
	return p.A
}

// Status returns the change status of one side
func (p PathState) Status(side models.Side) models.ChangeStatus {
	if side == models.SideB {
		return p.StatusB
	}
	return p.StatusA
}

// ClassifySide compares one side's baseline half with its live state
func ClassifySide(base, live *models.Fingerprint) models.ChangeStatus {
	switch {
	case base == nil && live == nil:
		return models.StatusUnchanged
	case base == nil:
		return models.StatusAdded
	case live == nil:
		return models.StatusDeleted
	case *base == *live:
		return models.StatusUnchanged
	default:
		return models.StatusModified
	}
}

// Classify computes the per-side status of every path found in the
// baseline or either snapshot, sorted by path. It performs no I/O.
func Classify(base baseline.Baseline, a, b models.Snapshot) []PathState {
	seen := make(map[string]struct{}, len(base)+len(a)+len(b))
	for p := range base {
		seen[p] = struct{}{}
	}
	for p := range a {
		seen[p] = struct{}{}
	}
	for p := range b {
		seen[p] = struct{}{}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	states := make([]PathState, 0, len(paths))
	for _, p := range paths {
		entry := base.Get(p)
		liveA := a.Lookup(p)
		liveB := b.Lookup(p)
		states = append(states, PathState{
			Path:    p,
			Base:    entry,
			A:       liveA,
			B:       liveB,
			StatusA: ClassifySide(entry.A, liveA),
			StatusB: ClassifySide(entry.B, liveB),
		})
	}
	return states
}
