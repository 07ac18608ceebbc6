package models

import (
	"fmt"
	"sort"
	"time"
)

// Fingerprint is a comparable representation of a file's state.
// Which fields are populated depends on the fingerprint method in use;
// two fingerprints describe the same file state iff they are equal.
type Fingerprint struct {
	// Size in bytes
	Size int64 `json:"size"`

	// ModTime is the modification time in Unix seconds (timestamp method only)
	ModTime int64 `json:"mtime,omitempty"`

	// Hash is the hex content digest (hash and md5 methods)
	Hash string `json:"hash,omitempty"`
}

// String returns a short human-readable form of the fingerprint
func (f Fingerprint) String() string {
	if f.Hash != "" {
		short := f.Hash
		if len(short) > 12 {
			short = short[:12]
		}
		return fmt.Sprintf("%d bytes, %s", f.Size, short)
	}
	return fmt.Sprintf("%d bytes, %s", f.Size, time.Unix(f.ModTime, 0).UTC().Format(time.RFC3339))
}

// SameState reports whether two possibly absent fingerprints describe the
// same state. Two absent fingerprints are the same state.
func SameState(a, b *Fingerprint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Snapshot maps slash-separated relative paths to the fingerprint of the
// regular file found there during one scan of one side.
type Snapshot map[string]Fingerprint

// Lookup returns the fingerprint at path, or nil if the path is absent
func (s Snapshot) Lookup(path string) *Fingerprint {
	fp, ok := s[path]
	if !ok {
		return nil
	}
	return &fp
}

// Paths returns the snapshot's paths in sorted order
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TotalSize returns the sum of all file sizes in the snapshot
func (s Snapshot) TotalSize() int64 {
	var total int64
	for _, fp := range s {
		total += fp.Size
	}
	return total
}
