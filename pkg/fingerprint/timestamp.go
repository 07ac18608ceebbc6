package fingerprint

import (
	"context"

	"github.com/sdejongh/treesync/pkg/models"
	"github.com/sdejongh/treesync/pkg/storage"
)

// Timestamp fingerprints files by size and modification time, truncated to
// whole seconds. It never reads file content.
type Timestamp struct{}

// NewTimestamp creates a new timestamp fingerprinter
func NewTimestamp() *Timestamp {
	return &Timestamp{}
}

// Fingerprint returns size and mtime from the listed metadata
func (t *Timestamp) Fingerprint(ctx context.Context, backend storage.Backend, info storage.FileInfo) (models.Fingerprint, error) {
	return models.Fingerprint{
		Size:    info.Size,
		ModTime: info.ModTime.Unix(),
	}, nil
}

// Name returns the fingerprint method name
func (t *Timestamp) Name() string {
	return "timestamp"
}
