// Package fingerprint computes the comparable file states the reconciliation
// engine uses to decide whether a file changed since the last run.
package fingerprint

import (
	"context"
	"fmt"
	"io"

	"github.com/sdejongh/treesync/pkg/models"
	"github.com/sdejongh/treesync/pkg/storage"
)

// ReaderWrapper wraps a reader before it is consumed (e.g. for rate limiting)
type ReaderWrapper func(io.ReadCloser) io.ReadCloser

// Fingerprinter computes the fingerprint of one file of a backend
type Fingerprinter interface {
	// Fingerprint returns the state of the file described by info
	Fingerprint(ctx context.Context, backend storage.Backend, info storage.FileInfo) (models.Fingerprint, error)

	// Name returns the name of the fingerprint method
	Name() string
}

// RateLimited is implemented by fingerprinters that read file content
type RateLimited interface {
	SetReaderWrapper(wrapper ReaderWrapper)
}

// New returns the fingerprinter for a configured method
func New(method models.FingerprintMethod, bufferSize int) (Fingerprinter, error) {
	switch method {
	case models.FingerprintHash:
		return NewSHA256(bufferSize), nil
	case models.FingerprintMD5:
		return NewMD5(bufferSize), nil
	case models.FingerprintTimestamp:
		return NewTimestamp(), nil
	default:
		return nil, fmt.Errorf("unsupported fingerprint method: %s (use: hash, md5, timestamp)", method)
	}
}

// Current stats path on backend and fingerprints it, returning nil when the
// path does not exist as a regular file
func Current(ctx context.Context, f Fingerprinter, backend storage.Backend, path string) (*models.Fingerprint, error) {
	info, err := backend.Stat(ctx, path)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if info.IsDir {
		return nil, nil
	}

	fp, err := f.Fingerprint(ctx, backend, *info)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &fp, nil
}
