package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo represents metadata about a file
type FileInfo struct {
	Path         string
	Size         int64
	ModTime      time.Time
	IsDir        bool
	Permissions  uint32
	RelativePath string // slash separated, relative to the backend root

	// Temp marks a temporary file left behind by an interrupted Write
	Temp bool
}

// Backend defines the interface for storage operations on one tree.
// All paths are slash-separated and relative to the backend root.
type Backend interface {
	// Root returns the absolute root path of the tree
	Root() string

	// List returns every regular file and directory under the root.
	// Symlinks and devices are skipped; leftover temporary files are
	// listed with Temp set.
	List(ctx context.Context) ([]FileInfo, error)

	// Read opens a file for reading
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write atomically creates or replaces a file with the given content.
	// Parent directories are created as needed. If metadata is provided,
	// its modification time and permissions are applied before the file
	// becomes visible at path.
	Write(ctx context.Context, path string, reader io.Reader, size int64, metadata *FileInfo) error

	// Delete removes a single file. Deleting an absent file is not an error.
	Delete(ctx context.Context, path string) error

	// PruneEmptyDirs removes the now-empty parent directories of path,
	// stopping at the first non-empty one or at the root
	PruneEmptyDirs(ctx context.Context, path string) error

	// Stat returns file metadata; the error satisfies errors.Is(err, fs.ErrNotExist)
	// when the path is absent
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// Close releases any resources held by the backend
	Close() error
}
