package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// TempMarker is part of the name of every temporary file created by Write:
// "." + target name + TempMarker + random digits
const TempMarker = ".treesync-tmp-"

// IsTempName reports whether a file name has the exact shape of a
// temporary file created by Write
func IsTempName(name string) bool {
	i := strings.LastIndex(name, TempMarker)
	if i < 2 || name[0] != '.' {
		return false
	}
	suffix := name[i+len(TempMarker):]
	if suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Local is a filesystem-based storage backend
type Local struct {
	fs       afero.Fs
	rootPath string
}

// NewLocal creates a new backend over the operating system filesystem
func NewLocal(rootPath string) (*Local, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	return NewLocalFs(afero.NewOsFs(), absPath)
}

// NewLocalFs creates a backend rooted at rootPath on an arbitrary afero
// filesystem. Tests use it with afero.NewMemMapFs.
func NewLocalFs(fsys afero.Fs, rootPath string) (*Local, error) {
	rootPath = filepath.Clean(rootPath)

	info, err := fsys.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", rootPath)
	}

	return &Local{fs: fsys, rootPath: rootPath}, nil
}

// Root returns the absolute root path
func (l *Local) Root() string {
	return l.rootPath
}

func (l *Local) fullPath(path string) string {
	return filepath.Join(l.rootPath, filepath.FromSlash(path))
}

// List returns all regular files and directories under the root
func (l *Local) List(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo

	err := afero.Walk(l.fs, l.rootPath, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p == l.rootPath {
			return nil
		}

		mode := info.Mode()
		if !mode.IsDir() && !mode.IsRegular() {
			return nil
		}
		relPath, err := filepath.Rel(l.rootPath, p)
		if err != nil {
			return err
		}

		files = append(files, FileInfo{
			Path:         p,
			Size:         info.Size(),
			ModTime:      info.ModTime(),
			IsDir:        mode.IsDir(),
			Permissions:  uint32(mode.Perm()),
			RelativePath: filepath.ToSlash(relPath),
			Temp:         !mode.IsDir() && IsTempName(info.Name()),
		})

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

// Read opens a file for reading
func (l *Local) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := l.fs.Open(l.fullPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Write streams reader into a temporary file next to the target and renames
// it into place, so readers never observe a partially written file
func (l *Local) Write(ctx context.Context, path string, reader io.Reader, size int64, metadata *FileInfo) error {
	fullPath := l.fullPath(path)
	dir := filepath.Dir(fullPath)

	if err := l.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := afero.TempFile(l.fs, dir, "."+filepath.Base(fullPath)+TempMarker+"*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = l.fs.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, reader)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}

	if written != size {
		tmp.Close()
		return fmt.Errorf("incomplete write: expected %d bytes, wrote %d", size, written)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if metadata != nil {
		if metadata.Permissions != 0 {
			if err := l.fs.Chmod(tmpPath, os.FileMode(metadata.Permissions)); err != nil {
				return fmt.Errorf("failed to set permissions: %w", err)
			}
		}

		if !metadata.ModTime.IsZero() {
			if err := l.fs.Chtimes(tmpPath, metadata.ModTime, metadata.ModTime); err != nil {
				return fmt.Errorf("failed to set modification time: %w", err)
			}
		}
	}

	if err := l.fs.Rename(tmpPath, fullPath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	committed = true

	return nil
}

// Delete removes a single file
func (l *Local) Delete(ctx context.Context, path string) error {
	err := l.fs.Remove(l.fullPath(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete: %w", err)
	}

	return nil
}

// PruneEmptyDirs removes empty parent directories of path up to the root
func (l *Local) PruneEmptyDirs(ctx context.Context, path string) error {
	dir := filepath.Dir(l.fullPath(path))

	for dir != l.rootPath && strings.HasPrefix(dir, l.rootPath+string(filepath.Separator)) {
		empty, err := afero.IsEmpty(l.fs, dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				dir = filepath.Dir(dir)
				continue
			}
			return fmt.Errorf("failed to inspect directory: %w", err)
		}
		if !empty {
			return nil
		}
		if err := l.fs.Remove(dir); err != nil {
			return fmt.Errorf("failed to remove directory: %w", err)
		}
		dir = filepath.Dir(dir)
	}

	return nil
}

// Stat returns file metadata
func (l *Local) Stat(ctx context.Context, path string) (*FileInfo, error) {
	fullPath := l.fullPath(path)

	info, err := l.fs.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &FileInfo{
		Path:         fullPath,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		IsDir:        info.IsDir(),
		Permissions:  uint32(info.Mode().Perm()),
		RelativePath: filepath.ToSlash(path),
	}, nil
}

// Close releases resources (no-op for local filesystem)
func (l *Local) Close() error {
	return nil
}
