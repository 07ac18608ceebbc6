package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// FormatVersion is the version of the state file layout written by FileStore
const FormatVersion = 1

// stateFile is the on-disk format of one pairing's baseline
type stateFile struct {
	Version   int              `json:"version"`
	RootA     string           `json:"root_a"`
	RootB     string           `json:"root_b"`
	UpdatedAt time.Time        `json:"updated_at"`
	Entries   map[string]Entry `json:"entries"`
}

// FileStore keeps one JSON file per pairing in a state directory
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first use.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the state directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the state file path for a pairing
func (s *FileStore) Path(pairing Pairing) string {
	return filepath.Join(s.dir, pairing.Key+".json")
}

func (s *FileStore) lockPath(pairing Pairing) string {
	return filepath.Join(s.dir, pairing.Key+".lock")
}

type fileLease struct {
	lock *flock.Flock
}

func (l *fileLease) Release() error {
	return l.lock.Unlock()
}

// Acquire takes an OS-level lock on the pairing's lock file
func (s *FileStore) Acquire(ctx context.Context, pairing Pairing) (Lease, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	lock := flock.New(s.lockPath(pairing))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire pairing lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	return &fileLease{lock: lock}, nil
}

// Load reads the pairing's baseline. A missing state file is an empty baseline.
func (s *FileStore) Load(ctx context.Context, pairing Pairing) (Baseline, error) {
	state, err := s.read(pairing)
	if err != nil {
		return nil, err
	}
	return Baseline(state.Entries), nil
}

// Info returns the stored metadata of a pairing; exists is false when
// nothing has been committed yet
func (s *FileStore) Info(ctx context.Context, pairing Pairing) (updatedAt time.Time, entries int, exists bool, err error) {
	data, err := os.ReadFile(s.Path(pairing))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, 0, false, nil
		}
		return time.Time{}, 0, false, fmt.Errorf("failed to read state file: %w", err)
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return time.Time{}, 0, false, fmt.Errorf("failed to parse state file: %w", err)
	}
	return state.UpdatedAt, len(state.Entries), true, nil
}

func (s *FileStore) read(pairing Pairing) (*stateFile, error) {
	data, err := os.ReadFile(s.Path(pairing))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &stateFile{
				Version: FormatVersion,
				RootA:   pairing.RootA,
				RootB:   pairing.RootB,
				Entries: make(map[string]Entry),
			}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	if state.Version > FormatVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported version %d", state.Version, FormatVersion)
	}

	if state.Entries == nil {
		state.Entries = make(map[string]Entry)
	}

	return &state, nil
}

// Commit merges updates into the stored baseline and replaces the state
// file atomically
func (s *FileStore) Commit(ctx context.Context, pairing Pairing, updates map[string]*Entry) error {
	if len(updates) == 0 {
		return nil
	}

	state, err := s.read(pairing)
	if err != nil {
		return &CommitError{Pairing: pairing, Err: err}
	}

	state.Version = FormatVersion
	state.RootA = pairing.RootA
	state.RootB = pairing.RootB
	state.UpdatedAt = time.Now().UTC()
	state.Entries = Baseline(state.Entries).Apply(updates)

	if err := s.write(pairing, state); err != nil {
		return &CommitError{Pairing: pairing, Err: err}
	}
	return nil
}

func (s *FileStore) write(pairing Pairing, state *stateFile) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, pairing.Key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush state file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path(pairing)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize state file: %w", err)
	}

	// Persist the rename itself; not supported everywhere, so best effort.
	if dir, err := os.Open(s.dir); err == nil {
		_ = dir.Sync()
		dir.Close()
	}

	return nil
}

// Reset removes the pairing's state file
func (s *FileStore) Reset(ctx context.Context, pairing Pairing) error {
	err := os.Remove(s.Path(pairing))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}
