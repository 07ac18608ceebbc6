package baseline

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. It backs tests and dry runs that
// must not touch the real state directory.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[string]Baseline
	held    map[string]bool
	commits int

	// CommitErr, when set, makes every Commit fail without changing state
	CommitErr error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Baseline),
		held: make(map[string]bool),
	}
}

type memoryLease struct {
	store *MemoryStore
	key   string
	once  sync.Once
}

func (l *memoryLease) Release() error {
	l.once.Do(func() {
		l.store.mu.Lock()
		delete(l.store.held, l.key)
		l.store.mu.Unlock()
	})
	return nil
}

// Acquire marks the pairing as held
func (s *MemoryStore) Acquire(ctx context.Context, pairing Pairing) (Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held[pairing.Key] {
		return nil, ErrLocked
	}
	s.held[pairing.Key] = true
	return &memoryLease{store: s, key: pairing.Key}, nil
}

// Load returns a copy of the pairing's baseline
func (s *MemoryStore) Load(ctx context.Context, pairing Pairing) (Baseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.data[pairing.Key].Apply(nil), nil
}

// Commit applies updates atomically
func (s *MemoryStore) Commit(ctx context.Context, pairing Pairing, updates map[string]*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CommitErr != nil {
		return &CommitError{Pairing: pairing, Err: s.CommitErr}
	}
	if len(updates) == 0 {
		return nil
	}

	s.data[pairing.Key] = s.data[pairing.Key].Apply(updates)
	s.commits++
	return nil
}

// Reset forgets the pairing's baseline
func (s *MemoryStore) Reset(ctx context.Context, pairing Pairing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, pairing.Key)
	return nil
}

// Commits returns how many non-empty commits were applied
func (s *MemoryStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commits
}
