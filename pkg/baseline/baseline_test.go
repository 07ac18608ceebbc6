package baseline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/treesync/pkg/models"
)

func fp(size int64, hash string) *models.Fingerprint {
	return &models.Fingerprint{Size: size, Hash: hash}
}

func TestNewPairing(t *testing.T) {
	p1 := NewPairing("/data/a", "/data/b")
	p2 := NewPairing("/data/a/", "/data/b")
	p3 := NewPairing("/data/b", "/data/a")

	assert.Equal(t, p1.Key, p2.Key)
	assert.NotEqual(t, p1.Key, p3.Key)
	assert.Len(t, p1.Key, 16)
	assert.Equal(t, "/data/a", p2.RootA)
}

func TestBaselineApply(t *testing.T) {
	base := Baseline{
		"keep.txt":   {A: fp(1, "k"), B: fp(1, "k")},
		"remove.txt": {A: fp(2, "r"), B: fp(2, "r")},
	}

	merged := base.Apply(map[string]*Entry{
		"remove.txt": nil,
		"new.txt":    Agreed(fp(3, "n")),
		"empty.txt":  {},
	})

	assert.Equal(t, []string{"keep.txt", "new.txt"}, merged.Paths())
	assert.Equal(t, "n", merged.Get("new.txt").B.Hash)
	assert.True(t, merged.Get("missing").Empty())

	// original untouched
	assert.Len(t, base, 2)
}

func TestAgreed(t *testing.T) {
	assert.Nil(t, Agreed(nil))

	src := fp(4, "x")
	e := Agreed(src)
	require.NotNil(t, e)
	assert.Equal(t, *src, *e.A)
	assert.Equal(t, *src, *e.B)

	e.A.Hash = "changed"
	assert.Equal(t, "x", e.B.Hash)
	assert.Equal(t, "x", src.Hash)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")
	store := NewFileStore(dir)
	pairing := NewPairing("/src", "/dst")

	t.Run("EmptyOnFirstRun", func(t *testing.T) {
		base, err := store.Load(ctx, pairing)
		require.NoError(t, err)
		assert.Empty(t, base)

		_, _, exists, err := store.Info(ctx, pairing)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("CommitAndReload", func(t *testing.T) {
		err := store.Commit(ctx, pairing, map[string]*Entry{
			"a.txt":     Agreed(fp(1, "a")),
			"dir/b.txt": {A: fp(2, "b"), B: nil},
		})
		require.NoError(t, err)

		reloaded := NewFileStore(dir)
		base, err := reloaded.Load(ctx, pairing)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "dir/b.txt"}, base.Paths())
		assert.Nil(t, base.Get("dir/b.txt").B)

		_, n, exists, err := reloaded.Info(ctx, pairing)
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, 2, n)
	})

	t.Run("TombstoneRemovesEntry", func(t *testing.T) {
		require.NoError(t, store.Commit(ctx, pairing, map[string]*Entry{"a.txt": nil}))

		base, err := store.Load(ctx, pairing)
		require.NoError(t, err)
		assert.Equal(t, []string{"dir/b.txt"}, base.Paths())
	})

	t.Run("NoTemporaryFilesLeft", func(t *testing.T) {
		matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("PairingsAreIndependent", func(t *testing.T) {
		other := NewPairing("/dst", "/src")
		base, err := store.Load(ctx, other)
		require.NoError(t, err)
		assert.Empty(t, base)
	})

	t.Run("Reset", func(t *testing.T) {
		require.NoError(t, store.Reset(ctx, pairing))
		require.NoError(t, store.Reset(ctx, pairing))

		base, err := store.Load(ctx, pairing)
		require.NoError(t, err)
		assert.Empty(t, base)
	})

	t.Run("CorruptFile", func(t *testing.T) {
		require.NoError(t, os.WriteFile(store.Path(pairing), []byte("{not json"), 0600))
		_, err := store.Load(ctx, pairing)
		assert.Error(t, err)

		err = store.Commit(ctx, pairing, map[string]*Entry{"x": Agreed(fp(1, "x"))})
		var commitErr *CommitError
		assert.True(t, errors.As(err, &commitErr))
	})

	t.Run("NewerVersionRejected", func(t *testing.T) {
		require.NoError(t, os.WriteFile(store.Path(pairing), []byte(`{"version": 99, "entries": {}}`), 0600))
		_, err := store.Load(ctx, pairing)
		assert.Error(t, err)
	})
}

func TestFileStoreAcquire(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	pairing := NewPairing("/src", "/dst")

	lease, err := store.Acquire(ctx, pairing)
	require.NoError(t, err)

	// flock locks are per file handle, so a second handle in the same
	// process is refused
	_, err = NewFileStore(store.Dir()).Acquire(ctx, pairing)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := store.Acquire(ctx, NewPairing("/x", "/y"))
	require.NoError(t, err)
	require.NoError(t, other.Release())

	require.NoError(t, lease.Release())

	again, err := store.Acquire(ctx, pairing)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pairing := NewPairing("/a", "/b")

	lease, err := store.Acquire(ctx, pairing)
	require.NoError(t, err)
	_, err = store.Acquire(ctx, pairing)
	assert.ErrorIs(t, err, ErrLocked)
	require.NoError(t, lease.Release())
	require.NoError(t, lease.Release())

	require.NoError(t, store.Commit(ctx, pairing, map[string]*Entry{"f": Agreed(fp(1, "f"))}))
	require.NoError(t, store.Commit(ctx, pairing, nil))
	assert.Equal(t, 1, store.Commits())

	base, err := store.Load(ctx, pairing)
	require.NoError(t, err)
	base["g"] = Entry{A: fp(1, "g")}

	reloaded, err := store.Load(ctx, pairing)
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, reloaded.Paths())

	store.CommitErr = errors.New("disk full")
	err = store.Commit(ctx, pairing, map[string]*Entry{"f": nil})
	assert.Error(t, err)
	reloaded, _ = store.Load(ctx, pairing)
	assert.Equal(t, []string{"f"}, reloaded.Paths())

	require.NoError(t, store.Reset(ctx, pairing))
	reloaded, _ = store.Load(ctx, pairing)
	assert.Empty(t, reloaded)
}
