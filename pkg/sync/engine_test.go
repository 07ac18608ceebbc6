package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/treesync/pkg/baseline"
	"github.com/sdejongh/treesync/pkg/fingerprint"
	"github.com/sdejongh/treesync/pkg/models"
	"github.com/sdejongh/treesync/pkg/output"
	"github.com/sdejongh/treesync/pkg/storage"
)

// fixture is a pairing of two in-memory trees with an in-memory store
type fixture struct {
	t     *testing.T
	fs    afero.Fs
	a     storage.Backend
	b     storage.Backend
	store *baseline.MemoryStore
	clock clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/a", 0755))
	require.NoError(t, fs.MkdirAll("/b", 0755))

	a, err := storage.NewLocalFs(fs, "/a")
	require.NoError(t, err)
	b, err := storage.NewLocalFs(fs, "/b")
	require.NoError(t, err)

	return &fixture{
		t:     t,
		fs:    fs,
		a:     a,
		b:     b,
		store: baseline.NewMemoryStore(),
		clock: clockwork.NewFakeClock(),
	}
}

func (f *fixture) abs(side models.Side, path string) string {
	return filepath.Join("/"+string(side), filepath.FromSlash(path))
}

func (f *fixture) write(side models.Side, path, content string) {
	f.t.Helper()
	full := f.abs(side, path)
	require.NoError(f.t, f.fs.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(f.t, afero.WriteFile(f.fs, full, []byte(content), 0644))
}

func (f *fixture) remove(side models.Side, path string) {
	f.t.Helper()
	require.NoError(f.t, f.fs.Remove(f.abs(side, path)))
}

// content returns the file's content and whether it exists
func (f *fixture) content(side models.Side, path string) (string, bool) {
	f.t.Helper()
	data, err := afero.ReadFile(f.fs, f.abs(side, path))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (f *fixture) assertContent(side models.Side, path, want string) {
	f.t.Helper()
	got, ok := f.content(side, path)
	require.True(f.t, ok, "%s missing on side %s", path, side.Label())
	assert.Equal(f.t, want, got, "%s on side %s", path, side.Label())
}

func (f *fixture) assertAbsent(side models.Side, path string) {
	f.t.Helper()
	_, ok := f.content(side, path)
	assert.False(f.t, ok, "%s should not exist on side %s", path, side.Label())
}

func (f *fixture) operation(mode models.SyncMode) *models.SyncOperation {
	return &models.SyncOperation{
		ID:             "test-run",
		RootA:          "/a",
		RootB:          "/b",
		Mode:           mode,
		Source:         models.SideA,
		Fingerprint:    models.FingerprintHash,
		ConflictPolicy: models.ConflictSkip,
		MaxWorkers:     4,
		BufferSize:     4096,
	}
}

func (f *fixture) engine(op *models.SyncOperation) *Engine {
	f.t.Helper()
	fp, err := fingerprint.New(op.Fingerprint, op.BufferSize)
	require.NoError(f.t, err)

	engine := NewEngine(f.a, f.b, fp, f.store, nil, nil, op)
	engine.SetClock(f.clock)
	engine.SetWriter(io.Discard)
	return engine
}

func (f *fixture) runOp(op *models.SyncOperation) *models.SyncReport {
	f.t.Helper()
	report, err := f.engine(op).Run(context.Background())
	require.NoError(f.t, err)
	return report
}

func (f *fixture) run(mode models.SyncMode) *models.SyncReport {
	f.t.Helper()
	return f.runOp(f.operation(mode))
}

func (f *fixture) baseline() baseline.Baseline {
	f.t.Helper()
	base, err := f.store.Load(context.Background(), baseline.NewPairing("/a", "/b"))
	require.NoError(f.t, err)
	return base
}

// actions counts the copy and delete results of a report
func actions(report *models.SyncReport) int {
	n := 0
	for _, r := range report.Results {
		if r.Action == models.ActionCopy || r.Action == models.ActionDelete {
			n++
		}
	}
	return n
}

func result(report *models.SyncReport, path string) *models.PathResult {
	for i := range report.Results {
		if report.Results[i].Path == path {
			return &report.Results[i]
		}
	}
	return nil
}

// seed creates files on both sides and reconciles them once
func (f *fixture) seed(files map[string]string) {
	f.t.Helper()
	for path, content := range files {
		f.write(models.SideA, path, content)
	}
	report := f.run(models.ModeTwoWay)
	require.Equal(f.t, models.StatusSuccess, report.Status)
}

type resolverFunc func(models.Conflict) models.Decision

func (r resolverFunc) Resolve(ctx context.Context, c models.Conflict) (models.Decision, error) {
	return r(c), nil
}

// faultyBackend injects failures into an otherwise working backend
type faultyBackend struct {
	storage.Backend
	failWrite map[string]bool
	failList  bool
}

func (b *faultyBackend) Write(ctx context.Context, path string, r io.Reader, size int64, meta *storage.FileInfo) error {
	if b.failWrite[path] {
		return errors.New("no space left on device")
	}
	return b.Backend.Write(ctx, path, r, size, meta)
}

func (b *faultyBackend) List(ctx context.Context) ([]storage.FileInfo, error) {
	if b.failList {
		return nil, errors.New("permission denied")
	}
	return b.Backend.List(ctx)
}

func TestEngineFirstRun(t *testing.T) {
	f := newFixture(t)
	f.write(models.SideA, "docs/a.txt", "from a")
	f.write(models.SideB, "b.txt", "from b")
	f.write(models.SideA, "same.txt", "identical")
	f.write(models.SideB, "same.txt", "identical")

	report := f.run(models.ModeTwoWay)

	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Equal(t, 0, report.Status.ExitCode())
	f.assertContent(models.SideB, "docs/a.txt", "from a")
	f.assertContent(models.SideA, "b.txt", "from b")

	assert.Equal(t, models.ActionAgree, result(report, "same.txt").Action)
	assert.Equal(t, int32(2), report.Stats.FilesCopied.Load())
	assert.Equal(t, int32(1), report.Stats.FilesAgreed.Load())
	assert.Equal(t, int64(12), report.Stats.BytesTransferred.Load())
	assert.Equal(t, f.clock.Now(), report.StartTime)

	base := f.baseline()
	assert.Equal(t, []string{"b.txt", "docs/a.txt", "same.txt"}, base.Paths())
	for _, p := range base.Paths() {
		assert.True(t, models.SameState(base[p].A, base[p].B), p)
	}
}

func TestEngineIdempotent(t *testing.T) {
	for _, mode := range []models.SyncMode{models.ModeTwoWay, models.ModeMirror, models.ModeBackup} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t)
			f.write(models.SideA, "a.txt", "a")
			f.write(models.SideA, "nested/deep/c.txt", "c")
			f.write(models.SideB, "b.txt", "b")

			first := f.run(mode)
			require.Equal(t, models.StatusSuccess, first.Status)
			commits := f.store.Commits()

			second := f.run(mode)
			assert.Equal(t, models.StatusSuccess, second.Status)
			assert.Zero(t, actions(second))
			assert.Zero(t, second.Stats.FilesCopied.Load())
			assert.Equal(t, commits, f.store.Commits())
		})
	}
}

func TestEngineSingleSidedPropagation(t *testing.T) {
	f := newFixture(t)
	f.seed(map[string]string{"edit-a.txt": "v1", "edit-b.txt": "v1", "rm-a.txt": "x", "rm-b.txt": "y"})

	f.write(models.SideA, "edit-a.txt", "v2 from a")
	f.write(models.SideB, "edit-b.txt", "v2 from b")
	f.remove(models.SideA, "rm-a.txt")
	f.remove(models.SideB, "rm-b.txt")

	report := f.run(models.ModeTwoWay)
	require.Equal(t, models.StatusSuccess, report.Status)

	f.assertContent(models.SideB, "edit-a.txt", "v2 from a")
	f.assertContent(models.SideA, "edit-b.txt", "v2 from b")
	f.assertAbsent(models.SideB, "rm-a.txt")
	f.assertAbsent(models.SideA, "rm-b.txt")

	base := f.baseline()
	assert.Equal(t, []string{"edit-a.txt", "edit-b.txt"}, base.Paths())
	assert.Equal(t, int32(2), report.Stats.FilesDeleted.Load())
}

func TestEngineUpdateUpdateConflict(t *testing.T) {
	f := newFixture(t)
	f.seed(map[string]string{"a": "F0"})
	before := f.baseline().Get("a")

	f.write(models.SideA, "a", "F1")
	f.write(models.SideB, "a", "F2 differs")

	for run := 1; run <= 2; run++ {
		report := f.run(models.ModeTwoWay)

		assert.Equal(t, models.StatusConflicts, report.Status, "run %d", run)
		assert.Equal(t, 1, report.Status.ExitCode())
		require.Len(t, report.UnresolvedConflicts(), 1)
		c := report.UnresolvedConflicts()[0]
		assert.Equal(t, "a", c.Path)
		assert.Equal(t, models.ConflictModifyModify, c.Type)
		assert.Equal(t, f.clock.Now(), c.DetectedAt)

		f.assertContent(models.SideA, "a", "F1")
		f.assertContent(models.SideB, "a", "F2 differs")
		assert.Equal(t, before, f.baseline().Get("a"))
	}
}

func TestEngineDeleteUpdateConflict(t *testing.T) {
	f := newFixture(t)
	f.seed(map[string]string{"b": "orig"})

	f.write(models.SideA, "b", "updated")
	f.remove(models.SideB, "b")

	report := f.run(models.ModeTwoWay)

	assert.Equal(t, models.StatusConflicts, report.Status)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, models.ConflictModifyDelete, report.Conflicts[0].Type)
	f.assertContent(models.SideA, "b", "updated")
	f.assertAbsent(models.SideB, "b")
	assert.Equal(t, models.ActionConflict, result(report, "b").Action)
}

func TestEngineAgreementAdvancesBaseline(t *testing.T) {
	f := newFixture(t)
	f.seed(map[string]string{"f.txt": "old"})

	f.write(models.SideA, "f.txt", "converged")
	f.write(models.SideB, "f.txt", "converged")

	report := f.run(models.ModeTwoWay)
	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Equal(t, models.ActionAgree, result(report, "f.txt").Action)
	assert.Zero(t, actions(report))

	entry := f.baseline().Get("f.txt")
	require.NotNil(t, entry.A)
	assert.Equal(t, int64(len("converged")), entry.A.Size)
	assert.Equal(t, entry.A, entry.B)

	assert.Zero(t, f.run(models.ModeTwoWay).Stats.FilesAgreed.Load())
}

func TestEngineMirrorSourceDeletion(t *testing.T) {
	f := newFixture(t)
	f.seed(map[string]string{"a": "content"})

	f.remove(models.SideA, "a")
	report := f.run(models.ModeMirror)

	assert.Equal(t, models.StatusSuccess, report.Status)
	f.assertAbsent(models.SideB, "a")
	assert.True(t, f.baseline().Get("a").Empty())
}

func TestEngineBackupRetention(t *testing.T) {
	f := newFixture(t)
	f.seed(map[string]string{"keep.txt": "archived"})

	f.remove(models.SideA, "keep.txt")
	for i := 0; i < 3; i++ {
		report := f.run(models.ModeBackup)
		assert.Equal(t, models.StatusSuccess, report.Status)
		assert.Equal(t, models.ActionIgnore, result(report, "keep.txt").Action)
	}

	f.assertContent(models.SideB, "keep.txt", "archived")
	assert.NotNil(t, f.baseline().Get("keep.txt").A)
}

func TestEngineOneWayNonPropagation(t *testing.T) {
	for _, mode := range []models.SyncMode{models.ModeMirror, models.ModeBackup} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t)
			f.seed(map[string]string{"shared.txt": "v1"})

			f.write(models.SideB, "target-only.txt", "local")
			f.write(models.SideB, "shared.txt", "target edit")

			for i := 0; i < 3; i++ {
				report := f.run(mode)
				assert.Equal(t, models.StatusSuccess, report.Status)
				assert.Zero(t, actions(report))
			}

			f.assertAbsent(models.SideA, "target-only.txt")
			f.assertContent(models.SideA, "shared.txt", "v1")
		})
	}
}

func TestEngineSourceB(t *testing.T) {
	f := newFixture(t)
	f.seed(map[string]string{"x.txt": "v1"})
	f.write(models.SideB, "x.txt", "v2 on b")
	f.write(models.SideA, "a-only.txt", "stays")

	op := f.operation(models.ModeMirror)
	op.Source = models.SideB
	report := f.runOp(op)

	assert.Equal(t, "mirror(B->A)", report.Mode.String())
	f.assertContent(models.SideA, "x.txt", "v2 on b")
	f.assertAbsent(models.SideB, "a-only.txt")
}

func TestEngineModeSwitch(t *testing.T) {
	prepare := func(t *testing.T) *fixture {
		f := newFixture(t)
		f.seed(map[string]string{"x": "x1", "y": "y1"})

		f.remove(models.SideA, "x")
		f.write(models.SideB, "y", "y2 from b")

		report := f.run(models.ModeBackup)
		require.Equal(t, models.StatusSuccess, report.Status)
		f.assertContent(models.SideB, "x", "x1")
		f.assertContent(models.SideA, "y", "y1")
		return f
	}

	t.Run("TwoWayAfterBackup", func(t *testing.T) {
		f := prepare(t)

		report := f.run(models.ModeTwoWay)
		assert.Equal(t, models.StatusSuccess, report.Status)
		f.assertAbsent(models.SideB, "x")
		f.assertContent(models.SideA, "y", "y2 from b")
	})

	t.Run("MirrorAfterBackup", func(t *testing.T) {
		f := prepare(t)

		report := f.run(models.ModeMirror)
		assert.Equal(t, models.StatusSuccess, report.Status)
		f.assertAbsent(models.SideB, "x")
		f.assertContent(models.SideA, "y", "y1")
		f.assertContent(models.SideB, "y", "y2 from b")
	})
}

func TestEnginePartialFailure(t *testing.T) {
	f := newFixture(t)
	f.write(models.SideA, "bad.txt", "will fail")
	f.write(models.SideA, "good.txt", "will land")

	working := f.b
	f.b = &faultyBackend{Backend: working, failWrite: map[string]bool{"bad.txt": true}}

	report := f.run(models.ModeTwoWay)

	assert.Equal(t, models.StatusPartial, report.Status)
	assert.Equal(t, 2, report.Status.ExitCode())
	f.assertContent(models.SideB, "good.txt", "will land")
	f.assertAbsent(models.SideB, "bad.txt")

	require.Len(t, report.Errors, 1)
	assert.Equal(t, "bad.txt", report.Errors[0].FilePath)
	assert.Equal(t, models.OutcomeFailed, result(report, "bad.txt").Outcome)
	assert.Equal(t, []string{"good.txt"}, f.baseline().Paths())

	// no temporary files left behind
	entries, err := afero.ReadDir(f.fs, "/b")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	f.b = working
	retry := f.run(models.ModeTwoWay)
	assert.Equal(t, models.StatusSuccess, retry.Status)
	f.assertContent(models.SideB, "bad.txt", "will fail")
}

func TestEngineLocked(t *testing.T) {
	f := newFixture(t)
	f.write(models.SideA, "a.txt", "a")

	lease, err := f.store.Acquire(context.Background(), baseline.NewPairing("/a", "/b"))
	require.NoError(t, err)
	defer lease.Release()

	report, err := f.engine(f.operation(models.ModeTwoWay)).Run(context.Background())
	assert.ErrorIs(t, err, baseline.ErrLocked)
	assert.Equal(t, models.StatusFailed, report.Status)
	assert.Equal(t, 3, report.Status.ExitCode())
	f.assertAbsent(models.SideB, "a.txt")
}

func TestEngineScanError(t *testing.T) {
	f := newFixture(t)
	f.write(models.SideA, "a.txt", "a")
	f.b = &faultyBackend{Backend: f.b, failList: true}

	report, err := f.engine(f.operation(models.ModeTwoWay)).Run(context.Background())

	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, models.SideB, scanErr.Side)
	assert.Equal(t, models.StatusFailed, report.Status)
	assert.Zero(t, f.store.Commits())
	assert.Empty(t, f.baseline())
}

func TestEngineCancelled(t *testing.T) {
	f := newFixture(t)
	f.write(models.SideA, "a.txt", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.engine(f.operation(models.ModeTwoWay)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.StatusCancelled, report.Status)
	assert.Equal(t, 4, report.Status.ExitCode())
	f.assertAbsent(models.SideB, "a.txt")
}

func TestEngineCommitFailure(t *testing.T) {
	f := newFixture(t)
	f.write(models.SideA, "a.txt", "content")
	f.store.CommitErr = errors.New("read-only filesystem")

	report, err := f.engine(f.operation(models.ModeTwoWay)).Run(context.Background())
	var commitErr *baseline.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, models.StatusFailed, report.Status)

	// the copy landed without a baseline; the next run sees two identical
	// additions and only records the agreement
	f.assertContent(models.SideB, "a.txt", "content")
	f.store.CommitErr = nil

	retry := f.run(models.ModeTwoWay)
	assert.Equal(t, models.StatusSuccess, retry.Status)
	assert.Zero(t, actions(retry))
	assert.Equal(t, models.ActionAgree, result(retry, "a.txt").Action)
}

func TestEngineDryRun(t *testing.T) {
	f := newFixture(t)
	f.seed(map[string]string{"rm.txt": "x"})
	commits := f.store.Commits()

	f.write(models.SideA, "new.txt", "new")
	f.remove(models.SideA, "rm.txt")

	op := f.operation(models.ModeTwoWay)
	op.DryRun = true
	report := f.runOp(op)

	assert.True(t, report.DryRun)
	assert.Equal(t, models.OutcomePlanned, result(report, "new.txt").Outcome)
	assert.Equal(t, models.ActionDelete, result(report, "rm.txt").Action)
	assert.Equal(t, int64(3), result(report, "new.txt").Bytes)

	f.assertAbsent(models.SideB, "new.txt")
	f.assertContent(models.SideB, "rm.txt", "x")
	assert.Equal(t, commits, f.store.Commits())
}

func TestEngineConflictResolution(t *testing.T) {
	conflicted := func(t *testing.T) *fixture {
		f := newFixture(t)
		f.seed(map[string]string{"c.txt": "base"})
		f.write(models.SideA, "c.txt", "mine")
		f.write(models.SideB, "c.txt", "theirs")
		return f
	}

	t.Run("KeepB", func(t *testing.T) {
		f := conflicted(t)
		op := f.operation(models.ModeTwoWay)
		op.ConflictPolicy = models.ConflictKeepB

		report := f.runOp(op)
		assert.Equal(t, models.StatusSuccess, report.Status)
		require.Len(t, report.Conflicts, 1)
		assert.True(t, report.Conflicts[0].IsResolved())
		assert.Equal(t, models.DecisionKeepB, report.Conflicts[0].Decision)
		f.assertContent(models.SideA, "c.txt", "theirs")

		assert.Zero(t, actions(f.run(models.ModeTwoWay)))
	})

	t.Run("Interactive", func(t *testing.T) {
		f := conflicted(t)
		var asked []string
		engine := f.engine(f.operation(models.ModeTwoWay))
		engine.SetResolver(resolverFunc(func(c models.Conflict) models.Decision {
			asked = append(asked, c.Path)
			return models.DecisionKeepA
		}))

		report, err := engine.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"c.txt"}, asked)
		assert.Equal(t, models.StatusSuccess, report.Status)
		f.assertContent(models.SideB, "c.txt", "mine")
	})

	t.Run("OneWayKeepTargetIsSkip", func(t *testing.T) {
		f := conflicted(t)
		op := f.operation(models.ModeMirror)
		op.ConflictPolicy = models.ConflictKeepB

		report := f.runOp(op)
		assert.Equal(t, models.StatusConflicts, report.Status)
		f.assertContent(models.SideA, "c.txt", "mine")
		f.assertContent(models.SideB, "c.txt", "theirs")
	})

	t.Run("FailedResolutionStaysOpen", func(t *testing.T) {
		f := conflicted(t)
		f.b = &faultyBackend{Backend: f.b, failWrite: map[string]bool{"c.txt": true}}
		op := f.operation(models.ModeTwoWay)
		op.ConflictPolicy = models.ConflictKeepA

		report := f.runOp(op)
		assert.Equal(t, models.StatusPartial, report.Status)
		require.Len(t, report.UnresolvedConflicts(), 1)
	})
}

func TestEngineExcludes(t *testing.T) {
	f := newFixture(t)
	f.write(models.SideA, "keep.txt", "k")
	f.write(models.SideA, "scratch.tmp", "t")
	f.write(models.SideA, "build/out.o", "o")

	op := f.operation(models.ModeTwoWay)
	op.ExcludePatterns = []string{"*.tmp", "build/"}
	report := f.runOp(op)

	assert.Equal(t, models.StatusSuccess, report.Status)
	f.assertContent(models.SideB, "keep.txt", "k")
	f.assertAbsent(models.SideB, "scratch.tmp")
	f.assertAbsent(models.SideB, "build/out.o")
	assert.Equal(t, []string{"keep.txt"}, f.baseline().Paths())
}

func TestEnginePrunesEmptyDirectories(t *testing.T) {
	f := newFixture(t)
	f.seed(map[string]string{"dir/sub/f.txt": "f", "other/g.txt": "g"})

	require.NoError(t, f.fs.RemoveAll("/a/dir"))
	report := f.run(models.ModeTwoWay)
	require.Equal(t, models.StatusSuccess, report.Status)

	exists, err := afero.DirExists(f.fs, "/b/dir")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = afero.DirExists(f.fs, "/b/other")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEngineTimestampFingerprint(t *testing.T) {
	f := newFixture(t)
	f.write(models.SideA, "t.txt", "stamped")

	op := f.operation(models.ModeTwoWay)
	op.Fingerprint = models.FingerprintTimestamp

	first := f.runOp(op)
	require.Equal(t, models.StatusSuccess, first.Status)
	f.assertContent(models.SideB, "t.txt", "stamped")

	second := f.runOp(op)
	assert.Zero(t, actions(second))
}

func TestExecutorGuard(t *testing.T) {
	f := newFixture(t)
	f.write(models.SideA, "f.txt", "source")
	f.write(models.SideB, "f.txt", "appeared after the scan")

	hasher := fingerprint.NewSHA256(4096)
	expected, err := fingerprint.Current(context.Background(), hasher, f.a, "f.txt")
	require.NoError(t, err)

	executor := NewExecutor(f.a, f.b, hasher, 2, nil)
	results := executor.Execute(context.Background(), []Action{{
		Path:     "f.txt",
		Kind:     models.ActionCopy,
		From:     models.SideA,
		To:       models.SideB,
		Expected: expected,
	}})

	require.Len(t, results, 1)
	assert.Equal(t, models.OutcomeFailed, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, ErrChanged)

	var actionErr *ActionError
	require.ErrorAs(t, results[0].Err, &actionErr)
	assert.Equal(t, "f.txt", actionErr.Path)
	f.assertContent(models.SideB, "f.txt", "appeared after the scan")
}

func TestExecutorSkipsAfterCancel(t *testing.T) {
	f := newFixture(t)
	f.write(models.SideA, "f.txt", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := NewExecutor(f.a, f.b, fingerprint.NewSHA256(4096), 1, nil)
	results := executor.Execute(ctx, []Action{{Path: "f.txt", Kind: models.ActionCopy, From: models.SideA, To: models.SideB}})

	require.Len(t, results, 1)
	assert.Equal(t, models.OutcomeSkipped, results[0].Outcome)
	f.assertAbsent(models.SideB, "f.txt")
}

func TestEngineHumanOutputWithParallelWorkers(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 64; i++ {
		f.write(models.SideA, fmt.Sprintf("dir%d/file%02d.txt", i%4, i), fmt.Sprintf("content %d", i))
	}

	op := f.operation(models.ModeTwoWay)
	op.MaxWorkers = 4
	fp, err := fingerprint.New(op.Fingerprint, op.BufferSize)
	require.NoError(t, err)

	var out bytes.Buffer
	engine := NewEngine(f.a, f.b, fp, f.store, output.NewHumanFormatter(), nil, op)
	engine.SetClock(f.clock)
	engine.SetWriter(&out)

	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, report.Status)

	done := 0
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.Contains(line, "✓") {
			done++
			assert.Regexp(t, `^\[\d+/64\] ✓ copy A->B dir\d/file\d{2}\.txt \(`, line)
		}
	}
	assert.Equal(t, 64, done)
}

// orderedBackend records the writes and prunes reaching a backend. Writes
// to blockPath wait until a deletion has been applied.
type orderedBackend struct {
	storage.Backend
	blockPath string
	deleted   chan struct{}

	mu     gosync.Mutex
	events []string
}

func (b *orderedBackend) record(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *orderedBackend) Write(ctx context.Context, path string, r io.Reader, size int64, meta *storage.FileInfo) error {
	if path == b.blockPath {
		select {
		case <-b.deleted:
		case <-time.After(5 * time.Second):
			return errors.New("deletion never happened")
		}
	}
	err := b.Backend.Write(ctx, path, r, size, meta)
	b.record("write " + path)
	return err
}

func (b *orderedBackend) Delete(ctx context.Context, path string) error {
	err := b.Backend.Delete(ctx, path)
	b.record("delete " + path)
	close(b.deleted)
	return err
}

func (b *orderedBackend) PruneEmptyDirs(ctx context.Context, path string) error {
	b.record("prune " + path)
	return b.Backend.PruneEmptyDirs(ctx, path)
}

func TestExecutorPrunesAfterAllActions(t *testing.T) {
	f := newFixture(t)
	f.write(models.SideA, "shared/new.txt", "fresh")
	f.write(models.SideB, "shared/old.txt", "stale")

	ctx := context.Background()
	hasher := fingerprint.NewSHA256(4096)
	expected, err := fingerprint.Current(ctx, hasher, f.a, "shared/new.txt")
	require.NoError(t, err)
	old, err := fingerprint.Current(ctx, hasher, f.b, "shared/old.txt")
	require.NoError(t, err)

	target := &orderedBackend{Backend: f.b, blockPath: "shared/new.txt", deleted: make(chan struct{})}
	executor := NewExecutor(f.a, target, hasher, 2, nil)
	results := executor.Execute(ctx, []Action{
		{Path: "shared/new.txt", Kind: models.ActionCopy, From: models.SideA, To: models.SideB, Expected: expected},
		{Path: "shared/old.txt", Kind: models.ActionDelete, From: models.SideA, To: models.SideB, TargetBefore: old},
	})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, models.OutcomeApplied, r.Outcome, r.Action.Path)
	}
	assert.Equal(t, []string{"delete shared/old.txt", "write shared/new.txt", "prune shared/old.txt"}, target.events)
	f.assertContent(models.SideB, "shared/new.txt", "fresh")
	f.assertAbsent(models.SideB, "shared/old.txt")
}

func TestEngineSkipsLeftoverTemporaryFiles(t *testing.T) {
	f := newFixture(t)
	leftover := ".report.pdf" + storage.TempMarker + "482910374"
	lookalike := "report" + storage.TempMarker + "notes.txt"
	f.write(models.SideA, leftover, "half written")
	f.write(models.SideA, lookalike, "a user file")

	report := f.run(models.ModeTwoWay)

	assert.Equal(t, models.StatusSuccess, report.Status)
	f.assertContent(models.SideB, lookalike, "a user file")
	f.assertAbsent(models.SideB, leftover)
	assert.Equal(t, []string{lookalike}, f.baseline().Paths())
}
