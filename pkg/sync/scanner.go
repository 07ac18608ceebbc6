package sync

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/treesync/pkg/fingerprint"
	"github.com/sdejongh/treesync/pkg/logging"
	"github.com/sdejongh/treesync/pkg/models"
	"github.com/sdejongh/treesync/pkg/storage"
)

// Scanner walks one side's tree and fingerprints every regular file
type Scanner struct {
	side          models.Side
	backend       storage.Backend
	fingerprinter fingerprint.Fingerprinter
	excluder      *Excluder
	workers       int
	logger        logging.Logger
}

// NewScanner creates a scanner for one side
func NewScanner(
	side models.Side,
	backend storage.Backend,
	fingerprinter fingerprint.Fingerprinter,
	excluder *Excluder,
	workers int,
	logger logging.Logger,
) *Scanner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scanner{
		side:          side,
		backend:       backend,
		fingerprinter: fingerprinter,
		excluder:      excluder,
		workers:       workers,
		logger:        logger,
	}
}

// Scan returns the snapshot of the side. It never writes to the tree. Any
// failure, including a single unreadable file, fails the whole scan.
func (s *Scanner) Scan(ctx context.Context) (models.Snapshot, error) {
	entries, err := s.backend.List(ctx)
	if err != nil {
		return nil, s.wrap(err)
	}

	files := make([]storage.FileInfo, 0, len(entries))
	excluded := 0
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		if entry.Temp {
			s.logger.Warn(ctx, "Skipping leftover temporary file", logging.Fields{
				"side": s.side.Label(),
				"path": entry.RelativePath,
			})
			continue
		}
		if s.excluder.Excluded(entry.RelativePath) {
			excluded++
			continue
		}
		files = append(files, entry)
	}

	fingerprints := make([]models.Fingerprint, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range files {
		g.Go(func() error {
			fp, err := s.fingerprinter.Fingerprint(gctx, s.backend, files[i])
			if err != nil {
				return fmt.Errorf("failed to fingerprint %s: %w", files[i].RelativePath, err)
			}
			fingerprints[i] = fp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.wrap(err)
	}

	snapshot := make(models.Snapshot, len(files))
	for i, f := range files {
		snapshot[f.RelativePath] = fingerprints[i]
	}

	s.logger.Debug(ctx, "Scan complete", logging.Fields{
		"side":     s.side.Label(),
		"root":     s.backend.Root(),
		"files":    len(snapshot),
		"bytes":    snapshot.TotalSize(),
		"excluded": excluded,
	})

	return snapshot, nil
}

func (s *Scanner) wrap(err error) error {
	return &ScanError{Side: s.side, Root: s.backend.Root(), Err: err}
}
