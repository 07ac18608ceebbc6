package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/treesync/pkg/baseline"
	"github.com/sdejongh/treesync/pkg/fingerprint"
	"github.com/sdejongh/treesync/pkg/logging"
	"github.com/sdejongh/treesync/pkg/models"
	"github.com/sdejongh/treesync/pkg/output"
	"github.com/sdejongh/treesync/pkg/ratelimit"
	"github.com/sdejongh/treesync/pkg/storage"
)

// ActionResult is the outcome of one action
type ActionResult struct {
	Action  Action
	Outcome models.Outcome
	Bytes   int64
	Err     error

	// Update is the baseline entry to commit for an applied action; nil
	// is a tombstone
	Update *baseline.Entry
}

// Executor applies planned actions to both trees
type Executor struct {
	backends      map[models.Side]storage.Backend
	fingerprinter fingerprint.Fingerprinter
	workers       int
	limiter       *ratelimit.Limiter
	formatter     output.Formatter
	logger        logging.Logger
	stats         *models.Statistics

	total     int
	completed atomic.Int32

	// deletions whose parent directories are pruned once the batch is done
	pruneMu gosync.Mutex
	prune   []Action
}

// NewExecutor creates an executor for the two sides of a pairing
func NewExecutor(a, b storage.Backend, fingerprinter fingerprint.Fingerprinter, workers int, logger logging.Logger) *Executor {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Executor{
		backends: map[models.Side]storage.Backend{
			models.SideA: a,
			models.SideB: b,
		},
		fingerprinter: fingerprinter,
		workers:       workers,
		logger:        logger,
		stats:         &models.Statistics{},
	}
}

// SetLimiter caps the bandwidth used by copies
func (e *Executor) SetLimiter(limiter *ratelimit.Limiter) {
	e.limiter = limiter
}

// SetFormatter receives progress events
func (e *Executor) SetFormatter(formatter output.Formatter) {
	e.formatter = formatter
}

// SetStats makes the executor count into a report's statistics
func (e *Executor) SetStats(stats *models.Statistics) {
	e.stats = stats
}

// Execute applies every action, in parallel and independently. A failing
// action does not stop the others. Once ctx is cancelled no new action is
// started; the remaining ones are reported as skipped.
func (e *Executor) Execute(ctx context.Context, actions []Action) []ActionResult {
	results := make([]ActionResult, len(actions))
	e.total = len(actions)
	e.completed.Store(0)
	e.prune = nil

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range actions {
		if err := ctx.Err(); err != nil {
			results[i] = ActionResult{Action: actions[i], Outcome: models.OutcomeSkipped, Err: err}
			continue
		}
		g.Go(func() error {
			results[i] = e.apply(ctx, actions[i])
			return nil
		})
	}
	_ = g.Wait()

	// a copy may be creating files in a directory a deletion just emptied,
	// so directories are only pruned after every action has finished
	e.pruneEmptyDirs(context.WithoutCancel(ctx))

	return results
}

func (e *Executor) apply(ctx context.Context, a Action) ActionResult {
	result := ActionResult{Action: a}
	if err := ctx.Err(); err != nil {
		result.Outcome = models.OutcomeSkipped
		result.Err = err
		return result
	}

	e.progress(output.ProgressUpdate{Type: output.EventActionStart, Path: a.Path, Action: a.Kind, From: a.From, To: a.To})

	var err error
	switch a.Kind {
	case models.ActionCopy:
		result.Bytes, err = e.copy(ctx, a)
	case models.ActionDelete:
		err = e.delete(ctx, a)
	default:
		err = fmt.Errorf("unsupported action %q", a.Kind)
	}

	current := int(e.completed.Add(1))

	if err != nil {
		result.Outcome = models.OutcomeFailed
		result.Err = &ActionError{Path: a.Path, Kind: a.Kind, Err: err}
		e.stats.FilesErrored.Add(1)

		e.logger.Error(ctx, "Action failed", err, logging.Fields{
			"path":   a.Path,
			"action": a.Kind,
			"from":   a.From.Label(),
			"to":     a.To.Label(),
		})
		e.progress(output.ProgressUpdate{
			Type:          output.EventActionError,
			Path:          a.Path,
			Action:        a.Kind,
			From:          a.From,
			To:            a.To,
			CurrentAction: current,
			TotalActions:  e.total,
			Error:         result.Err,
		})
		return result
	}

	result.Outcome = models.OutcomeApplied
	switch a.Kind {
	case models.ActionCopy:
		result.Update = baseline.Agreed(a.Expected)
		e.stats.FilesCopied.Add(1)
		e.stats.BytesTransferred.Add(result.Bytes)
	case models.ActionDelete:
		e.stats.FilesDeleted.Add(1)
	}

	e.logger.Info(ctx, "Action applied", logging.Fields{
		"path":   a.Path,
		"action": a.Kind,
		"from":   a.From.Label(),
		"to":     a.To.Label(),
		"bytes":  result.Bytes,
	})
	e.progress(output.ProgressUpdate{
		Type:          output.EventActionComplete,
		Path:          a.Path,
		Action:        a.Kind,
		From:          a.From,
		To:            a.To,
		Bytes:         result.Bytes,
		CurrentAction: current,
		TotalActions:  e.total,
	})

	return result
}

// copy streams the source file over the target path and checks that the
// target ends up in the planned state
func (e *Executor) copy(ctx context.Context, a Action) (int64, error) {
	source := e.backends[a.From]
	target := e.backends[a.To]

	if err := e.guard(ctx, target, a); err != nil {
		return 0, err
	}

	info, err := source.Stat(ctx, a.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat source: %w", err)
	}

	rc, err := source.Read(ctx, a.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to open source: %w", err)
	}
	defer rc.Close()

	reader := ratelimit.NewReadCloser(ctx, rc, e.limiter)
	if err := target.Write(ctx, a.Path, reader, info.Size, info); err != nil {
		return 0, fmt.Errorf("failed to write target: %w", err)
	}

	written, err := fingerprint.Current(ctx, e.fingerprinter, target, a.Path)
	if err != nil {
		return info.Size, fmt.Errorf("failed to verify target: %w", err)
	}
	if !models.SameState(written, a.Expected) {
		return info.Size, fmt.Errorf("%w: written file does not match the scanned source", ErrChanged)
	}

	return info.Size, nil
}

// delete removes the target file. Its emptied parent directories are
// pruned when the batch completes.
func (e *Executor) delete(ctx context.Context, a Action) error {
	target := e.backends[a.To]

	if err := e.guard(ctx, target, a); err != nil {
		return err
	}

	if err := target.Delete(ctx, a.Path); err != nil {
		return fmt.Errorf("failed to delete target: %w", err)
	}

	e.pruneMu.Lock()
	e.prune = append(e.prune, a)
	e.pruneMu.Unlock()
	return nil
}

// pruneEmptyDirs removes the directories left empty by applied deletions
func (e *Executor) pruneEmptyDirs(ctx context.Context) {
	for _, a := range e.prune {
		if err := e.backends[a.To].PruneEmptyDirs(ctx, a.Path); err != nil {
			e.logger.Warn(ctx, "Failed to prune empty directories", logging.Fields{
				"path":  a.Path,
				"side":  a.To.Label(),
				"error": err.Error(),
			})
		}
	}
	e.prune = nil
}

// guard refuses to touch a target that changed after it was scanned
func (e *Executor) guard(ctx context.Context, target storage.Backend, a Action) error {
	current, err := fingerprint.Current(ctx, e.fingerprinter, target, a.Path)
	if err != nil {
		return fmt.Errorf("failed to check target: %w", err)
	}
	if !models.SameState(current, a.TargetBefore) {
		return fmt.Errorf("%w: side %s", ErrChanged, a.To.Label())
	}
	return nil
}

func (e *Executor) progress(update output.ProgressUpdate) {
	if e.formatter != nil {
		_ = e.formatter.Progress(update)
	}
}
