package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/treesync/pkg/baseline"
	"github.com/sdejongh/treesync/pkg/fingerprint"
	"github.com/sdejongh/treesync/pkg/logging"
	"github.com/sdejongh/treesync/pkg/models"
	"github.com/sdejongh/treesync/pkg/output"
	"github.com/sdejongh/treesync/pkg/ratelimit"
	"github.com/sdejongh/treesync/pkg/storage"
)

// Engine orchestrates one reconciliation run of a pairing
type Engine struct {
	a             storage.Backend
	b             storage.Backend
	fingerprinter fingerprint.Fingerprinter
	store         baseline.Store
	formatter     output.Formatter
	logger        logging.Logger
	operation     *models.SyncOperation

	resolver Resolver
	clock    clockwork.Clock
	writer   io.Writer
}

// NewEngine creates a new reconciliation engine
func NewEngine(
	a, b storage.Backend,
	fingerprinter fingerprint.Fingerprinter,
	store baseline.Store,
	formatter output.Formatter,
	logger logging.Logger,
	operation *models.SyncOperation,
) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		a:             a,
		b:             b,
		fingerprinter: fingerprinter,
		store:         store,
		formatter:     formatter,
		logger:        logger,
		operation:     operation,
		resolver:      NewResolver(operation.ConflictPolicy),
		clock:         clockwork.NewRealClock(),
		writer:        os.Stdout,
	}
}

// SetResolver replaces the resolver derived from the conflict policy
func (e *Engine) SetResolver(resolver Resolver) {
	e.resolver = resolver
}

// SetClock sets the clock used for report timing
func (e *Engine) SetClock(clock clockwork.Clock) {
	e.clock = clock
}

// SetWriter sets where the formatter writes
func (e *Engine) SetWriter(w io.Writer) {
	e.writer = w
}

// Run executes one reconciliation: lease, scan both sides, classify, plan,
// resolve conflicts, apply actions and commit the baseline once. A non-nil
// error means the run was aborted; partial failures and conflicts are
// reported through the report's status instead.
func (e *Engine) Run(ctx context.Context) (*models.SyncReport, error) {
	mode := e.operation.EffectiveMode()
	report := &models.SyncReport{
		OperationID: e.operation.ID,
		RootA:       e.a.Root(),
		RootB:       e.b.Root(),
		Mode:        mode,
		DryRun:      e.operation.DryRun,
		StartTime:   e.clock.Now(),
		Status:      models.StatusSuccess,
	}

	pairing := baseline.NewPairing(e.a.Root(), e.b.Root())
	logger := e.logger.WithFields(logging.Fields{
		"operation_id": e.operation.ID,
		"pairing":      pairing.Key,
	})
	logger.Info(ctx, "Run started", logging.Fields{
		"root_a":  pairing.RootA,
		"root_b":  pairing.RootB,
		"mode":    mode.String(),
		"dry_run": e.operation.DryRun,
	})

	lease, err := e.store.Acquire(ctx, pairing)
	if err != nil {
		return e.abort(ctx, report, fmt.Errorf("failed to acquire pairing %s: %w", pairing.Key, err))
	}
	defer func() {
		if err := lease.Release(); err != nil {
			logger.Warn(ctx, "Failed to release pairing lease", logging.Fields{"error": err.Error()})
		}
	}()

	base, err := e.store.Load(ctx, pairing)
	if err != nil {
		return e.abort(ctx, report, fmt.Errorf("failed to load baseline: %w", err))
	}

	limiter := ratelimit.NewLimiter(e.operation.BandwidthLimit)
	if limiter != nil {
		logger.Debug(ctx, "Bandwidth limited", logging.Fields{"bytes_per_second": limiter.BytesPerSecond()})
		if rl, ok := e.fingerprinter.(fingerprint.RateLimited); ok {
			rl.SetReaderWrapper(func(rc io.ReadCloser) io.ReadCloser {
				return ratelimit.NewReadCloser(ctx, rc, limiter)
			})
		}
	}

	snapA, snapB, err := e.scan(ctx)
	if err != nil {
		return e.abort(ctx, report, err)
	}
	report.Stats.FilesScannedA.Store(int32(len(snapA)))
	report.Stats.FilesScannedB.Store(int32(len(snapB)))

	states := Classify(base, snapA, snapB)
	plan := NewPlan(mode, states)
	report.Stats.PathsTotal.Store(int32(len(states)))
	report.Stats.FilesUnchanged.Store(int32(plan.Unchanged))

	logger.Info(ctx, "Plan ready", logging.Fields{
		"files_a":    len(snapA),
		"files_b":    len(snapB),
		"actions":    len(plan.Actions),
		"agreements": len(plan.Agreements),
		"conflicts":  len(plan.Conflicts),
		"ignored":    len(plan.Ignored),
	})

	actions, resolved := e.resolve(ctx, logger, mode, plan)
	updates := make(map[string]*baseline.Entry)

	for _, ag := range plan.Agreements {
		outcome := models.OutcomeApplied
		if e.operation.DryRun {
			outcome = models.OutcomePlanned
		} else {
			updates[ag.Path] = baseline.Agreed(ag.State)
		}
		report.Stats.FilesAgreed.Add(1)
		report.Results = append(report.Results, models.PathResult{
			Path:    ag.Path,
			Action:  models.ActionAgree,
			Outcome: outcome,
			Reason:  "both sides changed to the same state",
		})
	}

	for _, ig := range plan.Ignored {
		report.Stats.FilesIgnored.Add(1)
		report.Results = append(report.Results, models.PathResult{
			Path:    ig.Path,
			Action:  models.ActionIgnore,
			From:    ig.Side,
			Outcome: models.OutcomeSkipped,
			Reason:  ig.Reason,
		})
	}

	if e.operation.DryRun {
		e.start(0, 0)
		for _, a := range actions {
			report.Results = append(report.Results, actionResult(a, models.OutcomePlanned, nil, expectedBytes(a)))
		}
	} else {
		e.start(len(actions), transferSize(actions))

		executor := NewExecutor(e.a, e.b, e.fingerprinter, e.operation.MaxWorkers, logger)
		executor.SetLimiter(limiter)
		executor.SetFormatter(e.formatter)
		executor.SetStats(&report.Stats)

		for _, r := range executor.Execute(ctx, actions) {
			report.Results = append(report.Results, actionResult(r.Action, r.Outcome, r.Err, r.Bytes))

			switch r.Outcome {
			case models.OutcomeApplied:
				updates[r.Action.Path] = r.Update
			case models.OutcomeFailed:
				report.Errors = append(report.Errors, models.SyncError{
					FilePath:  r.Action.Path,
					Operation: r.Action.Kind,
					Error:     r.Err.Error(),
					Timestamp: e.clock.Now(),
				})
			}

			// a resolution that did not land leaves its conflict open
			if r.Outcome != models.OutcomeApplied {
				if i, ok := resolved[r.Action.Path]; ok {
					plan.Conflicts[i].ResolvedAt = nil
				}
			}
		}
	}

	report.Conflicts = plan.Conflicts
	for _, c := range report.UnresolvedConflicts() {
		report.Stats.Conflicts.Add(1)
		e.progress(output.ProgressUpdate{Type: output.EventConflict, Path: c.Path})
		report.Results = append(report.Results, models.PathResult{
			Path:    c.Path,
			Action:  models.ActionConflict,
			Outcome: models.OutcomeSkipped,
			Reason:  string(c.Type),
		})
		logger.Warn(ctx, "Conflict left unresolved", logging.Fields{
			"path":     c.Path,
			"type":     c.Type,
			"status_a": c.StatusA,
			"status_b": c.StatusB,
		})
	}

	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Path < report.Results[j].Path
	})

	if !e.operation.DryRun && len(updates) > 0 {
		// applied changes are committed even when the run was interrupted
		if err := e.store.Commit(context.WithoutCancel(ctx), pairing, updates); err != nil {
			report.Status = models.StatusFailed
			e.reportError(err)
			e.finish(report)
			logger.Error(ctx, "Baseline commit failed", err, nil)
			return report, err
		}
		logger.Debug(ctx, "Baseline committed", logging.Fields{"entries": len(updates)})
	}

	report.Status = e.status(ctx, report)
	e.finish(report)

	logger.Info(ctx, "Run finished", logging.Fields{
		"status":   report.Status,
		"copied":   report.Stats.FilesCopied.Load(),
		"deleted":  report.Stats.FilesDeleted.Load(),
		"errored":  report.Stats.FilesErrored.Load(),
		"duration": report.Duration.String(),
	})

	return report, nil
}

// scan walks both sides in parallel. Both snapshots are taken once and used
// for the whole run.
func (e *Engine) scan(ctx context.Context) (models.Snapshot, models.Snapshot, error) {
	excluder := NewExcluder(e.operation.ExcludePatterns)
	scanA := NewScanner(models.SideA, e.a, e.fingerprinter, excluder, e.operation.MaxWorkers, e.logger)
	scanB := NewScanner(models.SideB, e.b, e.fingerprinter, excluder, e.operation.MaxWorkers, e.logger)

	var snapA, snapB models.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapA, err = scanA.Scan(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snapB, err = scanB.Scan(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return snapA, snapB, nil
}

// resolve stamps conflicts and asks the resolver about each of them. It
// returns the plan's actions followed by the resolution actions, and the
// index of each resolved conflict by path.
func (e *Engine) resolve(ctx context.Context, logger logging.Logger, mode models.Mode, plan *Plan) ([]Action, map[string]int) {
	actions := append([]Action(nil), plan.Actions...)
	resolved := make(map[string]int)
	now := e.clock.Now()

	for i := range plan.Conflicts {
		c := &plan.Conflicts[i]
		c.DetectedAt = now

		if ctx.Err() != nil {
			continue
		}

		decision, err := e.resolver.Resolve(ctx, *c)
		if err != nil {
			logger.Warn(ctx, "Conflict resolution failed, skipping", logging.Fields{"path": c.Path, "error": err.Error()})
			continue
		}

		action, ok := ResolutionAction(mode, *c, decision)
		if !ok {
			c.Decision = models.DecisionSkip
			continue
		}
		c.Resolve(decision, now)
		resolved[c.Path] = i
		actions = append(actions, action)
	}

	return actions, resolved
}

func (e *Engine) status(ctx context.Context, report *models.SyncReport) models.SyncStatus {
	switch {
	case ctx.Err() != nil:
		return models.StatusCancelled
	case report.Stats.FilesErrored.Load() > 0:
		return models.StatusPartial
	case len(report.UnresolvedConflicts()) > 0:
		return models.StatusConflicts
	default:
		return models.StatusSuccess
	}
}

// abort ends a run that failed before any mutation
func (e *Engine) abort(ctx context.Context, report *models.SyncReport, err error) (*models.SyncReport, error) {
	report.Status = models.StatusFailed
	if ctx.Err() != nil {
		report.Status = models.StatusCancelled
	}
	report.Errors = append(report.Errors, models.SyncError{
		Error:     err.Error(),
		Timestamp: e.clock.Now(),
	})
	e.logger.Error(ctx, "Run aborted", err, logging.Fields{"operation_id": e.operation.ID})
	e.start(0, 0)
	e.reportError(err)
	e.finish(report)
	return report, err
}

func (e *Engine) start(totalActions int, totalBytes int64) {
	if e.formatter != nil {
		_ = e.formatter.Start(e.writer, totalActions, totalBytes, e.operation.MaxWorkers)
	}
}

func (e *Engine) progress(update output.ProgressUpdate) {
	if e.formatter != nil {
		_ = e.formatter.Progress(update)
	}
}

func (e *Engine) reportError(err error) {
	if e.formatter != nil {
		_ = e.formatter.Error(err)
	}
}

func (e *Engine) finish(report *models.SyncReport) {
	report.EndTime = e.clock.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	if e.formatter != nil {
		_ = e.formatter.Complete(report)
	}
}

func actionResult(a Action, outcome models.Outcome, err error, bytes int64) models.PathResult {
	r := models.PathResult{
		Path:    a.Path,
		Action:  a.Kind,
		From:    a.From,
		To:      a.To,
		Outcome: outcome,
		Reason:  a.Reason,
		Bytes:   bytes,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func expectedBytes(a Action) int64 {
	if a.Kind == models.ActionCopy && a.Expected != nil {
		return a.Expected.Size
	}
	return 0
}

func transferSize(actions []Action) int64 {
	var total int64
	for _, a := range actions {
		total += expectedBytes(a)
	}
	return total
}
