package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sdejongh/treesync/pkg/baseline"
	"github.com/sdejongh/treesync/pkg/config"
	"github.com/sdejongh/treesync/pkg/fingerprint"
	"github.com/sdejongh/treesync/pkg/logging"
	"github.com/sdejongh/treesync/pkg/models"
	"github.com/sdejongh/treesync/pkg/output"
	"github.com/sdejongh/treesync/pkg/storage"
	"github.com/sdejongh/treesync/pkg/sync"
)

// ExitError carries the process exit code of a run. Err is nil when the run
// completed and the code only reflects its status.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewSyncCommand creates the sync command
func NewSyncCommand() *cobra.Command {
	flags := &SyncFlags{}

	cmd := &cobra.Command{
		Use:   "sync <dir-a> <dir-b>",
		Short: "Reconcile two directory trees",
		Long: `Reconcile two directory trees against the baseline recorded by the
previous run. In twoway mode changes flow in both directions; mirror and
backup propagate the source side only (backup never deletes). Paths changed
on both sides to different states are reported as conflicts.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args, flags, flags.DryRun)
		},
	}

	addSyncFlags(cmd, flags)
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "plan only, change nothing")

	return cmd
}

func runSync(cmd *cobra.Command, args []string, flags *SyncFlags, dryRun bool) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := applyFlagsToConfig(cmd, cfg, flags); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	rootA, rootB, err := resolveRoots(args)
	if err != nil {
		return err
	}

	operation, err := createSyncOperation(cfg, rootA, rootB, dryRun)
	if err != nil {
		return fmt.Errorf("failed to create sync operation: %w", err)
	}

	a, err := storage.NewLocal(rootA)
	if err != nil {
		return fmt.Errorf("failed to open side A: %w", err)
	}
	defer a.Close()

	b, err := storage.NewLocal(rootB)
	if err != nil {
		return fmt.Errorf("failed to open side B: %w", err)
	}
	defer b.Close()

	fingerprinter, err := fingerprint.New(operation.Fingerprint, operation.BufferSize)
	if err != nil {
		return err
	}

	stateDir, err := cfg.StateDir()
	if err != nil {
		return err
	}
	store := baseline.NewFileStore(stateDir)

	logger, err := createLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	out := cmd.OutOrStdout()
	engine := sync.NewEngine(a, b, fingerprinter, store, createFormatter(cfg, out), logger, operation)
	engine.SetWriter(out)
	if operation.ConflictPolicy == models.ConflictAsk {
		engine.SetResolver(newAskResolver(cmd.InOrStdin(), cmd.ErrOrStderr()))
	}

	report, err := engine.Run(ctx)
	if err != nil {
		code := models.StatusFailed.ExitCode()
		if report != nil {
			code = report.Status.ExitCode()
		}
		return &ExitError{Code: code, Err: fmt.Errorf("sync failed: %w", err)}
	}

	if flags.DiffReport != "" {
		if err := output.WriteDifferencesReport(report, flags.DiffReport, flags.DiffFormat); err != nil {
			return fmt.Errorf("failed to write differences report: %w", err)
		}
	}

	if code := report.Status.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// createFormatter picks the output formatter. Quiet mode has none.
func createFormatter(cfg *config.Config, out io.Writer) output.Formatter {
	switch {
	case cfg.Output.Format == "json":
		return output.NewJSONFormatter()
	case cfg.Output.Quiet:
		return nil
	case cfg.Output.Progress && output.IsTerminal(out):
		return output.NewProgressFormatter()
	default:
		return output.NewHumanFormatter()
	}
}

// createLogger creates a logger based on configuration
func createLogger(cfg *config.Config) (logging.Logger, error) {
	file, err := cfg.LogFile()
	if err != nil {
		return nil, err
	}

	return logging.New(cfg.Logging.Enabled, logging.FileLoggerConfig{
		Path:       file,
		Format:     logging.Format(cfg.Logging.Format),
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
}
