package cli

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sdejongh/treesync/internal/platform"
	"github.com/sdejongh/treesync/pkg/config"
	"github.com/sdejongh/treesync/pkg/models"
)

// loadConfig loads configuration from the --config file or the default location
func loadConfig() (*config.Config, error) {
	return config.Load(globalFlags.ConfigFile)
}

// resolveRoots canonicalizes both roots and rejects overlapping pairs
func resolveRoots(args []string) (string, string, error) {
	rootA, err := platform.ResolveRoot(args[0])
	if err != nil {
		return "", "", fmt.Errorf("side A: %w", err)
	}
	rootB, err := platform.ResolveRoot(args[1])
	if err != nil {
		return "", "", fmt.Errorf("side B: %w", err)
	}
	if err := platform.CheckRoots(rootA, rootB); err != nil {
		return "", "", err
	}
	return rootA, rootB, nil
}

// applyFlagsToConfig overrides config values with the flags that were set
// on the command line
func applyFlagsToConfig(cmd *cobra.Command, cfg *config.Config, flags *SyncFlags) error {
	changed := cmd.Flags().Changed

	if changed("mode") {
		cfg.Sync.Mode = models.SyncMode(flags.Mode)
	}
	if changed("source") {
		cfg.Sync.Source = models.Side(flags.Source)
	}
	if changed("conflict") {
		cfg.Sync.Conflict = models.ConflictPolicy(flags.Conflict)
	}
	if changed("fingerprint") {
		cfg.Sync.Fingerprint = models.FingerprintMethod(flags.Fingerprint)
	}
	if flags.Parallel > 0 {
		cfg.Performance.MaxWorkers = flags.Parallel
	}
	if changed("bandwidth") {
		limit, err := parseBandwidth(flags.Bandwidth)
		if err != nil {
			return err
		}
		cfg.Performance.BandwidthLimit = limit
	}
	if len(flags.Exclude) > 0 {
		cfg.Exclude = append(cfg.Exclude, flags.Exclude...)
	}
	if changed("output") {
		cfg.Output.Format = flags.Output
	}
	if changed("state-dir") {
		cfg.State.Dir = flags.StateDir
	}

	// --log-file enables logging
	if flags.LogFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.File = flags.LogFile
	}
	if changed("log-format") {
		cfg.Logging.Format = flags.LogFormat
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.LogLevel
	}

	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}

	// Enable progress in verbose mode
	if globalFlags.Verbose {
		cfg.Output.Progress = true
	}

	return cfg.Validate()
}

// parseBandwidth parses a human readable rate such as "10M" or "512k" into
// bytes per second. An empty string or "0" means unlimited.
func parseBandwidth(s string) (int64, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	limit, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid bandwidth limit %q: %w", s, err)
	}
	if limit < 0 {
		return 0, fmt.Errorf("invalid bandwidth limit %q: must not be negative", s)
	}
	return limit, nil
}

// createSyncOperation creates a sync operation from configuration
func createSyncOperation(cfg *config.Config, rootA, rootB string, dryRun bool) (*models.SyncOperation, error) {
	operation := &models.SyncOperation{
		ID:              uuid.New().String(),
		RootA:           rootA,
		RootB:           rootB,
		Mode:            cfg.Sync.Mode,
		Source:          cfg.Sync.Source,
		Fingerprint:     cfg.Sync.Fingerprint,
		ConflictPolicy:  cfg.Sync.Conflict,
		ExcludePatterns: cfg.Exclude,
		DryRun:          dryRun,
		MaxWorkers:      cfg.Performance.MaxWorkers,
		BandwidthLimit:  cfg.Performance.BandwidthLimit,
		BufferSize:      cfg.Performance.BufferSize,
		CreatedAt:       time.Now(),
	}

	if err := operation.Validate(); err != nil {
		return nil, err
	}

	return operation, nil
}
