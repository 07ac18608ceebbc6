package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/treesync/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Verbose,
		"verbose",
		"v",
		false,
		"verbose output",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
}

// SyncFlags holds the flags shared by the sync and plan commands. Flags left
// unset fall back to the configuration file.
type SyncFlags struct {
	Mode        string
	Source      string
	Conflict    string
	Fingerprint string
	DryRun      bool
	Parallel    int
	Bandwidth   string
	Exclude     []string
	Output      string
	DiffReport  string
	DiffFormat  string
	StateDir    string
	LogFile     string
	LogFormat   string
	LogLevel    string
}

func addSyncFlags(cmd *cobra.Command, flags *SyncFlags) {
	cmd.Flags().StringVarP(&flags.Mode, "mode", "m", "twoway", "sync mode: twoway, mirror, backup")
	cmd.Flags().StringVarP(&flags.Source, "source", "s", "a", "source side for mirror and backup: a, b")
	cmd.Flags().StringVar(&flags.Conflict, "conflict", "skip", "conflict policy: skip, ask, keep-a, keep-b")
	cmd.Flags().StringVar(&flags.Fingerprint, "fingerprint", "hash", "fingerprint method: hash, md5, timestamp")
	cmd.Flags().IntVarP(&flags.Parallel, "parallel", "p", 0, "number of parallel workers (default: 5)")
	cmd.Flags().StringVarP(&flags.Bandwidth, "bandwidth", "b", "", "bandwidth limit (e.g., \"10M\", \"1G\")")
	cmd.Flags().StringSliceVar(&flags.Exclude, "exclude", []string{}, "gitignore-style patterns to exclude")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "human", "output format: human, json")
	cmd.Flags().StringVar(&flags.DiffReport, "diff-report", "", "write differences report to file")
	cmd.Flags().StringVar(&flags.DiffFormat, "diff-format", "human", "differences report format: human, json")
	cmd.Flags().StringVar(&flags.StateDir, "state-dir", "", "directory holding baselines (default: ~/.config/treesync/state)")

	// Logging flags
	cmd.Flags().StringVar(&flags.LogFile, "log-file", "", "write logs to file (enables logging)")
	cmd.Flags().StringVar(&flags.LogFormat, "log-format", "text", "log format: text, json")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
}
