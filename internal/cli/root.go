package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand assembles the treesync command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treesync",
		Short: "Three-way reconciliation of two directory trees",
		Long: `treesync keeps two directory trees in agreement. Each run compares both
trees against the state they last agreed on, propagates one-sided changes
according to the sync mode and reports paths changed on both sides as
conflicts instead of guessing.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(NewSyncCommand())
	rootCmd.AddCommand(NewPlanCommand())
	rootCmd.AddCommand(NewStateCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
