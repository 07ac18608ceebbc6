package cli

import (
	"github.com/spf13/cobra"
)

// NewPlanCommand creates the plan command
func NewPlanCommand() *cobra.Command {
	flags := &SyncFlags{}

	cmd := &cobra.Command{
		Use:   "plan <dir-a> <dir-b>",
		Short: "Show what sync would do (dry-run)",
		Long: `Scan both trees, classify every path against the baseline and report
the planned actions and conflicts without changing any file or the
baseline. This is equivalent to sync --dry-run.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args, flags, true)
		},
	}

	addSyncFlags(cmd, flags)

	return cmd
}
