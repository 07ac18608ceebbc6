package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sdejongh/treesync/internal/platform"
	"github.com/sdejongh/treesync/pkg/baseline"
	"github.com/sdejongh/treesync/pkg/models"
)

// NewStateCommand creates the state command
func NewStateCommand() *cobra.Command {
	var stateDir string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the baseline of a pairing",
		Long: `The baseline records the state both trees last agreed on. It is only
written by sync; these commands let an operator look at it or discard it so
the next sync starts as a first run.`,
	}

	cmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "directory holding baselines (default: ~/.config/treesync/state)")

	cmd.AddCommand(newStateShowCommand(&stateDir))
	cmd.AddCommand(newStateResetCommand(&stateDir))

	return cmd
}

func newStateShowCommand(stateDir *string) *cobra.Command {
	var entries bool

	cmd := &cobra.Command{
		Use:   "show <dir-a> <dir-b>",
		Short: "Show the baseline of a pairing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, pairing, err := openState(*stateDir, args)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			updatedAt, count, exists, err := store.Info(ctx, pairing)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Pairing:    %s\n", pairing.Key)
			fmt.Fprintf(out, "Side A:     %s\n", pairing.RootA)
			fmt.Fprintf(out, "Side B:     %s\n", pairing.RootB)
			fmt.Fprintf(out, "State file: %s\n", store.Path(pairing))
			if !exists {
				fmt.Fprintf(out, "No baseline yet, the next sync is a first run\n")
				return nil
			}
			fmt.Fprintf(out, "Updated:    %s\n", updatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Entries:    %d\n", count)

			if !entries {
				return nil
			}

			base, err := store.Load(ctx, pairing)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Path", "Side A", "Side B"})
			table.SetBorder(false)
			table.SetCenterSeparator("")
			table.SetAutoWrapText(false)
			for _, path := range base.Paths() {
				entry := base.Get(path)
				table.Append([]string{path, half(entry.Half(models.SideA)), half(entry.Half(models.SideB))})
			}
			fmt.Fprintln(out)
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&entries, "entries", false, "list every baseline entry")

	return cmd
}

func newStateResetCommand(stateDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <dir-a> <dir-b>",
		Short: "Discard the baseline of a pairing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, pairing, err := openState(*stateDir, args)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			lease, err := store.Acquire(ctx, pairing)
			if err != nil {
				return fmt.Errorf("failed to acquire pairing %s: %w", pairing.Key, err)
			}
			defer lease.Release()

			if err := store.Reset(ctx, pairing); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Baseline of %s reset\n", pairing)
			return nil
		},
	}
}

// openState resolves the pairing of two roots and the store holding it.
// Roots that no longer exist are still accepted so their baseline can be
// inspected or discarded.
func openState(stateDir string, args []string) (*baseline.FileStore, baseline.Pairing, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, baseline.Pairing{}, fmt.Errorf("failed to load config: %w", err)
	}
	if stateDir != "" {
		cfg.State.Dir = stateDir
	}
	dir, err := cfg.StateDir()
	if err != nil {
		return nil, baseline.Pairing{}, err
	}

	rootA, err := stateRoot(args[0])
	if err != nil {
		return nil, baseline.Pairing{}, err
	}
	rootB, err := stateRoot(args[1])
	if err != nil {
		return nil, baseline.Pairing{}, err
	}

	return baseline.NewFileStore(dir), baseline.NewPairing(rootA, rootB), nil
}

func stateRoot(path string) (string, error) {
	if root, err := platform.ResolveRoot(path); err == nil {
		return root, nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

func half(fp *models.Fingerprint) string {
	if fp == nil {
		return "-"
	}
	return fp.String()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
