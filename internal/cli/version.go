package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sdejongh/treesync/pkg/baseline"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

type versionInfo struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildDate   string `json:"build_date"`
	GoVersion   string `json:"go_version"`
	Platform    string `json:"platform"`
	StateFormat int    `json:"state_format"`
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var (
		short  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the build version, commit and Go version, together with the
baseline state format this binary reads and writes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, Version)
				return nil
			}

			info := versionInfo{
				Version:     Version,
				Commit:      Commit,
				BuildDate:   BuildDate,
				GoVersion:   runtime.Version(),
				Platform:    runtime.GOOS + "/" + runtime.GOARCH,
				StateFormat: baseline.FormatVersion,
			}

			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			case "human":
				fmt.Fprintf(out, "treesync %s\n", info.Version)
				fmt.Fprintf(out, "  Commit:       %s\n", info.Commit)
				fmt.Fprintf(out, "  Built:        %s\n", info.BuildDate)
				fmt.Fprintf(out, "  Go version:   %s\n", info.GoVersion)
				fmt.Fprintf(out, "  OS/Arch:      %s\n", info.Platform)
				fmt.Fprintf(out, "  State format: v%d\n", info.StateFormat)
				return nil
			default:
				return fmt.Errorf("unknown output format %q", format)
			}
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")
	cmd.Flags().StringVarP(&format, "output", "o", "human", "output format: human, json")

	return cmd
}
