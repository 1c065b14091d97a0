package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X .../cmd.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type buildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func currentBuild() buildInfo {
	return buildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		info := currentBuild()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(out, info)
		}
		if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
			fmt.Fprintf(out, "seca-recon %s (%s)\n", info.Version, info.GitCommit)
			return nil
		}

		tw := newTable(out)
		fmt.Fprintln(tw, "Version:\t"+info.Version)
		fmt.Fprintln(tw, "Git Commit:\t"+info.GitCommit)
		fmt.Fprintln(tw, "Build Date:\t"+info.BuildDate)
		fmt.Fprintln(tw, "Go Version:\t"+info.GoVersion)
		fmt.Fprintln(tw, "Platform:\t"+info.Platform)
		return tw.Flush()
	},
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "show build details")
	versionCmd.Flags().Bool("json", false, "print build details as JSON")
}
