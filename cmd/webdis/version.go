package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"mercator-hq/webdis/pkg/cli"
	"mercator-hq/webdis/pkg/telemetry/health"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "0.1.0"
	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"
	// BuildDate is the build timestamp (set by build flags)
	BuildDate = "unknown"
)

var versionFlags struct {
	output string
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print detailed version information including Git commit and build date.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := cli.NewFormatter(versionFlags.output)
		if err != nil {
			return err
		}
		info := buildInfo()
		return f.FormatTo(cmd.OutOrStdout(), map[string]string{
			"version":    info.Version,
			"commit":     info.Commit,
			"build_time": info.BuildTime,
			"go_version": info.GoVersion,
			"platform":   runtime.GOOS + "/" + runtime.GOARCH,
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringVarP(&versionFlags.output, "output", "o", "text", "output format: text, json")
}

// buildInfo is served on the version endpoint and printed by version.
func buildInfo() health.BuildInfo {
	return health.BuildInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
		GoVersion: runtime.Version(),
	}
}
