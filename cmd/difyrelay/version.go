package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
	"mercator-hq/difyrelay/pkg/cli"
)

// Set with -ldflags "-X main.Version=... -X main.GitCommit=... -X main.BuildDate=...".
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type versionInfo struct {
	Version   string `json:"version" yaml:"version"`
	GitCommit string `json:"git_commit" yaml:"git_commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

func (v versionInfo) String() string {
	return fmt.Sprintf("difyrelay %s\nGit Commit: %s\nBuild Date: %s\nGo Version: %s\nOS/Arch:    %s",
		v.Version, v.GitCommit, v.BuildDate, v.GoVersion, v.Platform)
}

// currentVersion fills values not set at link time from the module build
// info, which `go build` records for VCS checkouts.
func currentVersion() versionInfo {
	info := versionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		}
	}
	return info
}

var versionOutput string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the relay version, the commit and date it was built from, and the Go toolchain.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseOutputFormat(versionOutput)
		if err != nil {
			return err
		}
		return cli.Render(cmd.OutOrStdout(), format, currentVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringVarP(&versionOutput, "output", "o", "text", "output format: text, json, yaml")
}
