package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/difyrelay/pkg/cli"
)

var (
	// cfgFile is the configuration file shared by every subcommand. An empty
	// value configures from the environment alone.
	cfgFile string

	// verbose forces debug logging for run.
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "difyrelay",
	Short: "OpenAI-compatible relay for Dify chat applications",
	Long: `difyrelay serves /v1/chat/completions in front of a Dify chat-messages API.

It keeps one Dify conversation per caller session, relays answers as they
stream in, and rewrites Dify's collapsible reasoning markup into
<think>...</think> tags that OpenAI-compatible clients understand.

Exit status is 0 on success, 2 when the configuration is invalid and 1 for
any other failure.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the status matching its
// error.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path (empty to configure from the environment only)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.SetVersionTemplate("difyrelay {{.Version}}\n")
}
