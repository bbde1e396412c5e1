package main

import (
	"io"

	"github.com/spf13/cobra"
)

// completionGenerators maps each supported shell to its script generator.
var completionGenerators = map[string]func(cmd *cobra.Command, w io.Writer) error{
	"bash": func(cmd *cobra.Command, w io.Writer) error {
		return cmd.GenBashCompletionV2(w, true)
	},
	"zsh": func(cmd *cobra.Command, w io.Writer) error {
		return cmd.GenZshCompletion(w)
	},
	"fish": func(cmd *cobra.Command, w io.Writer) error {
		return cmd.GenFishCompletion(w, true)
	},
	"powershell": func(cmd *cobra.Command, w io.Writer) error {
		return cmd.GenPowerShellCompletionWithDesc(w)
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate a shell completion script for difyrelay.

  $ source <(difyrelay completion bash)
  $ difyrelay completion zsh > "${fpath[1]}/_difyrelay"
  $ difyrelay completion fish > ~/.config/fish/completions/difyrelay.fish
  PS> difyrelay completion powershell | Out-String | Invoke-Expression`,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return completionGenerators[args[0]](cmd.Root(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
