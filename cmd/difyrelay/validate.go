package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"mercator-hq/difyrelay/pkg/cli"
	"mercator-hq/difyrelay/pkg/config"
	"mercator-hq/difyrelay/pkg/telemetry/logging"
)

var validateFlags struct {
	print  bool
	output string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file, apply environment overrides, and check it.

Every invalid field is reported. With --print the effective configuration is
written out with the upstream API key masked.

Examples:
  # Check the default config file
  difyrelay validate

  # Check a file and show the settings the relay would run with
  difyrelay validate --config /etc/difyrelay/config.yaml --print --output yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.print, "print", false, "print the effective configuration")
	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "text", "output format: text, json, yaml")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(validateFlags.output)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		printConfigErrors(cmd, err)
		return cli.NewCommandError("validate", cli.ErrInvalidConfig)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
	if !validateFlags.print {
		return nil
	}

	masked := *cfg
	masked.Upstream.APIKey = logging.RedactAPIKey(cfg.Upstream.APIKey)

	var data interface{} = &masked
	if format == cli.FormatText {
		data = configSummary{&masked}
	}
	return cli.Render(cmd.OutOrStdout(), format, data)
}

func printConfigErrors(cmd *cobra.Command, err error) {
	for _, ce := range cli.ConfigErrors(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s\n", ce.Error())
	}
}

// configSummary renders the settings an operator usually checks.
type configSummary struct {
	cfg *config.Config
}

func (s configSummary) String() string {
	c := s.cfg
	var b strings.Builder
	fmt.Fprintf(&b, "Listen address:  %s\n", c.Proxy.ListenAddress)
	fmt.Fprintf(&b, "TLS:             %t\n", c.Security.TLS.Enabled)
	fmt.Fprintf(&b, "Upstream:        %s\n", c.Upstream.BaseURL)
	fmt.Fprintf(&b, "API key:         %s\n", c.Upstream.APIKey)
	fmt.Fprintf(&b, "Default model:   %s\n", c.Relay.DefaultModel)
	fmt.Fprintf(&b, "Reset command:   %s\n", c.Relay.ResetCommand)
	fmt.Fprintf(&b, "Session header:  %s\n", c.Sessions.Header)
	fmt.Fprintf(&b, "Session TTL:     %s\n", c.Sessions.IdleTTL)
	fmt.Fprintf(&b, "Metrics:         %t\n", c.Telemetry.Metrics.Enabled)
	fmt.Fprintf(&b, "Tracing:         %t", c.Telemetry.Tracing.Enabled)
	return b.String()
}
