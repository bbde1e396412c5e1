/*
Package cli provides command-line interface utilities for the difyrelay
command.

Output Formatting:

The validate command prints the effective configuration in text, JSON or
YAML:

	format, err := cli.ParseOutputFormat(flagValue)
	if err != nil {
		return err
	}
	return cli.Render(os.Stdout, format, cfg)

Errors:

ConfigError and CommandError wrap failures with the field or command they
belong to. ConfigErrors splits a configuration validation failure into one
ConfigError per field.

Signal Handling:

The first SIGINT or SIGTERM cancels the context so open streams can drain;
a second one exits at once. SIGHUP can trigger a configuration reload:

	ctx, stop := cli.ShutdownContext(context.Background())
	defer stop()

	cli.OnReloadSignal(ctx, func() {
		_ = config.ReloadConfig(path)
	})
*/
package cli
