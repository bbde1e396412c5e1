package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/difyrelay/pkg/cli"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	validateFlags.print = false
	validateFlags.output = "text"
	versionOutput = "text"

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestValidateCommand_Valid(t *testing.T) {
	path := writeConfig(t, `
upstream:
  base_url: https://dify.example.com/v1
  api_key: app-0123456789abcdef
relay:
  default_model: deepseek-r1
`)

	stdout, _, err := execute(t, "validate", "--config", path, "--print", "--output", "yaml")

	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Configuration valid")
	assert.Contains(t, stdout, "base_url: https://dify.example.com/v1")
	assert.Contains(t, stdout, "default_model: deepseek-r1")
	assert.NotContains(t, stdout, "app-0123456789abcdef")
}

func TestValidateCommand_TextSummary(t *testing.T) {
	path := writeConfig(t, "upstream:\n  base_url: https://dify.example.com/v1\n")

	stdout, _, err := execute(t, "validate", "--config", path, "--print")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Upstream:        https://dify.example.com/v1")
	assert.Contains(t, stdout, "Reset command:   clear")
}

func TestValidateCommand_Invalid(t *testing.T) {
	path := writeConfig(t, `
upstream:
  base_url: ftp://dify.example.com
  max_retries: -1
`)

	_, stderr, err := execute(t, "validate", "--config", path)

	require.Error(t, err)
	assert.Equal(t, cli.ExitInvalidConfig, cli.ExitCode(err))
	assert.Contains(t, stderr, "upstream.base_url")
	assert.Contains(t, stderr, "upstream.max_retries")
}

func TestValidateCommand_UnknownFormat(t *testing.T) {
	path := writeConfig(t, "upstream:\n  base_url: https://dify.example.com/v1\n")

	_, _, err := execute(t, "validate", "--config", path, "--output", "csv")

	assert.ErrorContains(t, err, "unsupported output format")
}
