package cli

import (
	"errors"
	"fmt"

	"mercator-hq/difyrelay/pkg/config"
)

// Exit codes returned by the difyrelay binary.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitInvalidConfig = 2
)

// ErrInvalidConfig marks a command that failed because its configuration
// did not load or validate. The offending fields are reported separately.
var ErrInvalidConfig = errors.New("configuration is invalid")

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ConfigErrors splits a configuration validation failure into one
// ConfigError per offending field. Any other error becomes a single
// ConfigError without a field.
func ConfigErrors(err error) []*ConfigError {
	if err == nil {
		return nil
	}

	var valErr config.ValidationError
	if !errors.As(err, &valErr) || len(valErr.Errors) == 0 {
		return []*ConfigError{NewConfigError("configuration", err.Error())}
	}

	out := make([]*ConfigError, 0, len(valErr.Errors))
	for _, fe := range valErr.Errors {
		out = append(out, NewConfigError(fe.Field, fe.Message))
	}
	return out
}

// ExitCode maps a command error to the process exit status: ExitOK for nil,
// ExitInvalidConfig for configuration failures and ExitFailure otherwise.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	if errors.Is(err, ErrInvalidConfig) || errors.As(err, &cfgErr) {
		return ExitInvalidConfig
	}
	var valErr config.ValidationError
	if errors.As(err, &valErr) {
		return ExitInvalidConfig
	}
	return ExitFailure
}
