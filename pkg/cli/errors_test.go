package cli

import (
	"errors"
	"fmt"
	"testing"

	"mercator-hq/difyrelay/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigError_Message(t *testing.T) {
	err := NewConfigError("upstream.base_url", "base URL is required")

	assert.Equal(t, "upstream.base_url", err.Field)
	assert.EqualError(t, err, "config error in upstream.base_url: base URL is required")
}

func TestCommandError_Wraps(t *testing.T) {
	cause := errors.New("listener closed")
	err := NewCommandError("run", cause)

	assert.EqualError(t, err, "command run failed: listener closed")
	assert.ErrorIs(t, err, cause)
	assert.Same(t, cause, err.Unwrap())
}

func TestConfigErrors(t *testing.T) {
	assert.Nil(t, ConfigErrors(nil))

	valErr := config.ValidationError{Errors: []config.FieldError{
		{Field: "upstream.base_url", Message: "base URL is required"},
		{Field: "relay.markers.start", Message: "marker cannot be empty"},
	}}
	got := ConfigErrors(fmt.Errorf("load: %w", valErr))
	require.Len(t, got, 2)
	assert.Equal(t, "upstream.base_url", got[0].Field)
	assert.Equal(t, "relay.markers.start", got[1].Field)

	got = ConfigErrors(errors.New("file not found"))
	require.Len(t, got, 1)
	assert.Equal(t, "configuration", got[0].Field)
	assert.Equal(t, "file not found", got[0].Message)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "plain", err: errors.New("boom"), want: ExitFailure},
		{name: "invalid config", err: NewCommandError("validate", ErrInvalidConfig), want: ExitInvalidConfig},
		{name: "config error", err: NewConfigError("proxy", "bad"), want: ExitInvalidConfig},
		{name: "validation error", err: fmt.Errorf("load: %w", config.ValidationError{}), want: ExitInvalidConfig},
		{name: "wrapped command failure", err: NewCommandError("run", errors.New("bind")), want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
