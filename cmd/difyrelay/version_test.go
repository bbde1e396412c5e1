package main

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand_Text(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stdout, "difyrelay "+Version+"\n"))
	assert.Contains(t, stdout, "Go Version: "+runtime.Version())
	assert.Contains(t, stdout, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestVersionCommand_JSON(t *testing.T) {
	orig := GitCommit
	GitCommit = "abc123"
	t.Cleanup(func() { GitCommit = orig })

	stdout, _, err := execute(t, "version", "--output", "json")
	require.NoError(t, err)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, "abc123", info.GitCommit, "link-time commit wins over build info")
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestVersionCommand_RejectsArgs(t *testing.T) {
	_, _, err := execute(t, "version", "extra")
	assert.Error(t, err)
}
