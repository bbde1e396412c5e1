package proxy

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/difyrelay/pkg/proxy/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRequestMetadata(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	r.Header.Set("User-Agent", "test-client/1.0")

	req := &types.ChatCompletionRequest{
		Model:    "o3-mini",
		Stream:   true,
		Messages: []types.Message{{Role: "system", Content: "x"}, {Role: "user", Content: "hi"}},
	}

	m := ExtractRequestMetadata(r, req, "req-1", "tab-1")

	assert.Equal(t, RequestMetadata{
		RequestID:    "req-1",
		Session:      "tab-1",
		Model:        "o3-mini",
		Stream:       true,
		MessageCount: 2,
		Method:       http.MethodPost,
		Path:         "/v1/chat/completions",
		UserAgent:    "test-client/1.0",
		RemoteAddr:   r.RemoteAddr,
	}, m)
}

func TestRequestMetadata_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	m := RequestMetadata{RequestID: "req-1", Stream: true, MessageCount: 3, Method: http.MethodPost, Path: "/chat/completions"}
	logger.Info("processing", "request", m)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	group, ok := entry["request"].(map[string]any)
	require.True(t, ok, "metadata should log as a group")
	assert.Equal(t, true, group["stream"])
	assert.EqualValues(t, 3, group["messages"])
	assert.Equal(t, "/chat/completions", group["path"])
	assert.NotContains(t, group, "request_id")
}
