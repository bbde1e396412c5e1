package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mercator-hq/difyrelay/pkg/proxy/types"
)

func TestParseChatCompletionRequest(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantCode  string
		wantParam string
	}{
		{
			name: "valid request with string content",
			body: `{"model":"o3-mini","messages":[{"role":"user","content":"Hello"}]}`,
		},
		{
			name: "valid request with content parts and stream",
			body: `{"stream":true,"messages":[{"role":"user","content":[{"type":"text","text":"Hello"}]}]}`,
		},
		{
			name: "unknown fields are ignored",
			body: `{"temperature":0.2,"tools":[],"messages":[{"role":"system","content":"be brief"},{"role":"user","content":"Hi"}]}`,
		},
		{
			name: "assistant tool call without content",
			body: `{"messages":[{"role":"assistant","content":null},{"role":"user","content":"Hi"}]}`,
		},
		{
			name:      "empty request body",
			body:      ``,
			wantErr:   true,
			wantCode:  types.CodeInvalidJSON,
			wantParam: "body",
		},
		{
			name:      "truncated JSON",
			body:      `{"messages": [`,
			wantErr:   true,
			wantCode:  types.CodeInvalidJSON,
			wantParam: "body",
		},
		{
			name:      "wrong field type",
			body:      `{"messages":"hello"}`,
			wantErr:   true,
			wantCode:  types.CodeInvalidJSON,
			wantParam: "body",
		},
		{
			name:      "missing messages",
			body:      `{"model":"o3-mini"}`,
			wantErr:   true,
			wantCode:  types.CodeMissingField,
			wantParam: "messages",
		},
		{
			name: "roles outside the OpenAI set are accepted",
			body: `{"messages":[{"role":"function","name":"f","content":"x"},{"role":"user","content":"Hi"}]}`,
		},
		{
			name: "missing role and object content are accepted",
			body: `{"messages":[{"content":{"text":"Hello"}},{"role":"user","content":"Hi"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(tt.body))

			got, err := ParseChatCompletionRequest(req, 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChatCompletionRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var reqErr *RequestError
				if !errors.As(err, &reqErr) {
					t.Fatalf("expected *RequestError, got %T", err)
				}
				if reqErr.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", reqErr.Code, tt.wantCode)
				}
				if reqErr.Param != tt.wantParam {
					t.Errorf("param = %q, want %q", reqErr.Param, tt.wantParam)
				}
				return
			}
			if len(got.Messages) == 0 {
				t.Error("expected messages to be parsed")
			}
		})
	}
}

func TestParseChatCompletionRequest_SizeLimit(t *testing.T) {
	body, _ := json.Marshal(types.ChatCompletionRequest{
		Messages: []types.Message{{Role: "user", Content: strings.Repeat("a", 100)}},
	})
	limit := int64(len(body))

	t.Run("exactly at the limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
		if _, err := ParseChatCompletionRequest(req, limit); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("one byte over", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
		_, err := ParseChatCompletionRequest(req, limit-1)

		var reqErr *RequestError
		if !errors.As(err, &reqErr) || reqErr.Code != types.CodeRequestTooLarge {
			t.Fatalf("expected request_too_large error, got %v", err)
		}
		if got := reqErr.ToErrorResponse().Error.HTTPStatusCode(); got != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", got)
		}
	})
}

func TestExtractSessionKey(t *testing.T) {
	tests := []struct {
		name   string
		header string
		user   string
		want   string
	}{
		{name: "header wins", header: "tab-1", user: "alice", want: "tab-1"},
		{name: "user field", user: "alice", want: "alice"},
		{name: "blank header falls through", header: "  ", user: "alice", want: "alice"},
		{name: "default", want: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
			if tt.header != "" {
				r.Header.Set("X-Session-ID", tt.header)
			}
			req := &types.ChatCompletionRequest{User: tt.user}

			if got := ExtractSessionKey(r, "X-Session-ID", req, "default"); got != tt.want {
				t.Errorf("ExtractSessionKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	if got := ExtractRequestID(r); got != "" {
		t.Errorf("expected empty request id, got %q", got)
	}

	r.Header.Set(RequestIDHeader, "req-123")
	if got := ExtractRequestID(r); got != "req-123" {
		t.Errorf("ExtractRequestID() = %q", got)
	}
}
