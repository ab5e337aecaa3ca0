package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnthropicProvider_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "you are helpful", req.System)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "sure, "},
				{"type": "tool_use", "id": "t1", "name": "git_status", "input": map[string]any{}},
			},
			"usage": map[string]any{"input_tokens": 20, "output_tokens": 4},
		})
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(ProviderConfig{APIKey: "test-key", Model: "claude-test", Host: server.URL})
	require.NoError(t, err)

	resp, err := p.Chat(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "you are helpful"},
			{Role: RoleUser, Content: "check status"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "sure, ", resp.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	require.Equal(t, "git_status", resp.Message.ToolCalls[0].Name)
	require.Equal(t, 24, resp.Usage.TotalTokens)
}

func TestNewAnthropicProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicProvider(ProviderConfig{Model: "m"})
	require.Error(t, err)
}
