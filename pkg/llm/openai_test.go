package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-test", req.Model)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"content": "hi there",
						"tool_calls": []map[string]any{
							{
								"id":   "call_1",
								"type": "function",
								"function": map[string]any{
									"name":      "file_read",
									"arguments": `{"path":"a.txt"}`,
								},
							},
						},
					},
				},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(ProviderConfig{APIKey: "test-key", Model: "gpt-test", Host: server.URL})
	require.NoError(t, err)

	resp, err := p.Chat(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "read a.txt"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hi there", resp.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	require.Equal(t, "file_read", resp.Message.ToolCalls[0].Name)
	require.Equal(t, "a.txt", resp.Message.ToolCalls[0].Arguments["path"])
	require.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestOpenAIProvider_Chat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit"},
		})
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(ProviderConfig{APIKey: "k", Model: "m", Host: server.URL})
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
}

func TestNewOpenAIProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider(ProviderConfig{Model: "m"})
	require.Error(t, err)
}
