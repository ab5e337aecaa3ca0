package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{
				"content": "done",
				"tool_calls": []map[string]any{
					{"function": map[string]any{"name": "file_list", "arguments": map[string]any{"path": "."}}},
				},
			},
			"prompt_eval_count": 12,
			"eval_count":        6,
		})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(ProviderConfig{Model: "llama3", Host: server.URL})
	require.NoError(t, err)

	resp, err := p.Chat(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "list files"}}})
	require.NoError(t, err)
	require.Equal(t, "done", resp.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	require.Equal(t, "file_list", resp.Message.ToolCalls[0].Name)
	require.Equal(t, 18, resp.Usage.TotalTokens)
}

func TestNewOllamaProvider_DefaultsHost(t *testing.T) {
	p, err := NewOllamaProvider(ProviderConfig{Model: "llama3"})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:11434", p.cfg.Host)
}
