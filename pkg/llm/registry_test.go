package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateFromConfig(t *testing.T) {
	t.Run("creates and registers a supported provider", func(t *testing.T) {
		r := NewRegistry()
		client, err := r.CreateFromConfig("main", ProviderOllama, ProviderConfig{Model: "llama3"})
		require.NoError(t, err)
		require.NotNil(t, client)

		got, ok := r.Get("main")
		require.True(t, ok)
		assert.Same(t, client, got)
	})

	t.Run("rejects an empty name", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.CreateFromConfig("", ProviderOllama, ProviderConfig{Model: "llama3"})
		assert.Error(t, err)
	})

	t.Run("rejects an unsupported provider type", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.CreateFromConfig("main", ProviderType("bogus"), ProviderConfig{})
		assert.Error(t, err)
	})

	t.Run("surfaces provider construction errors", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.CreateFromConfig("main", ProviderOpenAI, ProviderConfig{Model: "gpt"})
		assert.Error(t, err)
	})
}
