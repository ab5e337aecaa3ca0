package contextstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(strategy PruningStrategy, maxTokens int) *Store {
	return NewStore(Config{
		Counter:        FallbackTokenCounter{},
		Strategy:       strategy,
		MaxTokens:      maxTokens,
		AutoPrune:      strategy != nil,
		PreserveSystem: true,
	})
}

func TestStore_AddMessage(t *testing.T) {
	t.Run("assigns id, timestamp, and token count", func(t *testing.T) {
		s := newTestStore(nil, 1000)
		id, err := s.AddMessage(Message{Role: RoleUser, Content: "hello there"}, AddOptions{})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		msg, ok := s.Get(id)
		require.True(t, ok)
		assert.NotZero(t, msg.CreatedAt)
		assert.Greater(t, msg.Tokens, 0)
		assert.Equal(t, PriorityNormal, msg.Priority)
	})

	t.Run("system message occupies the dedicated slot", func(t *testing.T) {
		s := newTestStore(nil, 1000)
		_, err := s.AddMessage(Message{Role: RoleSystem, Content: "sys 1"}, AddOptions{})
		require.NoError(t, err)
		_, err = s.AddMessage(Message{Role: RoleSystem, Content: "sys 2"}, AddOptions{})
		require.NoError(t, err)

		msgs := s.MessagesForLLM()
		require.Len(t, msgs, 1)
		assert.Equal(t, "sys 2", msgs[0].Content)
	})

	t.Run("total_tokens equals sum of message tokens", func(t *testing.T) {
		s := newTestStore(nil, 1000)
		_, _ = s.AddMessage(Message{Role: RoleUser, Content: "one"}, AddOptions{})
		_, _ = s.AddMessage(Message{Role: RoleAssistant, Content: "two"}, AddOptions{})

		stats := s.GetStats()
		sum := 0
		for _, m := range s.MessagesForLLM() {
			sum += m.Tokens
		}
		assert.Equal(t, sum, stats.TotalTokens)
	})
}

func TestStore_MessagesForLLM_Ordering(t *testing.T) {
	s := newTestStore(nil, 1000)
	_, _ = s.AddMessage(Message{Role: RoleUser, Content: "first"}, AddOptions{})
	_, _ = s.AddMessage(Message{Role: RoleAssistant, Content: "second"}, AddOptions{})
	_, _ = s.AddMessage(Message{Role: RoleSystem, Content: "system"}, AddOptions{})

	msgs := s.MessagesForLLM()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "first", msgs[1].Content)
	assert.Equal(t, "second", msgs[2].Content)
}

func TestStore_SetSystemMessage_AtomicTokenSwap(t *testing.T) {
	s := newTestStore(nil, 1000)
	s.SetSystemMessage("short")
	before := s.GetStats().TotalTokens

	s.SetSystemMessage("a much longer system prompt than before")
	after := s.GetStats().TotalTokens

	assert.NotEqual(t, before, after)
	msgs := s.MessagesForLLM()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a much longer system prompt than before", msgs[0].Content)
}

func TestStore_RemoveAndGet(t *testing.T) {
	s := newTestStore(nil, 1000)
	id, _ := s.AddMessage(Message{Role: RoleUser, Content: "x"}, AddOptions{})

	s.Remove(id)
	_, ok := s.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 0, s.GetStats().TotalTokens)
}

func TestStore_GetMessagesFilter(t *testing.T) {
	s := newTestStore(nil, 1000)
	_, _ = s.AddMessage(Message{Role: RoleUser, Content: "u1"}, AddOptions{})
	_, _ = s.AddMessage(Message{Role: RoleAssistant, Content: "a1"}, AddOptions{})
	_, _ = s.AddMessage(Message{Role: RoleUser, Content: "u2"}, AddOptions{})

	users := s.GetMessages(MessageFilter{Role: RoleUser})
	assert.Len(t, users, 2)
}

func TestStore_AutoPruneOnOverBudget(t *testing.T) {
	s := newTestStore(SlidingWindowStrategy{}, 5)
	for i := 0; i < 10; i++ {
		_, err := s.AddMessage(Message{Role: RoleUser, Content: "a reasonably long message here"}, AddOptions{})
		require.NoError(t, err)
	}

	stats := s.GetStats()
	assert.GreaterOrEqual(t, stats.PruneCount, 1)
	assert.GreaterOrEqual(t, stats.TotalTokens, 0) // sanity: no panic/negative
}

func TestStore_Prune_PreservesSystemMessage(t *testing.T) {
	s := newTestStore(SlidingWindowStrategy{MaxMessages: 1}, 1000)
	s.SetSystemMessage("keep me")
	for i := 0; i < 5; i++ {
		_, _ = s.AddMessage(Message{Role: RoleUser, Content: "filler"}, AddOptions{})
	}

	_, err := s.Prune(context.Background())
	require.NoError(t, err)

	msgs := s.MessagesForLLM()
	require.NotEmpty(t, msgs)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "keep me", msgs[0].Content)
}

func TestStore_NeedsPruning(t *testing.T) {
	s := newTestStore(nil, 1)
	assert.False(t, s.NeedsPruning())
	_, _ = s.AddMessage(Message{Role: RoleUser, Content: "enough content to exceed one token"}, AddOptions{})
	assert.True(t, s.NeedsPruning())
}

func TestStore_Search(t *testing.T) {
	s := newTestStore(nil, 1000)
	_, _ = s.AddMessage(Message{Role: RoleUser, Content: "the quick brown fox"}, AddOptions{})
	_, _ = s.AddMessage(Message{Role: RoleUser, Content: "a lazy dog sleeps"}, AddOptions{})

	results := s.Search("quick fox", SearchOptions{Threshold: 0.5})
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Message.Content, "quick brown fox")
}

func TestStore_ExportImport_RoundTrip(t *testing.T) {
	s := newTestStore(nil, 1000)
	s.SetSystemMessage("sys")
	_, _ = s.AddMessage(Message{Role: RoleUser, Content: "hi"}, AddOptions{})

	exported := s.Export()

	s2 := newTestStore(nil, 1000)
	require.NoError(t, s2.Import(exported))

	assert.Equal(t, s.MessagesForLLM(), s2.MessagesForLLM())
}

func TestStore_Import_RejectsIncompatibleMajorVersion(t *testing.T) {
	s := newTestStore(nil, 1000)
	err := s.Import(Exported{Version: "99.0", Messages: nil})
	assert.Error(t, err)
}
