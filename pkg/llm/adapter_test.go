package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopwork-ai/agentrt/pkg/contextstore"
)

type fakeClient struct {
	resp Response
	err  error
	last Request
}

func (f *fakeClient) Chat(_ context.Context, req Request) (Response, error) {
	f.last = req
	return f.resp, f.err
}

func TestChatSummarizer_Summarize(t *testing.T) {
	t.Run("returns the client's content", func(t *testing.T) {
		fc := &fakeClient{resp: Response{Content: "condensed summary"}}
		s := ChatSummarizer{Client: fc}

		out, err := s.Summarize(context.Background(), []contextstore.Message{
			{Role: contextstore.RoleUser, Content: "first message"},
			{Role: contextstore.RoleAssistant, Content: "second message"},
		})
		require.NoError(t, err)
		assert.Equal(t, "condensed summary", out)
		assert.Len(t, fc.last.Messages, 2)
		assert.Equal(t, RoleSystem, fc.last.Messages[0].Role)
	})

	t.Run("empty input returns empty summary without calling the client", func(t *testing.T) {
		fc := &fakeClient{resp: Response{Content: "should not appear"}}
		s := ChatSummarizer{Client: fc}

		out, err := s.Summarize(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("propagates client errors", func(t *testing.T) {
		fc := &fakeClient{err: assertErr("llm down")}
		s := ChatSummarizer{Client: fc}

		_, err := s.Summarize(context.Background(), []contextstore.Message{{Role: contextstore.RoleUser, Content: "x"}})
		require.Error(t, err)
	})
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
