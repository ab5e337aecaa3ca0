package agentloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopwork-ai/agentrt/pkg/contextstore"
	"github.com/loopwork-ai/agentrt/pkg/llm"
	"github.com/loopwork-ai/agentrt/pkg/tool"
)

// scriptedClient returns successive responses from a fixed script, one per
// Chat call, so tests can drive multi-iteration scenarios deterministically.
type scriptedClient struct {
	responses []llm.Response
	calls     int
	lastReq   llm.Request
}

func (c *scriptedClient) Chat(_ context.Context, req llm.Request) (llm.Response, error) {
	c.lastReq = req
	i := c.calls
	c.calls++
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return c.responses[i], nil
}

type stubTool struct {
	name string
	exec func(context.Context, map[string]any) (tool.Result, error)
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Definition() tool.Definition {
	return tool.Definition{Name: s.name, Description: "stub"}
}
func (s *stubTool) Validate(map[string]any) error { return nil }
func (s *stubTool) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	return s.exec(ctx, args)
}

func newTestLoop(t *testing.T, client llm.Client, tools ...*stubTool) (*AgentLoop, *tool.Registry) {
	t.Helper()
	reg := tool.NewRegistry()
	for _, tl := range tools {
		require.NoError(t, reg.Register(tl))
	}
	store := contextstore.NewStore(contextstore.Config{MaxTokens: 100000})
	loop, err := New(Config{
		Client:     client,
		Tools:      reg,
		Dispatcher: tool.NewDispatcher(reg, time.Second),
		Store:      store,
	})
	require.NoError(t, err)
	return loop, reg
}

func TestAgentLoop_ExecuteTask_FinalResponseNoToolCalls(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{Content: "all done", Message: llm.Message{Content: "all done"}},
	}}
	loop, _ := newTestLoop(t, client)

	task, err := loop.ExecuteTask(context.Background(), "t1", "say hi")
	require.NoError(t, err)
	assert.True(t, task.Done)
	assert.Equal(t, "all done", task.Result)
	assert.Equal(t, StateIdle, loop.State())
	assert.Equal(t, 1, loop.Stats().Iterations)
	assert.Equal(t, 1, loop.Stats().LLMCalls)
}

func TestAgentLoop_ExecuteTask_ToolCallThenFinalResponse(t *testing.T) {
	called := false
	echo := &stubTool{name: "echo", exec: func(_ context.Context, args map[string]any) (tool.Result, error) {
		called = true
		return tool.Ok("echoed", nil), nil
	}}

	client := &scriptedClient{responses: []llm.Response{
		{
			Message: llm.Message{
				ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "echo", Arguments: map[string]any{"x": 1}}},
			},
		},
		{Content: "final answer", Message: llm.Message{Content: "final answer"}},
	}}

	loop, _ := newTestLoop(t, client, echo)

	task, err := loop.ExecuteTask(context.Background(), "t1", "echo something")
	require.NoError(t, err)
	assert.True(t, called)
	assert.True(t, task.Done)
	assert.Equal(t, "final answer", task.Result)
	require.Len(t, task.Actions, 1)
	assert.Equal(t, "echo", task.Actions[0].ToolName)
	assert.True(t, task.Actions[0].Result.Success)
	assert.Equal(t, 2, loop.Stats().Iterations)
	assert.Equal(t, 1, loop.Stats().ToolCalls)
}

func TestAgentLoop_ToolFailureIsNotFatalToTask(t *testing.T) {
	failing := &stubTool{name: "breaks", exec: func(context.Context, map[string]any) (tool.Result, error) {
		return tool.Fail("disk full"), nil
	}}

	client := &scriptedClient{responses: []llm.Response{
		{Message: llm.Message{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "breaks"}}}},
		{Content: "recovered", Message: llm.Message{Content: "recovered"}},
	}}

	loop, _ := newTestLoop(t, client, failing)

	task, err := loop.ExecuteTask(context.Background(), "t1", "try something risky")
	require.NoError(t, err)
	assert.True(t, task.Done)
	assert.Equal(t, "recovered", task.Result)
	require.Len(t, task.Actions, 1)
	assert.False(t, task.Actions[0].Result.Success)
	assert.Equal(t, "disk full", task.Actions[0].Result.Error)
}

func TestAgentLoop_UnknownToolDispatchErrorFeedsBackAsObservation(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{Message: llm.Message{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "does_not_exist"}}}},
		{Content: "ok", Message: llm.Message{Content: "ok"}},
	}}

	loop, _ := newTestLoop(t, client)

	task, err := loop.ExecuteTask(context.Background(), "t1", "call a missing tool")
	require.NoError(t, err)
	assert.True(t, task.Done)
	require.Len(t, task.Actions, 1)
	assert.False(t, task.Actions[0].Result.Success)
	assert.Contains(t, task.Actions[0].Result.Error, "does_not_exist")
}

func TestAgentLoop_MaxIterationsReached(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{Message: llm.Message{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "loopy"}}}},
	}}
	loopy := &stubTool{name: "loopy", exec: func(context.Context, map[string]any) (tool.Result, error) {
		return tool.Ok("again", nil), nil
	}}

	store := contextstore.NewStore(contextstore.Config{MaxTokens: 100000})
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(loopy))
	loop, err := New(Config{
		Client:        client,
		Tools:         reg,
		Dispatcher:    tool.NewDispatcher(reg, time.Second),
		Store:         store,
		MaxIterations: 2,
	})
	require.NoError(t, err)

	task, err := loop.ExecuteTask(context.Background(), "t1", "loop forever")
	require.NoError(t, err)
	assert.True(t, task.Done)
	assert.Equal(t, maxIterationsMessage, task.Result)
	assert.Equal(t, StateIdle, loop.State())
}

func TestAgentLoop_StepMode_PausesAfterEachIteration(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{Message: llm.Message{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "echo"}}}},
		{Content: "done", Message: llm.Message{Content: "done"}},
	}}
	echo := &stubTool{name: "echo", exec: func(context.Context, map[string]any) (tool.Result, error) {
		return tool.Ok("x", nil), nil
	}}

	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(echo))
	store := contextstore.NewStore(contextstore.Config{MaxTokens: 100000})
	loop, err := New(Config{
		Client:     client,
		Tools:      reg,
		Dispatcher: tool.NewDispatcher(reg, time.Second),
		Store:      store,
		Mode:       ModeStep,
	})
	require.NoError(t, err)

	task, err := loop.ExecuteTask(context.Background(), "t1", "step through")
	require.NoError(t, err)
	assert.Equal(t, StatePaused, loop.State())
	assert.False(t, task.Done)

	require.NoError(t, loop.Step(context.Background()))
	assert.True(t, task.Done)
	assert.Equal(t, "done", task.Result)
}

func TestAgentLoop_PauseAndResume(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{Content: "done", Message: llm.Message{Content: "done"}},
	}}
	loop, _ := newTestLoop(t, client)

	require.NoError(t, loop.Pause())
	assert.Equal(t, StatePaused, loop.State())

	require.NoError(t, loop.Resume(context.Background()))
	assert.Equal(t, StateIdle, loop.State())
}

func TestAgentLoop_Stop_ClearsQueue(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{Content: "done", Message: llm.Message{Content: "done"}},
	}}
	loop, _ := newTestLoop(t, client)
	loop.Stop()

	_, err := loop.ExecuteTask(context.Background(), "t1", "anything")
	assert.Error(t, err)
	assert.Equal(t, StateStopped, loop.State())
}

func TestNew_RequiresClientDispatcherStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	reg := tool.NewRegistry()
	_, err = New(Config{Client: &scriptedClient{}, Dispatcher: tool.NewDispatcher(reg, 0)})
	assert.Error(t, err)
}
