package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopwork-ai/agentrt/pkg/llm"
	"github.com/loopwork-ai/agentrt/pkg/tool"
)

type scriptedClient struct {
	responses []string
	calls     int
}

func (c *scriptedClient) Chat(_ context.Context, _ llm.Request) (llm.Response, error) {
	i := c.calls
	c.calls++
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return llm.Response{Content: c.responses[i]}, nil
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

func TestExecutor_CreateInitialTask(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"todos":[{"description":"list files","active_form":"Listing files"},{"description":"read config","active_form":"Reading config"}],"is_simple_query":false}`,
	}}
	reg := tool.NewRegistry()
	exec, err := NewExecutor(client, reg, tool.NewDispatcher(reg, time.Second), 0)
	require.NoError(t, err)

	tc, err := exec.CreateInitialTask(context.Background(), "list files and read config")
	require.NoError(t, err)
	require.Len(t, tc.Todos, 2)
	assert.Equal(t, "list files", tc.Todos[0].Description)
	assert.Equal(t, StatusPending, tc.Todos[0].Status)
	assert.False(t, tc.IsSimpleQuery)
	assert.Equal(t, defaultMaxIterations, tc.MaxIterations)
}

func TestExecutor_CreateInitialTask_FallsBackToSingleTodo(t *testing.T) {
	client := &scriptedClient{responses: []string{`not json at all`}}
	reg := tool.NewRegistry()
	exec, err := NewExecutor(client, reg, tool.NewDispatcher(reg, time.Second), 0)
	require.NoError(t, err)

	tc, err := exec.CreateInitialTask(context.Background(), "do the thing")
	require.NoError(t, err)
	require.Len(t, tc.Todos, 1)
	assert.Equal(t, "do the thing", tc.Todos[0].Description)
}

func TestExecutor_ExecuteNextIteration_NeedsConfirmation(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"actions":[{"tool":"echo","arguments":{"x":1}}]}`,
	}}
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{name: "echo"}))
	exec, err := NewExecutor(client, reg, tool.NewDispatcher(reg, time.Second), 0)
	require.NoError(t, err)

	tc := &TaskContext{
		Request:       "echo something",
		Todos:         []Todo{{Description: "echo it", Status: StatusPending}},
		MaxIterations: defaultMaxIterations,
	}

	result, err := exec.ExecuteNextIteration(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, KindNeedsConfirmation, result.Kind)
	require.NotNil(t, result.Todo)
	assert.Equal(t, StatusInProgress, tc.Todos[0].Status)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "echo", result.Actions[0].ToolName)
}

func TestExecutor_ExecuteNextIteration_HeuristicFallback(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"actions":[{"tool":"","description":"list the files here","arguments":{}}]}`,
	}}
	reg := tool.NewRegistry()
	exec, err := NewExecutor(client, reg, tool.NewDispatcher(reg, time.Second), 0)
	require.NoError(t, err)

	tc := &TaskContext{
		Request:       "list the files here",
		Todos:         []Todo{{Description: "list the files here", Status: StatusPending}},
		MaxIterations: defaultMaxIterations,
	}

	result, err := exec.ExecuteNextIteration(context.Background(), tc)
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "file_list", result.Actions[0].ToolName)
}

func TestExecutor_ExecuteNextIteration_UnmappedActionIsSkipped(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"actions":[{"tool":"","description":"bake a cake","arguments":{}}]}`,
	}}
	reg := tool.NewRegistry()
	exec, err := NewExecutor(client, reg, tool.NewDispatcher(reg, time.Second), 0)
	require.NoError(t, err)

	tc := &TaskContext{
		Request:       "bake a cake",
		Todos:         []Todo{{Description: "bake a cake", Status: StatusPending}},
		MaxIterations: defaultMaxIterations,
	}

	result, err := exec.ExecuteNextIteration(context.Background(), tc)
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, SkippedReason, result.Actions[0].Skipped)
}

func TestExecutor_ExecuteNextIteration_MaxIterations(t *testing.T) {
	client := &scriptedClient{responses: []string{`{}`}}
	reg := tool.NewRegistry()
	exec, err := NewExecutor(client, reg, tool.NewDispatcher(reg, time.Second), 0)
	require.NoError(t, err)

	tc := &TaskContext{Iteration: 10, MaxIterations: 10}
	result, err := exec.ExecuteNextIteration(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, KindMaxIterations, result.Kind)
}

func TestExecutor_ExecuteAndUpdateContext_MarksTodoCompleted(t *testing.T) {
	reg := tool.NewRegistry()
	echo := &stubTool{name: "echo", exec: func(context.Context, map[string]any) (tool.Result, error) {
		return tool.Ok("done", nil), nil
	}}
	require.NoError(t, reg.Register(echo))
	client := &scriptedClient{responses: []string{`{}`}}
	exec, err := NewExecutor(client, reg, tool.NewDispatcher(reg, time.Second), 0)
	require.NoError(t, err)

	tc := &TaskContext{Todos: []Todo{{Description: "echo it", Status: StatusInProgress}}}
	todo := tc.Todos[0]
	actions := []ProposedAction{{ToolName: "echo", Arguments: map[string]any{}}}

	results, err := exec.ExecuteAndUpdateContext(context.Background(), tc, todo, actions)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Result.Success)
	assert.Equal(t, StatusCompleted, tc.Todos[0].Status)
	assert.NotEmpty(t, tc.Todos[0].ResultNote)
	require.Len(t, tc.History, 1)
}

func TestExecutor_ExecuteAndUpdateContext_FailureLeavesTodoInProgress(t *testing.T) {
	reg := tool.NewRegistry()
	failing := &stubTool{name: "breaks", exec: func(context.Context, map[string]any) (tool.Result, error) {
		return tool.Fail("disk full"), nil
	}}
	require.NoError(t, reg.Register(failing))
	client := &scriptedClient{responses: []string{`{}`}}
	exec, err := NewExecutor(client, reg, tool.NewDispatcher(reg, time.Second), 0)
	require.NoError(t, err)

	tc := &TaskContext{Todos: []Todo{{Description: "break it", Status: StatusInProgress}}}
	todo := tc.Todos[0]
	actions := []ProposedAction{{ToolName: "breaks", Arguments: map[string]any{}}}

	_, err = exec.ExecuteAndUpdateContext(context.Background(), tc, todo, actions)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, tc.Todos[0].Status)
}

func TestExecutor_IsTaskComplete(t *testing.T) {
	t.Run("false when todos incomplete", func(t *testing.T) {
		client := &scriptedClient{responses: []string{`{"satisfied":true}`}}
		reg := tool.NewRegistry()
		exec, err := NewExecutor(client, reg, tool.NewDispatcher(reg, time.Second), 0)
		require.NoError(t, err)

		tc := &TaskContext{Todos: []Todo{{Status: StatusPending}}}
		done, err := exec.IsTaskComplete(context.Background(), tc)
		require.NoError(t, err)
		assert.False(t, done)
	})

	t.Run("true only when all completed and LLM confirms", func(t *testing.T) {
		client := &scriptedClient{responses: []string{`{"satisfied":true}`}}
		reg := tool.NewRegistry()
		exec, err := NewExecutor(client, reg, tool.NewDispatcher(reg, time.Second), 0)
		require.NoError(t, err)

		tc := &TaskContext{Todos: []Todo{{Status: StatusCompleted}}}
		done, err := exec.IsTaskComplete(context.Background(), tc)
		require.NoError(t, err)
		assert.True(t, done)
	})
}

func TestConfirmationBridge_ApproveModifyCancel(t *testing.T) {
	t.Run("approve executes", func(t *testing.T) {
		b := NewConfirmationBridge()
		tc := &TaskContext{Request: "x"}
		todo := Todo{Description: "y"}
		actions := []ProposedAction{{ToolName: "echo"}}
		id := b.Register(tc, todo, actions)

		outcome, gotTC, gotTodo, gotActions, err := b.Resolve(id, Resolution{Approved: true})
		require.NoError(t, err)
		assert.Equal(t, OutcomeExecute, outcome)
		assert.Same(t, tc, gotTC)
		assert.Equal(t, todo, gotTodo)
		assert.Equal(t, actions, gotActions)
	})

	t.Run("modify restarts with new input", func(t *testing.T) {
		b := NewConfirmationBridge()
		tc := &TaskContext{Request: "old", Todos: []Todo{{Description: "a"}}, Iteration: 3}
		id := b.Register(tc, Todo{}, nil)

		outcome, gotTC, _, _, err := b.Resolve(id, Resolution{Modified: true, NewInput: "new request"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeRestart, outcome)
		assert.Equal(t, "new request", gotTC.Request)
		assert.Empty(t, gotTC.Todos)
		assert.Zero(t, gotTC.Iteration)
	})

	t.Run("cancel drops the task", func(t *testing.T) {
		b := NewConfirmationBridge()
		tc := &TaskContext{Request: "x"}
		id := b.Register(tc, Todo{}, nil)

		outcome, _, _, _, err := b.Resolve(id, Resolution{Cancelled: true})
		require.NoError(t, err)
		assert.Equal(t, OutcomeDropped, outcome)
	})

	t.Run("unknown id errors", func(t *testing.T) {
		b := NewConfirmationBridge()
		_, _, _, _, err := b.Resolve("missing", Resolution{Approved: true})
		assert.Error(t, err)
	})
}
