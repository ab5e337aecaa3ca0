package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopwork-ai/agentrt/pkg/agentloop"
	"github.com/loopwork-ai/agentrt/pkg/contextstore"
	"github.com/loopwork-ai/agentrt/pkg/llm"
	"github.com/loopwork-ai/agentrt/pkg/tool"
)

func waitForStatus(t *testing.T, es *ExecutionState, want ExecutionStatus, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if es.Status() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("execution did not reach status %q, last seen %q", want, es.Status())
}

func TestEngine_Start_RunsStepsInDependencyOrder(t *testing.T) {
	var ran []string
	mk := func(name string) *stubTool {
		return &stubTool{name: name, exec: func(context.Context, map[string]any) (tool.Result, error) {
			ran = append(ran, name)
			return tool.Ok(name, nil), nil
		}}
	}
	reg := tool.NewRegistry()
	for _, n := range []string{"a", "b", "c", "d"} {
		require.NoError(t, reg.Register(mk(n)))
	}
	engine := NewEngine(Config{Dispatcher: tool.NewDispatcher(reg, time.Second)})

	wf := &Workflow{Steps: []Step{
		{ID: "a", Variant: StepTool, ToolName: "a"},
		{ID: "b", Variant: StepTool, ToolName: "b", Dependencies: []string{"a"}},
		{ID: "c", Variant: StepTool, ToolName: "c", Dependencies: []string{"a"}},
		{ID: "d", Variant: StepTool, ToolName: "d", Dependencies: []string{"b", "c"}},
	}}

	execID, err := engine.Start(context.Background(), wf, StartOptions{})
	require.NoError(t, err)

	es, ok := engine.Get(execID)
	require.True(t, ok)
	waitForStatus(t, es, ExecutionCompleted, time.Second)

	require.Len(t, ran, 4)
	assert.Equal(t, "a", ran[0])
	assert.Equal(t, "d", ran[3])
}

func TestEngine_Start_EmptyWorkflowCompletesImmediately(t *testing.T) {
	engine := NewEngine(Config{Dispatcher: tool.NewDispatcher(tool.NewRegistry(), time.Second)})
	execID, err := engine.Start(context.Background(), &Workflow{}, StartOptions{})
	require.NoError(t, err)

	es, _ := engine.Get(execID)
	waitForStatus(t, es, ExecutionCompleted, time.Second)

	report, err := engine.Progress(execID)
	require.NoError(t, err)
	assert.Equal(t, float64(1), report.Fraction)
}

func TestEngine_PauseResume(t *testing.T) {
	gate := make(chan struct{})
	slow := &stubTool{name: "slow", exec: func(ctx context.Context, _ map[string]any) (tool.Result, error) {
		<-gate
		return tool.Ok("done", nil), nil
	}}
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(slow))
	engine := NewEngine(Config{Dispatcher: tool.NewDispatcher(reg, 5 * time.Second)})

	wf := &Workflow{Steps: []Step{
		{ID: "s1", Variant: StepTool, ToolName: "slow"},
		{ID: "s2", Variant: StepWait, DurationMs: 1},
	}}
	execID, err := engine.Start(context.Background(), wf, StartOptions{})
	require.NoError(t, err)
	es, _ := engine.Get(execID)

	require.NoError(t, engine.Pause(execID))
	close(gate)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, ExecutionPaused, es.Status())

	require.NoError(t, engine.Resume(execID))
	waitForStatus(t, es, ExecutionCompleted, time.Second)
}

func TestEngine_Cancel(t *testing.T) {
	reg := tool.NewRegistry()
	engine := NewEngine(Config{Dispatcher: tool.NewDispatcher(reg, time.Second)})

	wf := &Workflow{Steps: []Step{
		{ID: "w", Variant: StepWait, DurationMs: 10000},
	}}

	var cancelled bool
	engine.bus.On(EventWorkflowCancelled, func(Event) { cancelled = true })

	execID, err := engine.Start(context.Background(), wf, StartOptions{})
	require.NoError(t, err)
	es, _ := engine.Get(execID)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, engine.Cancel(execID))

	waitForStatus(t, es, ExecutionCancelled, time.Second)
	assert.True(t, cancelled)
}

func TestEngine_MaxConcurrentWorkflowsRejectsOverflow(t *testing.T) {
	reg := tool.NewRegistry()
	engine := NewEngine(Config{Dispatcher: tool.NewDispatcher(reg, time.Second), MaxConcurrent: 1})

	wf := &Workflow{Steps: []Step{{ID: "w", Variant: StepWait, DurationMs: 200}}}

	_, err := engine.Start(context.Background(), wf, StartOptions{})
	require.NoError(t, err)

	_, err = engine.Start(context.Background(), wf, StartOptions{})
	assert.Error(t, err)
}

func TestEngine_CleanupExecutions(t *testing.T) {
	reg := tool.NewRegistry()
	engine := NewEngine(Config{Dispatcher: tool.NewDispatcher(reg, time.Second)})

	execID, err := engine.Start(context.Background(), &Workflow{}, StartOptions{})
	require.NoError(t, err)
	es, _ := engine.Get(execID)
	waitForStatus(t, es, ExecutionCompleted, time.Second)

	evicted := engine.CleanupExecutions(-time.Hour)
	assert.Equal(t, 1, evicted)
	_, ok := engine.Get(execID)
	assert.False(t, ok)
}

type stubAgentInvoker struct {
	loop *agentloop.AgentLoop
}

func (s *stubAgentInvoker) ResolveAgent(id string) (*agentloop.AgentLoop, error) {
	return s.loop, nil
}

type oneShotClient struct{ content string }

func (c *oneShotClient) Chat(context.Context, llm.Request) (llm.Response, error) {
	return llm.Response{Content: c.content}, nil
}

func TestEngine_AgentStep(t *testing.T) {
	store := contextstore.NewStore(contextstore.Config{MaxTokens: 10000})
	loop, err := agentloop.New(agentloop.Config{
		Client:     &oneShotClient{content: "the answer is 42"},
		Dispatcher: tool.NewDispatcher(tool.NewRegistry(), time.Second),
		Store:      store,
	})
	require.NoError(t, err)

	engine := NewEngine(Config{
		Dispatcher: tool.NewDispatcher(tool.NewRegistry(), time.Second),
		Agents:     &stubAgentInvoker{loop: loop},
	})

	wf := &Workflow{Steps: []Step{{ID: "ask", Variant: StepAgent, AgentID: "helper", TaskDescription: "what is the answer?"}}}
	execID, err := engine.Start(context.Background(), wf, StartOptions{})
	require.NoError(t, err)

	es, _ := engine.Get(execID)
	waitForStatus(t, es, ExecutionCompleted, time.Second)

	res, ok := es.Result("ask")
	require.True(t, ok)
	assert.Equal(t, "the answer is 42", res.Data)
}
