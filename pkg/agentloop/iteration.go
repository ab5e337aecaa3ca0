// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agentloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/loopwork-ai/agentrt/pkg/contextstore"
	"github.com/loopwork-ai/agentrt/pkg/llm"
	"github.com/loopwork-ai/agentrt/pkg/tool"
)

const maxIterationsMessage = "max iterations reached"

// iterate runs exactly one Think, and if the LLM proposed tool calls, one
// Act and one Observe. Returns done=true once the task has reached a
// terminal outcome (final response or max_iterations).
func (a *AgentLoop) iterate(ctx context.Context, task *Task) (bool, error) {
	if task.Iteration >= a.maxIterations {
		a.store.AddMessage(contextstore.Message{
			Role:    contextstore.RoleAssistant,
			Content: maxIterationsMessage,
		}, contextstore.AddOptions{})
		task.Done = true
		task.Result = maxIterationsMessage
		return true, nil
	}
	task.Iteration++

	a.mu.Lock()
	a.stats.Iterations++
	a.mu.Unlock()
	if a.metrics != nil {
		a.metrics.ObserveIteration()
	}

	resp, err := a.think(ctx, task)
	if err != nil {
		return false, fmt.Errorf("agentloop: think: %w", err)
	}

	if len(resp.Message.ToolCalls) == 0 {
		task.Done = true
		task.Result = resp.Content
		return true, nil
	}

	a.setState(StateActing)
	actions := a.act(ctx, task, resp.Message.ToolCalls)

	a.setState(StateObserving)
	a.observe(actions)

	a.setState(StateThinking)
	return false, nil
}

// think builds the LLM request from the store's current view, sends it, and
// appends the assistant's reply (including any embedded tool calls) to the
// store.
func (a *AgentLoop) think(ctx context.Context, task *Task) (llm.Response, error) {
	a.setState(StateThinking)

	messages := toLLMMessages(a.store.MessagesForLLM())

	req := llm.Request{
		Messages:    messages,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}
	if a.tools != nil {
		for _, def := range a.tools.Definitions() {
			req.Tools = append(req.Tools, llm.ToolDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  paramsToSchema(def.Parameters),
			})
		}
	}

	resp, err := a.client.Chat(ctx, req)

	a.mu.Lock()
	a.stats.LLMCalls++
	a.stats.TokensUsed += resp.Usage.TotalTokens
	a.mu.Unlock()
	if a.metrics != nil {
		a.metrics.ObserveLLMCall(resp.Usage.TotalTokens)
	}

	if err != nil {
		return resp, err
	}

	var toolCalls []contextstore.ToolCall
	for _, tc := range resp.Message.ToolCalls {
		toolCalls = append(toolCalls, contextstore.ToolCall{
			ID:        tc.ID,
			ToolName:  tc.Name,
			Arguments: tc.Arguments,
		})
	}
	a.store.AddMessage(contextstore.Message{
		Role:      contextstore.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: toolCalls,
	}, contextstore.AddOptions{})

	return resp, nil
}

// act dispatches every tool call the LLM proposed, sequentially unless the
// loop was configured for concurrent dispatch.
func (a *AgentLoop) act(ctx context.Context, task *Task, calls []llm.ToolCall) []AgentAction {
	actions := make([]AgentAction, len(calls))

	dispatchOne := func(i int) {
		tc := calls[i]
		actions[i] = a.dispatchToolCall(ctx, tc)
	}

	if a.toolCallMode == ToolCallConcurrent {
		var wg sync.WaitGroup
		for i := range calls {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				dispatchOne(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range calls {
			dispatchOne(i)
		}
	}

	task.Actions = append(task.Actions, actions...)

	a.mu.Lock()
	a.stats.ToolCalls += len(actions)
	a.mu.Unlock()

	return actions
}

func (a *AgentLoop) dispatchToolCall(ctx context.Context, tc llm.ToolCall) AgentAction {
	action := AgentAction{
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Arguments:  tc.Arguments,
		StartedAt:  time.Now(),
	}

	start := time.Now()
	result, err := a.dispatcher.Dispatch(ctx, tc.Name, tc.Arguments, a.toolTimeout)
	action.EndedAt = time.Now()
	action.Result = result
	action.Err = err

	if a.metrics != nil {
		a.metrics.ObserveToolDispatch(tc.Name, time.Since(start), err == nil && result.Success)
	}

	if err != nil {
		var derr *tool.DispatchError
		if errors.As(err, &derr) {
			action.Result = tool.Fail(derr.Error())
		} else {
			action.Result = tool.Fail(err.Error())
		}
	}

	return action
}

// observe appends one tool-role message per dispatched action, linked to its
// originating call by tool_call_id. A failed dispatch feeds its error text
// back verbatim so the next Think can react to it.
func (a *AgentLoop) observe(actions []AgentAction) {
	for _, action := range actions {
		content := resultContent(action.Result)
		a.store.AddMessage(contextstore.Message{
			Role:       contextstore.RoleTool,
			Content:    content,
			ToolCallID: action.ToolCallID,
		}, contextstore.AddOptions{})
	}
}

func resultContent(r tool.Result) string {
	if !r.Success {
		return r.Error
	}
	if s, ok := r.Data.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", r.Data)
}

func toLLMMessages(msgs []contextstore.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		lm := llm.Message{
			Role:       llm.Role(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			lm.ToolCalls = append(lm.ToolCalls, llm.ToolCall{
				ID:        tc.ID,
				Name:      tc.ToolName,
				Arguments: tc.Arguments,
			})
		}
		out = append(out, lm)
	}
	return out
}

func paramsToSchema(params map[string]tool.Parameter) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for name, p := range params {
		properties[name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
