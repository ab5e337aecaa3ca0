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

package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loopwork-ai/agentrt/pkg/llm"
	"github.com/loopwork-ai/agentrt/pkg/tool"
)

// Kind identifies the shape of an IterationResult.
type Kind string

const (
	KindNeedsConfirmation Kind = "needs_confirmation"
	KindTaskComplete      Kind = "task_complete"
	KindMaxIterations     Kind = "max_iterations"
	KindError             Kind = "error"
)

// IterationResult is the return value of ExecuteNextIteration.
type IterationResult struct {
	Kind    Kind
	Todo    *Todo
	Actions []ProposedAction
	Message string // set when Kind == KindError
}

const defaultMaxIterations = 10

// Executor runs the gated todo-by-todo loop described by §4.4, planning
// actions through an LlmClient and dispatching them through a
// tool.Dispatcher once a caller confirms.
type Executor struct {
	client      llm.Client
	tools       *tool.Registry
	dispatcher  *tool.Dispatcher
	toolTimeout time.Duration
}

// NewExecutor builds an Executor.
func NewExecutor(client llm.Client, tools *tool.Registry, dispatcher *tool.Dispatcher, toolTimeout time.Duration) (*Executor, error) {
	if client == nil {
		return nil, errNoClient
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("task: Dispatcher is required")
	}
	return &Executor{client: client, tools: tools, dispatcher: dispatcher, toolTimeout: toolTimeout}, nil
}

// CreateInitialTask asks the LlmClient to decompose request into an ordered
// todo list and to classify the request as a simple, single-step,
// read-only query.
func (e *Executor) CreateInitialTask(ctx context.Context, request string) (*TaskContext, error) {
	out := askForJSON(ctx, e.client,
		`Decompose the user's request into an ordered list of todos. Respond with JSON only: `+
			`{"todos": [{"description": "...", "active_form": "..."}], "is_simple_query": true|false}. `+
			`is_simple_query is true only for a single-step, read-only request.`,
		request,
	)

	var todos []Todo
	for _, raw := range mapSliceField(out, "todos") {
		desc := stringField(raw, "description")
		if desc == "" {
			continue
		}
		todos = append(todos, Todo{
			Description: desc,
			ActiveForm:  stringField(raw, "active_form"),
			Status:      StatusPending,
		})
	}
	if len(todos) == 0 {
		todos = []Todo{{Description: request, ActiveForm: request, Status: StatusPending}}
	}

	return &TaskContext{
		ID:            uuid.New().String(),
		Request:       request,
		Todos:         todos,
		MaxIterations: defaultMaxIterations,
		IsSimpleQuery: boolField(out, "is_simple_query"),
		CreatedAt:     time.Now(),
	}, nil
}

// ExecuteNextIteration runs one pass of the §4.4 algorithm: check the
// iteration budget, optionally reconcile the todo list against progress so
// far, pick the next pending todo, and plan actions for it.
func (e *Executor) ExecuteNextIteration(ctx context.Context, tc *TaskContext) (IterationResult, error) {
	if tc.Iteration >= tc.MaxIterations {
		return IterationResult{Kind: KindMaxIterations}, nil
	}
	tc.Iteration++

	if len(tc.History) > 0 {
		complete, err := e.analyseProgress(ctx, tc)
		if err != nil {
			return IterationResult{Kind: KindError, Message: err.Error()}, nil
		}
		if complete || tc.allCompleted() {
			done, err := e.IsTaskComplete(ctx, tc)
			if err != nil {
				return IterationResult{Kind: KindError, Message: err.Error()}, nil
			}
			if done {
				return IterationResult{Kind: KindTaskComplete}, nil
			}
		}
	}

	idx := tc.firstPendingIndex()
	if idx < 0 {
		done, err := e.IsTaskComplete(ctx, tc)
		if err != nil {
			return IterationResult{Kind: KindError, Message: err.Error()}, nil
		}
		if done {
			return IterationResult{Kind: KindTaskComplete}, nil
		}
		return IterationResult{Kind: KindError, Message: "no pending todos remain but the request is not satisfied"}, nil
	}
	tc.Todos[idx].Status = StatusInProgress
	todo := tc.Todos[idx]

	actions := e.planActions(ctx, todo)

	return IterationResult{Kind: KindNeedsConfirmation, Todo: &todo, Actions: actions}, nil
}

// analyseProgress calls the LLM to reconcile the todo list against
// execution history so far, applying its requested mutations in place.
// Returns whether the LLM judges the overall request complete.
func (e *Executor) analyseProgress(ctx context.Context, tc *TaskContext) (bool, error) {
	summary := summarizeHistory(tc.History)
	out := askForJSON(ctx, e.client,
		`Given the original request and execution history so far, respond with JSON only: `+
			`{"insights": "...", "new_todos": ["..."], "remove_todos": ["..."], "is_complete": true|false, "reasoning": "..."}. `+
			`remove_todos and new_todos refer to todo descriptions.`,
		fmt.Sprintf("Request: %s\n\nHistory:\n%s", tc.Request, summary),
	)

	tc.removeByDescription(stringSliceField(out, "remove_todos"))
	tc.appendNew(stringSliceField(out, "new_todos"))

	return boolField(out, "is_complete"), nil
}

// planActions asks the LLM to propose tool calls for todo, given the
// registry's tool definitions. A tool name the LLM itself produced is used
// verbatim; otherwise the §4.5 heuristic is applied as a fallback.
func (e *Executor) planActions(ctx context.Context, todo Todo) []ProposedAction {
	var toolNames []string
	if e.tools != nil {
		for _, def := range e.tools.Definitions() {
			toolNames = append(toolNames, fmt.Sprintf("%s: %s", def.Name, def.Description))
		}
	}

	out := askForJSON(ctx, e.client,
		fmt.Sprintf(`Plan the tool calls needed to accomplish one todo. Available tools:\n%v\n`+
			`Respond with JSON only: {"actions": [{"tool": "tool_name_or_empty", "arguments": {...}}]}. `+
			`Use a tool name from the list verbatim when one applies; otherwise leave "tool" empty and `+
			`describe the action in "description".`, toolNames),
		fmt.Sprintf("Todo: %s", todo.Description),
	)

	var actions []ProposedAction
	for _, raw := range mapSliceField(out, "actions") {
		name := stringField(raw, "tool")
		args, _ := raw["arguments"].(map[string]any)

		if name == "" || !e.isKnownTool(name) {
			desc := stringField(raw, "description")
			if desc == "" {
				desc = todo.Description
			}
			mapped, ok := MapVerbToTool(desc)
			if ok && mapped == "command_execute" {
				if _, hasCmd := args["command"]; !hasCmd {
					ok = false
				}
			}
			if !ok {
				actions = append(actions, ProposedAction{Skipped: SkippedReason})
				continue
			}
			name = mapped
		}

		actions = append(actions, ProposedAction{ToolName: name, Arguments: args})
	}

	if len(actions) == 0 {
		if mapped, ok := MapVerbToTool(todo.Description); ok {
			actions = append(actions, ProposedAction{ToolName: mapped, Arguments: map[string]any{}})
		} else {
			actions = append(actions, ProposedAction{Skipped: SkippedReason})
		}
	}

	return actions
}

func (e *Executor) isKnownTool(name string) bool {
	if e.tools == nil {
		return false
	}
	_, err := e.tools.Get(name)
	return err == nil
}

// ExecuteAndUpdateContext dispatches every action through the Tool
// contract, appends the outcome to execution history, and marks todo
// completed (with a brief result note) if any action succeeded.
func (e *Executor) ExecuteAndUpdateContext(ctx context.Context, tc *TaskContext, todo Todo, actions []ProposedAction) ([]ActionResult, error) {
	results := make([]ActionResult, 0, len(actions))
	anySucceeded := false
	var note string

	for _, action := range actions {
		if action.Skipped != "" {
			results = append(results, ActionResult{Action: action, Result: tool.Fail(action.Skipped)})
			continue
		}

		res, err := e.dispatcher.Dispatch(ctx, action.ToolName, action.Arguments, e.toolTimeout)
		if err != nil {
			res = tool.Fail(err.Error())
		}
		results = append(results, ActionResult{Action: action, Result: res, Err: err})

		if res.Success && !anySucceeded {
			anySucceeded = true
			note = fmt.Sprintf("%s: %v", action.ToolName, res.Data)
		}
	}

	record := ExecutionRecord{Todo: todo, Actions: actions, Results: results}
	tc.History = append(tc.History, record)

	if anySucceeded {
		for i := range tc.Todos {
			if tc.Todos[i].Description == todo.Description && tc.Todos[i].Status != StatusCompleted {
				tc.Todos[i].Status = StatusCompleted
				tc.Todos[i].ResultNote = note
				break
			}
		}
	}

	return results, nil
}

// IsTaskComplete is true only if every todo is completed and the LLM
// confirms the original request has been satisfied.
func (e *Executor) IsTaskComplete(ctx context.Context, tc *TaskContext) (bool, error) {
	if !tc.allCompleted() {
		return false, nil
	}

	out := askForJSON(ctx, e.client,
		`Given the original request and what was done, respond with JSON only: {"satisfied": true|false}.`,
		fmt.Sprintf("Request: %s\n\nHistory:\n%s", tc.Request, summarizeHistory(tc.History)),
	)
	return boolField(out, "satisfied"), nil
}

// InterpretResults produces a natural-language answer from execution
// history, for simple queries or on task completion.
func (e *Executor) InterpretResults(ctx context.Context, tc *TaskContext) (string, error) {
	resp, err := e.client.Chat(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "Summarize the outcome of the request in plain language for the user."},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Request: %s\n\nHistory:\n%s", tc.Request, summarizeHistory(tc.History))},
		},
	})
	if err != nil {
		return "", fmt.Errorf("task: interpret results: %w", err)
	}
	return resp.Content, nil
}

func summarizeHistory(history []ExecutionRecord) string {
	var out string
	for _, rec := range history {
		out += fmt.Sprintf("- %s (%s)\n", rec.Todo.Description, rec.Todo.Status)
		for _, res := range rec.Results {
			if res.Result.Success {
				out += fmt.Sprintf("    ok: %v\n", res.Result.Data)
			} else {
				out += fmt.Sprintf("    failed: %s\n", res.Result.Error)
			}
		}
	}
	return out
}
