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

// Package task implements the gated, todo-driven execution loop that sits
// above agentloop for user-facing conversational tasks: decompose a request
// into todos, propose actions one todo at a time, and require a
// confirmation round-trip before each batch of actions is dispatched.
package task

import (
	"time"

	"github.com/loopwork-ai/agentrt/pkg/tool"
)

// Status is a Todo's place in its own lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"

	// StatusFailed is reached only through explicit user/LLM marking, never
	// automatically assigned by ExecuteNextIteration or ExecuteAndUpdateContext.
	StatusFailed Status = "failed"
)

// MarkFailed explicitly fails the named todo. It is the only path to
// StatusFailed; nothing else in this package assigns it.
func (tc *TaskContext) MarkFailed(description, note string) {
	for i := range tc.Todos {
		if tc.Todos[i].Description == description {
			tc.Todos[i].Status = StatusFailed
			tc.Todos[i].ResultNote = note
			return
		}
	}
}

// Todo is one step of a decomposed request.
type Todo struct {
	Description string
	ActiveForm  string
	Status      Status
	ResultNote  string
}

// ProposedAction is one tool invocation planned for a Todo, not yet
// dispatched.
type ProposedAction struct {
	ToolName  string
	Arguments map[string]any
	Skipped   string // non-empty when the planner couldn't map this action to a tool
}

// ActionResult pairs a dispatched ProposedAction with its outcome.
type ActionResult struct {
	Action ProposedAction
	Result tool.Result
	Err    error
}

// ExecutionRecord is one completed todo attempt, appended to TaskContext's
// history so analyse_progress has something to reason over.
type ExecutionRecord struct {
	Todo    Todo
	Actions []ProposedAction
	Results []ActionResult
}

// TaskContext is the gated loop's state, created by CreateInitialTask and
// threaded through every subsequent ExecuteNextIteration call.
type TaskContext struct {
	ID            string
	Request       string
	Todos         []Todo
	Iteration     int
	MaxIterations int
	IsSimpleQuery bool
	History       []ExecutionRecord
	CreatedAt     time.Time
}

// firstPendingIndex returns the index of the first pending todo, or -1.
func (tc *TaskContext) firstPendingIndex() int {
	for i := range tc.Todos {
		if tc.Todos[i].Status == StatusPending {
			return i
		}
	}
	return -1
}

// allCompleted reports whether every todo has reached StatusCompleted.
func (tc *TaskContext) allCompleted() bool {
	if len(tc.Todos) == 0 {
		return false
	}
	for _, td := range tc.Todos {
		if td.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// removeByDescription deletes every todo whose Description is in names.
func (tc *TaskContext) removeByDescription(names []string) {
	if len(names) == 0 {
		return
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := tc.Todos[:0]
	for _, td := range tc.Todos {
		if !drop[td.Description] {
			kept = append(kept, td)
		}
	}
	tc.Todos = kept
}

// appendNew adds newly surfaced todos as pending.
func (tc *TaskContext) appendNew(descriptions []string) {
	for _, d := range descriptions {
		if d == "" {
			continue
		}
		tc.Todos = append(tc.Todos, Todo{Description: d, Status: StatusPending})
	}
}
