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
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Resolution is the shape of the user's reply to a pending confirmation.
type Resolution struct {
	Approved  bool
	Modified  bool
	NewInput  string
	Cancelled bool
}

// pendingConfirmation is what ConfirmationBridge remembers between issuing
// a NeedsConfirmation result and the caller resolving it.
type pendingConfirmation struct {
	taskCtx *TaskContext
	todo    Todo
	actions []ProposedAction
}

// Outcome classifies how a confirmation was resolved, for the caller above
// ConfirmationBridge to act on.
type Outcome string

const (
	// OutcomeExecute means the caller should dispatch actions and continue
	// the loop (the confirmationId's pending state is now consumed).
	OutcomeExecute Outcome = "execute"
	// OutcomeRestart means the caller should reset the TaskContext and
	// start over with NewInput.
	OutcomeRestart Outcome = "restart"
	// OutcomeDropped means the task was cancelled and should be discarded.
	OutcomeDropped Outcome = "dropped"
)

// ConfirmationBridge sits above Executor, correlating a confirmationId with
// the TaskContext/Todo/Actions a NeedsConfirmation result produced, so a
// human's later approve/modify/cancel reply can be routed back to the right
// in-flight task.
type ConfirmationBridge struct {
	mu      sync.Mutex
	pending map[string]pendingConfirmation
}

// NewConfirmationBridge returns an empty, ready-to-use bridge.
func NewConfirmationBridge() *ConfirmationBridge {
	return &ConfirmationBridge{pending: make(map[string]pendingConfirmation)}
}

// Register stores a pending confirmation and returns its id.
func (b *ConfirmationBridge) Register(tc *TaskContext, todo Todo, actions []ProposedAction) string {
	id := uuid.New().String()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[id] = pendingConfirmation{taskCtx: tc, todo: todo, actions: actions}
	return id
}

// Resolve maps a user's Resolution into an Outcome plus the data the caller
// needs to act on it: the TaskContext, Todo, and Actions for OutcomeExecute,
// or just the TaskContext (reset to a fresh request) for OutcomeRestart.
func (b *ConfirmationBridge) Resolve(confirmationID string, res Resolution) (Outcome, *TaskContext, Todo, []ProposedAction, error) {
	b.mu.Lock()
	p, ok := b.pending[confirmationID]
	if ok {
		delete(b.pending, confirmationID)
	}
	b.mu.Unlock()

	if !ok {
		return "", nil, Todo{}, nil, fmt.Errorf("task: unknown confirmation id %q", confirmationID)
	}

	switch {
	case res.Cancelled:
		return OutcomeDropped, p.taskCtx, Todo{}, nil, nil
	case res.Modified:
		p.taskCtx.Request = res.NewInput
		p.taskCtx.Todos = nil
		p.taskCtx.Iteration = 0
		p.taskCtx.History = nil
		return OutcomeRestart, p.taskCtx, Todo{}, nil, nil
	case res.Approved:
		return OutcomeExecute, p.taskCtx, p.todo, p.actions, nil
	default:
		return OutcomeDropped, p.taskCtx, Todo{}, nil, nil
	}
}
