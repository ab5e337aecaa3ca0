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

package workflow

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// ExecutionStatus is a WorkflowExecutionState's place in its lifecycle.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionPaused    ExecutionStatus = "paused"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// StepResult is one step's outcome, recorded in ExecutionState.Results.
type StepResult struct {
	Data    any
	Success bool
	Error   string
}

// ExecutionState is everything WorkflowEngine owns about one running (or
// finished) Workflow. WorkflowEngine is the only component permitted to
// mutate it; callers observe it through Engine's read-only accessors.
type ExecutionState struct {
	ID       string
	Workflow *Workflow

	mu          sync.Mutex
	variables   map[string]any
	results     map[string]StepResult
	completed   map[string]bool
	failed      map[string]bool
	skipped     map[string]bool
	status      ExecutionStatus
	startedAt   time.Time
	completedAt time.Time
	err         error

	order  []string // topological step order, fixed at Engine.Start
	cursor int       // index into order of the next step to run

	cancelFn context.CancelFunc
	gate     chan struct{} // closed == runnable; replaced + left open while paused
}

func newExecutionState(id string, wf *Workflow, order []string, initial map[string]any, cancelFn context.CancelFunc) *ExecutionState {
	vars := make(map[string]any, len(initial))
	for k, v := range initial {
		vars[k] = v
	}
	gate := make(chan struct{})
	close(gate)
	return &ExecutionState{
		ID:        id,
		Workflow:  wf,
		variables: vars,
		results:   make(map[string]StepResult),
		completed: make(map[string]bool),
		failed:    make(map[string]bool),
		skipped:   make(map[string]bool),
		status:    ExecutionPending,
		order:     order,
		cancelFn:  cancelFn,
		gate:      gate,
	}
}

// Status returns the execution's current status.
func (es *ExecutionState) Status() ExecutionStatus {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.status
}

// Err returns the terminal error, if the execution ended in ExecutionFailed.
func (es *ExecutionState) Err() error {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.err
}

// Variables returns a snapshot of the execution's variables map.
func (es *ExecutionState) Variables() map[string]any {
	es.mu.Lock()
	defer es.mu.Unlock()
	out := make(map[string]any, len(es.variables))
	for k, v := range es.variables {
		out[k] = v
	}
	return out
}

// Failed reports whether stepID has been recorded as failed.
func (es *ExecutionState) Failed(stepID string) bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.failed[stepID]
}

// Result returns the recorded outcome of stepID, if any.
func (es *ExecutionState) Result(stepID string) (StepResult, bool) {
	es.mu.Lock()
	defer es.mu.Unlock()
	r, ok := es.results[stepID]
	return r, ok
}

// Progress returns the fraction of steps that have reached a terminal state
// (completed or skipped), and the total step count.
func (es *ExecutionState) Progress() (fraction float64, total int) {
	es.mu.Lock()
	defer es.mu.Unlock()
	total = len(es.order)
	if total == 0 {
		return 1, 0
	}
	done := 0
	for _, id := range es.order {
		if es.completed[id] || es.skipped[id] {
			done++
		}
	}
	return float64(done) / float64(total), total
}

func (es *ExecutionState) setStatus(s ExecutionStatus) {
	es.mu.Lock()
	es.status = s
	es.mu.Unlock()
}

func (es *ExecutionState) scopeForSteps() map[string]any {
	es.mu.Lock()
	defer es.mu.Unlock()
	scope := make(map[string]any, len(es.variables)+1)
	for k, v := range es.variables {
		scope[k] = v
	}
	stepResults := make(map[string]any, len(es.results))
	for id, r := range es.results {
		stepResults[id] = map[string]any{"data": r.Data, "success": r.Success, "error": r.Error}
	}
	scope["step_results"] = stepResults
	return scope
}

func (es *ExecutionState) recordResult(stepID string, r StepResult, outputs []OutputMapping) {
	es.mu.Lock()
	es.results[stepID] = r
	if r.Success {
		for _, m := range outputs {
			if v, ok := valueAtPath(r.Data, m.Path); ok {
				es.variables[m.Variable] = v
			}
		}
	}
	es.mu.Unlock()
}

func (es *ExecutionState) markCompleted(stepID string) {
	es.mu.Lock()
	es.completed[stepID] = true
	es.mu.Unlock()
}

func (es *ExecutionState) markFailed(stepID string, err error) {
	es.mu.Lock()
	es.failed[stepID] = true
	if es.err == nil {
		es.err = err
	}
	es.mu.Unlock()
}

func (es *ExecutionState) markSkipped(stepID string) {
	es.mu.Lock()
	es.skipped[stepID] = true
	es.mu.Unlock()
}

// awaitRunnable blocks while the execution is paused, returning early with
// ctx's error if ctx is cancelled first.
func (es *ExecutionState) awaitRunnable(ctx context.Context) error {
	es.mu.Lock()
	gate := es.gate
	es.mu.Unlock()
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (es *ExecutionState) pause() {
	es.mu.Lock()
	es.gate = make(chan struct{})
	es.status = ExecutionPaused
	es.mu.Unlock()
}

func (es *ExecutionState) resume() {
	es.mu.Lock()
	close(es.gate)
	es.status = ExecutionRunning
	es.mu.Unlock()
}

// valueAtPath traverses v by a dotted path, descending into map[string]any
// values and indexing into []any values by integer segment.
func valueAtPath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, seg := range splitPath(path) {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}
