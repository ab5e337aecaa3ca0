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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loopwork-ai/agentrt/pkg/tool"
)

// Config configures an Engine.
type Config struct {
	Dispatcher         *tool.Dispatcher
	Agents             AgentInvoker
	Bus                *EventBus
	ToolTimeout        time.Duration
	DefaultStepTimeout time.Duration // used when a step and its workflow set no timeout
	MaxConcurrent      int
}

// StartOptions configures one call to Engine.Start.
type StartOptions struct {
	ExecutionID      string
	InitialVariables map[string]any
	SkipValidation   bool
	Metadata         map[string]any
}

// Engine is the single owner of every ExecutionState it creates: it runs
// each execution's steps in dependency order on its own goroutine, honours
// pause/resume/cancel, and emits lifecycle events to its EventBus.
type Engine struct {
	executor *Executor
	bus      *EventBus

	defaultStepTimeout time.Duration
	maxConcurrent      int

	mu         sync.Mutex
	executions map[string]*ExecutionState
	running    int
}

// NewEngine builds an Engine. MaxConcurrent <= 0 means unbounded.
func NewEngine(cfg Config) *Engine {
	bus := cfg.Bus
	if bus == nil {
		bus = NewEventBus(nil)
	}
	stepTimeout := cfg.DefaultStepTimeout
	if stepTimeout <= 0 {
		stepTimeout = 60 * time.Second
	}
	return &Engine{
		executor:           NewExecutor(cfg.Dispatcher, cfg.Agents, bus, cfg.ToolTimeout, stepTimeout),
		bus:                bus,
		defaultStepTimeout: stepTimeout,
		maxConcurrent:      cfg.MaxConcurrent,
		executions:         make(map[string]*ExecutionState),
	}
}

// Get returns a running or finished execution's state by id.
func (e *Engine) Get(executionID string) (*ExecutionState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	es, ok := e.executions[executionID]
	return es, ok
}

// Start validates workflow (unless opts.SkipValidation), registers a new
// ExecutionState, and runs it asynchronously. It fails without starting
// anything if MaxConcurrent running executions are already in flight.
func (e *Engine) Start(ctx context.Context, workflow *Workflow, opts StartOptions) (string, error) {
	order, err := topologicalOrder(workflow)
	if err != nil && !opts.SkipValidation {
		return "", err
	}
	if opts.SkipValidation && order == nil {
		order = make([]string, len(workflow.Steps))
		for i, s := range workflow.Steps {
			order[i] = s.ID
		}
	}

	e.mu.Lock()
	if e.maxConcurrent > 0 && e.running >= e.maxConcurrent {
		e.mu.Unlock()
		return "", fmt.Errorf("workflow: max_concurrent_workflows (%d) exceeded", e.maxConcurrent)
	}
	e.running++
	e.mu.Unlock()

	execID := opts.ExecutionID
	if execID == "" {
		execID = uuid.New().String()
	}

	runCtx, cancel := context.WithCancel(ctx)
	es := newExecutionState(execID, workflow, order, opts.InitialVariables, cancel)

	e.mu.Lock()
	e.executions[execID] = es
	e.mu.Unlock()

	go e.run(runCtx, es)

	return execID, nil
}

func (e *Engine) run(ctx context.Context, es *ExecutionState) {
	defer func() {
		e.mu.Lock()
		e.running--
		e.mu.Unlock()
	}()

	es.setStatus(ExecutionRunning)
	es.mu.Lock()
	es.startedAt = time.Now()
	es.mu.Unlock()
	e.bus.Emit(Event{Type: EventWorkflowStarted, ExecutionID: es.ID})

	var runErr error
	for es.cursor < len(es.order) {
		if err := es.awaitRunnable(ctx); err != nil {
			runErr = ErrCancelled
			break
		}
		stepID := es.order[es.cursor]
		step, ok := es.Workflow.StepByID(stepID)
		if !ok {
			runErr = fmt.Errorf("workflow: unknown step %q in execution order", stepID)
			break
		}

		if err := e.executor.RunStep(ctx, es, step); err != nil {
			runErr = err
			break
		}
		es.cursor++

		frac, _ := es.Progress()
		e.bus.Emit(Event{Type: EventProgressUpdated, ExecutionID: es.ID, Progress: frac})
	}

	es.mu.Lock()
	es.completedAt = time.Now()
	es.mu.Unlock()

	switch {
	case runErr == ErrCancelled:
		es.setStatus(ExecutionCancelled)
		e.bus.Emit(Event{Type: EventWorkflowCancelled, ExecutionID: es.ID})
	case runErr != nil:
		es.mu.Lock()
		es.err = runErr
		es.mu.Unlock()
		es.setStatus(ExecutionFailed)
		e.bus.Emit(Event{Type: EventWorkflowFailed, ExecutionID: es.ID, Err: runErr})
	default:
		es.setStatus(ExecutionCompleted)
		e.bus.Emit(Event{Type: EventWorkflowCompleted, ExecutionID: es.ID})
	}
}

// Pause transitions a running execution to paused. Fails if it is not
// currently running.
func (e *Engine) Pause(executionID string) error {
	es, ok := e.Get(executionID)
	if !ok {
		return fmt.Errorf("workflow: unknown execution %q", executionID)
	}
	if es.Status() != ExecutionRunning {
		return fmt.Errorf("workflow: execution %q is not running", executionID)
	}
	es.pause()
	e.bus.Emit(Event{Type: EventWorkflowPaused, ExecutionID: executionID})
	return nil
}

// Resume transitions a paused execution back to running, continuing from
// the next not-yet-completed step in order.
func (e *Engine) Resume(executionID string) error {
	es, ok := e.Get(executionID)
	if !ok {
		return fmt.Errorf("workflow: unknown execution %q", executionID)
	}
	if es.Status() != ExecutionPaused {
		return fmt.Errorf("workflow: execution %q is not paused", executionID)
	}
	es.resume()
	e.bus.Emit(Event{Type: EventWorkflowResumed, ExecutionID: executionID})
	return nil
}

// Cancel signals executionID's cancellation handle. Requires the execution
// to be pending, running, or paused.
func (e *Engine) Cancel(executionID string) error {
	es, ok := e.Get(executionID)
	if !ok {
		return fmt.Errorf("workflow: unknown execution %q", executionID)
	}
	switch es.Status() {
	case ExecutionPending, ExecutionRunning, ExecutionPaused:
	default:
		return fmt.Errorf("workflow: execution %q is not cancellable from status %q", executionID, es.Status())
	}
	if es.Status() == ExecutionPaused {
		// unblock the paused goroutine so it observes cancellation promptly
		es.resume()
	}
	es.cancelFn()
	return nil
}

// ProgressReport is the result of Progress.
type ProgressReport struct {
	Fraction          float64
	CompletedSteps    int
	TotalSteps        int
	EstimatedRemaining time.Duration
}

// Progress reports executionID's completion fraction and an estimated time
// remaining extrapolated from the average time per completed step so far.
func (e *Engine) Progress(executionID string) (ProgressReport, error) {
	es, ok := e.Get(executionID)
	if !ok {
		return ProgressReport{}, fmt.Errorf("workflow: unknown execution %q", executionID)
	}
	frac, total := es.Progress()

	es.mu.Lock()
	completed := len(es.completed) + len(es.skipped)
	started := es.startedAt
	es.mu.Unlock()

	var remaining time.Duration
	if completed > 0 && !started.IsZero() {
		elapsed := time.Since(started)
		avg := elapsed / time.Duration(completed)
		remaining = avg * time.Duration(total-completed)
	}

	return ProgressReport{Fraction: frac, CompletedSteps: completed, TotalSteps: total, EstimatedRemaining: remaining}, nil
}

// CleanupExecutions evicts terminal executions whose completion timestamp is
// older than olderThan.
func (e *Engine) CleanupExecutions(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	e.mu.Lock()
	defer e.mu.Unlock()

	evicted := 0
	for id, es := range e.executions {
		es.mu.Lock()
		terminal := es.status == ExecutionCompleted || es.status == ExecutionFailed || es.status == ExecutionCancelled
		completedAt := es.completedAt
		es.mu.Unlock()
		if terminal && completedAt.Before(cutoff) {
			delete(e.executions, id)
			evicted++
		}
	}
	return evicted
}
