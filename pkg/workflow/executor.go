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
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loopwork-ai/agentrt/pkg/agentloop"
	"github.com/loopwork-ai/agentrt/pkg/tool"
)

// ErrCancelled marks a step or execution that stopped because its
// cancellation handle fired. It is never retried.
var ErrCancelled = errors.New("workflow: cancelled")

// AgentInvoker resolves an agent id to a ready-to-use AgentLoop, the only
// coupling a StepAgent step has to the rest of the runtime. WorkflowExecutor
// holds no back-reference to whatever built the AgentLoop.
type AgentInvoker interface {
	ResolveAgent(id string) (*agentloop.AgentLoop, error)
}

// Executor runs a single Step against an ExecutionState: interpolation,
// dispatch by variant, retry, timeout, output mapping, and continue_on_error
// all happen here. Engine drives Executor once per step in dependency order.
type Executor struct {
	dispatcher  *tool.Dispatcher
	agents      AgentInvoker
	bus         *EventBus
	toolTimeout time.Duration
	stepTimeout time.Duration
}

// NewExecutor builds an Executor. agents may be nil if the workflow never
// uses a StepAgent step.
func NewExecutor(dispatcher *tool.Dispatcher, agents AgentInvoker, bus *EventBus, toolTimeout, stepTimeout time.Duration) *Executor {
	return &Executor{dispatcher: dispatcher, agents: agents, bus: bus, toolTimeout: toolTimeout, stepTimeout: stepTimeout}
}

// RunStep executes step against es, retrying per step.Retry and bounding the
// attempt by step's effective timeout. It records the result, mutates
// es.completed/failed/skipped, applies output mapping on success, and
// returns an error only when the step's failure should abort the workflow
// (i.e. continue_on_error is false).
func (x *Executor) RunStep(ctx context.Context, es *ExecutionState, step Step) error {
	if step.Gate != "" {
		scope := es.scopeForSteps()
		ok, err := evaluateCondition(step.Gate, scope)
		if err != nil {
			es.markFailed(step.ID, err)
			x.emit(EventStepFailed, es, step.ID, err)
			return x.fail(step, err)
		}
		if !ok {
			es.markSkipped(step.ID)
			x.emit(EventStepSkipped, es, step.ID, nil)
			return nil
		}
	}

	x.emit(EventStepStarted, es, step.ID, nil)

	var lastErr error
	attempts := 1
	if step.Retry != nil && step.Retry.MaxAttempts > attempts {
		attempts = step.Retry.MaxAttempts
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := es.awaitRunnable(ctx); err != nil {
			return ErrCancelled
		}

		stepCtx, cancel := x.withTimeout(ctx, es, step)
		result, err := x.dispatch(stepCtx, es, step)
		cancel()

		if errors.Is(err, context.Canceled) {
			return ErrCancelled
		}

		if err == nil {
			es.recordResult(step.ID, result, step.Output)
			es.markCompleted(step.ID)
			x.emit(EventStepCompleted, es, step.ID, nil)
			return nil
		}

		lastErr = err
		es.recordResult(step.ID, StepResult{Success: false, Error: err.Error()}, nil)

		if !shouldRetry(step.Retry, attempt, err.Error()) {
			break
		}
		delay := backoffDelay(step.Retry, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ErrCancelled
		}
	}

	es.markFailed(step.ID, lastErr)
	x.emit(EventStepFailed, es, step.ID, lastErr)
	return x.fail(step, lastErr)
}

func (x *Executor) fail(step Step, err error) error {
	if step.ContinueOnError {
		return nil
	}
	return fmt.Errorf("workflow: step %q: %w", step.ID, err)
}

func (x *Executor) withTimeout(ctx context.Context, es *ExecutionState, step Step) (context.Context, context.CancelFunc) {
	timeout := time.Duration(step.TimeoutMs) * time.Millisecond
	if timeout <= 0 && es.Workflow != nil {
		timeout = es.Workflow.Timeout
	}
	if timeout <= 0 {
		timeout = x.stepTimeout
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// dispatch runs one attempt of step, per its variant.
func (x *Executor) dispatch(ctx context.Context, es *ExecutionState, step Step) (StepResult, error) {
	scope := es.scopeForSteps()

	switch step.Variant {
	case StepTool:
		return x.dispatchTool(ctx, step, scope)
	case StepAgent:
		return x.dispatchAgent(ctx, step, scope)
	case StepTask:
		return StepResult{Success: true, Data: map[string]any{
			"description": interpolateString(step.Description, scope),
			"completed":   true,
		}}, nil
	case StepCondition:
		return x.dispatchCondition(step, scope)
	case StepWait:
		return x.dispatchWait(ctx, es, step)
	case StepSequential:
		return x.dispatchSequential(ctx, es, step)
	case StepParallel:
		return x.dispatchParallel(ctx, es, step)
	case StepLoop:
		return x.dispatchLoop(ctx, es, step)
	default:
		return StepResult{}, fmt.Errorf("workflow: unknown step variant %q", step.Variant)
	}
}

func (x *Executor) dispatchTool(ctx context.Context, step Step, scope map[string]any) (StepResult, error) {
	args, _ := interpolateValue(step.Arguments, scope).(map[string]any)
	res, err := x.dispatcher.Dispatch(ctx, step.ToolName, args, x.toolTimeout)
	if err != nil {
		return StepResult{}, err
	}
	if !res.Success {
		return StepResult{}, fmt.Errorf("%s", res.Error)
	}
	return StepResult{Success: true, Data: res.Data, Error: res.Error}, nil
}

func (x *Executor) dispatchAgent(ctx context.Context, step Step, scope map[string]any) (StepResult, error) {
	if x.agents == nil {
		return StepResult{}, fmt.Errorf("workflow: no AgentInvoker configured for agent step %q", step.ID)
	}
	loop, err := x.agents.ResolveAgent(step.AgentID)
	if err != nil {
		return StepResult{}, err
	}
	description := interpolateString(step.TaskDescription, scope)
	task, err := loop.ExecuteTask(ctx, step.ID, description)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{Success: true, Data: task.Result}, nil
}

func (x *Executor) dispatchCondition(step Step, scope map[string]any) (StepResult, error) {
	ok, err := evaluateCondition(step.Expression, scope)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{Success: true, Data: ok}, nil
}

func (x *Executor) dispatchWait(ctx context.Context, es *ExecutionState, step Step) (StepResult, error) {
	if step.WaitCondition == "" {
		d := time.Duration(step.DurationMs) * time.Millisecond
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return StepResult{Success: true}, nil
		case <-ctx.Done():
			return StepResult{}, ctx.Err()
		}
	}

	interval := time.Duration(step.CheckIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(time.Duration(step.MaxWaitMs) * time.Millisecond)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		scope := es.scopeForSteps()
		ok, err := evaluateCondition(step.WaitCondition, scope)
		if err != nil {
			return StepResult{}, err
		}
		if ok {
			return StepResult{Success: true}, nil
		}
		if time.Now().After(deadline) {
			return StepResult{}, fmt.Errorf("workflow: wait condition timed out after %dms", step.MaxWaitMs)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return StepResult{}, ctx.Err()
		}
	}
}

func (x *Executor) dispatchSequential(ctx context.Context, es *ExecutionState, step Step) (StepResult, error) {
	for _, sub := range step.Steps {
		if err := x.RunStep(ctx, es, sub); err != nil {
			return StepResult{}, err
		}
	}
	return StepResult{Success: true}, nil
}

func (x *Executor) dispatchParallel(ctx context.Context, es *ExecutionState, step Step) (StepResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, sub := range step.Steps {
		sub := sub
		g.Go(func() error {
			return x.RunStep(gctx, es, sub)
		})
	}
	if err := g.Wait(); err != nil && !step.ContinueOnError {
		return StepResult{}, err
	}
	return StepResult{Success: true}, nil
}

func (x *Executor) dispatchLoop(ctx context.Context, es *ExecutionState, step Step) (StepResult, error) {
	items := step.Items
	if items == nil && step.Count > 0 {
		items = make([]any, step.Count)
		for i := range items {
			items[i] = i
		}
	}

	results := make([]any, 0, len(items))
	for i, item := range items {
		es.mu.Lock()
		es.variables["item"] = item
		es.variables["index"] = i
		es.variables["count"] = len(items)
		es.mu.Unlock()

		for _, sub := range step.Steps {
			subID := fmt.Sprintf("%s[%d].%s", step.ID, i, sub.ID)
			iterStep := sub
			iterStep.ID = subID
			if err := x.RunStep(ctx, es, iterStep); err != nil {
				return StepResult{}, err
			}
			if r, ok := es.Result(subID); ok {
				results = append(results, r.Data)
			}
		}
	}
	return StepResult{Success: true, Data: results}, nil
}

func (x *Executor) emit(t EventType, es *ExecutionState, stepID string, err error) {
	if x.bus == nil {
		return
	}
	x.bus.Emit(Event{Type: t, ExecutionID: es.ID, StepID: stepID, Err: err})
}

func interpolateString(s string, scope map[string]any) string {
	v := interpolate(s, scope)
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", v)
}
