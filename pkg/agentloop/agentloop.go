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

// Package agentloop implements the ReAct think/act/observe state machine
// that drives one task to completion against a LlmClient and a ToolRegistry.
package agentloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loopwork-ai/agentrt/pkg/contextstore"
	"github.com/loopwork-ai/agentrt/pkg/llm"
	"github.com/loopwork-ai/agentrt/pkg/tool"
)

// State is a node in the AgentLoop state machine.
type State string

const (
	StateIdle      State = "idle"
	StateThinking  State = "thinking"
	StateActing    State = "acting"
	StateObserving State = "observing"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
	StateError     State = "error"
)

// Mode selects how the loop advances between iterations and tasks.
type Mode string

const (
	// ModeAutonomous runs until a final response, max_iterations, or
	// cancellation, then automatically dequeues the next task.
	ModeAutonomous Mode = "autonomous"
	// ModeInteractive behaves like ModeAutonomous but never auto-dequeues.
	ModeInteractive Mode = "interactive"
	// ModeStep transitions to Paused after every Observe; Step resumes one
	// more iteration.
	ModeStep Mode = "step"
)

// ToolCallMode controls whether a Think iteration's tool calls run
// concurrently or sequentially during Act. Sequential is the default, to
// preserve the order the LLM is allowed to observe results in.
type ToolCallMode string

const (
	ToolCallSequential  ToolCallMode = "sequential"
	ToolCallConcurrent  ToolCallMode = "concurrent"
)

// AgentAction records one dispatched tool call with its outcome.
type AgentAction struct {
	ToolCallID string
	ToolName   string
	Arguments  map[string]any
	Result     tool.Result
	Err        error
	StartedAt  time.Time
	EndedAt    time.Time
}

// Stats accumulates counters across a task's lifetime.
type Stats struct {
	Iterations int
	LLMCalls   int
	TokensUsed int
	ToolCalls  int
}

// Task is one unit of work driven through the state machine.
type Task struct {
	ID          string
	Description string
	Iteration   int
	Done        bool
	Result      string
	Actions     []AgentAction
}

// Config configures an AgentLoop.
type Config struct {
	Client         llm.Client
	Tools          *tool.Registry
	Dispatcher     *tool.Dispatcher
	Store          *contextstore.Store
	Mode           Mode
	ToolCallMode   ToolCallMode
	MaxIterations  int
	Temperature    float64
	MaxTokens      int
	ToolTimeout    time.Duration
	Metrics        *Metrics
}

// AgentLoop drives a queue of Tasks through Think/Act/Observe until each is
// done, paused, stopped, or errored.
type AgentLoop struct {
	mu sync.Mutex

	client        llm.Client
	tools         *tool.Registry
	dispatcher    *tool.Dispatcher
	store         *contextstore.Store
	mode          Mode
	toolCallMode  ToolCallMode
	maxIterations int
	temperature   float64
	maxTokens     int
	toolTimeout   time.Duration
	metrics       *Metrics

	state   State
	stats   Stats
	queue   []*Task
	current *Task

	// resumeState is the state to return to from Paused.
	resumeState State
}

// New builds an AgentLoop. Defaults: ModeAutonomous, ToolCallSequential,
// max_iterations=10.
func New(cfg Config) (*AgentLoop, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("agentloop: Client is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("agentloop: Dispatcher is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("agentloop: Store is required")
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeAutonomous
	}
	toolCallMode := cfg.ToolCallMode
	if toolCallMode == "" {
		toolCallMode = ToolCallSequential
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}

	return &AgentLoop{
		client:        cfg.Client,
		tools:         cfg.Tools,
		dispatcher:    cfg.Dispatcher,
		store:         cfg.Store,
		mode:          mode,
		toolCallMode:  toolCallMode,
		maxIterations: maxIterations,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		toolTimeout:   cfg.ToolTimeout,
		metrics:       cfg.Metrics,
		state:         StateIdle,
	}, nil
}

// State returns the loop's current state.
func (a *AgentLoop) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Stats returns a copy of the accumulated statistics.
func (a *AgentLoop) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// ExecuteTask enqueues a task and, if the loop is Idle, begins running it.
// In every mode a task submitted while the loop is busy is enqueued and
// returned without running it; an error is returned only when the loop is
// stopped.
func (a *AgentLoop) ExecuteTask(ctx context.Context, id, description string) (*Task, error) {
	task := &Task{ID: id, Description: description}

	a.mu.Lock()
	if a.state == StateStopped {
		a.mu.Unlock()
		return nil, fmt.Errorf("agentloop: loop is stopped")
	}
	a.queue = append(a.queue, task)
	idle := a.state == StateIdle
	a.mu.Unlock()

	if !idle {
		return task, nil
	}

	return task, a.run(ctx)
}

// run drains the queue one task at a time, advancing through Think/Act/
// Observe until the current task is done, the loop is paused/stopped, or an
// unrecoverable error occurs.
func (a *AgentLoop) run(ctx context.Context) error {
	for {
		a.mu.Lock()
		if a.current == nil {
			if len(a.queue) == 0 {
				a.state = StateIdle
				a.mu.Unlock()
				return nil
			}
			a.current = a.queue[0]
			a.queue = a.queue[1:]
		}
		a.state = StateThinking
		task := a.current
		a.mu.Unlock()

		for {
			select {
			case <-ctx.Done():
				a.setState(StateError)
				return ctx.Err()
			default:
			}

			done, err := a.iterate(ctx, task)
			if err != nil {
				a.setState(StateError)
				return err
			}

			st := a.State()
			if st == StatePaused || st == StateStopped {
				return nil
			}
			if done {
				break
			}
			if a.mode == ModeStep {
				a.setState(StatePaused)
				a.resumeState = StateThinking
				return nil
			}
		}

		a.mu.Lock()
		a.current = nil
		a.mu.Unlock()

		if a.mode != ModeAutonomous {
			a.setState(StateIdle)
			return nil
		}
	}
}

func (a *AgentLoop) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Pause transitions any non-terminal state to Paused, remembering the state
// to resume into.
func (a *AgentLoop) Pause() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateStopped {
		return fmt.Errorf("agentloop: cannot pause a stopped loop")
	}
	if a.state == StatePaused {
		return nil
	}
	a.resumeState = a.state
	a.state = StatePaused
	return nil
}

// Resume continues a paused loop from where it left off.
func (a *AgentLoop) Resume(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StatePaused {
		a.mu.Unlock()
		return fmt.Errorf("agentloop: loop is not paused")
	}
	a.state = a.resumeState
	a.mu.Unlock()
	return a.run(ctx)
}

// Step resumes a loop paused in ModeStep for exactly one more iteration.
func (a *AgentLoop) Step(ctx context.Context) error {
	return a.Resume(ctx)
}

// Stop transitions to Stopped and clears the task queue.
func (a *AgentLoop) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateStopped
	a.queue = nil
	a.current = nil
}
