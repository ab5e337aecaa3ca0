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

// Package workflow implements a static, dependency-ordered pipeline engine:
// a Workflow is a fixed set of typed steps wired by declared dependencies,
// run by a single Engine that dispatches each step by variant (tool, agent,
// task, parallel, sequential, condition, loop, wait), retries on failure per
// policy, interpolates `${var}` references between steps, and exposes
// pause/resume/cancel/progress over each running execution.
package workflow

import (
	"time"
)

// StepVariant selects how Engine dispatches a Step.
type StepVariant string

const (
	StepTool       StepVariant = "tool"
	StepAgent      StepVariant = "agent"
	StepTask       StepVariant = "task"
	StepParallel   StepVariant = "parallel"
	StepSequential StepVariant = "sequential"
	StepCondition  StepVariant = "condition"
	StepLoop       StepVariant = "loop"
	StepWait       StepVariant = "wait"
)

// Backoff selects the delay formula RetryPolicy applies between attempts.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// RetryPolicy governs whether and how a failed step is retried.
type RetryPolicy struct {
	MaxAttempts int     `yaml:"max_attempts,omitempty"`
	Backoff     Backoff `yaml:"backoff,omitempty"`
	BaseDelayMs int     `yaml:"base_delay_ms,omitempty"`
	// RetryOn is a list of case-insensitive substrings matched against the
	// failure's error message. An empty list matches any failure.
	RetryOn []string `yaml:"retry_on,omitempty"`
}

// OutputMapping copies a value out of a step's result into the execution's
// variables map, visible to every later step.
type OutputMapping struct {
	Variable string `yaml:"variable"`
	Path     string `yaml:"path"` // dotted path into the step result
}

// Step is one node of a Workflow, tagged by Variant. Only the fields
// relevant to Variant are consulted; the rest are ignored.
type Step struct {
	ID           string      `yaml:"id"`
	Variant      StepVariant `yaml:"variant"`
	Dependencies []string    `yaml:"dependencies,omitempty"`

	// Gate, when non-empty, is a condition expression interpolated and
	// evaluated before the step runs; false skips the step (recorded as
	// skipped, not failed).
	Gate string `yaml:"gate,omitempty"`

	Retry           *RetryPolicy    `yaml:"retry,omitempty"`
	TimeoutMs       int             `yaml:"timeout_ms,omitempty"`
	ContinueOnError bool            `yaml:"continue_on_error,omitempty"`
	Output          []OutputMapping `yaml:"output,omitempty"`

	// StepTool
	ToolName  string         `yaml:"tool_name,omitempty"`
	Arguments map[string]any `yaml:"arguments,omitempty"`

	// StepAgent
	AgentID         string `yaml:"agent_id,omitempty"`
	TaskDescription string `yaml:"task_description,omitempty"`

	// StepTask — record-only marker/pipeline node.
	Description string `yaml:"description,omitempty"`

	// StepParallel, StepSequential, and the per-iteration body of StepLoop.
	Steps []Step `yaml:"steps,omitempty"`

	// StepCondition
	Expression string `yaml:"expression,omitempty"`

	// StepLoop
	Items []any `yaml:"items,omitempty"`
	Count int   `yaml:"count,omitempty"`

	// StepWait
	DurationMs      int    `yaml:"duration_ms,omitempty"`
	WaitCondition   string `yaml:"wait_condition,omitempty"`
	CheckIntervalMs int    `yaml:"check_interval_ms,omitempty"`
	MaxWaitMs       int    `yaml:"max_wait_ms,omitempty"`
}

// Workflow is an ordered, named collection of Steps wired by Dependencies.
type Workflow struct {
	ID      string        `yaml:"id"`
	Name    string        `yaml:"name"`
	Steps   []Step        `yaml:"steps"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// StepByID returns the step with the given id, or false if none matches.
func (w *Workflow) StepByID(id string) (Step, bool) {
	for _, s := range w.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}
