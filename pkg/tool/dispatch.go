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

package tool

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a dispatch failure so callers can branch with errors.Is
// instead of matching error text.
type Kind string

const (
	KindNotFound         Kind = "tool_not_found"
	KindInvalidArguments Kind = "invalid_arguments"
	KindTimeout          Kind = "timeout"
)

// DispatchError is returned by Dispatch for every failure that happens
// before or around a tool's own execution: lookup, validation, and timeout.
// A tool reporting Result{Success: false} is not a DispatchError — that is a
// valid result fed back to the caller verbatim.
type DispatchError struct {
	Kind   Kind
	Tool   string
	Detail string
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Tool, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Tool)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Is supports errors.Is(err, ErrToolNotFound) style classification by Kind
// in addition to the wrapped sentinel.
func (e *DispatchError) Is(target error) bool {
	switch target {
	case ErrToolNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// Dispatcher runs the tool dispatch contract shared by AgentLoop and
// WorkflowExecutor: look up, validate, execute-with-timeout, return
// verbatim.
type Dispatcher struct {
	registry       *Registry
	defaultTimeout time.Duration
}

// NewDispatcher builds a Dispatcher over registry. defaultTimeout applies
// when Dispatch is called without an explicit per-call override (timeout
// <= 0 falls back to it; the zero default disables timeout enforcement).
func NewDispatcher(registry *Registry, defaultTimeout time.Duration) *Dispatcher {
	return &Dispatcher{registry: registry, defaultTimeout: defaultTimeout}
}

// Dispatch executes the four-step contract from §4.2:
//  1. look up tool by name — ToolNotFound on miss
//  2. validate(args) — InvalidArguments(detail) on rejection
//  3. execute(args, ctx) racing a timeout — Timeout(ms) on expiry
//  4. return the Result verbatim, success=false included
//
// timeout <= 0 uses the Dispatcher's default; a default of 0 means no
// timeout is enforced.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any, timeout time.Duration) (Result, error) {
	t, err := d.registry.Get(name)
	if err != nil {
		return Result{}, &DispatchError{Kind: KindNotFound, Tool: name, Err: err}
	}

	if err := t.Validate(args); err != nil {
		return Result{}, &DispatchError{Kind: KindInvalidArguments, Tool: name, Detail: err.Error(), Err: err}
	}

	if timeout <= 0 {
		timeout = d.defaultTimeout
	}
	if timeout <= 0 {
		return t.Execute(ctx, args)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := t.Execute(execCtx, args)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-execCtx.Done():
		return Result{}, &DispatchError{
			Kind:   KindTimeout,
			Tool:   name,
			Detail: timeout.String(),
			Err:    errors.New("tool execution timed out"),
		}
	}
}
