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

package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RunCmd executes a single task through an agent built from --config and
// exits non-zero if the task could not be completed.
type RunCmd struct {
	Config string `short:"c" help:"Path to config file." type:"path" required:""`
	LLM    string `help:"Named LLM provider from the config to use." default:"default"`
	Task   string `help:"Task description to execute." required:""`
}

func (c *RunCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}

	loop, err := buildAgentLoop(cfg, c.LLM)
	if err != nil {
		return fmt.Errorf("building agent: %w", err)
	}

	task, err := loop.ExecuteTask(context.Background(), uuid.New().String(), c.Task)
	if err != nil {
		return fmt.Errorf("running task: %w", err)
	}

	if !task.Done {
		return fmt.Errorf("task did not complete (stopped at iteration %d)", task.Iteration)
	}

	fmt.Println(task.Result)
	stats := loop.Stats()
	fmt.Printf("\n(%d iterations, %d tool calls, %d llm calls)\n", stats.Iterations, stats.ToolCalls, stats.LLMCalls)
	return nil
}
