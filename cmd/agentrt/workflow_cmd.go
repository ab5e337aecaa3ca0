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
	"time"

	"github.com/loopwork-ai/agentrt/pkg/agentloop"
	"github.com/loopwork-ai/agentrt/pkg/tool"
	"github.com/loopwork-ai/agentrt/pkg/workflow"
)

// singleAgentInvoker serves the one AgentLoop the CLI built from --config
// for every StepAgent agent_id. A multi-agent workflow needs a richer
// config surface than this CLI currently exposes.
type singleAgentInvoker struct {
	loop *agentloop.AgentLoop
}

func (s singleAgentInvoker) ResolveAgent(string) (*agentloop.AgentLoop, error) {
	if s.loop == nil {
		return nil, fmt.Errorf("no agent configured for this workflow run")
	}
	return s.loop, nil
}

// WorkflowRunCmd runs a workflow definition file to completion and reports
// its outcome.
type WorkflowRunCmd struct {
	Config   string `short:"c" help:"Path to config file." type:"path" required:""`
	LLM      string `help:"Named LLM provider to back any agent steps." default:"default"`
	Workflow string `arg:"" name:"workflow" help:"Path to a workflow definition YAML file." type:"path"`
	PollMs   int    `help:"Progress poll interval in milliseconds." default:"200"`
}

func (c *WorkflowRunCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}

	wf, err := workflow.LoadFile(c.Workflow)
	if err != nil {
		return err
	}

	registry, err := buildToolRegistry(cfg)
	if err != nil {
		return err
	}
	dispatcher := tool.NewDispatcher(registry, cfg.Tool.ToolTimeout())

	var invoker workflow.AgentInvoker
	if loop, err := buildAgentLoop(cfg, c.LLM); err == nil {
		invoker = singleAgentInvoker{loop: loop}
	} else {
		invoker = singleAgentInvoker{}
	}

	engineCfg := cfg.Workflow.EngineConfig(dispatcher, invoker)
	engine := workflow.NewEngine(engineCfg)

	ctx := context.Background()
	execID, err := engine.Start(ctx, wf, workflow.StartOptions{})
	if err != nil {
		return fmt.Errorf("starting workflow: %w", err)
	}

	poll := time.Duration(c.PollMs) * time.Millisecond
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	for {
		es, ok := engine.Get(execID)
		if !ok {
			return fmt.Errorf("execution %s disappeared", execID)
		}
		switch es.Status() {
		case workflow.ExecutionCompleted:
			fmt.Printf("workflow %s completed\n", wf.ID)
			return nil
		case workflow.ExecutionFailed:
			return fmt.Errorf("workflow %s failed: %w", wf.ID, es.Err())
		case workflow.ExecutionCancelled:
			return fmt.Errorf("workflow %s cancelled", wf.ID)
		}
		fraction, total := es.Progress()
		fmt.Printf("\r%s: %.0f%% (%d steps)", wf.ID, fraction*100, total)
		time.Sleep(poll)
	}
}
