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

// Command agentrt is the CLI for the agent runtime: create a zero-config
// agent, run one-shot tasks, run workflow definitions, and inspect the
// built-in tool registry.
//
// Usage:
//
//	agentrt init myagent.yaml
//	agentrt run --config myagent.yaml --task "summarize README.md"
//	agentrt workflow run --config myagent.yaml workflow.yaml
//	agentrt tools list --config myagent.yaml
package main

import (
	"fmt"
	"runtime/debug"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Init     InitCmd     `cmd:"" help:"Scaffold a new configuration file."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Run      RunCmd      `cmd:"" help:"Run a single task through an agent."`
	Workflow WorkflowCmd `cmd:"" help:"Run or inspect workflow definitions."`
	Tools    ToolsCmd    `cmd:"" help:"List or inspect the built-in tool registry."`
}

// WorkflowCmd groups workflow subcommands.
type WorkflowCmd struct {
	Run WorkflowRunCmd `cmd:"" help:"Run a workflow definition to completion."`
}

// ToolsCmd groups tool-inspection subcommands.
type ToolsCmd struct {
	List ToolsListCmd `cmd:"" help:"List tools available under the configured sandbox."`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	fmt.Printf("agentrt %s\n", version)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("agentrt"),
		kong.Description("Run and inspect LLM agents, tasks, and workflows."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
