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
	"fmt"
	"os"
)

const initTemplate = `name: my-agent
version: "1"

llms:
  default:
    provider: anthropic
    model: claude-3-5-sonnet-20241022
    api_key: ${ANTHROPIC_API_KEY}

tool:
  working_directory: .

agent_loop:
  mode: autonomous
  max_iterations: 10

context_store:
  max_tokens: 8000
  auto_prune: true
  pruning:
    strategy: sliding_window
    max_messages: 40

workflow:
  max_concurrent_workflows: 4
  default_step_timeout_ms: 60000

logger:
  level: info
  format: simple
`

// InitCmd scaffolds a new configuration file.
type InitCmd struct {
	Path  string `arg:"" name:"path" help:"Path to write the new configuration file." default:"agentrt.yaml"`
	Force bool   `help:"Overwrite an existing file."`
}

func (c *InitCmd) Run() error {
	if !c.Force {
		if _, err := os.Stat(c.Path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", c.Path)
		}
	}
	if err := os.WriteFile(c.Path, []byte(initTemplate), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", c.Path, err)
	}
	fmt.Printf("Wrote %s\n", c.Path)
	return nil
}
