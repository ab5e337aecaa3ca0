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
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandConfig bounds the command_execute tool. When AllowedCommands is
// non-empty, only base commands (the program name before any pipe, redirect,
// or `;`) in that list may run.
type CommandConfig struct {
	WorkingDirectory string
	AllowedCommands  []string
	MaxExecutionTime time.Duration
}

func (c CommandConfig) resolved() CommandConfig {
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "."
	}
	if c.MaxExecutionTime <= 0 {
		c.MaxExecutionTime = 30 * time.Second
	}
	return c
}

func (c CommandConfig) allowed(command string) bool {
	if len(c.AllowedCommands) == 0 {
		return true
	}
	base := extractBaseCommand(command)
	for _, a := range c.AllowedCommands {
		if base == a {
			return true
		}
	}
	return false
}

func extractBaseCommand(command string) string {
	parts := strings.FieldsFunc(command, func(r rune) bool {
		return r == '|' || r == '>' || r == '<' || r == ';'
	})
	if len(parts) == 0 {
		return ""
	}
	first := strings.Fields(strings.TrimSpace(parts[0]))
	if len(first) == 0 {
		return ""
	}
	return first[0]
}

type commandExecuteArgs struct {
	Command    string `json:"command" jsonschema:"required,description=Shell command to execute"`
	WorkingDir string `json:"working_dir,omitempty" jsonschema:"description=Override the configured working directory"`
}

// NewCommandExecute builds the command_execute tool: runs a shell command
// via `sh -c`, racing the Dispatcher's timeout and its own configured
// MaxExecutionTime, whichever is shorter.
func NewCommandExecute(cfg CommandConfig) Tool {
	cfg = cfg.resolved()
	t, err := NewFunc(
		FuncConfig{
			Name:                 "command_execute",
			Description:          "Execute a shell command and return its combined stdout/stderr output.",
			Category:             CategoryCommand,
			RequiresConfirmation: true,
			HasSideEffects:       true,
		},
		func(ctx context.Context, a commandExecuteArgs) (Result, error) {
			workDir := a.WorkingDir
			if workDir == "" {
				workDir = cfg.WorkingDirectory
			}

			execCtx, cancel := context.WithTimeout(ctx, cfg.MaxExecutionTime)
			defer cancel()

			cmd := exec.CommandContext(execCtx, "sh", "-c", a.Command)
			cmd.Dir = workDir

			start := time.Now()
			out, err := cmd.CombinedOutput()
			elapsed := time.Since(start)

			metadata := map[string]any{
				"command":        a.Command,
				"working_dir":    workDir,
				"execution_time": elapsed.String(),
			}
			if err != nil {
				return Result{
					Success:  false,
					Error:    fmt.Sprintf("%s: %s", err, strings.TrimSpace(string(out))),
					Metadata: metadata,
				}, nil
			}
			return Ok(string(out), metadata), nil
		},
		func(a commandExecuteArgs) error {
			if a.Command == "" {
				return fmt.Errorf("command is required")
			}
			if !cfg.allowed(a.Command) {
				return fmt.Errorf("command not allowed: %s (allowed: %v)", extractBaseCommand(a.Command), cfg.AllowedCommands)
			}
			return nil
		},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// RegisterCommandTools registers command_execute under cfg into r.
func RegisterCommandTools(r *Registry, cfg CommandConfig) error {
	return r.Register(NewCommandExecute(cfg))
}
