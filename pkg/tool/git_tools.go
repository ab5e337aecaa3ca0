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
	"os/exec"
	"strconv"
	"strings"
)

// GitConfig bounds the built-in git_* tools to a repository working
// directory.
type GitConfig struct {
	WorkingDirectory string
}

func (c GitConfig) resolved() GitConfig {
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "."
	}
	return c
}

func runGit(ctx context.Context, dir string, args ...string) Result {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return Fail(strings.TrimSpace(string(out)) + ": " + err.Error())
	}
	return Ok(string(out), map[string]any{"args": args})
}

// NewGitStatus builds the git_status tool.
func NewGitStatus(cfg GitConfig) Tool {
	cfg = cfg.resolved()
	t, err := NewFunc(
		FuncConfig{
			Name:        "git_status",
			Description: "Show the working tree status (git status --porcelain).",
			Category:    CategoryGit,
		},
		func(ctx context.Context, a struct{}) (Result, error) {
			return runGit(ctx, cfg.WorkingDirectory, "status", "--porcelain=v1"), nil
		},
		nil,
	)
	if err != nil {
		panic(err)
	}
	return t
}

type gitDiffArgs struct {
	Path   string `json:"path,omitempty" jsonschema:"description=Limit the diff to a path,default="`
	Staged bool   `json:"staged,omitempty" jsonschema:"description=Show staged changes instead of the working tree,default=false"`
}

// NewGitDiff builds the git_diff tool.
func NewGitDiff(cfg GitConfig) Tool {
	cfg = cfg.resolved()
	t, err := NewFunc(
		FuncConfig{
			Name:        "git_diff",
			Description: "Show a diff of uncommitted changes, optionally for one path.",
			Category:    CategoryGit,
		},
		func(ctx context.Context, a gitDiffArgs) (Result, error) {
			args := []string{"diff"}
			if a.Staged {
				args = append(args, "--staged")
			}
			if a.Path != "" {
				args = append(args, "--", a.Path)
			}
			return runGit(ctx, cfg.WorkingDirectory, args...), nil
		},
		nil,
	)
	if err != nil {
		panic(err)
	}
	return t
}

type gitLogArgs struct {
	MaxCount int    `json:"max_count,omitempty" jsonschema:"description=Maximum number of commits to return,default=10,minimum=1,maximum=200"`
	Path     string `json:"path,omitempty" jsonschema:"description=Limit history to a path,default="`
}

// NewGitLog builds the git_log tool.
func NewGitLog(cfg GitConfig) Tool {
	cfg = cfg.resolved()
	t, err := NewFunc(
		FuncConfig{
			Name:        "git_log",
			Description: "Show commit history, most recent first.",
			Category:    CategoryGit,
		},
		func(ctx context.Context, a gitLogArgs) (Result, error) {
			max := a.MaxCount
			if max <= 0 {
				max = 10
			}
			args := []string{"log", "--oneline", "-n", strconv.Itoa(max)}
			if a.Path != "" {
				args = append(args, "--", a.Path)
			}
			return runGit(ctx, cfg.WorkingDirectory, args...), nil
		},
		nil,
	)
	if err != nil {
		panic(err)
	}
	return t
}

// RegisterGitTools registers every built-in git_* tool under cfg into r.
func RegisterGitTools(r *Registry, cfg GitConfig) error {
	tools := []Tool{
		NewGitStatus(cfg),
		NewGitDiff(cfg),
		NewGitLog(cfg),
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
