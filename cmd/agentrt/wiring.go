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

	"github.com/loopwork-ai/agentrt/pkg/agentloop"
	"github.com/loopwork-ai/agentrt/pkg/config"
	"github.com/loopwork-ai/agentrt/pkg/contextstore"
	"github.com/loopwork-ai/agentrt/pkg/llm"
	"github.com/loopwork-ai/agentrt/pkg/tool"
)

// loadConfig loads .env.local and .env from the current directory (if
// present), then the config itself.
func loadConfig(path string) (*config.Config, error) {
	_ = config.LoadEnvFiles()
	return config.Load(path)
}

// buildToolRegistry registers every built-in tool family under cfg.Tool's
// sandbox, mirroring what a zero-config agent gets by default.
func buildToolRegistry(cfg *config.Config) (*tool.Registry, error) {
	registry := tool.NewRegistry()

	fileCfg := tool.FileConfig{WorkingDirectory: cfg.Tool.WorkingDirectory, MaxFileSize: cfg.Tool.MaxFileSize}
	if err := tool.RegisterFileTools(registry, fileCfg); err != nil {
		return nil, fmt.Errorf("registering file tools: %w", err)
	}
	if err := tool.RegisterSearchTools(registry, fileCfg); err != nil {
		return nil, fmt.Errorf("registering search tools: %w", err)
	}
	if err := tool.RegisterGitTools(registry, tool.GitConfig{WorkingDirectory: cfg.Tool.WorkingDirectory}); err != nil {
		return nil, fmt.Errorf("registering git tools: %w", err)
	}
	cmdCfg := tool.CommandConfig{WorkingDirectory: cfg.Tool.WorkingDirectory, AllowedCommands: cfg.Tool.AllowedCommands}
	if err := tool.RegisterCommandTools(registry, cmdCfg); err != nil {
		return nil, fmt.Errorf("registering command tools: %w", err)
	}
	return registry, nil
}

// buildLLMClient constructs the named LLM provider from cfg.LLMs, defaulting
// to "default" when name is empty.
func buildLLMClient(cfg *config.Config, name string) (llm.Client, error) {
	if name == "" {
		name = "default"
	}
	entry, ok := cfg.LLMs[name]
	if !ok {
		return nil, fmt.Errorf("no llm named %q configured", name)
	}
	reg := llm.NewRegistry()
	return reg.CreateFromConfig(name, entry.Provider, entry.ProviderConfig())
}

// buildContextStore constructs a Store from cfg.ContextStore. summary-based
// and semantic pruning strategies need a Summarizer/EmbeddingCounter this
// CLI does not wire (no summarizing/embedding client is configured here), so
// requesting either from the CLI falls back to sliding_window.
func buildContextStore(cfg *config.Config) (*contextstore.Store, error) {
	pruning := cfg.ContextStore.Pruning
	var strategy contextstore.PruningStrategy
	var err error
	switch pruning.Strategy {
	case "summary_based", "semantic":
		strategy = contextstore.SlidingWindowStrategy{MaxMessages: pruning.MaxMessages}
	default:
		strategy, err = pruning.Strategy(nil, nil)
		if err != nil {
			return nil, err
		}
	}

	var counter contextstore.TokenCounter
	if cfg.ContextStore.TokenModel != "" {
		tc, err := contextstore.NewTiktokenCounter(cfg.ContextStore.TokenModel)
		if err != nil {
			return nil, fmt.Errorf("building token counter: %w", err)
		}
		counter = tc
	}

	return contextstore.NewStore(contextstore.Config{
		Counter:        counter,
		Strategy:       strategy,
		MaxTokens:      cfg.ContextStore.MaxTokens,
		AutoPrune:      cfg.ContextStore.AutoPrune,
		PreserveSystem: cfg.ContextStore.PreserveSystem,
	}), nil
}

// buildAgentLoop assembles a complete AgentLoop from cfg, wiring its LLM
// client, tool registry/dispatcher, and context store.
func buildAgentLoop(cfg *config.Config, llmName string) (*agentloop.AgentLoop, error) {
	client, err := buildLLMClient(cfg, llmName)
	if err != nil {
		return nil, err
	}
	registry, err := buildToolRegistry(cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildContextStore(cfg)
	if err != nil {
		return nil, err
	}
	dispatcher := tool.NewDispatcher(registry, cfg.Tool.ToolTimeout())

	return agentloop.New(agentloop.Config{
		Client:        client,
		Tools:         registry,
		Dispatcher:    dispatcher,
		Store:         store,
		Mode:          cfg.AgentLoop.Mode,
		ToolCallMode:  cfg.AgentLoop.ToolCallMode,
		MaxIterations: cfg.AgentLoop.MaxIterations,
		Temperature:   cfg.AgentLoop.Temperature,
		MaxTokens:     cfg.AgentLoop.MaxTokens,
		ToolTimeout:   cfg.Tool.ToolTimeout(),
	})
}
