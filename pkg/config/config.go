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

// Package config loads and validates the YAML configuration that wires one
// process's LLM providers, tool working directory, agent loop budgets,
// context store pruning, and workflow engine settings. The runtime is
// config-first: this package describes what to build, the rest of the
// module builds it.
package config

import (
	"fmt"
	"time"

	"github.com/loopwork-ai/agentrt/pkg/agentloop"
	"github.com/loopwork-ai/agentrt/pkg/contextstore"
	"github.com/loopwork-ai/agentrt/pkg/llm"
	"github.com/loopwork-ai/agentrt/pkg/tool"
	"github.com/loopwork-ai/agentrt/pkg/workflow"
)

// Config is the root configuration structure.
type Config struct {
	Version string `yaml:"version,omitempty"`
	Name    string `yaml:"name,omitempty"`

	// LLMs defines available LLM providers, keyed by name.
	LLMs map[string]LLMConfig `yaml:"llms,omitempty"`

	Tool         ToolConfig         `yaml:"tool,omitempty"`
	AgentLoop    AgentLoopConfig    `yaml:"agent_loop,omitempty"`
	ContextStore ContextStoreConfig `yaml:"context_store,omitempty"`
	Workflow     WorkflowConfig     `yaml:"workflow,omitempty"`
	Logger       LoggerConfig       `yaml:"logger,omitempty"`
}

// LLMConfig configures one named LLM provider.
type LLMConfig struct {
	Provider    llm.ProviderType `yaml:"provider,omitempty"`
	Model       string           `yaml:"model,omitempty"`
	APIKey      string           `yaml:"api_key,omitempty"`
	BaseURL     string           `yaml:"base_url,omitempty"`
	Temperature float64          `yaml:"temperature,omitempty"`
	MaxTokens   int              `yaml:"max_tokens,omitempty"`
	TimeoutSec  int              `yaml:"timeout_sec,omitempty"`
	MaxRetries  int              `yaml:"max_retries,omitempty"`
	RetryDelay  int              `yaml:"retry_delay,omitempty"`
}

// ProviderConfig converts c to the llm package's provider-agnostic config.
func (c LLMConfig) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Model:       c.Model,
		APIKey:      c.APIKey,
		Host:        c.BaseURL,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		TimeoutSec:  c.TimeoutSec,
		MaxRetries:  c.MaxRetries,
		RetryDelay:  c.RetryDelay,
	}
}

// ToolConfig configures the tool execution sandbox.
type ToolConfig struct {
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
	AllowedCommands  []string `yaml:"allowed_commands,omitempty"`
	MaxFileSize      int64    `yaml:"max_file_size,omitempty"`
	ToolTimeoutMs    int      `yaml:"tool_timeout_ms,omitempty"`
}

// ToolTimeout returns the configured tool timeout, defaulting to 30s per
// the dispatcher's own default when unset.
func (c ToolConfig) ToolTimeout() time.Duration {
	if c.ToolTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ToolTimeoutMs) * time.Millisecond
}

// AgentLoopConfig configures an AgentLoop's budgets and mode.
type AgentLoopConfig struct {
	Mode          agentloop.Mode         `yaml:"mode,omitempty"`
	ToolCallMode  agentloop.ToolCallMode `yaml:"tool_call_mode,omitempty"`
	MaxIterations int                    `yaml:"max_iterations,omitempty"`
	Temperature   float64                `yaml:"temperature,omitempty"`
	MaxTokens     int                    `yaml:"max_tokens,omitempty"`
}

// ContextStoreConfig configures a ContextStore's budget and pruning strategy.
type ContextStoreConfig struct {
	MaxTokens      int           `yaml:"max_tokens,omitempty"`
	AutoPrune      bool          `yaml:"auto_prune,omitempty"`
	PreserveSystem bool          `yaml:"preserve_system,omitempty"`
	TokenModel     string        `yaml:"token_model,omitempty"` // empty uses FallbackTokenCounter
	Pruning        PruningConfig `yaml:"pruning,omitempty"`
}

// PruningConfig selects and parameterizes a PruningStrategy.
type PruningConfig struct {
	// Strategy is one of "sliding_window", "priority_based", "summary_based",
	// "semantic". Empty selects "sliding_window".
	Strategy string `yaml:"strategy,omitempty"`

	MaxMessages int `yaml:"max_messages,omitempty"` // sliding_window
	WindowSize  int `yaml:"window_size,omitempty"`  // summary_based
	Keep        int `yaml:"keep,omitempty"`         // semantic
}

// Strategy builds the configured PruningStrategy. summarizer/embedder are
// only consulted by the strategies that need them (summary_based,
// semantic); nil is fine for the others.
func (c PruningConfig) Strategy(summarizer contextstore.Summarizer, embedder contextstore.EmbeddingCounter) (contextstore.PruningStrategy, error) {
	switch c.Strategy {
	case "", "sliding_window":
		return contextstore.SlidingWindowStrategy{MaxMessages: c.MaxMessages}, nil
	case "priority_based":
		return contextstore.PriorityBasedStrategy{}, nil
	case "summary_based":
		return contextstore.SummaryBasedStrategy{WindowSize: c.WindowSize, Summarizer: summarizer}, nil
	case "semantic":
		return contextstore.SemanticStrategy{Embedder: embedder, Keep: c.Keep}, nil
	default:
		return nil, fmt.Errorf("config: unknown pruning strategy %q", c.Strategy)
	}
}

// WorkflowConfig configures a workflow.Engine.
type WorkflowConfig struct {
	MaxConcurrentWorkflows int `yaml:"max_concurrent_workflows,omitempty"`
	DefaultStepTimeoutMs   int `yaml:"default_step_timeout_ms,omitempty"`
	ToolTimeoutMs          int `yaml:"tool_timeout_ms,omitempty"`
}

// EngineConfig builds a workflow.Config from c, wiring in dispatcher and
// agents (agents may be nil if no workflow in use dispatches StepAgent).
func (c WorkflowConfig) EngineConfig(dispatcher *tool.Dispatcher, agents workflow.AgentInvoker) workflow.Config {
	return workflow.Config{
		Dispatcher:         dispatcher,
		Agents:             agents,
		ToolTimeout:        time.Duration(c.ToolTimeoutMs) * time.Millisecond,
		DefaultStepTimeout: time.Duration(c.DefaultStepTimeoutMs) * time.Millisecond,
		MaxConcurrent:      c.MaxConcurrentWorkflows,
	}
}

// LoggerConfig configures process-wide structured logging.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // simple, verbose
	File   string `yaml:"file,omitempty"`   // empty logs to stderr
}

// SetDefaults fills in the zero-value defaults applied after loading.
func (c *Config) SetDefaults() {
	if c.LLMs == nil {
		c.LLMs = make(map[string]LLMConfig)
	}
	if c.AgentLoop.MaxIterations <= 0 {
		c.AgentLoop.MaxIterations = 10
	}
	if c.AgentLoop.Mode == "" {
		c.AgentLoop.Mode = agentloop.ModeAutonomous
	}
	if c.ContextStore.MaxTokens <= 0 {
		c.ContextStore.MaxTokens = 8000
	}
	if c.Workflow.DefaultStepTimeoutMs <= 0 {
		c.Workflow.DefaultStepTimeoutMs = 60_000
	}
	if c.Tool.WorkingDirectory == "" {
		c.Tool.WorkingDirectory = "."
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
}

// Validate reports the first structural error found, or nil.
func (c *Config) Validate() error {
	for name, l := range c.LLMs {
		switch l.Provider {
		case llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderGemini, llm.ProviderOllama:
		default:
			return fmt.Errorf("config: llm %q: unsupported provider %q", name, l.Provider)
		}
		if l.Model == "" {
			return fmt.Errorf("config: llm %q: model is required", name)
		}
	}
	if c.AgentLoop.MaxIterations <= 0 {
		return fmt.Errorf("config: agent_loop.max_iterations must be positive")
	}
	if c.ContextStore.MaxTokens <= 0 {
		return fmt.Errorf("config: context_store.max_tokens must be positive")
	}
	if c.Workflow.MaxConcurrentWorkflows < 0 {
		return fmt.Errorf("config: workflow.max_concurrent_workflows cannot be negative")
	}
	return nil
}
