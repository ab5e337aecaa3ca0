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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoad_AppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.AgentLoop.MaxIterations)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
name: test-run
agent_loop:
  max_iterations: 25
llms:
  default:
    provider: anthropic
    model: claude-3-5-sonnet
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-run", cfg.Name)
	assert.Equal(t, 25, cfg.AgentLoop.MaxIterations)
	require.Contains(t, cfg.LLMs, "default")
	assert.Equal(t, "claude-3-5-sonnet", cfg.LLMs["default"].Model)
}

func TestLoad_EnvWhitelistOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
logger:
  level: info
workflow:
  max_concurrent_workflows: 2
`)

	t.Setenv("AGENTRT_LOG_LEVEL", "debug")
	t.Setenv("AGENTRT_MAX_CONCURRENT_WORKFLOWS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 7, cfg.Workflow.MaxConcurrentWorkflows)
}

func TestLoad_ExpandsEnvVarReferencesInStrings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
llms:
  default:
    provider: openai
    model: gpt-4o
    api_key: ${TEST_AGENTRT_API_KEY}
    base_url: ${TEST_AGENTRT_BASE_URL:-https://api.openai.com}
`)

	t.Setenv("TEST_AGENTRT_API_KEY", "sk-from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLMs["default"].APIKey)
	assert.Equal(t, "https://api.openai.com", cfg.LLMs["default"].BaseURL)
}

func TestLoad_InvalidConfigReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
llms:
  default:
    provider: not-a-real-provider
    model: x
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestWatch_ReloadsOnFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
name: v1
`)

	changes := make(chan *Config, 4)
	w, err := Watch(path, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	})
	require.NoError(t, err)
	defer w.Close()

	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "config.yaml", `
name: v2
`)

	select {
	case cfg := <-changes:
		assert.Equal(t, "v2", cfg.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
