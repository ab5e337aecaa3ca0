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

package llm

import (
	"fmt"

	"github.com/loopwork-ai/agentrt/pkg/registry"
)

// Registry holds named Client instances, so a single process can address
// several configured providers (e.g. one per agent) by name.
type Registry struct {
	*registry.BaseRegistry[Client]
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Client]()}
}

// ProviderType selects which adapter CreateFromConfig builds.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGemini    ProviderType = "gemini"
	ProviderOllama    ProviderType = "ollama"
)

// CreateFromConfig builds the named provider's Client, registers it, and
// returns it.
func (r *Registry) CreateFromConfig(name string, providerType ProviderType, cfg ProviderConfig) (Client, error) {
	if name == "" {
		return nil, fmt.Errorf("llm: registry: name cannot be empty")
	}

	var client Client
	var err error
	switch providerType {
	case ProviderOpenAI:
		client, err = NewOpenAIProvider(cfg)
	case ProviderAnthropic:
		client, err = NewAnthropicProvider(cfg)
	case ProviderGemini:
		client, err = NewGeminiProvider(cfg)
	case ProviderOllama:
		client, err = NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("llm: registry: unsupported provider type %q (supported: openai, anthropic, gemini, ollama)", providerType)
	}
	if err != nil {
		return nil, fmt.Errorf("llm: registry: create provider: %w", err)
	}

	if err := r.Register(name, client); err != nil {
		return nil, fmt.Errorf("llm: registry: register provider: %w", err)
	}
	return client, nil
}
