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

// Package openaisdk implements the llm.Client contract on top of
// github.com/sashabaranov/go-openai, as an alternative to pkg/llm's
// hand-rolled raw-HTTP OpenAI adapter. Both speak the same wire protocol;
// this one delegates marshaling, retries, and streaming plumbing to the SDK.
package openaisdk

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/loopwork-ai/agentrt/pkg/llm"
)

// Provider implements llm.Client using the go-openai SDK client.
type Provider struct {
	client *openai.Client
	model  string
}

// Config configures a Provider. BaseURL is optional and lets this adapter
// reach any OpenAI-compatible endpoint (proxies, local servers).
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New builds a Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm/openaisdk: API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm/openaisdk: model is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

func toSDKMessages(messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		sm := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			argsJSON := tc.RawArguments
			if argsJSON == "" {
				b, _ := json.Marshal(tc.Arguments)
				argsJSON = string(b)
			}
			sm.ToolCalls = append(sm.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: argsJSON,
				},
			})
		}
		out = append(out, sm)
	}
	return out
}

func toSDKTools(defs []llm.ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]openai.Tool, len(defs))
	for i, d := range defs {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		}
	}
	return out
}

func toSDKToolChoice(choice *llm.ToolChoice) any {
	if choice == nil {
		return nil
	}
	switch choice.Mode {
	case "none":
		return "none"
	case "required":
		if choice.Name != "" {
			return openai.ToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.ToolFunction{Name: choice.Name},
			}
		}
		return "required"
	default:
		return "auto"
	}
}

// Chat sends req via the SDK's CreateChatCompletion call and parses tool
// calls through llm.ParseToolArguments, same as the raw-HTTP adapter.
func (p *Provider) Chat(ctx context.Context, req llm.Request) (llm.Response, error) {
	sdkReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toSDKMessages(req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Tools:       toSDKTools(req.Tools),
	}
	if choice := toSDKToolChoice(req.ToolChoice); choice != nil {
		sdkReq.ToolChoice = choice
	}

	resp, err := p.client.CreateChatCompletion(ctx, sdkReq)
	if err != nil {
		return llm.Response{}, fmt.Errorf("llm/openaisdk: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, fmt.Errorf("llm/openaisdk: empty choices")
	}

	choice := resp.Choices[0]
	out := llm.Message{Role: llm.RoleAssistant, Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:           tc.ID,
			Name:         tc.Function.Name,
			RawArguments: tc.Function.Arguments,
			Arguments:    llm.ParseToolArguments(tc.Function.Arguments),
		})
	}

	return llm.Response{
		Content: out.Content,
		Message: out,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
