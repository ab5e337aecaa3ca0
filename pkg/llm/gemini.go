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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/loopwork-ai/agentrt/pkg/httpclient"
)

// GeminiProvider implements Client against the Gemini generateContent API.
type GeminiProvider struct {
	cfg    ProviderConfig
	client *httpclient.Client
}

// NewGeminiProvider builds a GeminiProvider. Host defaults to
// https://generativelanguage.googleapis.com.
func NewGeminiProvider(cfg ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: gemini: API key is required")
	}
	if cfg.Host == "" {
		cfg.Host = "https://generativelanguage.googleapis.com"
	}
	return &GeminiProvider{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.timeoutSecOrDefault(120)) * time.Second}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
			httpclient.WithHeaderParser(httpclient.ParseGeminiHeaders),
		),
	}, nil
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
	FunctionResp *geminiFunctionResp `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Tools             []geminiTool    `json:"tools,omitempty"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature,omitempty"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// buildRequest maps roles to Gemini's "user"/"model" pair and folds tool
// results into functionResponse parts, since Gemini has no tool role.
func (p *GeminiProvider) buildRequest(req Request) geminiRequest {
	var out geminiRequest
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case RoleUser:
			out.Contents = append(out.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		case RoleTool:
			out.Contents = append(out.Contents, geminiContent{
				Role: "user",
				Parts: []geminiPart{{FunctionResp: &geminiFunctionResp{
					Name:     m.ToolCallID,
					Response: map[string]any{"content": m.Content},
				}}},
			})
		case RoleAssistant:
			var parts []geminiPart
			if m.Content != "" {
				parts = append(parts, geminiPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, geminiPart{FunctionCall: &geminiFunctionCall{Name: tc.Name, Args: tc.Arguments}})
			}
			out.Contents = append(out.Contents, geminiContent{Role: "model", Parts: parts})
		}
	}
	out.GenerationConfig.Temperature = req.Temperature
	out.GenerationConfig.MaxOutputTokens = req.MaxTokens
	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDecl, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = geminiFunctionDecl{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
		}
		out.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}
	return out
}

// Chat sends req to the generateContent endpoint for cfg.Model.
func (p *GeminiProvider) Chat(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return Response{}, fmt.Errorf("llm: gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.cfg.Host, p.cfg.Model, p.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("llm: gemini: build request: %w", err)
	}
	httpReq.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("llm: gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("llm: gemini: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("llm: gemini: decode response: %w", err)
	}
	if parsed.Error != nil {
		return Response{}, fmt.Errorf("llm: gemini: API error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 {
		return Response{}, fmt.Errorf("llm: gemini: empty candidates")
	}

	var text string
	var toolCalls []ToolCall
	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
		if part.FunctionCall != nil {
			raw, _ := json.Marshal(part.FunctionCall.Args)
			toolCalls = append(toolCalls, ToolCall{Name: part.FunctionCall.Name, Arguments: part.FunctionCall.Args, RawArguments: string(raw)})
		}
	}

	msg := Message{Role: RoleAssistant, Content: text, ToolCalls: toolCalls}
	return Response{
		Content: msg.Content,
		Message: msg,
		Usage: Usage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
