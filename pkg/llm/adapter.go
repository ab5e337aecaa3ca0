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
	"context"
	"fmt"
	"strings"

	"github.com/loopwork-ai/agentrt/pkg/contextstore"
)

// ChatSummarizer adapts a Client into contextstore.Summarizer, so
// SummaryBasedStrategy can compress an evicted window of messages into a
// single replacement message without contextstore importing this package.
type ChatSummarizer struct {
	Client      Client
	Temperature float64
	MaxTokens   int
}

// Summarize asks the underlying Client to condense msgs into a short
// paragraph preserving decisions, facts, and open questions.
func (s ChatSummarizer) Summarize(ctx context.Context, msgs []contextstore.Message) (string, error) {
	if len(msgs) == 0 {
		return "", nil
	}

	var transcript strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	resp, err := s.Client.Chat(ctx, Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "Summarize the following conversation excerpt into a short paragraph. Preserve decisions, facts, and open questions. Do not add commentary."},
			{Role: RoleUser, Content: transcript.String()},
		},
		Temperature: s.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm: summarize: %w", err)
	}
	return resp.Content, nil
}
