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

package contextstore

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokensPerMessage is the per-message wire overhead used by OpenAI's token
// counting convention: <|start|>role|message<|end|>.
const tokensPerMessage = 3

// TokenCounter estimates the token cost of message content. Implementations
// must be safe for concurrent use.
type TokenCounter interface {
	// Count returns the token cost of a single piece of text.
	Count(text string) int

	// CountMessage returns the token cost of a Message, including the
	// role/message-framing overhead.
	CountMessage(role Role, content string) int
}

// FallbackTokenCounter estimates tokens as ⌈chars/4⌉ with no per-message
// overhead, for use when no accurate encoding is available.
type FallbackTokenCounter struct{}

func (FallbackTokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

func (f FallbackTokenCounter) CountMessage(role Role, content string) int {
	return f.Count(string(role)) + f.Count(content)
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	encodingMu    sync.RWMutex
)

// TiktokenCounter counts tokens accurately for a named model using
// pkoukk/tiktoken-go, falling back to cl100k_base when the model has no
// registered encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewTiktokenCounter builds a TiktokenCounter for model, caching the
// resolved encoding across instances.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	encodingMu.RLock()
	cached, ok := encodingCache[model]
	encodingMu.RUnlock()
	if ok {
		return &TiktokenCounter{encoding: cached, model: model}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	encodingMu.Lock()
	encodingCache[model] = enc
	encodingMu.Unlock()

	return &TiktokenCounter{encoding: enc, model: model}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

func (c *TiktokenCounter) CountMessage(role Role, content string) int {
	return tokensPerMessage + c.Count(string(role)) + c.Count(content)
}

// Model returns the model name this counter was built for.
func (c *TiktokenCounter) Model() string { return c.model }
