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
	"context"
	"fmt"
	"math"
	"sort"
)

// PruneInput is the view of store state a PruningStrategy needs to decide
// what to evict. Messages is the ordered, non-system tail; System is nil
// when no system message is set.
type PruneInput struct {
	System         *Message
	Messages       []Message
	MaxTokens      int
	PreserveSystem bool
	Counter        TokenCounter
}

// PruneResult reports what a prune pass kept and dropped.
type PruneResult struct {
	Kept          []Message
	RemovedCount  int
	RemovedTokens int
	Strategy      string
	Metadata      map[string]any
}

// PruningStrategy selects which messages to drop when a ContextStore is
// over budget. Kept holds only the non-system messages that survive; no
// variant places the system message in Kept, and in.PreserveSystem is not
// consulted by any of them. The Store keeps its system message in a separate
// slot that a prune leaves unchanged.
type PruningStrategy interface {
	Name() string
	Prune(ctx context.Context, in PruneInput) (PruneResult, error)
}

func sumTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += m.Tokens
	}
	return total
}

// SlidingWindowStrategy keeps at most MaxMessages most recent non-system
// messages, then drops oldest-first until total_tokens <= in.MaxTokens,
// always keeping at least one regular message when one exists.
type SlidingWindowStrategy struct {
	MaxMessages int
}

func (s SlidingWindowStrategy) Name() string { return "sliding_window" }

func (s SlidingWindowStrategy) Prune(_ context.Context, in PruneInput) (PruneResult, error) {
	kept := in.Messages
	if s.MaxMessages > 0 && len(kept) > s.MaxMessages {
		kept = kept[len(kept)-s.MaxMessages:]
	}

	for len(kept) > 1 && sumTokens(kept) > in.MaxTokens {
		kept = kept[1:]
	}

	removedCount := len(in.Messages) - len(kept)
	removedTokens := sumTokens(in.Messages) - sumTokens(kept)
	return finishPrune(s.Name(), in, kept, removedCount, removedTokens, nil), nil
}

// priorityWeight ranks Priority tiers for scoring; higher survives longer.
var priorityWeight = map[Priority]float64{
	PriorityCritical: 3,
	PriorityHigh:     2,
	PriorityNormal:   1,
	PriorityLow:      0,
}

// roleWeight nudges scoring by role: tool results are cheaper to evict than
// the conversational turns that produced them.
var roleWeight = map[Role]float64{
	RoleUser:      1,
	RoleAssistant: 1,
	RoleTool:      0,
}

// PriorityBasedStrategy scores every message by priority tier, recency, and
// role, then evicts the lowest-scored messages first until under budget.
type PriorityBasedStrategy struct{}

func (s PriorityBasedStrategy) Name() string { return "priority_based" }

func (s PriorityBasedStrategy) Prune(_ context.Context, in PruneInput) (PruneResult, error) {
	n := len(in.Messages)
	type scored struct {
		msg   Message
		score float64
		index int
	}
	scoredMsgs := make([]scored, n)
	for i, m := range in.Messages {
		recency := float64(i+1) / float64(n+1) // older → closer to 0
		scoredMsgs[i] = scored{
			msg:   m,
			index: i,
			score: priorityWeight[m.Priority]*10 + recency*5 + roleWeight[m.Role],
		}
	}

	sort.SliceStable(scoredMsgs, func(i, j int) bool {
		return scoredMsgs[i].score < scoredMsgs[j].score
	})

	evicted := make(map[int]bool)
	total := sumTokens(in.Messages)
	for _, sm := range scoredMsgs {
		remaining := n - len(evicted)
		if total <= in.MaxTokens || remaining <= 1 {
			break
		}
		evicted[sm.index] = true
		total -= sm.msg.Tokens
	}

	kept := make([]Message, 0, n-len(evicted))
	for i, m := range in.Messages {
		if !evicted[i] {
			kept = append(kept, m)
		}
	}

	removedCount := len(evicted)
	removedTokens := sumTokens(in.Messages) - sumTokens(kept)
	return finishPrune(s.Name(), in, kept, removedCount, removedTokens, nil), nil
}

// Summarizer synthesises a short summary of a run of messages. Implemented
// by an adapter around an LlmClient; kept narrow so contextstore does not
// depend on pkg/llm.
type Summarizer interface {
	Summarize(ctx context.Context, messages []Message) (string, error)
}

// SummaryBasedStrategy evicts a contiguous oldest window of messages and
// replaces it with a synthesised summary, inserted as a high-priority
// message whose tokens count toward the new budget.
type SummaryBasedStrategy struct {
	WindowSize int
	Summarizer Summarizer
}

func (s SummaryBasedStrategy) Name() string { return "summary_based" }

func (s SummaryBasedStrategy) Prune(ctx context.Context, in PruneInput) (PruneResult, error) {
	if s.Summarizer == nil {
		return PruneResult{}, fmt.Errorf("contextstore: summary_based strategy requires a Summarizer")
	}

	window := s.WindowSize
	if window <= 0 {
		window = len(in.Messages) / 2
	}
	if window > len(in.Messages)-1 {
		window = len(in.Messages) - 1
	}
	if window <= 0 {
		return finishPrune(s.Name(), in, in.Messages, 0, 0, nil), nil
	}

	toSummarize := in.Messages[:window]
	rest := in.Messages[window:]

	summaryText, err := s.Summarizer.Summarize(ctx, toSummarize)
	if err != nil {
		return PruneResult{}, fmt.Errorf("contextstore: summarization failed: %w", err)
	}

	summaryMsg := Message{
		ID:        newID(),
		Role:      RoleSystem,
		Content:   summaryText,
		Priority:  PriorityHigh,
		CreatedAt: toSummarize[len(toSummarize)-1].CreatedAt,
	}
	if in.Counter != nil {
		summaryMsg.Tokens = in.Counter.CountMessage(summaryMsg.Role, summaryMsg.Content)
	} else {
		summaryMsg.Tokens = FallbackTokenCounter{}.CountMessage(summaryMsg.Role, summaryMsg.Content)
	}

	kept := make([]Message, 0, len(rest)+1)
	kept = append(kept, summaryMsg)
	kept = append(kept, rest...)

	removedTokens := sumTokens(toSummarize) - summaryMsg.Tokens
	return finishPrune(s.Name(), in, kept, len(toSummarize)-1, removedTokens, map[string]any{
		"summarized_count": len(toSummarize),
	}), nil
}

// EmbeddingCounter is the companion a TokenCounter implementation may also
// satisfy to support SemanticStrategy: a text → vector embedding.
type EmbeddingCounter interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SemanticStrategy evicts messages whose embedding similarity to the most
// recent content is lowest. Requires an EmbeddingCounter companion to the
// store's TokenCounter.
type SemanticStrategy struct {
	Embedder EmbeddingCounter
	// Keep is how many of the most recent messages anchor the similarity
	// comparison; it is never itself evicted by this strategy.
	Keep int
}

func (s SemanticStrategy) Name() string { return "semantic" }

func (s SemanticStrategy) Prune(ctx context.Context, in PruneInput) (PruneResult, error) {
	if s.Embedder == nil {
		return PruneResult{}, fmt.Errorf("contextstore: semantic strategy requires an EmbeddingCounter")
	}
	n := len(in.Messages)
	keep := s.Keep
	if keep <= 0 {
		keep = 1
	}
	if keep >= n {
		return finishPrune(s.Name(), in, in.Messages, 0, 0, nil), nil
	}

	anchor, err := s.embedRecent(ctx, in.Messages[n-keep:])
	if err != nil {
		return PruneResult{}, err
	}

	type scored struct {
		index int
		sim   float64
	}
	candidates := make([]scored, 0, n-keep)
	for i := 0; i < n-keep; i++ {
		vec, err := s.Embedder.Embed(ctx, in.Messages[i].Content)
		if err != nil {
			return PruneResult{}, fmt.Errorf("contextstore: embedding message %d: %w", i, err)
		}
		candidates = append(candidates, scored{index: i, sim: cosineSimilarity(vec, anchor)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].sim < candidates[j].sim })

	evicted := make(map[int]bool)
	total := sumTokens(in.Messages)
	for _, c := range candidates {
		if total <= in.MaxTokens {
			break
		}
		evicted[c.index] = true
		total -= in.Messages[c.index].Tokens
	}

	kept := make([]Message, 0, n-len(evicted))
	for i, m := range in.Messages {
		if !evicted[i] {
			kept = append(kept, m)
		}
	}

	removedCount := len(evicted)
	removedTokens := sumTokens(in.Messages) - sumTokens(kept)
	return finishPrune(s.Name(), in, kept, removedCount, removedTokens, nil), nil
}

func (s SemanticStrategy) embedRecent(ctx context.Context, recent []Message) ([]float64, error) {
	var acc []float64
	for _, m := range recent {
		vec, err := s.Embedder.Embed(ctx, m.Content)
		if err != nil {
			return nil, fmt.Errorf("contextstore: embedding anchor: %w", err)
		}
		if acc == nil {
			acc = make([]float64, len(vec))
		}
		for i, v := range vec {
			acc[i] += v / float64(len(recent))
		}
	}
	return acc, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// finishPrune assembles a PruneResult from a strategy's kept messages. It
// does not add the system message to Kept, whatever in.PreserveSystem says;
// the system message stays only in the Store's own system slot.
func finishPrune(name string, in PruneInput, kept []Message, removedCount, removedTokens int, metadata map[string]any) PruneResult {
	_ = in // system message re-insertion is handled by the store, not here
	return PruneResult{
		Kept:          kept,
		RemovedCount:  removedCount,
		RemovedTokens: removedTokens,
		Strategy:      name,
		Metadata:      metadata,
	}
}
