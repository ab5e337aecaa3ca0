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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

func newID() string { return uuid.New().String() }

// exportVersion is the major version tag carried by Export; Import rejects
// any payload whose major component differs.
const exportVersion = "1.0"

// Stats summarizes store state: message/token counts plus prune bookkeeping.
type Stats struct {
	MessageCount  int            `json:"message_count"`
	TotalTokens   int            `json:"total_tokens"`
	MaxTokens     int            `json:"max_tokens"`
	RoleCounts    map[Role]int   `json:"role_counts"`
	PruneCount    int            `json:"prune_count"`
	LastPrunedAt  *time.Time     `json:"last_pruned_at,omitempty"`
	HasSystem     bool           `json:"has_system"`
}

// SearchResult is one match from Store.Search, sorted descending by Score.
type SearchResult struct {
	Message Message
	Score   float64
}

// MessageFilter narrows Store.GetMessages. A nil or zero-value field is
// unconstrained.
type MessageFilter struct {
	Role     Role
	Priority Priority
	Since    time.Time
}

func (f MessageFilter) matches(m Message) bool {
	if f.Role != "" && m.Role != f.Role {
		return false
	}
	if f.Priority != "" && m.Priority != f.Priority {
		return false
	}
	if !f.Since.IsZero() && m.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// Exported is the versioned wire format produced by Export/consumed by Import.
type Exported struct {
	Version  string    `json:"version"`
	System   *Message  `json:"system,omitempty"`
	Messages []Message `json:"messages"`
}

// Store is an append-only, token-accounted conversation log. It owns every
// Message it holds exclusively; messages leave it only through pruning,
// Remove, or Import (which replaces the whole log).
type Store struct {
	mu sync.RWMutex

	system   *Message
	messages []Message

	counter  TokenCounter
	strategy PruningStrategy

	maxTokens          int
	autoPrune          bool
	preserveSystem     bool

	totalTokens  int
	pruneCount   int
	lastPrunedAt *time.Time
}

// Config configures a new Store.
type Config struct {
	Counter        TokenCounter // nil uses FallbackTokenCounter
	Strategy       PruningStrategy
	MaxTokens      int
	AutoPrune      bool
	PreserveSystem bool
}

// NewStore builds an empty Store.
func NewStore(cfg Config) *Store {
	counter := cfg.Counter
	if counter == nil {
		counter = FallbackTokenCounter{}
	}
	return &Store{
		counter:        counter,
		strategy:       cfg.Strategy,
		maxTokens:      cfg.MaxTokens,
		autoPrune:      cfg.AutoPrune,
		preserveSystem: cfg.PreserveSystem,
	}
}

// AddOptions customizes AddMessage.
type AddOptions struct {
	Priority Priority
}

// AddMessage assigns an id and timestamp, counts tokens via the injected
// TokenCounter, and places a system-role message into the dedicated slot or
// appends everything else to the ordered tail. If autoprune is on and
// total_tokens exceeds max_tokens after the add, the active strategy runs.
func (s *Store) AddMessage(msg Message, opts AddOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if opts.Priority != "" {
		msg.Priority = opts.Priority
	}
	if msg.Priority == "" {
		msg.Priority = PriorityNormal
	}
	msg.Tokens = s.counter.CountMessage(msg.Role, msg.Content)

	if msg.Role == RoleSystem {
		if s.system != nil {
			s.totalTokens -= s.system.Tokens
		}
		s.system = &msg
		s.totalTokens += msg.Tokens
	} else {
		s.messages = append(s.messages, msg)
		s.totalTokens += msg.Tokens
	}

	if s.autoPrune && s.strategy != nil && s.totalTokens > s.maxTokens {
		if _, err := s.pruneLocked(context.Background()); err != nil {
			return msg.ID, err
		}
	}

	return msg.ID, nil
}

// MessagesForLLM returns exactly what the LLM sees: the system message
// first if present, then non-system messages in insertion order.
func (s *Store) MessagesForLLM() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, 0, len(s.messages)+1)
	if s.system != nil {
		out = append(out, *s.system)
	}
	out = append(out, s.messages...)
	return out
}

// Get returns the message with the given id.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.system != nil && s.system.ID == id {
		return *s.system, true
	}
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// GetMessages returns non-system messages matching filter, in insertion order.
func (s *Store) GetMessages(filter MessageFilter) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		if filter.matches(m) {
			out = append(out, m)
		}
	}
	return out
}

// Remove deletes a message by id, adjusting total_tokens in the same step.
// Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.system != nil && s.system.ID == id {
		s.totalTokens -= s.system.Tokens
		s.system = nil
		return
	}
	for i, m := range s.messages {
		if m.ID == id {
			s.totalTokens -= m.Tokens
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// SetSystemMessage replaces the system slot atomically: old tokens are
// subtracted and new tokens added in one step, so total_tokens is never
// transiently wrong as observed from outside the call.
func (s *Store) SetSystemMessage(content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.system != nil {
		s.totalTokens -= s.system.Tokens
	}
	msg := Message{
		ID:        newID(),
		Role:      RoleSystem,
		Content:   content,
		Priority:  PriorityCritical,
		CreatedAt: time.Now(),
	}
	msg.Tokens = s.counter.CountMessage(msg.Role, msg.Content)
	s.system = &msg
	s.totalTokens += msg.Tokens
	return msg.ID
}

// NeedsPruning reports whether total_tokens currently exceeds max_tokens.
func (s *Store) NeedsPruning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalTokens > s.maxTokens
}

// Prune runs the active strategy unconditionally, regardless of autoprune
// or current budget. Returns an error if no strategy is configured.
func (s *Store) Prune(ctx context.Context) (PruneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(ctx)
}

func (s *Store) pruneLocked(ctx context.Context) (PruneResult, error) {
	if s.strategy == nil {
		return PruneResult{}, fmt.Errorf("contextstore: no pruning strategy configured")
	}

	result, err := s.strategy.Prune(ctx, PruneInput{
		System:         s.system,
		Messages:       s.messages,
		MaxTokens:      s.maxTokens,
		PreserveSystem: s.preserveSystem,
		Counter:        s.counter,
	})
	if err != nil {
		return PruneResult{}, err
	}

	s.messages = result.Kept
	s.totalTokens = sumTokens(s.messages)
	if s.system != nil {
		s.totalTokens += s.system.Tokens
	}

	s.pruneCount++
	now := time.Now()
	s.lastPrunedAt = &now

	return result, nil
}

// GetStats reports message counts, token accounting, and prune bookkeeping.
func (s *Store) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roleCounts := make(map[Role]int)
	for _, m := range s.messages {
		roleCounts[m.Role]++
	}
	if s.system != nil {
		roleCounts[RoleSystem]++
	}

	return Stats{
		MessageCount: len(s.messages) + boolToInt(s.system != nil),
		TotalTokens:  s.totalTokens,
		MaxTokens:    s.maxTokens,
		RoleCounts:   roleCounts,
		PruneCount:   s.pruneCount,
		LastPrunedAt: s.lastPrunedAt,
		HasSystem:    s.system != nil,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SearchOptions customizes Search.
type SearchOptions struct {
	Limit     int
	Threshold float64
}

// Search scores messages by keyword overlap: the number of whitespace-split
// query terms present in the message content (a repeated term counts each
// time it appears in the query), divided by the total number of query terms.
// Results with a score above zero that also meet threshold are returned
// sorted descending.
func (s *Store) Search(query string, opts SearchOptions) []SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	all := make([]Message, 0, len(s.messages)+1)
	if s.system != nil {
		all = append(all, *s.system)
	}
	all = append(all, s.messages...)

	var results []SearchResult
	for _, m := range all {
		content := strings.ToLower(m.Content)
		hits := 0
		for _, term := range terms {
			if strings.Contains(content, term) {
				hits++
			}
		}
		score := float64(hits) / float64(len(terms))
		if score >= opts.Threshold && score > 0 {
			results = append(results, SearchResult{Message: m, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

// Export produces a versioned snapshot of the store's messages.
func (s *Store) Export() Exported {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Exported{Version: exportVersion, Messages: append([]Message(nil), s.messages...)}
	if s.system != nil {
		sys := *s.system
		out.System = &sys
	}
	return out
}

// Import replaces the store's contents with a previously exported snapshot.
// Fails if data's major version differs from the store's.
func (s *Store) Import(data Exported) error {
	if majorVersion(data.Version) != majorVersion(exportVersion) {
		return fmt.Errorf("contextstore: incompatible export version %q (expected major %q)", data.Version, majorVersion(exportVersion))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append([]Message(nil), data.Messages...)
	if data.System != nil {
		sys := *data.System
		s.system = &sys
	} else {
		s.system = nil
	}
	s.totalTokens = sumTokens(s.messages)
	if s.system != nil {
		s.totalTokens += s.system.Tokens
	}
	return nil
}

func majorVersion(v string) string {
	if i := strings.Index(v, "."); i >= 0 {
		return v[:i]
	}
	return v
}
