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

package agentloop

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the prometheus series an AgentLoop emits: iteration and
// tool-dispatch counts, durations, and outcomes. Registration happens once,
// at construction.
type Metrics struct {
	iterations     prometheus.Counter
	llmCalls       prometheus.Counter
	llmTokens      prometheus.Counter
	toolCalls      *prometheus.CounterVec
	toolCallErrors *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
}

// NewMetrics builds and registers an agent-loop Metrics instance against
// registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentrt",
			Subsystem: "agentloop",
			Name:      "iterations_total",
			Help:      "Total number of think/act/observe iterations executed.",
		}),
		llmCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentrt",
			Subsystem: "agentloop",
			Name:      "llm_calls_total",
			Help:      "Total number of LLM chat requests issued by the loop.",
		}),
		llmTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentrt",
			Subsystem: "agentloop",
			Name:      "llm_tokens_total",
			Help:      "Total tokens reported by the LLM client across all calls.",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt",
			Subsystem: "agentloop",
			Name:      "tool_calls_total",
			Help:      "Total tool dispatches, labeled by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		toolCallErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt",
			Subsystem: "agentloop",
			Name:      "tool_call_errors_total",
			Help:      "Total tool dispatches that failed before or around execution.",
		}, []string{"tool"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentrt",
			Subsystem: "agentloop",
			Name:      "tool_call_duration_seconds",
			Help:      "Tool dispatch latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 15),
		}, []string{"tool"}),
	}

	if registry != nil {
		registry.MustRegister(m.iterations, m.llmCalls, m.llmTokens, m.toolCalls, m.toolCallErrors, m.toolDuration)
	}

	return m
}

// ObserveToolDispatch records one completed tool dispatch.
func (m *Metrics) ObserveToolDispatch(toolName string, d time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
		m.toolCallErrors.WithLabelValues(toolName).Inc()
	}
	m.toolCalls.WithLabelValues(toolName, outcome).Inc()
	m.toolDuration.WithLabelValues(toolName).Observe(d.Seconds())
}

// ObserveIteration records one think/act/observe iteration.
func (m *Metrics) ObserveIteration() {
	m.iterations.Inc()
}

// ObserveLLMCall records one LLM chat request and the tokens it reported.
func (m *Metrics) ObserveLLMCall(tokens int) {
	m.llmCalls.Inc()
	m.llmTokens.Add(float64(tokens))
}
