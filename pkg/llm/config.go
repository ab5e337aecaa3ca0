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

// ProviderConfig configures a provider adapter. Host is required for Ollama
// and optional elsewhere (defaults to the provider's public API).
type ProviderConfig struct {
	Model       string
	APIKey      string
	Host        string
	Temperature float64
	MaxTokens   int
	TimeoutSec  int
	MaxRetries  int
	RetryDelay  int
}

func (c ProviderConfig) timeoutSecOrDefault(def int) int {
	if c.TimeoutSec > 0 {
		return c.TimeoutSec
	}
	return def
}
