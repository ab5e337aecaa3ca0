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
	"encoding/json"
	"strings"
)

// ParseToolArguments decodes a tool call's raw argument text into a map,
// degrading gracefully instead of aborting the task: strict JSON first, then
// the first `{...}` substring found in the text, then an empty map.
func ParseToolArguments(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args
	}

	if sub, ok := firstJSONObject(raw); ok {
		var fallback map[string]any
		if err := json.Unmarshal([]byte(sub), &fallback); err == nil {
			return fallback
		}
	}

	return map[string]any{}
}

// firstJSONObject extracts the first brace-balanced `{...}` substring from
// text, ignoring braces inside quoted strings. Returns ok=false if no
// balanced object is found.
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string, braces don't affect depth
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
