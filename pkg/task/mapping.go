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

package task

import "strings"

// mappingRule is one entry of the deterministic verb-to-tool ladder. Rules
// are tried in order; the first match wins.
type mappingRule struct {
	tool    string
	matches func(lower string) bool
}

var mappingRules = []mappingRule{
	{"file_list", func(s string) bool {
		return strings.Contains(s, "list") && (strings.Contains(s, "file") || strings.Contains(s, "director"))
	}},
	{"file_read", func(s string) bool {
		return strings.Contains(s, "read") && strings.Contains(s, "file")
	}},
	{"file_write", func(s string) bool {
		return (strings.Contains(s, "write") || strings.Contains(s, "create")) && strings.Contains(s, "file")
	}},
	{"file_delete", func(s string) bool {
		return strings.Contains(s, "delete") && strings.Contains(s, "file")
	}},
	{"file_copy", func(s string) bool {
		return strings.Contains(s, "copy") && strings.Contains(s, "file")
	}},
	{"file_move", func(s string) bool {
		return strings.Contains(s, "move") && strings.Contains(s, "file")
	}},
	{"git_status", func(s string) bool {
		return strings.Contains(s, "git") && strings.Contains(s, "status")
	}},
	{"git_diff", func(s string) bool {
		return strings.Contains(s, "git") && strings.Contains(s, "diff")
	}},
	{"git_log", func(s string) bool {
		return strings.Contains(s, "git") && strings.Contains(s, "log")
	}},
	{"code_search", func(s string) bool {
		return strings.Contains(s, "search") && strings.Contains(s, "code")
	}},
	{"file_search", func(s string) bool {
		return strings.Contains(s, "search") && strings.Contains(s, "file")
	}},
	{"command_execute", func(s string) bool {
		return strings.Contains(s, "run") || strings.Contains(s, "execute")
	}},
}

// MapVerbToTool applies the §4.5 fallback ladder: deterministic lowercase
// keyword rules tried in priority order. Used only when the planning LLM
// didn't itself produce a valid tool name. Returns ok=false when nothing
// matches.
func MapVerbToTool(description string) (name string, ok bool) {
	lower := strings.ToLower(description)
	for _, rule := range mappingRules {
		if rule.matches(lower) {
			return rule.tool, true
		}
	}
	return "", false
}

// SkippedReason is the verbatim message attached to a ProposedAction that
// §4.5 couldn't map to any tool.
const SkippedReason = "Skipped: action does not map to a tool"
