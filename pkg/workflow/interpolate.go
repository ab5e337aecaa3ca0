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

package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

// interpolate scans s for `${name}` or `${a.b.c}` references and substitutes
// values looked up from scope by dotted path. A reference whose path
// resolves to nothing is left as the literal `${...}` text rather than
// erroring. A string consisting of exactly one reference returns the
// referenced value's native type (so `"${count}"` interpolates to an int,
// not its string form); references embedded in a larger string are stringified.
func interpolate(s string, scope map[string]any) any {
	refs := findReferences(s)
	if len(refs) == 0 {
		return s
	}
	if len(refs) == 1 && refs[0].start == 0 && refs[0].end == len(s) {
		if v, ok := lookupPath(scope, refs[0].path); ok {
			return v
		}
		return s
	}

	var b strings.Builder
	last := 0
	for _, r := range refs {
		b.WriteString(s[last:r.start])
		if v, ok := lookupPath(scope, r.path); ok {
			b.WriteString(stringify(v))
		} else {
			b.WriteString(s[r.start:r.end])
		}
		last = r.end
	}
	b.WriteString(s[last:])
	return b.String()
}

// interpolateValue recurses interpolate into strings nested in arrays and
// maps, leaving every other type untouched.
func interpolateValue(v any, scope map[string]any) any {
	switch val := v.(type) {
	case string:
		return interpolate(val, scope)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = interpolateValue(vv, scope)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = interpolateValue(vv, scope)
		}
		return out
	default:
		return v
	}
}

type reference struct {
	start, end int
	path       string
}

// findReferences locates every `${...}` span in s, without attempting to
// resolve it.
func findReferences(s string) []reference {
	var refs []reference
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "${")
		if start < 0 {
			break
		}
		start += i
		end := strings.Index(s[start:], "}")
		if end < 0 {
			break
		}
		end += start + 1
		refs = append(refs, reference{start: start, end: end, path: s[start+2 : end-1]})
		i = end
	}
	return refs
}

// lookupPath traverses scope by dotted path, descending through nested
// map[string]any values.
func lookupPath(scope map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = scope
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
