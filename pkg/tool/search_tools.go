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

package tool

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

type codeSearchArgs struct {
	Pattern         string `json:"pattern" jsonschema:"required,description=Regular expression pattern to search for"`
	Path            string `json:"path,omitempty" jsonschema:"description=File or directory to search,default=."`
	FilePattern     string `json:"file_pattern,omitempty" jsonschema:"description=Glob filtering which file names are searched (e.g. *.go)"`
	CaseInsensitive bool   `json:"case_insensitive,omitempty" jsonschema:"description=Match case-insensitively,default=false"`
	MaxResults      int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of matches to return,default=100,minimum=1,maximum=1000"`
}

type codeSearchMatch struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// NewCodeSearch builds the code_search tool: a recursive regex grep over
// files under a directory.
func NewCodeSearch(cfg FileConfig) Tool {
	cfg = cfg.resolved()
	t, err := NewFunc(
		FuncConfig{
			Name:        "code_search",
			Description: "Search for a regular expression pattern across files, returning matching lines.",
			Category:    CategorySearch,
		},
		func(ctx context.Context, a codeSearchArgs) (Result, error) {
			pattern := a.Pattern
			if a.CaseInsensitive {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return Fail(err.Error()), nil
			}

			path := a.Path
			if path == "" {
				path = "."
			}
			root, err := cfg.resolvePath(path)
			if err != nil {
				return Fail(err.Error()), nil
			}

			maxResults := a.MaxResults
			if maxResults <= 0 {
				maxResults = 100
			}

			matches, err := searchTree(ctx, root, cfg.WorkingDirectory, re, a.FilePattern, maxResults, cfg.MaxFileSize)
			if err != nil {
				return Fail(err.Error()), nil
			}
			return Ok(matches, map[string]any{"count": len(matches)}), nil
		},
		func(a codeSearchArgs) error {
			pattern := a.Pattern
			if a.CaseInsensitive {
				pattern = "(?i)" + pattern
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid regex pattern: %w", err)
			}
			path := a.Path
			if path == "" {
				path = "."
			}
			_, err := cfg.resolvePath(path)
			return err
		},
	)
	if err != nil {
		panic(err)
	}
	return t
}

func searchTree(ctx context.Context, root, workDir string, re *regexp.Regexp, filePattern string, maxResults int, maxFileSize int64) ([]codeSearchMatch, error) {
	var matches []codeSearchMatch

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if len(matches) >= maxResults {
			return filepath.SkipAll
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if filePattern != "" {
			if ok, _ := filepath.Match(filePattern, d.Name()); !ok {
				return nil
			}
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxFileSize {
			return nil
		}

		relPath, err := filepath.Rel(workDir, path)
		if err != nil {
			relPath = path
		}

		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			if re.MatchString(scanner.Text()) {
				matches = append(matches, codeSearchMatch{File: relPath, Line: lineNum, Text: scanner.Text()})
				if len(matches) >= maxResults {
					break
				}
			}
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return matches, err
	}
	return matches, nil
}

type fileSearchArgs struct {
	Glob string `json:"glob" jsonschema:"required,description=Glob pattern to match file paths (e.g. **/*.go)"`
	Path string `json:"path,omitempty" jsonschema:"description=Directory to search under,default=."`
}

// NewFileSearch builds the file_search tool: finds files by name glob.
func NewFileSearch(cfg FileConfig) Tool {
	cfg = cfg.resolved()
	t, err := NewFunc(
		FuncConfig{
			Name:        "file_search",
			Description: "Find files whose path matches a glob pattern.",
			Category:    CategorySearch,
		},
		func(ctx context.Context, a fileSearchArgs) (Result, error) {
			path := a.Path
			if path == "" {
				path = "."
			}
			root, err := cfg.resolvePath(path)
			if err != nil {
				return Fail(err.Error()), nil
			}

			var found []string
			err = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if d.IsDir() {
					return nil
				}
				rel, err := filepath.Rel(cfg.WorkingDirectory, p)
				if err != nil {
					rel = p
				}
				if ok, _ := filepath.Match(a.Glob, rel); ok {
					found = append(found, rel)
				} else if ok, _ := filepath.Match(a.Glob, filepath.Base(p)); ok {
					found = append(found, rel)
				}
				return nil
			})
			if err != nil {
				return Fail(err.Error()), nil
			}
			return Ok(found, map[string]any{"count": len(found)}), nil
		},
		func(a fileSearchArgs) error {
			if a.Glob == "" {
				return fmt.Errorf("glob is required")
			}
			path := a.Path
			if path == "" {
				path = "."
			}
			_, err := cfg.resolvePath(path)
			return err
		},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// RegisterSearchTools registers code_search and file_search into r.
func RegisterSearchTools(r *Registry, cfg FileConfig) error {
	tools := []Tool{
		NewCodeSearch(cfg),
		NewFileSearch(cfg),
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
