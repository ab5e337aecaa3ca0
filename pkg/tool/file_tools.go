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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileConfig bounds every built-in file tool to a working directory and a
// maximum file size, sandboxing every operation before it touches the
// filesystem.
type FileConfig struct {
	WorkingDirectory string
	MaxFileSize      int64
}

func (c FileConfig) resolved() FileConfig {
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "."
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 10 << 20 // 10MB
	}
	return c
}

// resolvePath confines a user-supplied relative path to cfg.WorkingDirectory,
// rejecting any path that escapes it via `..`. An absolute path is joined
// under the working directory rather than used as is.
func (c FileConfig) resolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	root, err := filepath.Abs(c.WorkingDirectory)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, path)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes working directory: %s", path)
	}
	return full, nil
}

type fileReadArgs struct {
	Path string `json:"path" jsonschema:"required,description=File path to read, relative to the working directory"`
}

// NewFileRead builds the file_read tool: reads a file's full contents.
func NewFileRead(cfg FileConfig) Tool {
	cfg = cfg.resolved()
	t, err := NewFunc(
		FuncConfig{
			Name:        "file_read",
			Description: "Read the full contents of a file.",
			Category:    CategoryFile,
		},
		func(ctx context.Context, a fileReadArgs) (Result, error) {
			full, err := cfg.resolvePath(a.Path)
			if err != nil {
				return Fail(err.Error()), nil
			}
			info, err := os.Stat(full)
			if err != nil {
				return Fail(err.Error()), nil
			}
			if info.Size() > cfg.MaxFileSize {
				return Fail(fmt.Sprintf("file exceeds max size of %d bytes", cfg.MaxFileSize)), nil
			}
			data, err := os.ReadFile(full)
			if err != nil {
				return Fail(err.Error()), nil
			}
			return Ok(string(data), map[string]any{"path": a.Path, "bytes": len(data)}), nil
		},
		func(a fileReadArgs) error {
			_, err := cfg.resolvePath(a.Path)
			return err
		},
	)
	if err != nil {
		panic(err) // schema generation is static and deterministic at init time
	}
	return t
}

type fileWriteArgs struct {
	Path    string `json:"path" jsonschema:"required,description=File path to write, relative to the working directory"`
	Content string `json:"content" jsonschema:"required,description=Content to write"`
	Append  bool   `json:"append,omitempty" jsonschema:"description=Append instead of overwrite,default=false"`
}

// NewFileWrite builds the file_write tool: writes or appends file contents,
// creating parent directories as needed.
func NewFileWrite(cfg FileConfig) Tool {
	cfg = cfg.resolved()
	t, err := NewFunc(
		FuncConfig{
			Name:                 "file_write",
			Description:          "Write or append content to a file, creating parent directories if needed.",
			Category:             CategoryFile,
			RequiresConfirmation: true,
			HasSideEffects:       true,
		},
		func(ctx context.Context, a fileWriteArgs) (Result, error) {
			full, err := cfg.resolvePath(a.Path)
			if err != nil {
				return Fail(err.Error()), nil
			}
			if int64(len(a.Content)) > cfg.MaxFileSize {
				return Fail(fmt.Sprintf("content exceeds max size of %d bytes", cfg.MaxFileSize)), nil
			}
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return Fail(err.Error()), nil
			}

			flags := os.O_CREATE | os.O_WRONLY
			if a.Append {
				flags |= os.O_APPEND
			} else {
				flags |= os.O_TRUNC
			}
			f, err := os.OpenFile(full, flags, 0o644)
			if err != nil {
				return Fail(err.Error()), nil
			}
			defer f.Close()

			n, err := f.WriteString(a.Content)
			if err != nil {
				return Fail(err.Error()), nil
			}
			return Ok(nil, map[string]any{"path": a.Path, "bytes_written": n}), nil
		},
		func(a fileWriteArgs) error {
			_, err := cfg.resolvePath(a.Path)
			return err
		},
	)
	if err != nil {
		panic(err)
	}
	return t
}

type fileListArgs struct {
	Path string `json:"path,omitempty" jsonschema:"description=Directory to list, relative to the working directory,default=."`
}

// NewFileList builds the file_list tool: lists direct children of a directory.
func NewFileList(cfg FileConfig) Tool {
	cfg = cfg.resolved()
	t, err := NewFunc(
		FuncConfig{
			Name:        "file_list",
			Description: "List the entries directly inside a directory.",
			Category:    CategoryFile,
		},
		func(ctx context.Context, a fileListArgs) (Result, error) {
			path := a.Path
			if path == "" {
				path = "."
			}
			full, err := cfg.resolvePath(path)
			if err != nil {
				return Fail(err.Error()), nil
			}
			entries, err := os.ReadDir(full)
			if err != nil {
				return Fail(err.Error()), nil
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			return Ok(names, map[string]any{"path": path, "count": len(names)}), nil
		},
		nil,
	)
	if err != nil {
		panic(err)
	}
	return t
}

type filePathArgs struct {
	Path string `json:"path" jsonschema:"required,description=File path, relative to the working directory"`
}

// NewFileDelete builds the file_delete tool.
func NewFileDelete(cfg FileConfig) Tool {
	cfg = cfg.resolved()
	t, err := NewFunc(
		FuncConfig{
			Name:                 "file_delete",
			Description:          "Delete a file.",
			Category:             CategoryFile,
			RequiresConfirmation: true,
			HasSideEffects:       true,
		},
		func(ctx context.Context, a filePathArgs) (Result, error) {
			full, err := cfg.resolvePath(a.Path)
			if err != nil {
				return Fail(err.Error()), nil
			}
			if err := os.Remove(full); err != nil {
				return Fail(err.Error()), nil
			}
			return Ok(nil, map[string]any{"path": a.Path}), nil
		},
		func(a filePathArgs) error {
			_, err := cfg.resolvePath(a.Path)
			return err
		},
	)
	if err != nil {
		panic(err)
	}
	return t
}

type fileMoveArgs struct {
	Source      string `json:"source" jsonschema:"required,description=Existing file path, relative to the working directory"`
	Destination string `json:"destination" jsonschema:"required,description=Target file path, relative to the working directory"`
}

// NewFileCopy builds the file_copy tool.
func NewFileCopy(cfg FileConfig) Tool {
	cfg = cfg.resolved()
	t, err := NewFunc(
		FuncConfig{
			Name:                 "file_copy",
			Description:          "Copy a file to a new path.",
			Category:             CategoryFile,
			RequiresConfirmation: true,
			HasSideEffects:       true,
		},
		func(ctx context.Context, a fileMoveArgs) (Result, error) {
			src, err := cfg.resolvePath(a.Source)
			if err != nil {
				return Fail(err.Error()), nil
			}
			dst, err := cfg.resolvePath(a.Destination)
			if err != nil {
				return Fail(err.Error()), nil
			}
			if err := copyFile(src, dst); err != nil {
				return Fail(err.Error()), nil
			}
			return Ok(nil, map[string]any{"source": a.Source, "destination": a.Destination}), nil
		},
		func(a fileMoveArgs) error {
			if _, err := cfg.resolvePath(a.Source); err != nil {
				return err
			}
			_, err := cfg.resolvePath(a.Destination)
			return err
		},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// NewFileMove builds the file_move tool.
func NewFileMove(cfg FileConfig) Tool {
	cfg = cfg.resolved()
	t, err := NewFunc(
		FuncConfig{
			Name:                 "file_move",
			Description:          "Move or rename a file.",
			Category:             CategoryFile,
			RequiresConfirmation: true,
			HasSideEffects:       true,
		},
		func(ctx context.Context, a fileMoveArgs) (Result, error) {
			src, err := cfg.resolvePath(a.Source)
			if err != nil {
				return Fail(err.Error()), nil
			}
			dst, err := cfg.resolvePath(a.Destination)
			if err != nil {
				return Fail(err.Error()), nil
			}
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return Fail(err.Error()), nil
			}
			if err := os.Rename(src, dst); err != nil {
				return Fail(err.Error()), nil
			}
			return Ok(nil, map[string]any{"source": a.Source, "destination": a.Destination}), nil
		},
		func(a fileMoveArgs) error {
			if _, err := cfg.resolvePath(a.Source); err != nil {
				return err
			}
			_, err := cfg.resolvePath(a.Destination)
			return err
		},
	)
	if err != nil {
		panic(err)
	}
	return t
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// RegisterFileTools registers every built-in file_* tool under cfg into r.
func RegisterFileTools(r *Registry, cfg FileConfig) error {
	tools := []Tool{
		NewFileRead(cfg),
		NewFileWrite(cfg),
		NewFileList(cfg),
		NewFileDelete(cfg),
		NewFileCopy(cfg),
		NewFileMove(cfg),
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
