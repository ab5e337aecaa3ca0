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

package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envOverrides maps a small, explicit whitelist of AGENTRT_-prefixed
// environment variables to koanf keys. Anything outside this whitelist is
// left for `${VAR}` expansion within the YAML file instead, which is the
// primary environment integration (see env.go); this provider exists for
// the handful of settings an operator reasonably flips without editing a
// file (log level, concurrency cap).
var envOverrides = map[string]string{
	"AGENTRT_LOG_LEVEL":                "logger.level",
	"AGENTRT_MAX_CONCURRENT_WORKFLOWS": "workflow.max_concurrent_workflows",
}

func envKeyMap(raw string) string {
	if key, ok := envOverrides[raw]; ok {
		return key
	}
	return ""
}

// defaultValues seeds the koanf tree before the file is loaded, so a config
// file only needs to specify what it wants to override.
var defaultValues = map[string]any{
	"agent_loop.max_iterations":       10,
	"context_store.max_tokens":        8000,
	"workflow.default_step_timeout_ms": 60_000,
	"tool.working_directory":          ".",
	"logger.level":                    "info",
}

// Load reads configuration from path, layering: built-in defaults, the YAML
// file (if path is non-empty), then the AGENTRT_ environment whitelist.
// `${VAR}` / `${VAR:-default}` references anywhere in the decoded tree are
// then expanded against the process environment before the result is
// unmarshaled into a Config, defaulted, and validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultValues, "."), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("AGENTRT_", ".", envKeyMap), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment overrides: %w", err)
	}

	return decode(k)
}

func decode(k *koanf.Koanf) (*Config, error) {
	expanded, ok := expandEnvVarsInData(k.Raw()).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config: unexpected shape after environment expansion")
	}

	expandedK := koanf.New(".")
	if err := expandedK.Load(confmap.Provider(expanded, "."), nil); err != nil {
		return nil, fmt.Errorf("config: reloading expanded config: %w", err)
	}

	cfg := &Config{}
	if err := expandedK.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watcher reloads a config file on every write or create event for it and
// invokes onChange with the newly parsed Config. Rapid successive writes are
// not debounced: each event triggers its own reload.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching path's containing directory for changes to path
// itself, reloading and calling onChange on every write. onChange errors
// are not fatal to the watch loop; callers that care should log them.
func Watch(path string, onChange func(*Config, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating file watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", dir, err)
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}
	go w.loop(path, onChange)
	return w, nil
}

func (w *Watcher) loop(path string, onChange func(*Config, error)) {
	base := filepath.Base(path)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(path)
			onChange(cfg, err)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			onChange(nil, fmt.Errorf("config: watch error: %w", err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
