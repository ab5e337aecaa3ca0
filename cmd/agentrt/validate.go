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

package main

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ValidateCmd validates a configuration file and, on request, prints it back
// out with defaults applied and environment references expanded.
type ValidateCmd struct {
	Config      string `arg:"" name:"config" help:"Configuration file path." type:"path"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration."`
}

func (c *ValidateCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.PrintConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("rendering config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	}

	fmt.Printf("%s is valid\n", c.Config)
	return nil
}
