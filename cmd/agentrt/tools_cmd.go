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
)

// ToolsListCmd lists the built-in tools available under the configured
// sandbox, with their description and category.
type ToolsListCmd struct {
	Config string `short:"c" help:"Path to config file." type:"path" required:""`
}

func (c *ToolsListCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}

	registry, err := buildToolRegistry(cfg)
	if err != nil {
		return err
	}

	defs := registry.Definitions()
	for _, d := range defs {
		fmt.Printf("%-18s %-12s %s\n", d.Name, d.Category, d.Description)
	}
	return nil
}
