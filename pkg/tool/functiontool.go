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
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// FuncConfig configures a function-backed tool built with NewFunc.
type FuncConfig struct {
	Name                 string
	Description          string
	Category             Category
	RequiresConfirmation bool
	HasSideEffects       bool
}

// NewFunc builds a Tool from a typed Go function. Args must be a struct
// using `json` and `jsonschema` tags; the schema exposed to the LLM is
// generated from those tags. validate may be nil, in which case Validate
// only checks that the arguments convert to Args (the same map→struct
// conversion that happens before fn runs).
//
// Example:
//
//	type ReadArgs struct {
//	    Path string `json:"path" jsonschema:"required,description=File path to read"`
//	}
//
//	t, err := tool.NewFunc(tool.FuncConfig{Name: "file_read", Description: "..."},
//	    func(ctx context.Context, a ReadArgs) (Result, error) { ... },
//	    func(a ReadArgs) error { ... },
//	)
func NewFunc[Args any](cfg FuncConfig, fn func(context.Context, Args) (Result, error), validate func(Args) error) (Tool, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("tool: FuncConfig.Name is required")
	}
	if cfg.Description == "" {
		return nil, fmt.Errorf("tool: FuncConfig.Description is required")
	}

	params, err := generateParameters[Args]()
	if err != nil {
		return nil, fmt.Errorf("tool: generating schema for %s: %w", cfg.Name, err)
	}

	return &funcTool[Args]{cfg: cfg, fn: fn, validate: validate, params: params}, nil
}

type funcTool[Args any] struct {
	cfg      FuncConfig
	fn       func(context.Context, Args) (Result, error)
	validate func(Args) error
	params   map[string]Parameter
}

func (t *funcTool[Args]) Name() string        { return t.cfg.Name }
func (t *funcTool[Args]) Description() string { return t.cfg.Description }

func (t *funcTool[Args]) Definition() Definition {
	return Definition{
		Name:                 t.cfg.Name,
		Description:          t.cfg.Description,
		Category:             t.cfg.Category,
		Parameters:           t.params,
		RequiresConfirmation: t.cfg.RequiresConfirmation,
		HasSideEffects:       t.cfg.HasSideEffects,
	}
}

func (t *funcTool[Args]) Validate(args map[string]any) error {
	var typed Args
	if err := mapToStruct(args, &typed); err != nil {
		return err
	}
	if t.validate == nil {
		return nil
	}
	return t.validate(typed)
}

func (t *funcTool[Args]) Execute(ctx context.Context, args map[string]any) (Result, error) {
	var typed Args
	if err := mapToStruct(args, &typed); err != nil {
		return Result{}, fmt.Errorf("invalid arguments for %s: %w", t.cfg.Name, err)
	}
	return t.fn(ctx, typed)
}

// mapToStruct round-trips through JSON to convert a loosely-typed argument
// map into the tool's typed Args struct.
func mapToStruct(m map[string]any, target any) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal args: %w", err)
	}
	return nil
}

// generateParameters reflects over Args using invopop/jsonschema and
// reshapes the result into the name → Parameter map the registry exposes.
func generateParameters[Args any]() (map[string]Parameter, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(Args))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
			Default     any    `json:"default"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	required := make(map[string]bool, len(raw.Required))
	for _, name := range raw.Required {
		required[name] = true
	}

	params := make(map[string]Parameter, len(raw.Properties))
	for name, prop := range raw.Properties {
		params[name] = Parameter{
			Type:        prop.Type,
			Required:    required[name],
			Description: prop.Description,
			Default:     prop.Default,
		}
	}
	return params, nil
}
