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

import "fmt"

// topologicalOrder performs a depth-first topological visit over the
// dependency DAG declared by Workflow.Steps, returning step ids in an order
// where every dependency precedes its dependents. Steps with no
// dependencies appear in declared order relative to each other. A cycle or
// a dependency on an unknown step id fails validation.
func topologicalOrder(w *Workflow) ([]string, error) {
	index := make(map[string]int, len(w.Steps))
	for i, s := range w.Steps {
		if _, dup := index[s.ID]; dup {
			return nil, fmt.Errorf("workflow: duplicate step id %q", s.ID)
		}
		index[s.ID] = i
	}
	for _, s := range w.Steps {
		for _, dep := range s.Dependencies {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("workflow: step %q depends on unknown step %q", s.ID, dep)
			}
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make([]int, len(w.Steps))
	order := make([]string, 0, len(w.Steps))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("workflow: dependency cycle detected at step %q", w.Steps[i].ID)
		}
		state[i] = visiting
		for _, dep := range w.Steps[i].Dependencies {
			if err := visit(index[dep]); err != nil {
				return err
			}
		}
		state[i] = visited
		order = append(order, w.Steps[i].ID)
		return nil
	}

	for i := range w.Steps {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}
