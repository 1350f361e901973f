package executor

import "golang.org/x/exp/slices"

// Order returns every target reachable from the given roots in execution
// order (prerequisites first), without executing anything. Plain file
// prerequisites are excluded.
func (o *Orchestrator) Order(roots ...string) ([]string, error) {
	visited := make(map[string]bool)
	var order []string

	var visit func(string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		visited[name] = true

		t, err := o.resolve(name)
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}

		for _, dep := range t.Prereqs {
			if err := visit(dep); err != nil {
				return err
			}
		}

		order = append(order, t.Name)
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// Edges returns the resolved dependency edges reachable from the roots,
// keyed by target name. Prerequisites keep their left-to-right order.
func (o *Orchestrator) Edges(roots ...string) (map[string][]string, error) {
	order, err := o.Order(roots...)
	if err != nil {
		return nil, err
	}

	edges := make(map[string][]string, len(order))
	for _, name := range order {
		t, err := o.resolve(name)
		if err != nil {
			return nil, err
		}
		if t != nil {
			edges[name] = slices.Clone(t.Prereqs)
		}
	}
	return edges, nil
}

// IsStale resolves a name and reports whether its action would run.
func (o *Orchestrator) IsStale(name string) (bool, error) {
	t, err := o.resolve(name)
	if err != nil {
		return false, err
	}
	if t == nil {
		return false, nil
	}
	return o.isStale(t)
}
