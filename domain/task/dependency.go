package task

import (
	"context"
	"slices"
	"strings"
)

// EdgeLoader returns the dependency lists of the given tasks, keyed by task id.
// Ids that do not resolve are simply absent from the result.
type EdgeLoader func(ctx context.Context, ids []string) (map[string][]string, error)

// FindCycle reports whether giving taskID the dependencies proposed would close
// a cycle. It walks the existing graph breadth first from the proposed
// dependencies and returns the cycle path, starting and ending at taskID.
func FindCycle(ctx context.Context, taskID string, proposed []string, load EdgeLoader) ([]string, error) {
	parent := make(map[string]string)
	var frontier []string
	for _, id := range proposed {
		if id == taskID {
			return []string{taskID, taskID}, nil
		}
		if _, seen := parent[id]; seen {
			continue
		}
		parent[id] = taskID
		frontier = append(frontier, id)
	}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		edges, err := load(ctx, frontier)
		if err != nil {
			return nil, err
		}

		var next []string
		for _, from := range frontier {
			for _, to := range edges[from] {
				if to == taskID {
					return cyclePath(parent, taskID, from), nil
				}
				if _, seen := parent[to]; seen {
					continue
				}
				parent[to] = from
				next = append(next, to)
			}
		}
		frontier = next
	}
	return nil, nil
}

func cyclePath(parent map[string]string, root, last string) []string {
	path := []string{root}
	for n := last; n != root; n = parent[n] {
		path = append(path, n)
	}
	path = append(path, root)
	slices.Reverse(path[1 : len(path)-1])
	return path
}

// CycleError builds the validation error reported for a dependency cycle.
func CycleError(path []string) *ValidationError {
	return NewValidationError("dependencies", "dependency cycle: %s", strings.Join(path, " -> "))
}

// NormalizeDependencies trims, drops empties and removes duplicates while keeping order.
func NormalizeDependencies(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// MissingDependencies returns the ids in want that are not in found.
func MissingDependencies(want []string, found []*Task) []string {
	have := make(map[string]struct{}, len(found))
	for _, t := range found {
		have[t.ID] = struct{}{}
	}
	var missing []string
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// DependencyError builds the validation error for unresolved dependency ids.
func DependencyError(missing []string) *ValidationError {
	return NewValidationError("dependencies", "unknown task ids: %s", strings.Join(missing, ", "))
}
