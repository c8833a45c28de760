package task

import "sort"

// graph maps a task id to the ids it depends on.
type graph map[string][]string

func newGraph(tasks []Task) graph {
	g := make(graph, len(tasks))
	for _, t := range tasks {
		g[t.ID] = t.Dependencies
	}
	return g
}

func (g graph) ids() []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// findCycle returns a cycle reachable from one of `from` (visited in order), or nil.
// It uses DFS with coloring: white (unvisited), gray (in progress), black (done).
// Edges to ids that are not nodes of `g` are ignored.
func (g graph) findCycle(from ...string) []string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g))
	var stack []string

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		stack = append(stack, node)

		deps := append([]string(nil), g[node]...)
		sort.Strings(deps)
		for _, next := range deps {
			if _, ok := g[next]; !ok {
				continue
			}
			switch color[next] {
			case gray:
				// the cycle is the stack suffix starting at `next`
				var cycle []string
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycle = append(cycle, stack[i:]...)
						break
					}
				}
				return append(cycle, next)
			case white:
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[node] = black
		return nil
	}

	for _, id := range from {
		if _, ok := g[id]; !ok || color[id] != white {
			continue
		}
		if cycle := dfs(id); cycle != nil {
			return cycle
		}
	}
	return nil
}

// CheckDependencies validates that `candidateID` may depend on `deps` within the group made of `peers`.
//
// When `peers` already holds the candidate (edit), its stored dependencies are replaced by `deps`.
// Unknown dependencies are reported before cycles, as an *UnknownDependencyError listing every missing id.
// A cycle reachable from the candidate is reported as a *CycleError whose path starts and ends
// with the same task: the candidate when it closes the cycle, otherwise the first task of a cycle
// `peers` already held. A task depending on itself gives the path [candidateID, candidateID].
func CheckDependencies(candidateID string, deps []string, peers []Task) error {
	g := newGraph(peers)
	g[candidateID] = deps

	var missing []string
	seen := make(map[string]struct{}, len(deps))
	for _, dep := range deps {
		if _, ok := seen[dep]; ok {
			continue
		}
		seen[dep] = struct{}{}
		if _, ok := g[dep]; !ok {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &UnknownDependencyError{TaskID: candidateID, Missing: missing}
	}

	if _, ok := seen[candidateID]; ok {
		return &CycleError{Path: []string{candidateID, candidateID}}
	}
	if cycle := g.findCycle(candidateID); cycle != nil {
		return &CycleError{Path: cycle}
	}
	return nil
}

// unknownDependencies returns an *UnknownDependencyError for the first task (in id order)
// depending on ids that are not nodes of `g`.
func (g graph) unknownDependencies() error {
	for _, id := range g.ids() {
		var missing []string
		for _, dep := range g[id] {
			if _, ok := g[dep]; !ok {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return &UnknownDependencyError{TaskID: id, Missing: missing}
		}
	}
	return nil
}

// checkGraph validates a whole set of tasks at once, as CheckDependencies does for one task.
func checkGraph(tasks []Task) error {
	g := newGraph(tasks)
	if err := g.unknownDependencies(); err != nil {
		return err
	}
	if cycle := g.findCycle(g.ids()...); cycle != nil {
		return &CycleError{Path: cycle}
	}
	return nil
}
