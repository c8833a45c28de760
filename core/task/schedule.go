package task

import (
	"sort"
	"time"
)

// ComputeSchedule derives the schedule of every task of `tasks`.
//
// Tasks are scheduled within their group only. A task without dependencies starts at its
// authored StartTime, or is unscheduled without one. A task with dependencies starts when the
// last of them ends, and is unscheduled as soon as one of them is. Every scheduled task ends
// Duration() after it starts.
//
// The result is keyed by task id and holds every task of `tasks`. The first group (in group id
// order) referencing an unknown id fails with *UnknownDependencyError, and a cyclic group fails
// with *CycleError; the whole computation is then aborted.
func ComputeSchedule(tasks []Task) (map[string]Schedule, error) {
	groups := make(map[string][]Task)
	for _, t := range tasks {
		groups[t.GroupID] = append(groups[t.GroupID], t)
	}
	groupIDs := make([]string, 0, len(groups))
	for gid := range groups {
		groupIDs = append(groupIDs, gid)
	}
	sort.Strings(groupIDs)

	schedules := make(map[string]Schedule, len(tasks))
	for _, gid := range groupIDs {
		if err := scheduleGroup(groups[gid], schedules); err != nil {
			return nil, err
		}
	}
	return schedules, nil
}

func scheduleGroup(tasks []Task, schedules map[string]Schedule) error {
	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	g := newGraph(tasks)
	if err := g.unknownDependencies(); err != nil {
		return err
	}

	order, err := topoSort(g)
	if err != nil {
		return err
	}

	// forward pass
	for _, id := range order {
		t := byID[id]
		var sch Schedule
		if len(t.Dependencies) == 0 {
			if t.StartTime != nil && !t.StartTime.IsZero() {
				sch.Start = t.StartTime.UTC()
			}
		} else {
			scheduled := true
			for _, dep := range t.Dependencies {
				depSch := schedules[dep]
				if !depSch.IsScheduled() {
					scheduled = false
					break
				}
				if depSch.End.After(sch.Start) {
					sch.Start = depSch.End
				}
			}
			if !scheduled {
				sch.Start = time.Time{}
			}
		}
		if !sch.Start.IsZero() {
			sch.End = sch.Start.Add(t.Duration())
		}
		schedules[id] = sch
	}
	return nil
}

// topoSort performs Kahn's algorithm on `g`, dependencies first.
// Ready tasks are taken in id order so that the result is deterministic.
func topoSort(g graph) ([]string, error) {
	inDegree := make(map[string]int, len(g))
	dependents := make(map[string][]string, len(g))
	for _, id := range g.ids() {
		seen := make(map[string]struct{}, len(g[id]))
		for _, dep := range g[id] {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for _, id := range g.ids() {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var ready []string
		for _, succ := range dependents[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	if len(order) != len(g) {
		// every task left has an unresolved dependency: one of them is on a cycle
		var left []string
		for _, id := range g.ids() {
			if inDegree[id] > 0 {
				left = append(left, id)
			}
		}
		return nil, &CycleError{Path: g.findCycle(left...)}
	}
	return order, nil
}

// SortScheduled sorts `tasks` by computed start (unscheduled tasks last), then priority, then name.
// Ties are broken by id.
func SortScheduled(tasks []ScheduledTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case a.ComputedStart == nil && b.ComputedStart != nil:
			return false
		case a.ComputedStart != nil && b.ComputedStart == nil:
			return true
		case a.ComputedStart != nil && !a.ComputedStart.Equal(*b.ComputedStart):
			return a.ComputedStart.Before(*b.ComputedStart)
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}
