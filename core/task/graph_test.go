package task

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTask(id string, deps ...string) Task {
	return Task{ID: id, Name: id, DurationHours: 1, Priority: 1, Dependencies: deps}
}

func TestCheckDependencies(t *testing.T) {
	// a <- b <- c
	peers := []Task{mkTask("a"), mkTask("b", "a"), mkTask("c", "b")}

	tests := []struct {
		name        string
		candidate   string
		deps        []string
		peers       []Task
		wantCycle   []string
		wantMissing []string
	}{
		{name: "no dependencies", candidate: "d", peers: peers},
		{name: "new task on existing ones", candidate: "d", deps: []string{"a", "c"}, peers: peers},
		{name: "empty group", candidate: "d", peers: nil},
		{name: "self reference on create", candidate: "d", deps: []string{"d"}, peers: peers, wantCycle: []string{"d", "d"}},
		{name: "self reference on edit", candidate: "b", deps: []string{"b"}, peers: peers, wantCycle: []string{"b", "b"}},
		{name: "unknown dependency", candidate: "e", deps: []string{"nonexistent-id"}, peers: peers, wantMissing: []string{"nonexistent-id"}},
		{name: "every unknown dependency, sorted", candidate: "e", deps: []string{"z", "a", "y"}, peers: peers, wantMissing: []string{"y", "z"}},
		{name: "unknown reported before cycle", candidate: "a", deps: []string{"c", "x"}, peers: peers, wantMissing: []string{"x"}},
		{name: "edit closing a cycle", candidate: "a", deps: []string{"c"}, peers: peers, wantCycle: []string{"a", "c", "b", "a"}},
		{name: "edit closing a 2-cycle", candidate: "a", deps: []string{"b"}, peers: peers, wantCycle: []string{"a", "b", "a"}},
		{
			name: "new task reaching a stored cycle", candidate: "c", deps: []string{"a"},
			peers: []Task{mkTask("a", "b"), mkTask("b", "a")}, wantCycle: []string{"a", "b", "a"},
		},
		{name: "edit replacing prior edges", candidate: "b", deps: []string{}, peers: peers},
		{name: "edit rewiring without cycle", candidate: "a", deps: []string{"d"}, peers: append(peers, mkTask("d")), wantCycle: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDependencies(tt.candidate, tt.deps, tt.peers)

			switch {
			case tt.wantMissing != nil:
				var uErr *UnknownDependencyError
				require.True(t, errors.As(err, &uErr), "CheckDependencies() error = %v, want *UnknownDependencyError", err)
				assert.Equal(t, tt.candidate, uErr.TaskID)
				assert.Equal(t, tt.wantMissing, uErr.Missing)
				assert.True(t, errors.Is(err, ErrUnknownDependency))
			case tt.wantCycle != nil:
				var cErr *CycleError
				require.True(t, errors.As(err, &cErr), "CheckDependencies() error = %v, want *CycleError", err)
				assert.Equal(t, tt.wantCycle, cErr.Path)
				assert.True(t, errors.Is(err, ErrCycleDetected))
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckDependencies_doesNotMutatePeers(t *testing.T) {
	peers := []Task{mkTask("a"), mkTask("b", "a")}
	want := []Task{mkTask("a"), mkTask("b", "a")}

	_ = CheckDependencies("a", []string{"b"}, peers)
	_ = CheckDependencies("c", []string{"a"}, peers)

	if !reflect.DeepEqual(peers, want) {
		t.Errorf("peers = %v, want %v", peers, want)
	}
}

func TestCycleError_Error(t *testing.T) {
	err := &CycleError{Path: []string{"a", "b", "a"}}
	assert.Equal(t, "cycle detected: a -> b -> a", err.Error())

	uErr := &UnknownDependencyError{TaskID: "e", Missing: []string{"x", "y"}}
	assert.Equal(t, "unknown dependency: e depends on x, y", uErr.Error())

	dErr := &DependencyConflictError{TaskID: "a", Dependents: []string{"b", "c"}}
	assert.Equal(t, "task has dependents: a is required by b, c", dErr.Error())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: ErrRepositoryUnavailable, want: true},
		{err: errors.Wrap(ErrRepositoryUnavailable, "querying tasks"), want: true},
		{err: &CycleError{Path: []string{"a", "a"}}, want: false},
		{err: &UnknownDependencyError{TaskID: "a", Missing: []string{"b"}}, want: false},
		{err: &DependencyConflictError{TaskID: "a", Dependents: []string{"b"}}, want: false},
		{err: ErrNotFound, want: false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func Test_checkGraph(t *testing.T) {
	assert.NoError(t, checkGraph([]Task{mkTask("a"), mkTask("b", "a"), mkTask("c", "a", "b")}))

	err := checkGraph([]Task{mkTask("a", "c"), mkTask("b", "a"), mkTask("c", "b")})
	var cErr *CycleError
	require.True(t, errors.As(err, &cErr))
	assert.Equal(t, []string{"a", "c", "b", "a"}, cErr.Path)

	err = checkGraph([]Task{mkTask("a", "c"), mkTask("b", "q", "p")})
	var uErr *UnknownDependencyError
	require.True(t, errors.As(err, &uErr))
	assert.Equal(t, "a", uErr.TaskID)
	assert.Equal(t, []string{"c"}, uErr.Missing)
}

// reaches reports whether `from` transitively depends on `to`.
func reaches(g graph, from, to string) bool {
	seen := make(map[string]bool)
	stack := append([]string{}, g[from]...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		if !seen[id] {
			seen[id] = true
			stack = append(stack, g[id]...)
		}
	}
	return false
}

// Every random edge accepted by CheckDependencies keeps the group acyclic,
// and every rejected one would have closed a cycle.
func TestCheckDependencies_acyclicity(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		var tasks []Task
		n := 2 + rnd.Intn(12)
		for i := 0; i < n; i++ {
			tasks = append(tasks, mkTask(fmt.Sprintf("t%02d", i)))
		}

		for attempt := 0; attempt < 3*n; attempt++ {
			i := rnd.Intn(n)
			dep := tasks[rnd.Intn(n)].ID
			deps := normalizeDependencies(append(append([]string{}, tasks[i].Dependencies...), dep))

			err := CheckDependencies(tasks[i].ID, deps, tasks)
			if err != nil {
				var cErr *CycleError
				require.True(t, errors.As(err, &cErr), "unexpected error: %v", err)
				require.True(t, dep == tasks[i].ID || reaches(newGraph(tasks), dep, tasks[i].ID),
					"edge %s -> %s rejected without a cycle", tasks[i].ID, dep)
				continue
			}
			tasks[i].Dependencies = deps
		}

		g := newGraph(tasks)
		for _, tk := range tasks {
			require.False(t, reaches(g, tk.ID, tk.ID), "%s depends on itself", tk.ID)
		}
		_, err := ComputeSchedule(tasks)
		require.NoError(t, err)
	}
}
