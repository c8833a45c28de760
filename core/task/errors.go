package task

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/syllabus/core"
)

var (
	ErrNotFound              = errors.New("task not found")
	ErrRepositoryUnavailable = core.ErrRepositoryUnavailable

	// kinds of graph errors, matched with errors.Is
	ErrCycleDetected      = errors.New("cycle detected")
	ErrUnknownDependency  = errors.New("unknown dependency")
	ErrDependencyConflict = errors.New("task has dependents")
)

// CycleError is returned when a dependency set would make a task transitively depend on itself.
// Path is the witness: its first and last elements are the same task.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrCycleDetected.Error()
	}
	return fmt.Sprintf("%v: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// UnknownDependencyError is returned when TaskID lists dependencies that do not exist in its group.
type UnknownDependencyError struct {
	TaskID  string
	Missing []string
}

func (e *UnknownDependencyError) Error() string {
	name := e.TaskID
	if name == "" {
		name = "new task"
	}
	return fmt.Sprintf("%v: %s depends on %s", ErrUnknownDependency, name, strings.Join(e.Missing, ", "))
}

func (e *UnknownDependencyError) Unwrap() error { return ErrUnknownDependency }

// DependencyConflictError is returned when deleting (or moving out of its group) a task that others still depend on.
type DependencyConflictError struct {
	TaskID     string
	Dependents []string
}

func (e *DependencyConflictError) Error() string {
	return fmt.Sprintf("%v: %s is required by %s", ErrDependencyConflict, e.TaskID, strings.Join(e.Dependents, ", "))
}

func (e *DependencyConflictError) Unwrap() error { return ErrDependencyConflict }

// IsRetryable reports whether the operation that returned `err` may succeed if retried unchanged.
// Graph and validation errors are deterministic and never are.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRepositoryUnavailable)
}
