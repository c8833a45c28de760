package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/syllabus/core"
	"github.com/trezcool/syllabus/core/task"
)

type taskRepository struct {
	db *taskTable
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db.task}
}

func copyTask(t task.Task) task.Task {
	if t.StartTime != nil {
		st := *t.StartTime
		t.StartTime = &st
	}
	if t.Dependencies != nil {
		t.Dependencies = append([]string{}, t.Dependencies...)
	}
	return t
}

func (repo *taskRepository) query() []task.Task {
	tasks := make([]task.Task, 0, len(repo.db.table))
	for _, t := range repo.db.table {
		tasks = append(tasks, copyTask(*t))
	}
	return tasks
}

func (repo *taskRepository) NewTaskID() string {
	return uuid.New().String()
}

func (repo *taskRepository) insert(t task.Task) task.Task {
	if t.ID == "" {
		t.ID = repo.NewTaskID()
	}
	if t.Dependencies == nil {
		t.Dependencies = []string{}
	}
	t = copyTask(t)
	repo.db.table[t.ID] = &t
	return copyTask(t)
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if err := checkCtx(ctx, task.ErrRepositoryUnavailable); err != nil {
		return task.Task{}, err
	}
	repo.db.Lock()
	defer repo.db.Unlock()
	return repo.insert(t), nil
}

func (repo *taskRepository) CreateTasks(ctx context.Context, ts []task.Task) ([]task.Task, error) {
	if err := checkCtx(ctx, task.ErrRepositoryUnavailable); err != nil {
		return nil, err
	}
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]task.Task, 0, len(ts))
	for _, t := range ts {
		created = append(created, repo.insert(t))
	}
	return created, nil
}

func (repo *taskRepository) GetTaskByID(ctx context.Context, id string) (task.Task, error) {
	if err := checkCtx(ctx, task.ErrRepositoryUnavailable); err != nil {
		return task.Task{}, err
	}
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.table[id]; ok {
		return copyTask(*t), nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) QueryTasks(ctx context.Context, filter *task.QueryFilter, ordering ...core.DBOrdering) ([]task.Task, error) {
	if err := checkCtx(ctx, task.ErrRepositoryUnavailable); err != nil {
		return nil, err
	}
	repo.db.RLock()
	defer repo.db.RUnlock()

	tasks := make([]task.Task, 0, len(repo.db.table))
	for _, t := range repo.query() {
		if filter.Match(t) {
			tasks = append(tasks, t)
		}
	}

	// the requested ordering, then the default one
	ordering = append(
		append([]core.DBOrdering{}, ordering...),
		core.DBOrdering{Field: "created_at", Ascending: true},
		core.DBOrdering{Field: "id", Ascending: true},
	)
	sort.SliceStable(tasks, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareTasks(tasks[i], tasks[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return tasks, nil
}

// compareTasks compares a and b on `field` the way PostgreSQL orders them (NULLs last when ascending).
func compareTasks(a, b task.Task, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "priority":
		return a.Priority - b.Priority
	case "duration_hours":
		switch {
		case a.DurationHours < b.DurationHours:
			return -1
		case a.DurationHours > b.DurationHours:
			return 1
		}
	case "start_time":
		switch {
		case a.StartTime == nil && b.StartTime == nil:
			return 0
		case a.StartTime == nil:
			return 1
		case b.StartTime == nil:
			return -1
		case a.StartTime.Before(*b.StartTime):
			return -1
		case a.StartTime.After(*b.StartTime):
			return 1
		}
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	case "id":
		return strings.Compare(a.ID, b.ID)
	}
	return 0
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if err := checkCtx(ctx, task.ErrRepositoryUnavailable); err != nil {
		return task.Task{}, err
	}
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[t.ID]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	t.CreatedAt = orig.CreatedAt
	return repo.insert(t), nil
}

func (repo *taskRepository) DeleteTask(ctx context.Context, id string) error {
	if err := checkCtx(ctx, task.ErrRepositoryUnavailable); err != nil {
		return err
	}
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return task.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
