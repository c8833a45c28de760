package task_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/syllabus/core"
	"github.com/trezcool/syllabus/core/degree"
	"github.com/trezcool/syllabus/core/task"
	"github.com/trezcool/syllabus/storage/database/dummy"
)

var t0 = time.Date(2021, time.March, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *task.Service
	degreeSvc *degree.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	task.InitValidators(validate, translator)

	repo := dummydb.NewTaskRepository(db)
	degreeSvc := degree.NewService(dummydb.NewDegreeRepository(db), validate)
	return fixture{
		svc:       task.NewService(repo, degreeSvc, validate),
		degreeSvc: degreeSvc,
	}
}

func (f fixture) create(t *testing.T, nt task.NewTask) task.ScheduledTask {
	t.Helper()
	st, err := f.svc.Create(context.Background(), nt)
	require.NoError(t, err)
	return st
}

func (f fixture) count(t *testing.T) int {
	t.Helper()
	tasks, err := f.svc.Query(context.Background(), nil, nil)
	require.NoError(t, err)
	return len(tasks)
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.create(t, task.NewTask{Name: " A ", DurationHours: 2, StartTime: t0.Format(time.RFC3339)})
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, task.DefaultPriority, a.Priority)
	assert.Equal(t, []string{}, a.Dependencies)
	require.NotNil(t, a.ComputedStart)
	assert.Equal(t, t0, *a.ComputedStart)
	assert.Equal(t, t0.Add(2*time.Hour), *a.ComputedEnd)

	b := f.create(t, task.NewTask{Name: "B", DurationHours: 3, Priority: 2, Dependencies: []string{a.ID, " " + a.ID}})
	assert.Equal(t, []string{a.ID}, b.Dependencies)
	require.NotNil(t, b.ComputedStart)
	assert.Equal(t, t0.Add(2*time.Hour), *b.ComputedStart)
	assert.Equal(t, t0.Add(5*time.Hour), *b.ComputedEnd)

	u := f.create(t, task.NewTask{Name: "U", DurationHours: 1})
	assert.Nil(t, u.ComputedStart)
	assert.Equal(t, task.StatusUnscheduled, u.Status)

	t.Run("unknown dependency", func(t *testing.T) {
		_, err := f.svc.Create(ctx, task.NewTask{Name: "E", DurationHours: 1, Dependencies: []string{"nonexistent-id"}})
		var uErr *task.UnknownDependencyError
		require.True(t, errors.As(err, &uErr), "Create() error = %v", err)
		assert.Equal(t, []string{"nonexistent-id"}, uErr.Missing)
		assert.Equal(t, 3, f.count(t))
	})

	t.Run("datetime-local start time", func(t *testing.T) {
		st := f.create(t, task.NewTask{Name: "L", DurationHours: 1, StartTime: "2021-03-01T08:00"})
		require.NotNil(t, st.StartTime)
		assert.Equal(t, t0, *st.StartTime)
	})

	t.Run("validation", func(t *testing.T) {
		before := f.count(t)
		tests := []struct {
			name      string
			data      task.NewTask
			wantField string
		}{
			{name: "no name", data: task.NewTask{Name: "  ", DurationHours: 1}, wantField: "name"},
			{name: "no duration", data: task.NewTask{Name: "x"}, wantField: "duration_hours"},
			{name: "negative duration", data: task.NewTask{Name: "x", DurationHours: -1}, wantField: "duration_hours"},
			{name: "duration past the bound", data: task.NewTask{Name: "x", DurationHours: task.MaxDurationHours + 1}, wantField: "duration_hours"},
			{name: "huge duration", data: task.NewTask{Name: "x", DurationHours: 3e6}, wantField: "duration_hours"},
			{name: "infinite duration", data: task.NewTask{Name: "x", DurationHours: math.Inf(1)}, wantField: "duration_hours"},
			{name: "NaN duration", data: task.NewTask{Name: "x", DurationHours: math.NaN()}, wantField: "duration_hours"},
			{name: "bad priority", data: task.NewTask{Name: "x", DurationHours: 1, Priority: -3}, wantField: "priority"},
			{name: "bad start time", data: task.NewTask{Name: "x", DurationHours: 1, StartTime: "tomorrow"}, wantField: "start_time"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.Create(ctx, tt.data)
				var vErrs validator.ValidationErrors
				require.True(t, errors.As(err, &vErrs), "Create() error = %v", err)
				assert.Equal(t, tt.wantField, vErrs[0].Field())
			})
		}
		assert.Equal(t, before, f.count(t))
	})

	t.Run("longest duration", func(t *testing.T) {
		st := f.create(t, task.NewTask{Name: "Long", DurationHours: task.MaxDurationHours, StartTime: t0.Format(time.RFC3339)})
		require.NotNil(t, st.ComputedEnd)
		assert.True(t, st.ComputedEnd.After(*st.ComputedStart))
		assert.Equal(t, time.Duration(task.MaxDurationHours)*time.Hour, st.ComputedEnd.Sub(*st.ComputedStart))
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := f.svc.Create(ctx, task.NewTask{Name: "G", DurationHours: 1, GroupID: "nope"})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), "Create() error = %v", err)
		assert.Equal(t, "group_id", vErr.Fields[0].Field)
	})
}

// Task D cannot depend on itself, even though its id is only known once created.
func TestService_Update_selfReference(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	d := f.create(t, task.NewTask{Name: "D", DurationHours: 1, StartTime: t0.Format(time.RFC3339)})
	deps := []string{d.ID}
	_, err := f.svc.Update(ctx, d.ID, task.UpdateTask{Dependencies: &deps})

	var cErr *task.CycleError
	require.True(t, errors.As(err, &cErr), "Update() error = %v", err)
	assert.Equal(t, []string{d.ID, d.ID}, cErr.Path)

	stored, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Dependencies)
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.create(t, task.NewTask{Name: "A", DurationHours: 2, StartTime: t0.Format(time.RFC3339)})
	b := f.create(t, task.NewTask{Name: "B", DurationHours: 3, Dependencies: []string{a.ID}})
	c := f.create(t, task.NewTask{Name: "C", DurationHours: 1, Dependencies: []string{a.ID, b.ID}})

	t.Run("duration change cascades", func(t *testing.T) {
		hours := 4.0
		_, err := f.svc.Update(ctx, a.ID, task.UpdateTask{DurationHours: &hours})
		require.NoError(t, err)

		scheduled, err := f.svc.ListScheduled(ctx, "", t0)
		require.NoError(t, err)
		require.Len(t, scheduled, 3)
		assert.Equal(t, c.ID, scheduled[2].ID)
		assert.Equal(t, t0.Add(7*time.Hour), *scheduled[2].ComputedStart)
	})

	t.Run("cycle", func(t *testing.T) {
		deps := []string{c.ID}
		_, err := f.svc.Update(ctx, a.ID, task.UpdateTask{Dependencies: &deps})
		var cErr *task.CycleError
		require.True(t, errors.As(err, &cErr), "Update() error = %v", err)
		assert.Equal(t, a.ID, cErr.Path[0])
		assert.Equal(t, a.ID, cErr.Path[len(cErr.Path)-1])

		stored, err := f.svc.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Dependencies)
	})

	t.Run("clear start time", func(t *testing.T) {
		empty := ""
		st, err := f.svc.Update(ctx, a.ID, task.UpdateTask{StartTime: &empty})
		require.NoError(t, err)
		assert.Nil(t, st.StartTime)
		assert.Equal(t, task.StatusUnscheduled, st.Status)

		scheduled, err := f.svc.ListScheduled(ctx, "", t0)
		require.NoError(t, err)
		for _, st := range scheduled {
			assert.Equal(t, task.StatusUnscheduled, st.Status, st.Name)
		}
	})

	t.Run("rename keeps the rest", func(t *testing.T) {
		name := "B2"
		st, err := f.svc.Update(ctx, b.ID, task.UpdateTask{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "B2", st.Name)
		assert.Equal(t, []string{a.ID}, st.Dependencies)
		assert.Equal(t, 3.0, st.DurationHours)
	})

	t.Run("empty name", func(t *testing.T) {
		name := " "
		_, err := f.svc.Update(ctx, b.ID, task.UpdateTask{Name: &name})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), "Update() error = %v", err)
	})

	t.Run("out of range duration", func(t *testing.T) {
		for _, hours := range []float64{0, 3e6, math.Inf(1)} {
			hours := hours
			_, err := f.svc.Update(ctx, b.ID, task.UpdateTask{DurationHours: &hours})
			var vErrs validator.ValidationErrors
			require.True(t, errors.As(err, &vErrs), "Update(%v) error = %v", hours, err)
			assert.Equal(t, "duration_hours", vErrs[0].Field())
		}
		stored, err := f.svc.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 3.0, stored.DurationHours)
	})

	t.Run("not found", func(t *testing.T) {
		name := "x"
		_, err := f.svc.Update(ctx, "nope", task.UpdateTask{Name: &name})
		assert.Equal(t, task.ErrNotFound, errors.Cause(err))
	})
}

func TestService_Update_group(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cs, err := f.degreeSvc.Create(ctx, degree.NewDegree{Name: "Computer Science"})
	require.NoError(t, err)

	a := f.create(t, task.NewTask{Name: "A", DurationHours: 2, StartTime: t0.Format(time.RFC3339)})
	b := f.create(t, task.NewTask{Name: "B", DurationHours: 3, Dependencies: []string{a.ID}})

	// a is required by b in the global group
	gid := cs.ID
	_, err = f.svc.Update(ctx, a.ID, task.UpdateTask{GroupID: &gid})
	var dErr *task.DependencyConflictError
	require.True(t, errors.As(err, &dErr), "Update() error = %v", err)
	assert.Equal(t, []string{b.ID}, dErr.Dependents)

	// b cannot keep a dependency on a task of another group
	_, err = f.svc.Update(ctx, b.ID, task.UpdateTask{GroupID: &gid})
	assert.True(t, errors.Is(err, task.ErrUnknownDependency), "Update() error = %v", err)

	noDeps := []string{}
	moved, err := f.svc.Update(ctx, b.ID, task.UpdateTask{GroupID: &gid, Dependencies: &noDeps})
	require.NoError(t, err)
	assert.Equal(t, cs.ID, moved.GroupID)

	global, err := f.svc.ListScheduled(ctx, "", t0)
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Equal(t, a.ID, global[0].ID)

	inCS, err := f.svc.ListScheduled(ctx, cs.ID, t0)
	require.NoError(t, err)
	require.Len(t, inCS, 1)
	assert.Equal(t, b.ID, inCS[0].ID)
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.create(t, task.NewTask{Name: "A", DurationHours: 2, StartTime: t0.Format(time.RFC3339)})
	b := f.create(t, task.NewTask{Name: "B", DurationHours: 3, Dependencies: []string{a.ID}})
	c := f.create(t, task.NewTask{Name: "C", DurationHours: 1, Dependencies: []string{a.ID}})

	err := f.svc.Delete(ctx, a.ID)
	var dErr *task.DependencyConflictError
	require.True(t, errors.As(err, &dErr), "Delete() error = %v", err)
	assert.Equal(t, a.ID, dErr.TaskID)
	assert.ElementsMatch(t, []string{b.ID, c.ID}, dErr.Dependents)
	assert.Equal(t, 3, f.count(t))
	_, err = f.svc.Get(ctx, a.ID)
	assert.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, c.ID))
	require.NoError(t, f.svc.Delete(ctx, b.ID))
	require.NoError(t, f.svc.Delete(ctx, a.ID))
	assert.Equal(t, 0, f.count(t))

	assert.Equal(t, task.ErrNotFound, errors.Cause(f.svc.Delete(ctx, a.ID)))
}

func TestService_ListScheduled(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.create(t, task.NewTask{Name: "A", DurationHours: 2, StartTime: t0.Format(time.RFC3339)})
	b := f.create(t, task.NewTask{Name: "B", DurationHours: 3, Dependencies: []string{a.ID}})
	u := f.create(t, task.NewTask{Name: "U", DurationHours: 1})
	x := f.create(t, task.NewTask{Name: "X", DurationHours: 1, Priority: 3, StartTime: t0.Format(time.RFC3339)})

	scheduled, err := f.svc.ListScheduled(ctx, "", t0.Add(5*time.Hour+time.Second))
	require.NoError(t, err)

	var ids []string
	statuses := make(map[string]task.Status)
	for _, st := range scheduled {
		ids = append(ids, st.ID)
		statuses[st.ID] = st.Status
	}
	assert.Equal(t, []string{a.ID, x.ID, b.ID, u.ID}, ids)
	assert.Equal(t, task.StatusExpired, statuses[b.ID])
	assert.Equal(t, task.StatusUnscheduled, statuses[u.ID])

	scheduled, err = f.svc.ListScheduled(ctx, "", t0.Add(2*time.Hour))
	require.NoError(t, err)
	for _, st := range scheduled {
		if st.ID == b.ID {
			assert.Equal(t, task.StatusActive, st.Status)
		}
	}

	available, err := f.svc.Available(ctx, "", t0.Add(90*time.Minute))
	require.NoError(t, err)
	ids = nil
	for _, st := range available {
		ids = append(ids, st.ID)
	}
	assert.Equal(t, []string{a.ID, b.ID, u.ID}, ids)
}

func TestService_Query(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cs, err := f.degreeSvc.Create(ctx, degree.NewDegree{Name: "Computer Science"})
	require.NoError(t, err)

	f.create(t, task.NewTask{Name: "Read chapter 1", DurationHours: 2, Priority: 2})
	f.create(t, task.NewTask{Name: "Write essay", DurationHours: 5, Priority: 1, GroupID: cs.ID})
	f.create(t, task.NewTask{Name: "Read chapter 2", DurationHours: 1, Priority: 3, GroupID: cs.ID})

	names := func(tasks []task.Task) []string {
		var out []string
		for _, tk := range tasks {
			out = append(out, tk.Name)
		}
		return out
	}

	tasks, err := f.svc.Query(ctx, &task.QueryFilter{GroupID: &cs.ID}, core.ParseOrdering("-priority"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Read chapter 2", "Write essay"}, names(tasks))

	tasks, err = f.svc.Query(ctx, &task.QueryFilter{Search: "READ"}, core.ParseOrdering("duration_hours"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Read chapter 2", "Read chapter 1"}, names(tasks))

	global := ""
	tasks, err = f.svc.Query(ctx, &task.QueryFilter{GroupID: &global}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Read chapter 1"}, names(tasks))

	// unknown ordering fields are ignored
	tasks, err = f.svc.Query(ctx, nil, []core.DBOrdering{{Field: "password"}, {Field: "name", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Read chapter 1", "Read chapter 2", "Write essay"}, names(tasks))
}

func TestService_Preview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.create(t, task.NewTask{Name: "A", DurationHours: 2, StartTime: t0.Format(time.RFC3339)})
	b := f.create(t, task.NewTask{Name: "B", DurationHours: 3, Dependencies: []string{a.ID}})

	st, err := f.svc.Preview(ctx, task.NewTask{Name: "C", DurationHours: 1, Dependencies: []string{a.ID, b.ID}}, t0)
	require.NoError(t, err)
	assert.Empty(t, st.ID)
	require.NotNil(t, st.ComputedStart)
	assert.Equal(t, t0.Add(5*time.Hour), *st.ComputedStart)
	assert.Equal(t, task.StatusUpcoming, st.Status)
	assert.Equal(t, 2, f.count(t))

	_, err = f.svc.Preview(ctx, task.NewTask{Name: "E", DurationHours: 1, Dependencies: []string{"nonexistent-id"}}, t0)
	assert.True(t, errors.Is(err, task.ErrUnknownDependency))
}

func TestService_Import(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.create(t, task.NewTask{Name: "A", DurationHours: 2, StartTime: t0.Format(time.RFC3339)})

	t.Run("cycle", func(t *testing.T) {
		_, err := f.svc.Import(ctx, []task.ImportTask{
			{Key: "x", NewTask: task.NewTask{Name: "X", DurationHours: 1, Dependencies: []string{"y"}}},
			{Key: "y", NewTask: task.NewTask{Name: "Y", DurationHours: 1, Dependencies: []string{"x", a.ID}}},
		})
		var cErr *task.CycleError
		require.True(t, errors.As(err, &cErr), "Import() error = %v", err)
		require.Len(t, cErr.Path, 3)
		assert.ElementsMatch(t, []string{"x", "y"}, cErr.Path[:2])
		assert.Equal(t, cErr.Path[0], cErr.Path[2])
		assert.Equal(t, 1, f.count(t))
	})

	t.Run("self reference", func(t *testing.T) {
		_, err := f.svc.Import(ctx, []task.ImportTask{
			{Key: "d", NewTask: task.NewTask{Name: "D", DurationHours: 1, Dependencies: []string{"d"}}},
		})
		var cErr *task.CycleError
		require.True(t, errors.As(err, &cErr), "Import() error = %v", err)
		assert.Equal(t, []string{"d", "d"}, cErr.Path)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := f.svc.Import(ctx, []task.ImportTask{
			{Key: "x", NewTask: task.NewTask{Name: "X", DurationHours: 1, Dependencies: []string{"ghost"}}},
		})
		var uErr *task.UnknownDependencyError
		require.True(t, errors.As(err, &uErr), "Import() error = %v", err)
		assert.Equal(t, "x", uErr.TaskID)
		assert.Equal(t, []string{"ghost"}, uErr.Missing)
	})

	t.Run("infinite duration", func(t *testing.T) {
		_, err := f.svc.Import(ctx, []task.ImportTask{
			{Key: "x", NewTask: task.NewTask{Name: "X", DurationHours: 1}},
			{Key: "y", NewTask: task.NewTask{Name: "Y", DurationHours: math.Inf(1), Dependencies: []string{"x"}}},
		})
		var vErrs validator.ValidationErrors
		require.True(t, errors.As(err, &vErrs), "Import() error = %v", err)
		assert.Equal(t, "duration_hours", vErrs[0].Field())
		assert.Equal(t, 1, f.count(t))
	})

	t.Run("duplicate key", func(t *testing.T) {
		_, err := f.svc.Import(ctx, []task.ImportTask{
			{Key: "x", NewTask: task.NewTask{Name: "X", DurationHours: 1}},
			{Key: "x", NewTask: task.NewTask{Name: "Y", DurationHours: 1}},
		})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), "Import() error = %v", err)
		assert.Equal(t, 1, f.count(t))
	})

	t.Run("ok", func(t *testing.T) {
		created, err := f.svc.Import(ctx, []task.ImportTask{
			{Key: "c", NewTask: task.NewTask{Name: "C", DurationHours: 1, Dependencies: []string{"b", a.ID}}},
			{Key: "b", NewTask: task.NewTask{Name: "B", DurationHours: 3, Dependencies: []string{a.ID}}},
		})
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.Equal(t, "C", created[0].Name)
		assert.Equal(t, t0.Add(5*time.Hour), *created[0].ComputedStart)
		assert.Contains(t, created[0].Dependencies, created[1].ID)
		assert.Equal(t, t0.Add(2*time.Hour), *created[1].ComputedStart)
		assert.Equal(t, 3, f.count(t))
	})
}

func TestService_repositoryUnavailable(t *testing.T) {
	f := setup(t)
	a := f.create(t, task.NewTask{Name: "A", DurationHours: 2, StartTime: t0.Format(time.RFC3339)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Create(ctx, task.NewTask{Name: "B", DurationHours: 1})
	assert.True(t, task.IsRetryable(err), "Create() error = %v", err)
	assert.True(t, task.IsRetryable(f.svc.Delete(ctx, a.ID)))
	_, err = f.svc.ListScheduled(ctx, "", t0)
	assert.True(t, task.IsRetryable(err))
	assert.Equal(t, 1, f.count(t))
}

// Concurrent creations in one group are serialized and all succeed.
func TestService_concurrentMutations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	root := f.create(t, task.NewTask{Name: "root", DurationHours: 1, StartTime: t0.Format(time.RFC3339)})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, task.NewTask{Name: "leaf", DurationHours: 1, Dependencies: []string{root.ID}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	scheduled, err := f.svc.ListScheduled(ctx, "", t0)
	require.NoError(t, err)
	assert.Len(t, scheduled, 21)
}
