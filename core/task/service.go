package task

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/syllabus/core"
)

var ErrGroupNotFound = errors.New("group not found")

type (
	// Repository owns the authoritative task set.
	// Failures to reach the store (deadline exceeded, broken connection) are reported as ErrRepositoryUnavailable.
	Repository interface {
		// NewTaskID allocates the id of a task about to be created.
		NewTaskID() string
		CreateTask(ctx context.Context, t Task) (Task, error)
		// CreateTasks creates all of `ts` or none of them.
		CreateTasks(ctx context.Context, ts []Task) ([]Task, error)
		GetTaskByID(ctx context.Context, id string) (Task, error)
		// QueryTasks applies AND operation on available QueryFilter fields.
		QueryTasks(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		DeleteTask(ctx context.Context, id string) error
	}

	// GroupResolver checks group ids. The global group ("") always exists.
	GroupResolver interface {
		GroupExists(ctx context.Context, id string) (bool, error)
	}

	Service struct {
		repo     Repository
		groups   GroupResolver
		validate *validator.Validate
		locks    *groupLocks
		now      func() time.Time
	}
)

// NewService returns a task Service. A nil `groups` accepts any group id.
func NewService(repo Repository, groups GroupResolver, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		groups:   groups,
		validate: validate,
		locks:    newGroupLocks(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) checkGroup(ctx context.Context, field, groupID string) error {
	if groupID == "" || svc.groups == nil {
		return nil
	}
	ok, err := svc.groups.GroupExists(ctx, groupID)
	if err != nil {
		return errors.Wrap(err, "resolving group")
	}
	if !ok {
		return core.NewValidationError(ErrGroupNotFound, core.FieldError{Field: field, Error: ErrGroupNotFound.Error()})
	}
	return nil
}

func (svc *Service) groupTasks(ctx context.Context, groupID string) ([]Task, error) {
	tasks, err := svc.repo.QueryTasks(ctx, &QueryFilter{GroupID: &groupID})
	return tasks, errors.Wrapf(err, "querying tasks of group %q", groupID)
}

// lockTask locks the group of the task `id` (and of `extraGroups`) and returns the task as stored under the lock.
func (svc *Service) lockTask(ctx context.Context, id string, extraGroups ...string) (Task, func(), error) {
	for {
		t, err := svc.repo.GetTaskByID(ctx, id)
		if err != nil {
			return Task{}, nil, errors.Wrap(err, "finding task by ID")
		}
		groupIDs := append([]string{t.GroupID}, extraGroups...)
		unlock, err := svc.locks.lock(ctx, groupIDs...)
		if err != nil {
			return Task{}, nil, err
		}
		locked, err := svc.repo.GetTaskByID(ctx, id)
		if err != nil {
			unlock()
			return Task{}, nil, errors.Wrap(err, "finding task by ID")
		}
		if locked.GroupID == t.GroupID {
			return locked, unlock, nil
		}
		unlock() // moved meanwhile
	}
}

func (svc *Service) Create(ctx context.Context, nt NewTask) (ScheduledTask, error) {
	if err := nt.Validate(svc.validate); err != nil {
		return ScheduledTask{}, err
	}
	if err := svc.checkGroup(ctx, "group_id", nt.GroupID); err != nil {
		return ScheduledTask{}, err
	}

	unlock, err := svc.locks.lock(ctx, nt.GroupID)
	if err != nil {
		return ScheduledTask{}, err
	}
	defer unlock()

	peers, err := svc.groupTasks(ctx, nt.GroupID)
	if err != nil {
		return ScheduledTask{}, err
	}

	now := svc.now()
	t := nt.task(svc.repo.NewTaskID(), now)
	if err = CheckDependencies(t.ID, t.Dependencies, peers); err != nil {
		return ScheduledTask{}, err
	}
	schedules, err := ComputeSchedule(append(peers, t))
	if err != nil {
		return ScheduledTask{}, err
	}

	if t, err = svc.repo.CreateTask(ctx, t); err != nil {
		return ScheduledTask{}, errors.Wrap(err, "creating task")
	}
	return NewScheduledTask(t, schedules[t.ID], now), nil
}

func (svc *Service) Get(ctx context.Context, id string) (Task, error) {
	return svc.repo.GetTaskByID(ctx, core.CleanString(id))
}

// Query lists tasks. Orderings on fields other than OrderingFields are ignored.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Task, error) {
	if filter != nil {
		filter.Clean()
	}
	var allowed []core.DBOrdering
	for _, ord := range ordering {
		for _, field := range OrderingFields {
			if ord.Field == field {
				allowed = append(allowed, ord)
				break
			}
		}
	}
	return svc.repo.QueryTasks(ctx, filter, allowed...)
}

// Update merges `ut` onto the task `id`. Moving a task to another group is refused while
// tasks of its current group depend on it.
func (svc *Service) Update(ctx context.Context, id string, ut UpdateTask) (ScheduledTask, error) {
	if err := ut.Validate(svc.validate); err != nil {
		return ScheduledTask{}, err
	}
	var extraGroups []string
	if ut.GroupID != nil {
		if err := svc.checkGroup(ctx, "group_id", *ut.GroupID); err != nil {
			return ScheduledTask{}, err
		}
		extraGroups = append(extraGroups, *ut.GroupID)
	}

	orig, unlock, err := svc.lockTask(ctx, core.CleanString(id), extraGroups...)
	if err != nil {
		return ScheduledTask{}, err
	}
	defer unlock()

	now := svc.now()
	t := ut.apply(orig)
	t.UpdatedAt = now

	if t.GroupID != orig.GroupID {
		oldPeers, err := svc.groupTasks(ctx, orig.GroupID)
		if err != nil {
			return ScheduledTask{}, err
		}
		if deps := dependentsOf(orig.ID, oldPeers); len(deps) > 0 {
			return ScheduledTask{}, &DependencyConflictError{TaskID: orig.ID, Dependents: deps}
		}
	}

	peers, err := svc.groupTasks(ctx, t.GroupID)
	if err != nil {
		return ScheduledTask{}, err
	}
	if err = CheckDependencies(t.ID, t.Dependencies, peers); err != nil {
		return ScheduledTask{}, err
	}
	schedules, err := ComputeSchedule(replaceTask(peers, t))
	if err != nil {
		return ScheduledTask{}, err
	}

	if t, err = svc.repo.UpdateTask(ctx, t); err != nil {
		return ScheduledTask{}, errors.Wrap(err, "updating task")
	}
	return NewScheduledTask(t, schedules[t.ID], now), nil
}

// Delete removes the task `id`, unless other tasks depend on it:
// a *DependencyConflictError listing all of them is returned instead.
func (svc *Service) Delete(ctx context.Context, id string) error {
	t, unlock, err := svc.lockTask(ctx, core.CleanString(id))
	if err != nil {
		return err
	}
	defer unlock()

	peers, err := svc.groupTasks(ctx, t.GroupID)
	if err != nil {
		return err
	}
	if deps := dependentsOf(t.ID, peers); len(deps) > 0 {
		return &DependencyConflictError{TaskID: t.ID, Dependents: deps}
	}
	if _, err = ComputeSchedule(removeTask(peers, t.ID)); err != nil {
		return err
	}

	return errors.Wrap(svc.repo.DeleteTask(ctx, t.ID), "deleting task")
}

// ListScheduled computes the schedule of the group `groupID` and classifies it at `now`.
// Tasks are sorted with SortScheduled.
func (svc *Service) ListScheduled(ctx context.Context, groupID string, now time.Time) ([]ScheduledTask, error) {
	groupID = core.CleanString(groupID)
	unlock, err := svc.locks.lock(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tasks, err := svc.groupTasks(ctx, groupID)
	if err != nil {
		return nil, err
	}
	schedules, err := ComputeSchedule(tasks)
	if err != nil {
		return nil, errors.Wrapf(err, "computing schedule of group %q", groupID)
	}

	scheduled := make([]ScheduledTask, 0, len(tasks))
	for _, t := range tasks {
		scheduled = append(scheduled, NewScheduledTask(t, schedules[t.ID], now))
	}
	SortScheduled(scheduled)
	return scheduled, nil
}

// Available lists the tasks of `groupID` that a task may still be made to depend on at `now`:
// the ones that are not expired.
func (svc *Service) Available(ctx context.Context, groupID string, now time.Time) ([]ScheduledTask, error) {
	scheduled, err := svc.ListScheduled(ctx, groupID, now)
	if err != nil {
		return nil, err
	}
	available := make([]ScheduledTask, 0, len(scheduled))
	for _, st := range scheduled {
		if st.Status != StatusExpired {
			available = append(available, st)
		}
	}
	return available, nil
}

// Preview returns the task `nt` would be, scheduled and classified at `now`, without creating it.
// The returned task has no ID.
func (svc *Service) Preview(ctx context.Context, nt NewTask, now time.Time) (ScheduledTask, error) {
	if err := nt.Validate(svc.validate); err != nil {
		return ScheduledTask{}, err
	}
	if err := svc.checkGroup(ctx, "group_id", nt.GroupID); err != nil {
		return ScheduledTask{}, err
	}

	unlock, err := svc.locks.lock(ctx, nt.GroupID)
	if err != nil {
		return ScheduledTask{}, err
	}
	defer unlock()

	peers, err := svc.groupTasks(ctx, nt.GroupID)
	if err != nil {
		return ScheduledTask{}, err
	}

	t := nt.task(svc.repo.NewTaskID(), now)
	if err = CheckDependencies(t.ID, t.Dependencies, peers); err != nil {
		return ScheduledTask{}, err
	}
	schedules, err := ComputeSchedule(append(peers, t))
	if err != nil {
		return ScheduledTask{}, err
	}

	st := NewScheduledTask(t, schedules[t.ID], now)
	st.ID = ""
	return st, nil
}

// Import creates a batch of tasks at once. A draft's dependencies name other drafts by Key,
// or existing tasks by id. The batch is validated as a whole and created atomically:
// graph errors name drafts by their Key.
func (svc *Service) Import(ctx context.Context, drafts []ImportTask) ([]ScheduledTask, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	keys := make(map[string]int, len(drafts))
	var groupIDs []string
	for i := range drafts {
		d := &drafts[i]
		d.Key = core.CleanString(d.Key)
		d.NewTask.Clean()
		if err := svc.validate.Struct(d); err != nil {
			return nil, errors.Wrapf(err, "task #%d", i+1)
		}
		if _, ok := keys[d.Key]; ok {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "key", Error: "duplicate key " + d.Key})
		}
		keys[d.Key] = i
		if err := svc.checkGroup(ctx, "group_id", d.GroupID); err != nil {
			return nil, errors.Wrapf(err, "task %q", d.Key)
		}
		groupIDs = append(groupIDs, d.GroupID)
	}

	unlock, err := svc.locks.lock(ctx, groupIDs...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := svc.now()
	// key <-> id
	ids := make(map[string]string, len(drafts))
	keyOf := make(map[string]string, len(drafts))
	for _, d := range drafts {
		id := svc.repo.NewTaskID()
		ids[d.Key] = id
		keyOf[id] = d.Key
	}

	tasks := make([]Task, 0, len(drafts))
	byGroup := make(map[string][]Task)
	for _, d := range drafts {
		t := d.NewTask.task(ids[d.Key], now)
		for i, dep := range t.Dependencies {
			if id, ok := ids[dep]; ok {
				t.Dependencies[i] = id
			}
		}
		sort.Strings(t.Dependencies)
		tasks = append(tasks, t)
		byGroup[t.GroupID] = append(byGroup[t.GroupID], t)
	}

	var all []Task
	for _, gid := range sortedKeys(byGroup) {
		peers, err := svc.groupTasks(ctx, gid)
		if err != nil {
			return nil, err
		}
		peers = append(peers, byGroup[gid]...)
		if err = checkGraph(peers); err != nil {
			return nil, renameGraphError(err, keyOf)
		}
		all = append(all, peers...)
	}
	schedules, err := ComputeSchedule(all)
	if err != nil {
		return nil, renameGraphError(err, keyOf)
	}

	created, err := svc.repo.CreateTasks(ctx, tasks)
	if err != nil {
		return nil, errors.Wrap(err, "creating tasks")
	}
	scheduled := make([]ScheduledTask, 0, len(created))
	for _, t := range created {
		scheduled = append(scheduled, NewScheduledTask(t, schedules[t.ID], now))
	}
	return scheduled, nil
}

func (nt NewTask) task(id string, now time.Time) Task {
	t := Task{
		ID:            id,
		Name:          nt.Name,
		DurationHours: nt.DurationHours,
		Priority:      nt.Priority,
		Dependencies:  append([]string{}, nt.Dependencies...),
		GroupID:       nt.GroupID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if t.Priority == 0 {
		t.Priority = DefaultPriority
	}
	if nt.StartTime != "" {
		if st, err := ParseStartTime(nt.StartTime); err == nil {
			t.StartTime = &st
		}
	}
	return t
}

// dependentsOf returns the sorted ids of the tasks of `peers` depending on `id`.
func dependentsOf(id string, peers []Task) []string {
	var deps []string
	for _, p := range peers {
		if p.ID != id && p.DependsOn(id) {
			deps = append(deps, p.ID)
		}
	}
	sort.Strings(deps)
	return deps
}

func replaceTask(tasks []Task, t Task) []Task {
	out := make([]Task, 0, len(tasks)+1)
	for _, p := range tasks {
		if p.ID != t.ID {
			out = append(out, p)
		}
	}
	return append(out, t)
}

func removeTask(tasks []Task, id string) []Task {
	out := make([]Task, 0, len(tasks))
	for _, p := range tasks {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func sortedKeys(m map[string][]Task) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// renameGraphError replaces the ids of a graph error by their names in `names`, when they have one.
func renameGraphError(err error, names map[string]string) error {
	rename := func(ids []string) []string {
		out := make([]string, len(ids))
		for i, id := range ids {
			if name, ok := names[id]; ok {
				out[i] = name
			} else {
				out[i] = id
			}
		}
		return out
	}

	switch e := err.(type) {
	case *UnknownDependencyError:
		return &UnknownDependencyError{TaskID: rename([]string{e.TaskID})[0], Missing: rename(e.Missing)}
	case *CycleError:
		return &CycleError{Path: rename(e.Path)}
	}
	return err
}
