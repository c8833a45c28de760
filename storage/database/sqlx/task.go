package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/syllabus/core"
	"github.com/trezcool/syllabus/core/task"
)

const taskColumns = "id, name, duration_hours, priority, start_time, dependencies, group_id, created_at, updated_at"

// taskOrderingColumns maps task.OrderingFields to their column.
var taskOrderingColumns = map[string]string{
	"name":           "name",
	"priority":       "priority",
	"duration_hours": "duration_hours",
	"start_time":     "start_time",
	"created_at":     "created_at",
}

type taskRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	DurationHours float64        `db:"duration_hours"`
	Priority      int            `db:"priority"`
	StartTime     null.Time      `db:"start_time"`
	Dependencies  pq.StringArray `db:"dependencies"`
	GroupID       null.String    `db:"group_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func toRow(t task.Task) taskRow {
	deps := pq.StringArray(t.Dependencies)
	if deps == nil {
		deps = pq.StringArray{}
	}
	return taskRow{
		ID:            t.ID,
		Name:          t.Name,
		DurationHours: t.DurationHours,
		Priority:      t.Priority,
		StartTime:     null.TimeFromPtr(t.StartTime),
		Dependencies:  deps,
		GroupID:       null.NewString(t.GroupID, t.GroupID != ""),
		CreatedAt:     t.CreatedAt.UTC(),
		UpdatedAt:     t.UpdatedAt.UTC(),
	}
}

func (r taskRow) toTask() task.Task {
	t := task.Task{
		ID:            r.ID,
		Name:          r.Name,
		DurationHours: r.DurationHours,
		Priority:      r.Priority,
		Dependencies:  []string(r.Dependencies),
		GroupID:       r.GroupID.String,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if r.StartTime.Valid {
		st := r.StartTime.Time.UTC()
		t.StartTime = &st
	}
	if t.Dependencies == nil {
		t.Dependencies = []string{}
	}
	return t
}

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *sqlx.DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) NewTaskID() string {
	return uuid.New().String()
}

func insertTask(ctx context.Context, exec sqlx.ExtContext, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	q := `INSERT INTO task (` + taskColumns + `)
		VALUES (:id, :name, :duration_hours, :priority, :start_time, :dependencies, :group_id, :created_at, :updated_at)
		RETURNING ` + taskColumns

	query, args, err := exec.BindNamed(q, toRow(t))
	if err != nil {
		return task.Task{}, errors.Wrap(err, "binding task")
	}
	var row taskRow
	if err = sqlx.GetContext(ctx, exec, &row, query, args...); err != nil {
		return task.Task{}, trapErr(err, task.ErrNotFound, "inserting task")
	}
	return row.toTask(), nil
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	return insertTask(ctx, repo.db, t)
}

func (repo *taskRepository) CreateTasks(ctx context.Context, ts []task.Task) ([]task.Task, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, trapErr(err, task.ErrNotFound, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	created := make([]task.Task, 0, len(ts))
	for _, t := range ts {
		t, err = insertTask(ctx, tx, t)
		if err != nil {
			return nil, err
		}
		created = append(created, t)
	}
	if err = tx.Commit(); err != nil {
		return nil, trapErr(err, task.ErrNotFound, "committing tasks")
	}
	return created, nil
}

func (repo *taskRepository) GetTaskByID(ctx context.Context, id string) (task.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return task.Task{}, task.ErrNotFound
	}
	var row taskRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+taskColumns+` FROM task WHERE id = $1`, id)
	if err != nil {
		return task.Task{}, trapErr(err, task.ErrNotFound, "selecting task")
	}
	return row.toTask(), nil
}

func (repo *taskRepository) QueryTasks(ctx context.Context, filter *task.QueryFilter, ordering ...core.DBOrdering) ([]task.Task, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.GroupID != nil {
			if *filter.GroupID == "" {
				where = append(where, "group_id IS NULL")
			} else if _, err := uuid.Parse(*filter.GroupID); err != nil {
				return []task.Task{}, nil
			} else {
				where = append(where, "group_id = "+arg(*filter.GroupID))
			}
		}
		// tasks with Name matching the search keyword
		if filter.Search != "" {
			where = append(where, "name ILIKE "+arg("%"+filter.Search+"%"))
		}
	}

	q := `SELECT ` + taskColumns + ` FROM task`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	orderBy := make([]string, 0, len(ordering)+2)
	for _, ord := range ordering {
		if col, ok := taskOrderingColumns[ord.Field]; ok {
			orderBy = append(orderBy, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	orderBy = append(orderBy, "created_at ASC", "id ASC")
	q += " ORDER BY " + strings.Join(orderBy, ", ")

	var rows []taskRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, trapErr(err, task.ErrNotFound, "selecting tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.toTask())
	}
	return tasks, nil
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if _, err := uuid.Parse(t.ID); err != nil {
		return task.Task{}, task.ErrNotFound
	}
	q := `UPDATE task SET
			name = :name,
			duration_hours = :duration_hours,
			priority = :priority,
			start_time = :start_time,
			dependencies = :dependencies,
			group_id = :group_id,
			updated_at = :updated_at
		WHERE id = :id
		RETURNING ` + taskColumns

	query, args, err := repo.db.BindNamed(q, toRow(t))
	if err != nil {
		return task.Task{}, errors.Wrap(err, "binding task")
	}
	var row taskRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return task.Task{}, trapErr(err, task.ErrNotFound, "updating task")
	}
	return row.toTask(), nil
}

func (repo *taskRepository) DeleteTask(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return task.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM task WHERE id = $1`, id)
	if err != nil {
		return trapErr(err, task.ErrNotFound, "deleting task")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return task.ErrNotFound
	}
	return nil
}
