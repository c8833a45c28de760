package dummydb

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/syllabus/core/degree"
	"github.com/trezcool/syllabus/core/task"
)

type (
	// DB is an in-memory store, for tests and for running without PostgreSQL (database.engine=memory).
	DB struct {
		task   *taskTable
		degree *degreeTable
	}

	taskTable struct {
		sync.RWMutex
		table map[string]*task.Task
	}

	degreeTable struct {
		sync.RWMutex
		table map[string]*degree.Degree
	}
)

func Open() (*DB, error) {
	db := &DB{
		task:   &taskTable{table: make(map[string]*task.Task)},
		degree: &degreeTable{table: make(map[string]*degree.Degree)},
	}
	return db, nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.task.Lock()
	db.task.table = make(map[string]*task.Task)
	db.task.Unlock()

	db.degree.Lock()
	db.degree.table = make(map[string]*degree.Degree)
	db.degree.Unlock()
}

// checkCtx mimics a database driver: a done context fails the call.
func checkCtx(ctx context.Context, unavailable error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(unavailable, err.Error())
	}
	return nil
}
