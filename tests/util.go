package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/syllabus/core"
	"github.com/trezcool/syllabus/core/task"
	"github.com/trezcool/syllabus/storage/database"
)

// DatabaseURLEnv names the environment variable holding the URL of the PostgreSQL test database.
const DatabaseURLEnv = "TEST_DATABASE_URL"

// NewValidator returns a validator with every custom validation of the application registered.
func NewValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	task.InitValidators(validate, translator)
	return validate
}

// OpenDB opens and migrates the PostgreSQL test database, or skips the test when none is configured.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dbURL := os.Getenv(DatabaseURLEnv)
	if dbURL == "" {
		t.Skipf("%s not set", DatabaseURLEnv)
	}

	db, err := sqlx.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	ResetDB(t, db)
	t.Cleanup(func() {
		ResetDB(t, db)
		_ = db.Close()
	})
	return db
}

// ResetDB empties every table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if _, err := db.Exec("TRUNCATE task, degree"); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

// CreateTask stores a task straight into `repo`, bypassing validation.
func CreateTask(
	t *testing.T,
	repo task.Repository,
	name string,
	durationHours float64,
	startTime *time.Time,
	groupID string,
	deps ...string,
) task.Task {
	t.Helper()
	now := time.Now().UTC()
	tk := task.Task{
		ID:            repo.NewTaskID(),
		Name:          name,
		DurationHours: durationHours,
		Priority:      task.DefaultPriority,
		StartTime:     startTime,
		Dependencies:  append([]string{}, deps...),
		GroupID:       groupID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tk, err := repo.CreateTask(context.Background(), tk)
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	return tk
}
