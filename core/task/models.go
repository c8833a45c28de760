package task

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/syllabus/core"
)

const (
	// DefaultPriority is given to tasks created without a priority. 1 is the highest.
	DefaultPriority = 1
	// MaxDurationHours (a century) bounds DurationHours, keeping Duration within time.Duration.
	MaxDurationHours = 100 * 365 * 24
)

// Status of a task relative to an instant.
type Status string

const (
	StatusUnscheduled Status = "unscheduled"
	StatusUpcoming    Status = "upcoming"
	StatusActive      Status = "active"
	StatusExpired     Status = "expired"
)

var Statuses = []Status{StatusUpcoming, StatusActive, StatusExpired, StatusUnscheduled}

// StartTimeLayouts are the accepted input forms of a start time. Forms without a zone are read as UTC.
var StartTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// ParseStartTime parses `s` with one of the StartTimeLayouts.
func ParseStartTime(s string) (time.Time, error) {
	var err error
	for _, layout := range StartTimeLayouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, strings.TrimSpace(s), time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

type Task struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	DurationHours float64    `json:"duration_hours"`
	Priority      int        `json:"priority"`
	StartTime     *time.Time `json:"start_time"` // UTC; authoritative only for tasks without dependencies
	Dependencies  []string   `json:"dependencies"`
	GroupID       string     `json:"group_id"`
	CreatedAt     time.Time  `json:"created_at"` // UTC
	UpdatedAt     time.Time  `json:"updated_at"` // UTC
}

// Duration returns DurationHours as a time.Duration, rounded to the nanosecond.
func (t Task) Duration() time.Duration {
	return time.Duration(math.Round(t.DurationHours * float64(time.Hour)))
}

func (t Task) DependsOn(id string) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// Schedule holds the computed bounds of a task. Zero bounds mean the task is unscheduled.
type Schedule struct {
	Start time.Time
	End   time.Time
}

func (s Schedule) IsScheduled() bool {
	return !(s.Start.IsZero() || s.End.IsZero())
}

// ScheduledTask is a Task decorated with its derived schedule and status.
type ScheduledTask struct {
	Task
	ComputedStart *time.Time `json:"computed_start"`
	ComputedEnd   *time.Time `json:"computed_end"`
	Status        Status     `json:"status"`
}

func NewScheduledTask(t Task, sch Schedule, now time.Time) ScheduledTask {
	st := ScheduledTask{Task: t, Status: Classify(sch.Start, sch.End, now)}
	if sch.IsScheduled() {
		start, end := sch.Start, sch.End
		st.ComputedStart = &start
		st.ComputedEnd = &end
	}
	return st
}

func (st ScheduledTask) Schedule() Schedule {
	var sch Schedule
	if st.ComputedStart != nil && st.ComputedEnd != nil {
		sch.Start, sch.End = *st.ComputedStart, *st.ComputedEnd
	}
	return sch
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	Name          string   `json:"name" yaml:"name" validate:"required"`
	DurationHours float64  `json:"duration_hours" yaml:"duration_hours" validate:"required,durationhours"`
	Priority      int      `json:"priority" yaml:"priority" validate:"omitempty,min=1"`
	StartTime     string   `json:"start_time" yaml:"start_time" validate:"omitempty,starttime"`
	Dependencies  []string `json:"dependencies" yaml:"dependencies"`
	GroupID       string   `json:"group_id" yaml:"group_id"`
}

func (nt *NewTask) Clean() {
	nt.Name = core.CleanString(nt.Name)
	nt.StartTime = core.CleanString(nt.StartTime)
	nt.GroupID = core.CleanString(nt.GroupID)
	nt.Dependencies = normalizeDependencies(nt.Dependencies)
	if nt.Priority == 0 {
		nt.Priority = DefaultPriority
	}
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Clean()
	return validate.Struct(nt)
}

// UpdateTask defines what information may be provided to modify an existing Task.
// nil fields are kept; an empty StartTime clears the authored start and an empty
// (non-nil) Dependencies clears the dependencies.
type UpdateTask struct {
	Name          *string   `json:"name" validate:"omitempty,min=1"`
	DurationHours *float64  `json:"duration_hours" validate:"omitempty,durationhours"`
	Priority      *int      `json:"priority" validate:"omitempty,min=1"`
	StartTime     *string   `json:"start_time" validate:"omitempty,starttime"`
	Dependencies  *[]string `json:"dependencies"`
	GroupID       *string   `json:"group_id"`
}

func (ut *UpdateTask) Clean() {
	if ut.Name != nil {
		name := core.CleanString(*ut.Name)
		ut.Name = &name
	}
	if ut.StartTime != nil {
		st := core.CleanString(*ut.StartTime)
		ut.StartTime = &st
	}
	if ut.GroupID != nil {
		gid := core.CleanString(*ut.GroupID)
		ut.GroupID = &gid
	}
	if ut.Dependencies != nil {
		deps := normalizeDependencies(*ut.Dependencies)
		ut.Dependencies = &deps
	}
}

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	ut.Clean()
	if ut.Name != nil && *ut.Name == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required"})
	}
	return validate.Struct(ut)
}

// apply merges the patch onto `t`. The patch must have been validated.
func (ut UpdateTask) apply(t Task) Task {
	if ut.Name != nil {
		t.Name = *ut.Name
	}
	if ut.DurationHours != nil {
		t.DurationHours = *ut.DurationHours
	}
	if ut.Priority != nil {
		t.Priority = *ut.Priority
	}
	if ut.StartTime != nil {
		t.StartTime = nil
		if *ut.StartTime != "" {
			if st, err := ParseStartTime(*ut.StartTime); err == nil {
				t.StartTime = &st
			}
		}
	}
	if ut.Dependencies != nil {
		t.Dependencies = *ut.Dependencies
	}
	if ut.GroupID != nil {
		t.GroupID = *ut.GroupID
	}
	return t
}

// ImportTask is a NewTask of a batch. Drafts of the same batch reference each other by Key;
// dependencies that match no Key are read as ids of existing tasks.
type ImportTask struct {
	Key     string `json:"key" yaml:"key" validate:"required"`
	NewTask `yaml:",inline"`
}

type QueryFilter struct {
	GroupID *string `query:"group_id"`
	Search  string  `query:"search"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf == nil || (qf.GroupID == nil && qf.Search == "")
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	if qf.GroupID != nil {
		gid := core.CleanString(*qf.GroupID)
		qf.GroupID = &gid
	}
}

// Match reports whether `t` passes the filter.
// Search does a case-insensitive match on Task.Name.
func (qf *QueryFilter) Match(t Task) bool {
	if qf.IsEmpty() {
		return true
	}
	if qf.GroupID != nil && t.GroupID != *qf.GroupID {
		return false
	}
	if qf.Search != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(qf.Search)) {
		return false
	}
	return true
}

// OrderingFields are the fields tasks may be ordered by.
var OrderingFields = []string{"name", "priority", "duration_hours", "start_time", "created_at"}

func normalizeDependencies(deps []string) []string {
	if deps == nil {
		return nil
	}
	deps = core.CleanStrings(deps)
	sort.Strings(deps)
	return deps
}
