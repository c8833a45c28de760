package task

import "time"

// Classify gives the status of a task scheduled from `start` to `end` at the instant `now`.
// Both bounds are inclusive; a zero bound means the task is unscheduled.
func Classify(start, end, now time.Time) Status {
	switch {
	case start.IsZero() || end.IsZero():
		return StatusUnscheduled
	case now.Before(start):
		return StatusUpcoming
	case now.After(end):
		return StatusExpired
	default:
		return StatusActive
	}
}
