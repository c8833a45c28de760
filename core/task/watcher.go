package task

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/syllabus/core"
)

const (
	DefaultPollInterval    = 30 * time.Second
	DefaultRefreshInterval = 5 * time.Minute
)

type (
	// Lister fetches the schedule of a group. *Service is a Lister.
	Lister interface {
		ListScheduled(ctx context.Context, groupID string, now time.Time) ([]ScheduledTask, error)
	}

	// Transition is the change of status of a task between two polls.
	// From is empty for a task seen for the first time, To is empty for a task that is gone.
	Transition struct {
		Task ScheduledTask
		From Status
		To   Status
	}

	WatcherOptions struct {
		GroupID         string
		PollInterval    time.Duration
		RefreshInterval time.Duration
		OnChange        func(Transition)
		Logger          core.Logger
	}

	// Watcher re-classifies the last fetched schedule of a group every PollInterval and
	// refetches it every RefreshInterval, reporting every status change to OnChange.
	Watcher struct {
		lister   Lister
		opts     WatcherOptions
		now      func() time.Time
		snapshot []ScheduledTask
		statuses map[string]Status
	}
)

func NewWatcher(lister Lister, opts WatcherOptions) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.OnChange == nil {
		opts.OnChange = func(Transition) {}
	}
	return &Watcher{
		lister:   lister,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		statuses: make(map[string]Status),
	}
}

// Run watches until `ctx` is done. The first fetch reports every task of the group.
// A failed refetch is logged and the previous snapshot is kept.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.refresh(ctx, w.now()); err != nil {
		return err
	}

	poll := time.NewTicker(w.opts.PollInterval)
	defer poll.Stop()
	refresh := time.NewTicker(w.opts.RefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-poll.C:
			w.poll(w.now())
		case <-refresh.C:
			if err := w.refresh(ctx, w.now()); err != nil {
				w.logError(err)
			}
		}
	}
}

// refresh refetches the snapshot and reports the changes.
func (w *Watcher) refresh(ctx context.Context, now time.Time) error {
	tasks, err := w.lister.ListScheduled(ctx, w.opts.GroupID, now)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(tasks))
	for _, st := range tasks {
		seen[st.ID] = struct{}{}
	}
	for _, st := range w.snapshot {
		if _, ok := seen[st.ID]; !ok {
			w.opts.OnChange(Transition{Task: st, From: w.statuses[st.ID]})
			delete(w.statuses, st.ID)
		}
	}

	w.snapshot = tasks
	w.poll(now)
	return nil
}

// poll re-classifies the snapshot at `now` and reports the changes.
func (w *Watcher) poll(now time.Time) {
	for i, st := range w.snapshot {
		sch := st.Schedule()
		status := Classify(sch.Start, sch.End, now)
		w.snapshot[i].Status = status

		prev, ok := w.statuses[st.ID]
		if ok && prev == status {
			continue
		}
		w.statuses[st.ID] = status
		w.opts.OnChange(Transition{Task: w.snapshot[i], From: prev, To: status})
	}
}

func (w *Watcher) logError(err error) {
	if w.opts.Logger == nil {
		return
	}
	msg := fmt.Sprintf("refreshing schedule of group %q", w.opts.GroupID)
	if IsRetryable(err) {
		w.opts.Logger.Warn(msg, err)
	} else {
		w.opts.Logger.Error(msg, err)
	}
}
