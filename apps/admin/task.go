package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/syllabus/core/task"
)

const timeFormat = "2006-01-02 15:04"

// importFile is the layout of the files read by `import`.
type importFile struct {
	Tasks []task.ImportTask `yaml:"tasks"`
}

func (cli *commandLine) importTasks(path, group string) error {
	ctx := context.Background()

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading tasks file")
	}
	var file importFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}

	groupID, err := cli.resolveGroup(ctx, group)
	if err != nil {
		return err
	}
	for i := range file.Tasks {
		if file.Tasks[i].GroupID == "" {
			file.Tasks[i].GroupID = groupID
		}
	}

	created, err := cli.taskSvc.Import(ctx, file.Tasks)
	if err != nil {
		return errors.Wrap(err, "importing tasks")
	}
	fmt.Fprintf(cli.out, "%d tasks imported\n", len(created))
	cli.printSchedule(created)
	return nil
}

func (cli *commandLine) schedule(group, at string) error {
	ctx := context.Background()

	now := cli.now().UTC()
	if at != "" {
		t, err := task.ParseStartTime(at)
		if err != nil {
			return errors.Wrapf(err, "parsing -at %q", at)
		}
		now = t
	}
	groupID, err := cli.resolveGroup(ctx, group)
	if err != nil {
		return err
	}

	scheduled, err := cli.taskSvc.ListScheduled(ctx, groupID, now)
	if err != nil {
		return errors.Wrap(err, "listing scheduled tasks")
	}
	cli.printSchedule(scheduled)
	return nil
}

func (cli *commandLine) printSchedule(tasks []task.ScheduledTask) {
	formatTime := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format(timeFormat)
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRIORITY\tSTART\tEND\tSTATUS")
	for _, st := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			st.ID, st.Name, st.Priority, formatTime(st.ComputedStart), formatTime(st.ComputedEnd), st.Status)
	}
	_ = w.Flush()
}

func (cli *commandLine) watch(group string, interval, stopAfter time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if stopAfter > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, stopAfter)
		defer cancel()
	}

	groupID, err := cli.resolveGroup(ctx, group)
	if err != nil {
		return err
	}

	if interval <= 0 {
		interval = cli.scheduler.PollInterval
	}
	watcher := task.NewWatcher(cli.taskSvc, task.WatcherOptions{
		GroupID:         groupID,
		PollInterval:    interval,
		RefreshInterval: cli.scheduler.RefreshInterval,
		Logger:          cli.logger,
		OnChange: func(tr task.Transition) {
			switch {
			case tr.From == "":
				fmt.Fprintf(cli.out, "%s: %s\n", tr.Task.Name, tr.To)
			case tr.To == "":
				fmt.Fprintf(cli.out, "%s: removed\n", tr.Task.Name)
			default:
				fmt.Fprintf(cli.out, "%s: %s -> %s\n", tr.Task.Name, tr.From, tr.To)
			}
		},
	})
	return errors.Wrap(watcher.Run(ctx), "watching schedule")
}
