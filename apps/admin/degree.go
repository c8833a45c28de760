package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/syllabus/core"
	"github.com/trezcool/syllabus/core/degree"
)

func (cli *commandLine) addDegree(name string) error {
	d, err := cli.degreeSvc.Create(context.Background(), degree.NewDegree{Name: name})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "degree %q created: %s\n", d.Name, d.ID)
	return nil
}

// resolveGroup finds a degree by ID, then by name. The empty group is the global one.
func (cli *commandLine) resolveGroup(ctx context.Context, group string) (string, error) {
	group = core.CleanString(group)
	if group == "" {
		return "", nil
	}
	d, err := cli.degreeSvc.GetByID(ctx, group)
	if errors.Cause(err) == degree.ErrNotFound {
		d, err = cli.degreeSvc.GetBySlug(ctx, group)
	}
	if err != nil {
		return "", errors.Wrapf(err, "finding degree %q", group)
	}
	return d.ID, nil
}
