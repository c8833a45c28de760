package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/syllabus/core"
	"github.com/trezcool/syllabus/core/task"
)

var (
	orderingParam = "ordering"
	groupParam    = "group_id"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the "ordering" query param, keeping the `allowed` fields only.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
	ord.Orderings = core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

// bindTaskFilter reads the task query params. An absent group_id matches every group,
// an empty one the global group.
func bindTaskFilter(ctx echo.Context) *task.QueryFilter {
	filter := &task.QueryFilter{Search: ctx.QueryParam("search")}
	if vals, ok := ctx.QueryParams()[groupParam]; ok && len(vals) > 0 {
		filter.GroupID = &vals[0]
	}
	filter.Clean()
	return filter
}

// bindGroup reads the group_id query param; absent means the global group.
func bindGroup(ctx echo.Context) string {
	return core.CleanString(ctx.QueryParam(groupParam))
}
