package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/syllabus/core/task"
)

type taskApi struct {
	svc *task.Service
	now func() time.Time
}

func registerTaskAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *task.Service, now func() time.Time) {
	api := taskApi{svc: svc, now: now}

	tg := g.Group("/tasks", jwt)
	tg.GET("", api.query)
	tg.GET("/schedule", api.schedule)
	tg.GET("/available", api.available)
	tg.POST("", api.create, requireAdmin)
	tg.POST("/preview", api.preview, requireAdmin)

	// detail endpoints
	dg := tg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, requireAdmin)
	dg.DELETE("", api.destroy, requireAdmin)
}

// Handlers

func (api *taskApi) query(ctx echo.Context) error {
	filter := bindTaskFilter(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx, task.OrderingFields...)

	tasks, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) schedule(ctx echo.Context) error {
	tasks, err := api.svc.ListScheduled(ctx.Request().Context(), bindGroup(ctx), api.now().UTC())
	if err != nil {
		return errors.Wrap(err, "listing scheduled tasks")
	}
	if tasks == nil {
		tasks = []task.ScheduledTask{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) available(ctx echo.Context) error {
	tasks, err := api.svc.Available(ctx.Request().Context(), bindGroup(ctx), api.now().UTC())
	if err != nil {
		return errors.Wrap(err, "listing available tasks")
	}
	if tasks == nil {
		tasks = []task.ScheduledTask{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) create(ctx echo.Context) error {
	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}

	st, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *taskApi) preview(ctx echo.Context) error {
	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}

	st, err := api.svc.Preview(ctx.Request().Context(), data, api.now().UTC())
	if err != nil {
		return errors.Wrap(err, "previewing task")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding task by ID")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) update(ctx echo.Context) error {
	var data task.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}

	st, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}
