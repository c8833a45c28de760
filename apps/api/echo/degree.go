package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/syllabus/core/degree"
)

type degreeApi struct {
	svc *degree.Service
}

func registerDegreeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *degree.Service) {
	api := degreeApi{svc: svc}

	dg := g.Group("/degrees", jwt)
	dg.GET("", api.query)
	dg.GET("/by-name/:slug", api.retrieveBySlug)
}

func (api *degreeApi) query(ctx echo.Context) error {
	degrees, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying degrees")
	}
	if degrees == nil {
		degrees = []degree.Degree{}
	}
	return ctx.JSON(http.StatusOK, degrees)
}

func (api *degreeApi) retrieveBySlug(ctx echo.Context) error {
	d, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "finding degree by slug")
	}
	return ctx.JSON(http.StatusOK, d)
}
