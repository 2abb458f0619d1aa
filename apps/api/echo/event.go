package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core/session"
)

type eventApi struct {
	svc session.Service
}

func registerEventAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc session.Service) {
	api := eventApi{svc: svc}

	g.DELETE("/events/:id", api.destroy, jwt, teacherOrAdminMiddleware)
}

func (api *eventApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteEvent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting event")
	}
	return ctx.NoContent(http.StatusNoContent)
}
