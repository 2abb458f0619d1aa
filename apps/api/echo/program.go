package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/weekday"
)

type (
	programApi struct {
		svc      curriculum.Service
		validate *validator.Validate
	}

	// ProgramResponse exposes the study days both as names and as the stored mask.
	ProgramResponse struct {
		ID              string   `json:"id"`
		Title           string   `json:"title"`
		StudyDays       []string `json:"study_days"`
		WeeklyStudyDays int      `json:"weekly_study_days"`
	}
)

func newProgramResponse(prog curriculum.Program) (ProgramResponse, error) {
	days, err := weekday.Decode(prog.StudyDays)
	if err != nil {
		return ProgramResponse{}, errors.Wrapf(err, "decoding study days of program %s", prog.ID)
	}
	return ProgramResponse{
		ID:              prog.ID,
		Title:           prog.Title,
		StudyDays:       days,
		WeeklyStudyDays: prog.StudyDays,
	}, nil
}

func registerProgramAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc curriculum.Service, validate *validator.Validate) {
	api := programApi{
		svc:      svc,
		validate: validate,
	}

	pg := g.Group("/programs", jwt)
	pg.GET("", api.query)
	pg.POST("", api.create, adminMiddleware())

	dg := pg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/lessons", api.flatten)
	dg.GET("/phases", api.queryPhases)
	dg.POST("/phases", api.addPhase, adminMiddleware())
}

// Handlers

func (api *programApi) create(ctx echo.Context) error {
	var data curriculum.NewProgram
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProgram")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prog, err := api.svc.CreateProgram(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating program")
	}
	resp, err := newProgramResponse(prog)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func (api *programApi) query(ctx echo.Context) error {
	filter := &curriculum.ProgramFilter{Search: ctx.QueryParam("search")}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)
	page, err := bindPage(ctx, api.validate)
	if err != nil {
		return err
	}

	progs, count, err := api.svc.QueryPrograms(ctx.Request().Context(), filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying programs")
	}
	results := make([]ProgramResponse, len(progs))
	for i, prog := range progs {
		if results[i], err = newProgramResponse(prog); err != nil {
			return err
		}
	}
	return ctx.JSON(http.StatusOK, ListResponse{Count: count, Results: results})
}

func (api *programApi) retrieve(ctx echo.Context) error {
	prog, err := api.svc.GetProgram(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting program")
	}
	resp, err := newProgramResponse(prog)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *programApi) update(ctx echo.Context) error {
	var data curriculum.UpdateProgram
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProgram")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prog, err := api.svc.UpdateProgram(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating program")
	}
	resp, err := newProgramResponse(prog)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *programApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteProgram(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting program")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *programApi) flatten(ctx echo.Context) error {
	lessons, err := api.svc.Flatten(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "flattening program")
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *programApi) queryPhases(ctx echo.Context) error {
	phases, err := api.svc.QueryPhases(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying phases")
	}
	return ctx.JSON(http.StatusOK, phases)
}

func (api *programApi) addPhase(ctx echo.Context) error {
	var data curriculum.NewPhase
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPhase")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	ph, err := api.svc.AddPhase(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding phase")
	}
	return ctx.JSON(http.StatusCreated, ph)
}
