package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/session"
)

type (
	sessionApi struct {
		svc      session.Service
		validate *validator.Validate
	}

	UpdateSessionRequest struct {
		StartDate core.Date `json:"start_date"`
	}

	EndDateResponse struct {
		SessionID string    `json:"session_id"`
		EndDate   core.Date `json:"end_date"`
	}
)

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc session.Service, validate *validator.Validate) {
	api := sessionApi{
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/sessions", jwt)
	sg.GET("", api.query)
	sg.POST("", api.create, adminMiddleware())

	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())

	for _, role := range []session.Role{session.Student, session.Teacher} {
		path := "/" + string(role) + "s"
		dg.GET(path, api.queryMembers(role))
		dg.POST(path, api.addMembers(role), adminMiddleware())
		dg.DELETE(path+"/:userId", api.removeMember(role), adminMiddleware())
	}

	dg.GET("/events", api.queryEvents)
	dg.POST("/events", api.createEvent, teacherOrAdminMiddleware)
	dg.GET("/lessons", api.queryLessons)
	dg.GET("/breaks", api.queryBreaks)
	dg.POST("/breaks", api.addBreak, adminMiddleware())
	dg.POST("/reschedule", api.reschedule, adminMiddleware())
	dg.GET("/end-date", api.endDate)

	dg.GET("/exams", api.queryExams)
	dg.POST("/exams", api.createExam, adminMiddleware())
}

// Handlers

func (api *sessionApi) create(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *sessionApi) query(ctx echo.Context) error {
	filter := &session.QueryFilter{ProgramID: ctx.QueryParam("program_id")}
	filter.Clean()
	page, err := bindPage(ctx, api.validate)
	if err != nil {
		return err
	}

	sessions, count, err := api.svc.Query(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	return ctx.JSON(http.StatusOK, ListResponse{Count: count, Results: sessions})
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) update(ctx echo.Context) error {
	var data UpdateSessionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSessionRequest")
	}

	sess, err := api.svc.UpdateStartDate(ctx.Request().Context(), ctx.Param("id"), data.StartDate)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Members

func (api *sessionApi) queryMembers(role session.Role) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		users, err := api.svc.QueryMembers(ctx.Request().Context(), ctx.Param("id"), role)
		if err != nil {
			return errors.Wrapf(err, "querying %ss", role)
		}
		return ctx.JSON(http.StatusOK, users)
	}
}

func (api *sessionApi) addMembers(role session.Role) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data session.MembersRequest
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to MembersRequest")
		}
		if err := api.validate.Struct(data); err != nil {
			return err
		}

		id := ctx.Param("id")
		if err := api.svc.AddMembers(ctx.Request().Context(), id, role, data.UserIDs...); err != nil {
			return errors.Wrapf(err, "adding %ss", role)
		}
		users, err := api.svc.QueryMembers(ctx.Request().Context(), id, role)
		if err != nil {
			return errors.Wrapf(err, "querying %ss", role)
		}
		return ctx.JSON(http.StatusOK, users)
	}
}

func (api *sessionApi) removeMember(role session.Role) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := api.svc.RemoveMember(ctx.Request().Context(), ctx.Param("id"), role, ctx.Param("userId")); err != nil {
			return errors.Wrapf(err, "removing %s", role)
		}
		return ctx.NoContent(http.StatusNoContent)
	}
}

// Events

func (api *sessionApi) queryEvents(ctx echo.Context) error {
	filter := new(session.EventFilter)
	if s := ctx.QueryParam("is_break"); s != "" {
		isBreak, err := strconv.ParseBool(s)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "is_break", Error: "must be a boolean"})
		}
		filter.IsBreak = &isBreak
	}
	page, err := bindPage(ctx, api.validate)
	if err != nil {
		return err
	}

	events, count, err := api.svc.QueryEvents(ctx.Request().Context(), ctx.Param("id"), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying events")
	}
	return ctx.JSON(http.StatusOK, ListResponse{Count: count, Results: events})
}

func (api *sessionApi) createEvent(ctx echo.Context) error {
	var data session.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	evt, err := api.svc.CreateEvent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating event")
	}
	return ctx.JSON(http.StatusCreated, evt)
}

func (api *sessionApi) queryLessons(ctx echo.Context) error {
	events, err := api.svc.GetLessons(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting lessons")
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *sessionApi) queryBreaks(ctx echo.Context) error {
	events, err := api.svc.GetBreaks(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting breaks")
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *sessionApi) addBreak(ctx echo.Context) error {
	var data session.NewBreak
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBreak")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	brk, err := api.svc.AddBreak(ctx.Request().Context(), ctx.Param("id"), data.StartDate, data.NumDays)
	if err != nil {
		return errors.Wrap(err, "adding break")
	}
	return ctx.JSON(http.StatusCreated, brk)
}

func (api *sessionApi) reschedule(ctx echo.Context) error {
	var data session.RescheduleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RescheduleRequest")
	}

	events, err := api.svc.Reschedule(ctx.Request().Context(), ctx.Param("id"), &data.StartDate)
	if err != nil {
		return errors.Wrap(err, "rescheduling session")
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *sessionApi) endDate(ctx echo.Context) error {
	id := ctx.Param("id")
	end, err := api.svc.EndDate(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting end date")
	}
	return ctx.JSON(http.StatusOK, EndDateResponse{SessionID: id, EndDate: end})
}

// Exams

func (api *sessionApi) queryExams(ctx echo.Context) error {
	exams, err := api.svc.QueryExams(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *sessionApi) createExam(ctx echo.Context) error {
	var data session.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	exam, err := api.svc.CreateExam(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, exam)
}
