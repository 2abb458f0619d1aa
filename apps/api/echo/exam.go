package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core/session"
)

type examApi struct {
	svc      session.Service
	validate *validator.Validate
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc session.Service, validate *validator.Validate) {
	api := examApi{
		svc:      svc,
		validate: validate,
	}

	eg := g.Group("/exams/:id", jwt)
	eg.GET("", api.retrieve, examMemberMiddleware(svc, session.Student, session.Teacher))
	eg.DELETE("", api.destroy, adminMiddleware())
	eg.GET("/attempts", api.queryOwnAttempts)
	eg.POST("/attempts", api.createAttempt, examMemberMiddleware(svc, session.Teacher))
	eg.GET("/attempts/student/:studentId", api.queryStudentAttempts, adminMiddleware())

	g.PATCH("/attempts/:id", api.updateAttempt, jwt, examinerOrAdminMiddleware(svc))
	g.GET("/users/:id/attempts", api.queryUserAttempts, jwt, ctxUserOrAdminMiddleware)
}

// examMemberMiddleware restricts /exams/:id routes to admins, and to the members of the exam's session
// with one of the given roles.
func examMemberMiddleware(svc session.Service, roles ...session.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin {
				return next(ctx)
			}

			exam, err := svc.GetExam(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "getting exam")
			}
			for _, role := range roles {
				ok, err := svc.IsMember(ctx.Request().Context(), exam.SessionID, role, claims.Subject)
				if err != nil {
					return errors.Wrapf(err, "checking %s membership", role)
				}
				if ok {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// examinerOrAdminMiddleware restricts /attempts/:id routes to the examiner of the attempt, or to admins.
func examinerOrAdminMiddleware(svc session.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin {
				return next(ctx)
			}

			att, err := svc.GetExamAttempt(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "getting exam attempt")
			}
			if att.ExaminerID == claims.Subject {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// Handlers

func (api *examApi) retrieve(ctx echo.Context) error {
	exam, err := api.svc.GetExam(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting exam")
	}
	return ctx.JSON(http.StatusOK, exam)
}

func (api *examApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteExam(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Attempts

func (api *examApi) queryOwnAttempts(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return api.listAttempts(ctx, claims.Subject)
}

func (api *examApi) queryStudentAttempts(ctx echo.Context) error {
	return api.listAttempts(ctx, ctx.Param("studentId"))
}

func (api *examApi) listAttempts(ctx echo.Context, studentID string) error {
	attempts, err := api.svc.QueryExamAttempts(ctx.Request().Context(), ctx.Param("id"), studentID)
	if err != nil {
		return errors.Wrap(err, "querying exam attempts")
	}
	return ctx.JSON(http.StatusOK, ListResponse{Count: len(attempts), Results: attempts})
}

func (api *examApi) queryUserAttempts(ctx echo.Context) error {
	attempts, err := api.svc.QueryStudentAttempts(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying student attempts")
	}
	return ctx.JSON(http.StatusOK, ListResponse{Count: len(attempts), Results: attempts})
}

func (api *examApi) createAttempt(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data session.NewExamAttempt
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExamAttempt")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	att, err := api.svc.CreateExamAttempt(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating exam attempt")
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *examApi) updateAttempt(ctx echo.Context) error {
	var data session.UpdateExamAttempt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExamAttempt")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	att, err := api.svc.UpdateExamAttempt(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating exam attempt")
	}
	return ctx.JSON(http.StatusOK, att)
}
