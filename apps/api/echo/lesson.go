package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core/curriculum"
)

type (
	lessonApi struct {
		svc      curriculum.Service
		validate *validator.Validate
	}

	// QuestionResponse tells clients whether to render a question with radio buttons or checkboxes.
	QuestionResponse struct {
		curriculum.Question
		SingleAnswer bool `json:"single_answer"`
	}
)

func newQuestionResponse(q curriculum.Question) QuestionResponse {
	return QuestionResponse{Question: q, SingleAnswer: q.IsSingleAnswer()}
}

func registerLessonAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc curriculum.Service, validate *validator.Validate) {
	api := lessonApi{
		svc:      svc,
		validate: validate,
	}

	lg := g.Group("/lessons/:id", jwt)
	lg.GET("", api.retrieve)
	lg.PUT("", api.update, adminMiddleware())
	lg.DELETE("", api.destroy, adminMiddleware())
	lg.PUT("/order", api.reorder, adminMiddleware())
	lg.GET("/questions", api.queryQuestions)
	lg.POST("/questions", api.addQuestion, adminMiddleware())

	g.DELETE("/questions/:id", api.destroyQuestion, jwt, adminMiddleware())
}

// Handlers

func (api *lessonApi) retrieve(ctx echo.Context) error {
	lsn, err := api.svc.GetLesson(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *lessonApi) update(ctx echo.Context) error {
	var data curriculum.UpdateLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}

	lsn, err := api.svc.UpdateLesson(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *lessonApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteLesson(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lessonApi) reorder(ctx echo.Context) error {
	order, err := bindReorder(ctx, api.validate)
	if err != nil {
		return err
	}
	lsn, err := api.svc.ReorderLesson(ctx.Request().Context(), ctx.Param("id"), order)
	if err != nil {
		return errors.Wrap(err, "reordering lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *lessonApi) queryQuestions(ctx echo.Context) error {
	questions, err := api.svc.QueryQuestions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	resp := make([]QuestionResponse, 0, len(questions))
	for _, q := range questions {
		resp = append(resp, newQuestionResponse(q))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *lessonApi) addQuestion(ctx echo.Context) error {
	var data curriculum.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.AddQuestion(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding question")
	}
	return ctx.JSON(http.StatusCreated, newQuestionResponse(q))
}

func (api *lessonApi) destroyQuestion(ctx echo.Context) error {
	if err := api.svc.DeleteQuestion(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}
