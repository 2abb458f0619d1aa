package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core/curriculum"
)

type bookApi struct {
	svc      curriculum.Service
	validate *validator.Validate
}

func registerBookAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc curriculum.Service, validate *validator.Validate) {
	api := bookApi{
		svc:      svc,
		validate: validate,
	}

	bg := g.Group("/books", jwt)
	bg.GET("", api.query)
	bg.POST("", api.create, adminMiddleware())

	dg := bg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/lessons", api.queryLessons)
	dg.POST("/lessons", api.addLesson, adminMiddleware())
}

// Handlers

func (api *bookApi) create(ctx echo.Context) error {
	var data curriculum.NewBook
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBook")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	book, err := api.svc.CreateBook(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating book")
	}
	return ctx.JSON(http.StatusCreated, book)
}

func (api *bookApi) query(ctx echo.Context) error {
	filter := &curriculum.BookFilter{Search: ctx.QueryParam("search")}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)
	page, err := bindPage(ctx, api.validate)
	if err != nil {
		return err
	}

	books, count, err := api.svc.QueryBooks(ctx.Request().Context(), filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying books")
	}
	return ctx.JSON(http.StatusOK, ListResponse{Count: count, Results: books})
}

func (api *bookApi) retrieve(ctx echo.Context) error {
	book, err := api.svc.GetBook(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting book")
	}
	return ctx.JSON(http.StatusOK, book)
}

func (api *bookApi) update(ctx echo.Context) error {
	var data curriculum.UpdateBook
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBook")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	book, err := api.svc.UpdateBook(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating book")
	}
	return ctx.JSON(http.StatusOK, book)
}

func (api *bookApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteBook(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting book")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *bookApi) queryLessons(ctx echo.Context) error {
	lessons, err := api.svc.QueryLessons(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *bookApi) addLesson(ctx echo.Context) error {
	var data curriculum.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	lsn, err := api.svc.AddLesson(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding lesson")
	}
	return ctx.JSON(http.StatusCreated, lsn)
}
