package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
)

type (
	phaseApi struct {
		svc      curriculum.Service
		validate *validator.Validate
	}

	AddBookRequest struct {
		BookID string `json:"book_id" validate:"required"`
		Order  *int   `json:"order" validate:"omitempty,gte=0"`
	}
)

func registerPhaseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc curriculum.Service, validate *validator.Validate) {
	api := phaseApi{
		svc:      svc,
		validate: validate,
	}

	pg := g.Group("/phases/:id", jwt)
	pg.GET("", api.retrieve)
	pg.DELETE("", api.destroy, adminMiddleware())
	pg.PUT("/order", api.reorder, adminMiddleware())

	pg.GET("/books", api.queryBooks)
	pg.POST("/books", api.addBook, adminMiddleware())
	pg.PUT("/books/:bookId/order", api.reorderBook, adminMiddleware())
	pg.DELETE("/books/:bookId", api.removeBook, adminMiddleware())
}

// bindReorder binds & validates the new order of a reorder request.
func bindReorder(ctx echo.Context, validate *validator.Validate) (int, error) {
	var data curriculum.Reorder
	if err := ctx.Bind(&data); err != nil {
		return 0, errors.Wrap(err, "binding to Reorder")
	}
	if err := validate.Struct(data); err != nil {
		return 0, err
	}
	return *data.Order, nil
}

// Handlers

func (api *phaseApi) retrieve(ctx echo.Context) error {
	ph, err := api.svc.GetPhase(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting phase")
	}
	return ctx.JSON(http.StatusOK, ph)
}

func (api *phaseApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeletePhase(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting phase")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *phaseApi) reorder(ctx echo.Context) error {
	order, err := bindReorder(ctx, api.validate)
	if err != nil {
		return err
	}
	ph, err := api.svc.ReorderPhase(ctx.Request().Context(), ctx.Param("id"), order)
	if err != nil {
		return errors.Wrap(err, "reordering phase")
	}
	return ctx.JSON(http.StatusOK, ph)
}

func (api *phaseApi) queryBooks(ctx echo.Context) error {
	pbs, err := api.svc.QueryPhaseBooks(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying phase books")
	}
	return ctx.JSON(http.StatusOK, pbs)
}

func (api *phaseApi) addBook(ctx echo.Context) error {
	var data AddBookRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddBookRequest")
	}
	data.BookID = core.CleanString(data.BookID)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	pb, err := api.svc.AddBookToPhase(ctx.Request().Context(), ctx.Param("id"), data.BookID, data.Order)
	if err != nil {
		return errors.Wrap(err, "adding book to phase")
	}
	return ctx.JSON(http.StatusCreated, pb)
}

func (api *phaseApi) reorderBook(ctx echo.Context) error {
	order, err := bindReorder(ctx, api.validate)
	if err != nil {
		return err
	}
	pb, err := api.svc.ReorderPhaseBook(ctx.Request().Context(), ctx.Param("id"), ctx.Param("bookId"), order)
	if err != nil {
		return errors.Wrap(err, "reordering phase book")
	}
	return ctx.JSON(http.StatusOK, pb)
}

func (api *phaseApi) removeBook(ctx echo.Context) error {
	if err := api.svc.RemoveBookFromPhase(ctx.Request().Context(), ctx.Param("id"), ctx.Param("bookId")); err != nil {
		return errors.Wrap(err, "removing book from phase")
	}
	return ctx.NoContent(http.StatusNoContent)
}
