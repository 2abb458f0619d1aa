package echoapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-academy/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses ?ordering=field,-field
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPage binds & validates ?skip=&limit= on GET requests.
func bindPage(ctx echo.Context, validate *validator.Validate) (core.Pagination, error) {
	var page core.Pagination
	if err := ctx.Bind(&page); err != nil {
		return core.Pagination{}, errors.Wrap(err, "binding to Pagination")
	}
	if err := validate.Struct(page); err != nil {
		return core.Pagination{}, err
	}
	return page, nil
}

// ListResponse is a page of results with the total count of matching results.
type ListResponse struct {
	Count   int         `json:"count"`
	Results interface{} `json:"results"`
}
