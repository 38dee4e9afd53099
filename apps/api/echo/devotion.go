package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/devotion"
)

const maxDevotionsLimit = 100

type devotionApi struct {
	svc      devotion.Service
	validate *validator.Validate
}

func registerDevotionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc devotion.Service, validate *validator.Validate) {
	api := devotionApi{
		svc:      svc,
		validate: validate,
	}

	dg := g.Group("/devotions")
	dg.GET("", api.list)
	dg.GET("/:id", api.retrieve)
	dg.POST("", api.publish, jwt, adminMiddleware())
}

// Handlers

func (api *devotionApi) list(ctx echo.Context) error {
	var limit int
	if l := ctx.QueryParam("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "limit", Error: "limit must be a positive integer"})
		}
		limit = n
	}
	if limit == 0 || limit > maxDevotionsLimit {
		limit = maxDevotionsLimit
	}

	devs, err := api.svc.List(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "listing devotions")
	}
	if devs == nil {
		devs = []devotion.Devotion{}
	}
	return ctx.JSON(http.StatusOK, devs)
}

func (api *devotionApi) retrieve(ctx echo.Context) error {
	dev, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting devotion")
	}
	return ctx.JSON(http.StatusOK, dev)
}

func (api *devotionApi) publish(ctx echo.Context) error {
	var data devotion.NewDevotion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDevotion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	dev, err := api.svc.Publish(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "publishing devotion")
	}
	return ctx.JSON(http.StatusCreated, dev)
}
