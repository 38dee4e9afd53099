package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core/broadcast"
)

type broadcastApi struct {
	svc      broadcast.Service
	validate *validator.Validate
}

func registerBroadcastAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc broadcast.Service, validate *validator.Validate) {
	api := broadcastApi{
		svc:      svc,
		validate: validate,
	}

	bg := g.Group("/broadcasts/:kind")
	bg.GET("", api.retrieve)
	bg.GET("/active", api.active)

	admin := []echo.MiddlewareFunc{jwt, adminMiddleware()}
	bg.POST("/start", api.start, admin...)
	bg.POST("/end", api.end, admin...)
	bg.POST("/topic", api.updateTopic, admin...)
}

func kindParam(ctx echo.Context) broadcast.Kind {
	return broadcast.Kind(ctx.Param("kind"))
}

// Handlers

func (api *broadcastApi) retrieve(ctx echo.Context) error {
	b, err := api.svc.Get(ctx.Request().Context(), kindParam(ctx))
	if err != nil {
		return errors.Wrap(err, "getting broadcast")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *broadcastApi) active(ctx echo.Context) error {
	b, err := api.svc.Active(ctx.Request().Context(), kindParam(ctx))
	if err != nil {
		return errors.Wrap(err, "getting active broadcast")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *broadcastApi) start(ctx echo.Context) error {
	var data broadcast.StartBroadcast
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartBroadcast")
	}
	// URL presence & format are checked by the service, with their own messages
	data.Clean()
	if data.URL != "" {
		if err := api.validate.Struct(data); err != nil {
			return err
		}
	}

	b, err := api.svc.Start(ctx.Request().Context(), kindParam(ctx), data)
	if err != nil {
		return errors.Wrap(err, "starting broadcast")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *broadcastApi) end(ctx echo.Context) error {
	b, err := api.svc.End(ctx.Request().Context(), kindParam(ctx))
	if err != nil {
		return errors.Wrap(err, "ending broadcast")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *broadcastApi) updateTopic(ctx echo.Context) error {
	var data broadcast.UpdateTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTopic")
	}

	b, err := api.svc.UpdateTopic(ctx.Request().Context(), kindParam(ctx), data)
	if err != nil {
		return errors.Wrap(err, "updating broadcast topic")
	}
	return ctx.JSON(http.StatusOK, b)
}
