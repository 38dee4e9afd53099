package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/devotion"
	"github.com/arkofgod/ark/core/notification"
)

type notificationApi struct {
	registry *notification.Registry
	notifier devotion.Notifier
	validate *validator.Validate
}

func registerNotificationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	registry *notification.Registry,
	notifier devotion.Notifier,
	validate *validator.Validate,
) {
	api := notificationApi{
		registry: registry,
		notifier: notifier,
		validate: validate,
	}

	g.POST("/devices", api.registerDevice)
	g.POST("/notifications/test", api.sendTest, jwt, adminMiddleware())
}

// Handlers

func (api *notificationApi) registerDevice(ctx echo.Context) error {
	var data notification.NewDevice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDevice")
	}
	data.Token = core.CleanString(data.Token)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	dt, created, err := api.registry.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering device")
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return ctx.JSON(code, dt)
}

func (api *notificationApi) sendTest(ctx echo.Context) error {
	var data TestNotificationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TestNotificationRequest")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.notifier.Dispatch(ctx.Request().Context(), notification.Notification{
		Title: data.Title,
		Body:  data.Body,
		Data:  data.Data,
		Sound: data.Sound,
	}, data.Tokens)
	if err != nil {
		return errors.Wrap(err, "dispatching test notification")
	}
	if res.Errors == nil {
		res.Errors = []notification.TokenError{}
	}
	return ctx.JSON(http.StatusOK, res)
}

// TestNotificationRequest sends a notification to Tokens, or to every registered device when omitted.
type TestNotificationRequest struct {
	Title  string                 `json:"title" validate:"required,max=200"`
	Body   string                 `json:"body" validate:"required"`
	Data   map[string]interface{} `json:"data"`
	Sound  string                 `json:"sound"`
	Tokens []string               `json:"tokens"`
}

func (tr *TestNotificationRequest) Clean() {
	tr.Title = core.CleanString(tr.Title)
	tr.Body = core.CleanString(tr.Body)
	tr.Sound = core.CleanString(tr.Sound)
}
