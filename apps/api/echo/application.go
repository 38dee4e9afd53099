package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core/application"
	"github.com/arkofgod/ark/core/user"
)

type applicationApi struct {
	auth     *authenticator
	svc      application.Service
	validate *validator.Validate
}

func registerApplicationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc application.Service,
	validate *validator.Validate,
	submitLimiter echo.MiddlewareFunc,
) {
	api := applicationApi{
		auth:     auth,
		svc:      svc,
		validate: validate,
	}

	ag := g.Group("/applications")

	// un-authed endpoints
	ag.POST("", api.submit, submitLimiter)
	ag.POST("/login", api.login)

	// reviewer endpoints
	reviewer := []echo.MiddlewareFunc{jwt, adminMiddleware()}
	ag.GET("", api.query, reviewer...)
	ag.POST("/bulk-approve", api.bulkApprove, reviewer...)
	ag.POST("/bulk-reject", api.bulkReject, reviewer...)
	ag.GET("/:id", api.retrieve, reviewer...)
	ag.POST("/:id/approve", api.approve, reviewer...)
	ag.POST("/:id/reject", api.reject, reviewer...)
	ag.POST("/:id/reopen", api.reopen, reviewer...)
}

// Handlers

func (api *applicationApi) submit(ctx echo.Context) error {
	var data application.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	app, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting application")
	}
	return ctx.JSON(http.StatusCreated, app)
}

func (api *applicationApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Login(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "logging in applicant")
	}
	token, err := api.auth.generateToken(api.auth.claims(res.Account, res.Track))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, ApplicationLoginResponse{
		Token:       token,
		User:        res.Account,
		Track:       res.Track,
		Application: res.Application,
	})
}

func (api *applicationApi) query(ctx echo.Context) error {
	filter := new(application.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []application.Application{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	apps, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []application.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *applicationApi) retrieve(ctx echo.Context) error {
	app, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) approve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	app, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"), claims.Username)
	if err != nil {
		return errors.Wrap(err, "approving application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) reject(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	app, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"), claims.Username)
	if err != nil {
		return errors.Wrap(err, "rejecting application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) reopen(ctx echo.Context) error {
	app, err := api.svc.Reopen(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "reopening application")
	}
	return ctx.JSON(http.StatusCreated, app)
}

func (api *applicationApi) bulkApprove(ctx echo.Context) error {
	return api.bulk(ctx, api.svc.BulkApprove)
}

func (api *applicationApi) bulkReject(ctx echo.Context) error {
	return api.bulk(ctx, api.svc.BulkReject)
}

func (api *applicationApi) bulk(ctx echo.Context, action func(ctx context.Context, ids []string, reviewer string) application.BulkResult) error {
	var data BulkRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return ctx.JSON(http.StatusOK, action(ctx.Request().Context(), data.IDs, claims.Username))
}

type ApplicationLoginResponse struct {
	Token       string                  `json:"token"`
	User        user.User               `json:"user"`
	Track       application.Track       `json:"track"`
	Application application.Application `json:"application"`
}
