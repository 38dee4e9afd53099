package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/application"
	"github.com/arkofgod/ark/core/broadcast"
	"github.com/arkofgod/ark/core/devotion"
	"github.com/arkofgod/ark/core/notification"
	"github.com/arkofgod/ark/core/user"
)

type (
	ServerDeps struct {
		Conf         *core.Config
		Logger       core.Logger
		UserSvc      user.Service
		AppSvc       application.Service
		Registry     *notification.Registry
		Notifier     devotion.Notifier
		BroadcastSvc broadcast.Service
		DevotionSvc  devotion.Service
		Validate     *validator.Validate
		Translator   ut.Translator
		Metrics      prometheus.Registerer // optional
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		conf     *core.Config
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		conf:     deps.Conf,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *server) setup(deps ServerDeps) {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.SignalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.conf.Server.CORSAllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if deps.Metrics != nil {
		s.app.Use(metricsMiddleware(deps.Metrics))
	}

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)

	registerAuthAPI(v1, jwt, s.auth, deps.UserSvc, deps.Validate)
	registerApplicationAPI(v1, jwt, s.auth, deps.AppSvc, deps.Validate, rateLimitMiddleware(s.conf.Server.SubmitRatePerMinute))
	registerNotificationAPI(v1, jwt, deps.Registry, deps.Notifier, deps.Validate)
	registerBroadcastAPI(v1, jwt, deps.BroadcastSvc, deps.Validate)
	registerDevotionAPI(v1, jwt, deps.DevotionSvc, deps.Validate)
}

// Start blocks until the server stops. Listener failures are reported on Errors().
func (s *server) Start() {
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the Ark of God API!")
}
