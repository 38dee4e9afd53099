package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/arkofgod/ark/apps/api/echo"
	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/application"
	"github.com/arkofgod/ark/core/broadcast"
	"github.com/arkofgod/ark/core/devotion"
	"github.com/arkofgod/ark/core/notification"
	"github.com/arkofgod/ark/core/user"
	emailsvc "github.com/arkofgod/ark/services/email"
	logsvc "github.com/arkofgod/ark/services/logger"
	pushsvc "github.com/arkofgod/ark/services/push"
	"github.com/arkofgod/ark/storage/database"
	sqlxrepos "github.com/arkofgod/ark/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := newLogger("API", conf)
	logger.Enable(!conf.Debug)
	defer logger.Sync()

	dbLogger := newLogger("DB", conf)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up metrics
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	notification.RegisterMetrics(metrics)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	appSvc := application.NewService(
		sqlxrepos.NewApplicationRepository(db),
		usrSvc,
		database.NewTransactor(db),
		mailSvc,
		logger,
		conf,
	)
	registry := notification.NewRegistry(sqlxrepos.NewDeviceTokenRepository(db))
	gateway := pushsvc.NewExpoGateway(conf.Push, &http.Client{Timeout: conf.Push.Timeout})
	dispatcher := notification.NewDispatcher(gateway, registry, logger, notification.NewDispatcherConfig(conf.Push))
	broadcastSvc := broadcast.NewService(sqlxrepos.NewBroadcastRepository(db))
	devotionSvc := devotion.NewService(sqlxrepos.NewDevotionRepository(db), dispatcher, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	application.InitValidators(validate, translator)
	devotion.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger, false)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus scrape endpoint.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	http.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:         conf,
			Logger:       logger,
			UserSvc:      usrSvc,
			AppSvc:       appSvc,
			Registry:     registry,
			Notifier:     dispatcher,
			BroadcastSvc: broadcastSvc,
			DevotionSvc:  devotionSvc,
			Validate:     validate,
			Translator:   translator,
			Metrics:      metrics,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}

		// let in-flight devotion notifications finish
		if err = devotionSvc.Wait(ctx); err != nil {
			logger.Warn(fmt.Sprintf("devotion notifications still running at shutdown: %v", err))
		}
	}
}

func newLogger(name string, conf *core.Config) *logsvc.RollbarLogger {
	zl, err := logsvc.NewZapLogger(name, conf)
	if err != nil {
		log.Fatalf("building %s logger: %v", name, err)
	}
	return logsvc.NewRollbarLogger(zl, conf)
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(ctx, db); err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
