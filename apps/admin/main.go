package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/notification"
	"github.com/arkofgod/ark/core/user"
	logsvc "github.com/arkofgod/ark/services/logger"
	pushsvc "github.com/arkofgod/ark/services/push"
	"github.com/arkofgod/ark/storage/database"
	sqlxrepos "github.com/arkofgod/ark/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger("ADMIN", conf)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(false)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	if err = database.Ping(context.Background(), db); err != nil {
		logger.Fatal("pinging database", err)
	}

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	registry := notification.NewRegistry(sqlxrepos.NewDeviceTokenRepository(db))
	gateway := pushsvc.NewExpoGateway(conf.Push, &http.Client{Timeout: conf.Push.Timeout})

	// start CLI
	cli := commandLine{
		db:         db.DB,
		usrSvc:     user.NewService(sqlxrepos.NewUserRepository(db)),
		notifier:   notification.NewDispatcher(gateway, registry, logger, notification.NewDispatcherConfig(conf.Push)),
		validate:   validate,
		translator: translator,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Sync()
	if err != nil {
		if err != errHelp {
			log.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
