package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-academy/core"
	"github.com/trezcool/masomo-academy/core/curriculum"
	"github.com/trezcool/masomo-academy/core/session"
	"github.com/trezcool/masomo-academy/core/user"
	emailsvc "github.com/trezcool/masomo-academy/services/email"
	logsvc "github.com/trezcool/masomo-academy/services/logger"
	"github.com/trezcool/masomo-academy/storage/database"
	dummydb "github.com/trezcool/masomo-academy/storage/database/dummy"
	sqlxrepos "github.com/trezcool/masomo-academy/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	cli := commandLine{
		conf:     conf,
		validate: newValidator(),
		out:      os.Stdout,
	}
	mailSvc := newEmailService(conf, logsvc.NewRollbarLogger(logger, conf))

	if conf.Database.Engine == "memory" {
		db := dummydb.Open()
		cli.usrSvc = user.NewService(dummydb.NewUserRepository(db))
		cli.currSvc = curriculum.NewService(dummydb.NewCurriculumRepository(db))
		cli.sessSvc = session.NewService(dummydb.NewSessionRepository(db), mailSvc)
	} else {
		errAndDie(database.CreateIfNotExist(context.Background(), conf))
		db, err := database.Open(conf)
		errAndDie(err)
		defer func() { _ = db.Close() }()
		cli.db = db
		cli.setSQLServices(db, mailSvc)
	}

	err := cli.run(os.Args)
	mailSvc.Wait()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func (cli *commandLine) setSQLServices(db *sqlx.DB, mailSvc core.EmailService) {
	cli.usrSvc = user.NewService(sqlxrepos.NewUserRepository(db))
	cli.currSvc = curriculum.NewService(sqlxrepos.NewCurriculumRepository(db))
	cli.sessSvc = session.NewService(sqlxrepos.NewSessionRepository(db), mailSvc)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
