package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-academy/apps/api/echo"
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

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories are backed by postgres, or by the in-memory DB when conf.Database.Engine is "memory".
type Repositories struct {
	dig.Out
	User       user.Repository
	Curriculum curriculum.Repository
	Session    session.Repository
}

// Closer releases the storage.
type Closer func() error

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, error) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Error(fmt.Sprintf("setting up database: %v", err), err)
		return nil, errors.Wrap(err, "setting up database")
	}
	return db, nil
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) (Repositories, Closer, error) {
	if conf.Database.Engine == "memory" {
		loggerParam.Logger.Warn("using the in-memory database: data will be lost on shutdown")
		db := dummydb.Open()
		return Repositories{
			User:       dummydb.NewUserRepository(db),
			Curriculum: dummydb.NewCurriculumRepository(db),
			Session:    dummydb.NewSessionRepository(db),
		}, func() error { return nil }, nil
	}

	db, err := newDB(conf, loggerParam)
	if err != nil {
		return Repositories{}, nil, err
	}
	return Repositories{
		User:       sqlxrepos.NewUserRepository(db),
		Curriculum: sqlxrepos.NewCurriculumRepository(db),
		Session:    sqlxrepos.NewSessionRepository(db),
	}, db.Close, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(curriculum.NewService))
	must(c.Provide(session.NewService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
