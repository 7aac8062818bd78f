package dig_container

import (
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/casbytes/lms-sub000/apps/api/echo"
	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/catalog"
	"github.com/casbytes/lms-sub000/core/progress"
	"github.com/casbytes/lms-sub000/core/user"
	contentsvc "github.com/casbytes/lms-sub000/services/content"
	emailsvc "github.com/casbytes/lms-sub000/services/email"
	locksvc "github.com/casbytes/lms-sub000/services/lock"
	logsvc "github.com/casbytes/lms-sub000/services/logger"
	schedsvc "github.com/casbytes/lms-sub000/services/scheduler"
	"github.com/casbytes/lms-sub000/storage/database"
	inmemdb "github.com/casbytes/lms-sub000/storage/database/inmem"
	sqlxrepos "github.com/casbytes/lms-sub000/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	SchedulerLoggerParam struct {
		dig.In
		Logger core.Logger `name:"schedulerLogger"`
	}

	// Closers release the connections opened by the container.
	Closers struct {
		DB     func() error
		Locker func() error
	}

	// Repositories are backed by postgres, or by memory when `databaseInMemory` is set.
	Repositories struct {
		dig.Out
		Users    user.Repository
		Catalog  catalog.Repository
		Progress progress.Repository
		Close    DBCloser
	}

	DBCloser func() error

	LockerCloser func() error
)

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger("API", conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger("DB", conf)
}

func newSchedulerLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger("SCHEDULER", conf)
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) (Repositories, error) {
	if conf.Database.InMemory {
		loggerParam.Logger.Warn("using the in-memory database: data will not survive a restart")
		db := inmemdb.NewDB()
		return Repositories{
			Users:    inmemdb.NewUserRepository(db),
			Catalog:  inmemdb.NewCatalogRepository(db),
			Progress: inmemdb.NewProgressRepository(db),
			Close:    func() error { return nil },
		}, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return Repositories{}, errors.Wrap(err, "setting up database")
	}
	return Repositories{
		Users:    sqlxrepos.NewUserRepository(db),
		Catalog:  sqlxrepos.NewCatalogRepository(db),
		Progress: sqlxrepos.NewProgressRepository(db),
		Close:    db.Close,
	}, nil
}

// newLocker guards test submissions across API instances when Redis is configured.
func newLocker(conf *core.Config, logger core.Logger) (core.Locker, LockerCloser, error) {
	if conf.Redis.Address == "" {
		return locksvc.NewMemoryLocker(), func() error { return nil }, nil
	}
	locker, closeFn, err := locksvc.NewRedisLocker(conf, logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connecting to redis")
	}
	return locker, closeFn, nil
}

func newClosers(dbClose DBCloser, lockerClose LockerCloser) Closers {
	return Closers{DB: dbClose, Locker: lockerClose}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newProgressService(
	repo progress.Repository,
	catalogSvc *catalog.Service,
	usrSvc user.Service,
	locker core.Locker,
	mailSvc core.EmailService,
	logger core.Logger,
	validate *validator.Validate,
	conf *core.Config,
) *progress.Service {
	return progress.NewService(repo, catalogSvc, usrSvc, locker, mailSvc, logger, validate, conf)
}

func newScheduler(svc *progress.Service, loggerParam SchedulerLoggerParam, conf *core.Config) (*schedsvc.Scheduler, error) {
	return schedsvc.New(svc, loggerParam.Logger, conf)
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	usrSvc user.Service,
	catalogSvc *catalog.Service,
	progressSvc *progress.Service,
	content *contentsvc.Client,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		UserSvc:     usrSvc,
		CatalogSvc:  catalogSvc,
		ProgressSvc: progressSvc,
		Content:     content,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newSchedulerLogger, dig.Name("schedulerLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newLocker))
	must(c.Provide(newClosers))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(catalog.NewService))
	must(c.Provide(newProgressService))
	must(c.Provide(contentsvc.NewClient))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
