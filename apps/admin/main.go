package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/catalog"
	"github.com/casbytes/lms-sub000/core/user"
	emailsvc "github.com/casbytes/lms-sub000/services/email"
	logsvc "github.com/casbytes/lms-sub000/services/logger"
	"github.com/casbytes/lms-sub000/storage/database"
	sqlxrepos "github.com/casbytes/lms-sub000/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger("ADMIN", conf)
	defer logger.Sync()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer db.Close()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)

	// start CLI
	usrRepo := sqlxrepos.NewUserRepository(db)
	cli := commandLine{
		db:         db,
		usrRepo:    usrRepo,
		usrSvc:     user.NewService(usrRepo, emailsvc.NewConsoleService(conf, logger), conf),
		catalogSvc: catalog.NewService(sqlxrepos.NewCatalogRepository(db), validate),
		out:        os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		logger.Sync()
		os.Exit(1)
	}
}
