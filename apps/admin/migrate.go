package main

import (
	"errors"

	"github.com/casbytes/lms-sub000/storage/database"
)

var (
	runMigrationFunc = database.RunMigration // mockable

	errNoDatabase = errors.New("migrations need a postgres database")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return runMigrationFunc(cli.db, args[0], args[1:]...)
}
