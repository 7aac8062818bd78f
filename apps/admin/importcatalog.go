package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/casbytes/lms-sub000/core/catalog"
)

func (cli *commandLine) importCatalog(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening catalog")
	}
	defer file.Close()

	cat, err := catalog.DecodeYAML(file)
	if err != nil {
		return err
	}
	courses, modules, err := cli.catalogSvc.Import(context.Background(), cat)
	fmt.Fprintf(cli.out, "imported %d course(s) and %d standalone module(s)\n", courses, modules)
	return err
}
