package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/casbytes/lms-sub000/core/catalog"
	"github.com/casbytes/lms-sub000/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sqlx.DB
	usrRepo    user.Repository
	usrSvc     user.Service
	catalogSvc *catalog.Service
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, fix)")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] [-admin] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  importcatalog -file FILE - import the courses and standalone modules of a YAML catalog")
	fmt.Fprintln(cli.out, "  subscribe -username USERNAME|EMAIL [-off] - grant or revoke premium access")
}

func (cli *commandLine) promptPassword(usage func()) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name. Defaults to the username.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every admin role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	importCatalogCmd := flag.NewFlagSet("importcatalog", flag.ContinueOnError)
	importCatalogFile := importCatalogCmd.String("file", "", "Path to the YAML catalog.")

	subscribeCmd := flag.NewFlagSet("subscribe", flag.ContinueOnError)
	subscribeUname := subscribeCmd.String("username", "", "The user's username or email.")
	subscribeOff := subscribeCmd.Bool("off", false, "Revoke the subscription instead.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, importCatalogCmd, subscribeCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "importcatalog":
		if err := importCatalogCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importCatalogFile == "" {
			importCatalogCmd.Usage()
			return errHelp
		}
		return cli.importCatalog(*importCatalogFile)

	case "subscribe":
		if err := subscribeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *subscribeUname == "" {
			subscribeCmd.Usage()
			return errHelp
		}
		return cli.subscribe(*subscribeUname, !*subscribeOff)

	default:
		cli.printUsage()
		return errHelp
	}
}
