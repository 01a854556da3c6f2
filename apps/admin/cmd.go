package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("migrations need the postgres database engine")
)

type commandLine struct {
	conf     *core.Config
	db       *sql.DB // nil with the inmem engine
	usrSvc   *user.Service
	adminSvc *admin.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) against the database")
	fmt.Println("  adduser -email EMAIL [-subadmin] - create a user or set their password; the password will be prompted")
	fmt.Println("  resetpassword -email EMAIL - reset user's password")
	fmt.Println("  subadmin -add EMAIL | -remove EMAIL | -list - manage sub-admins as the main admin")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserSubAdmin := addUserCmd.Bool("subadmin", false, "Grant the sub-admin role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	subAdminCmd := flag.NewFlagSet("subadmin", flag.ContinueOnError)
	subAdminAdd := subAdminCmd.String("add", "", "Email of the user to promote.")
	subAdminRemove := subAdminCmd.String("remove", "", "Email of the user to demote.")
	subAdminList := subAdminCmd.Bool("list", false, "List the sub-admins.")

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
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserEmail, pwd, *addUserSubAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "subadmin":
		if err := subAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		switch {
		case *subAdminAdd != "":
			return cli.addSubAdmin(*subAdminAdd)
		case *subAdminRemove != "":
			return cli.removeSubAdmin(*subAdminRemove)
		case *subAdminList:
			return cli.listSubAdmins()
		}
		subAdminCmd.Usage()
		return errHelp

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
