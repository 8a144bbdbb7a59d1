package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	quizmaster "github.com/mistrzwujo098/quiz-sub001"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	out     io.Writer
	openApp func() (*quizmaster.App, error)
	openDB  func() (*sqlx.DB, error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  status - show the operating mode and the local store state")
	fmt.Fprintln(cli.out, "  reinit - replace the local store with a fresh bootstrap dataset")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -role ROLE -name NAME [-email EMAIL] [-class CLASS] - create a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME - reset a user's password")
	fmt.Fprintln(cli.out, "  hash - print the digest of a password, as stored in seed files")
	fmt.Fprintln(cli.out, "  migrate up|status - manage the remote store schema")
	fmt.Fprintln(cli.out, "  migrate-users [-to remote|local] - copy missing user profiles between the stores")
}

// withApp opens the data layer for the duration of fn.
func (cli *commandLine) withApp(fn func(app *quizmaster.App) error) error {
	app, err := cli.openApp()
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
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
	addUserCmd.SetOutput(cli.out)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", user.RoleStudent, "One of teacher, student, parent.")
	addUserName := addUserCmd.String("name", "", "The name displayed for the user.")
	addUserEmail := addUserCmd.String("email", "", "Optional email address.")
	addUserClass := addUserCmd.String("class", "", "Optional class, for students.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username. The password will be prompted next.")

	migrateUsersCmd := flag.NewFlagSet("migrate-users", flag.ContinueOnError)
	migrateUsersCmd.SetOutput(cli.out)
	migrateUsersTo := migrateUsersCmd.String("to", "remote", "The store receiving the users: remote or local.")

	switch args[1] {
	case "status":
		return cli.withApp(cli.status)
	case "reinit":
		return cli.withApp(cli.reinit)
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		nu := user.NewUser{
			Username:    *addUserUname,
			Password:    pwd,
			Role:        *addUserRole,
			DisplayName: *addUserName,
			Email:       *addUserEmail,
			Class:       *addUserClass,
		}
		return cli.withApp(func(app *quizmaster.App) error { return cli.addUser(app, &nu) })
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.withApp(func(app *quizmaster.App) error {
			return cli.resetPassword(app, *resetPasswordUname, pwd)
		})
	case "hash":
		pwd, err := cli.promptPassword(cli.printUsage)
		if err != nil {
			return err
		}
		cli.hash(pwd)
		return nil
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "migrate-users":
		if err := migrateUsersCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *migrateUsersTo != "remote" && *migrateUsersTo != "local" {
			migrateUsersCmd.Usage()
			return errHelp
		}
		return cli.withApp(func(app *quizmaster.App) error { return cli.migrateUsers(app, *migrateUsersTo) })
	default:
		cli.printUsage()
		return errHelp
	}
}
