package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	quizmaster "github.com/mistrzwujo098/quiz-sub001"
	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/adapter"
	"github.com/mistrzwujo098/quiz-sub001/core/password"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
)

var errUnknownUser = errors.New("no such user")

func (cli *commandLine) resetPassword(app *quizmaster.App, uname, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	users, err := app.Adapter.ListUsers(ctx, core.Filters{"username": uname})
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return errors.Wrapf(errUnknownUser, "%q", uname)
	}
	usr := users[0]

	// the new password goes through the same policy as on registration
	check := user.NewUser{
		Username:    usr.Username,
		Password:    pwd,
		Role:        usr.Role,
		DisplayName: usr.DisplayName,
		Email:       usr.Email,
	}
	validate, translator := adapter.NewValidator()
	if err = check.Validate(validate, translator); err != nil {
		return err
	}

	usr.PasswordHash = password.Hash(pwd)
	if _, err = app.Adapter.UpdateUser(ctx, &usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %q reset\n", usr.Username)
	return nil
}

func (cli *commandLine) hash(pwd string) {
	fmt.Fprintln(cli.out, password.Hash(pwd))
}
