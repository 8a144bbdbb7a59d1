package main

import (
	"context"
	"fmt"

	quizmaster "github.com/mistrzwujo098/quiz-sub001"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
)

// addUser creates a user in the store serving the current mode.
func (cli *commandLine) addUser(app *quizmaster.App, nu *user.NewUser) error {
	usr, err := app.Adapter.CreateUser(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s %q (%s) in %s storage\n", usr.Role, usr.Username, usr.ID, app.Adapter.Mode())
	return nil
}
