package main

import (
	"context"
	"fmt"

	quizmaster "github.com/mistrzwujo098/quiz-sub001"
	"github.com/mistrzwujo098/quiz-sub001/core"
)

func (cli *commandLine) status(app *quizmaster.App) error {
	ctx := context.Background()
	fmt.Fprintf(cli.out, "mode: %s\n", app.Adapter.Mode())

	remote := "not configured"
	if app.Remote != nil {
		remote = "reachable"
		if err := app.Adapter.Ping(ctx); err != nil {
			remote = "unreachable"
		}
	}
	fmt.Fprintf(cli.out, "remote: %s\n", remote)

	version, ok, err := app.Local.InitVersion()
	if err != nil {
		return err
	}
	if !ok {
		version = "none"
	}
	fmt.Fprintf(cli.out, "local init version: %s\n", version)

	users, err := app.Adapter.ListUsers(ctx, core.Filters{})
	if err != nil {
		return err
	}
	quizzes, err := app.Adapter.ListQuizzes(ctx, core.Filters{})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "users: %d\nquizzes: %d\n", len(users), len(quizzes))
	return nil
}

func (cli *commandLine) reinit(app *quizmaster.App) error {
	res, err := app.Initializer.ForceReinitialize(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "local store reinitialized from %s data (version %s): %d users, %d quizzes\n",
		res.Source, res.Version, res.Users, res.Quizzes)
	return nil
}
