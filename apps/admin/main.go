package main

import (
	"context"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	quizmaster "github.com/mistrzwujo098/quiz-sub001"
	"github.com/mistrzwujo098/quiz-sub001/core"
	logsvc "github.com/mistrzwujo098/quiz-sub001/services/logger"
	"github.com/mistrzwujo098/quiz-sub001/storage/database"
)

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	cli := commandLine{
		out: os.Stdout,
		openApp: func() (*quizmaster.App, error) {
			app, err := quizmaster.New(conf, logger)
			if err != nil {
				return nil, err
			}
			if _, err = app.Start(context.Background()); err != nil {
				_ = app.Close()
				return nil, err
			}
			return app, nil
		},
		openDB: func() (*sqlx.DB, error) {
			db, err := database.Open(conf)
			if err != nil {
				return nil, err
			}
			if err = database.WaitReady(db, 5); err != nil {
				_ = db.Close()
				return nil, err
			}
			return db, nil
		},
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
