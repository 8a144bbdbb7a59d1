package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mistrzwujo098/quiz-sub001/storage/database"
)

var (
	// mockable
	migrateUpFunc     = database.Migrate
	migrateStatusFunc = database.MigrationStatus
)

func (cli *commandLine) migrate(args []string) error {
	var run func(*sqlx.DB) error
	switch args[0] {
	case "up":
		run = migrateUpFunc
	case "status":
		run = migrateStatusFunc
	default:
		return fmt.Errorf("%q: no such command", args[0])
	}

	db, err := cli.openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	return run(db)
}
