package database

import (
	"embed"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/mistrzwujo098/quiz-sub001/core"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrations embed.FS

// Open returns a pool over the remote database named by conf.Remote.URL (a postgres DSN).
// It does not connect.
func Open(conf *core.Config) (*sqlx.DB, error) {
	if conf.Remote.URL == "" {
		return nil, errors.New("remote URL is not configured")
	}
	db, err := sqlx.Open("postgres", conf.Remote.URL)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if conf.Remote.MaxOpenConns > 0 {
		db.SetMaxOpenConns(conf.Remote.MaxOpenConns)
		db.SetMaxIdleConns(conf.Remote.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// WaitReady waits for the database to be ready. Waits 100ms longer between each attempt.
func WaitReady(db *sqlx.DB, maxAttempts int) error {
	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func prepareGoose() error {
	goose.SetBaseFS(migrations)
	return goose.SetDialect("postgres")
}

// Migrate applies every pending schema migration.
func Migrate(db *sqlx.DB) error {
	if err := prepareGoose(); err != nil {
		return errors.Wrap(err, "preparing migrations")
	}
	if err := goose.Up(db.DB, migrationsDir); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// MigrationStatus prints the state of every migration through goose's logger.
func MigrationStatus(db *sqlx.DB) error {
	if err := prepareGoose(); err != nil {
		return errors.Wrap(err, "preparing migrations")
	}
	if err := goose.Status(db.DB, migrationsDir); err != nil {
		return errors.Wrap(err, "reading migration status")
	}
	return nil
}

// Migrations lists the embedded migration files in apply order.
func Migrations() ([]string, error) {
	entries, err := migrations.ReadDir(migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "reading migrations")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
