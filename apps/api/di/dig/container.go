package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	quizmaster "github.com/mistrzwujo098/quiz-sub001"
	echoapi "github.com/mistrzwujo098/quiz-sub001/apps/api/echo"
	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/adapter"
	"github.com/mistrzwujo098/quiz-sub001/core/bootstrap"
	"github.com/mistrzwujo098/quiz-sub001/services/contentgen"
	logsvc "github.com/mistrzwujo098/quiz-sub001/services/logger"
)

type StoreLoggerParam struct {
	dig.In
	Logger core.Logger `name:"storeLogger"`
}

type validation struct {
	dig.Out
	Validate   *validator.Validate
	Translator ut.Translator
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStoreLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "STORE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newApp opens the stores and runs the startup sequence: defaults, bootstrap, mode probe.
func newApp(conf *core.Config, loggerParam StoreLoggerParam) *quizmaster.App {
	logger := loggerParam.Logger
	app, err := quizmaster.New(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up data layer: %v", err), err)
	}
	if _, err = app.Start(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("starting data layer: %v", err), err)
	}
	return app
}

func newHealth(app *quizmaster.App) echoapi.Health {
	return app.Adapter
}

func newValidation() validation {
	validate, translator := adapter.NewValidator()
	return validation{Validate: validate, Translator: translator}
}

func newSeedSource(conf *core.Config) echoapi.SeedSource {
	if path := conf.Seed.DataFile; path != "" {
		return func() (*bootstrap.Dataset, error) { return bootstrap.LoadDataset(path) }
	}
	return bootstrap.DefaultDataset
}

func newServerDeps(
	conf *core.Config,
	logger core.Logger,
	seed echoapi.SeedSource,
	content contentgen.Service,
	health echoapi.Health,
	validate *validator.Validate,
	translator ut.Translator,
) echoapi.Deps {
	return echoapi.Deps{
		Conf:       conf,
		Logger:     logger,
		Seed:       seed,
		Content:    content,
		Health:     health,
		Validate:   validate,
		Translator: translator,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStoreLogger, dig.Name("storeLogger")))
	must(c.Provide(newApp))
	must(c.Provide(newHealth))
	must(c.Provide(newValidation))
	must(c.Provide(newSeedSource))
	must(c.Provide(contentgen.NewService))
	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
