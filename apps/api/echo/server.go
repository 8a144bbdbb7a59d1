package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/bootstrap"
	"github.com/mistrzwujo098/quiz-sub001/services/contentgen"
)

type (
	// SeedSource returns the dataset served by the default-data endpoint.
	SeedSource func() (*bootstrap.Dataset, error)

	// Health reports the data adapter state; *adapter.Adapter satisfies it.
	Health interface {
		Mode() core.Mode
		Ping(ctx context.Context) error
	}

	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Seed       SeedSource
		Content    contentgen.Service
		Health     Health
		Validate   *validator.Validate
		Translator ut.Translator

		DisableReqLogs bool
	}

	Server struct {
		app      *echo.Echo
		addr     string
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps Deps) *Server {
	s := &Server{
		app:      echo.New(),
		addr:     deps.Conf.Server.Host,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps Deps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug

	h := &handlers{
		conf:       conf,
		seed:       deps.Seed,
		content:    deps.Content,
		health:     deps.Health,
		validate:   deps.Validate,
		translator: deps.Translator,
	}
	s.app.GET("/", home)
	s.app.GET("/health", h.healthCheck)

	api := s.app.Group("/api")
	api.GET("/default-data", h.defaultData)
	api.POST("/generate", h.generate)
}

func (s *Server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to QuizMaster API!")
}
