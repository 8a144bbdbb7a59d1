// Package quizmaster composes the data layer: the local store, the remote store client
// when one is configured, the mode-selecting data adapter and the bootstrap initializer.
package quizmaster

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/adapter"
	"github.com/mistrzwujo098/quiz-sub001/core/bootstrap"
	"github.com/mistrzwujo098/quiz-sub001/core/session"
	"github.com/mistrzwujo098/quiz-sub001/services/monitor"
	"github.com/mistrzwujo098/quiz-sub001/storage/database"
	"github.com/mistrzwujo098/quiz-sub001/storage/local"
	"github.com/mistrzwujo098/quiz-sub001/storage/remote"
	"github.com/mistrzwujo098/quiz-sub001/storage/remote/postgres"
)

type App struct {
	Local       *local.Store
	Remote      remote.Client // nil when not configured
	Adapter     *adapter.Adapter
	Initializer *bootstrap.Initializer
	Sessions    session.Store
	Monitor     *monitor.Monitor // nil without a remote store

	logger core.Logger
}

type options struct {
	kv       local.KV
	remote   remote.Client
	noRemote bool
	fetcher  bootstrap.Fetcher
	offline  bool
	sessions session.Store
}

type Option func(*options)

// WithKV replaces the sqlite file named by Local.Path.
func WithKV(kv local.KV) Option {
	return func(o *options) { o.kv = kv }
}

// WithRemote replaces the Postgres client built from Remote.URL.
func WithRemote(c remote.Client) Option {
	return func(o *options) { o.remote = c }
}

// WithoutRemote forces local mode whatever the configuration says.
func WithoutRemote() Option {
	return func(o *options) { o.noRemote = true }
}

// WithFetcher replaces the HTTP seed fetcher.
func WithFetcher(f bootstrap.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// Offline skips the seed endpoint; bootstrap installs the fallback dataset.
func Offline() Option {
	return func(o *options) { o.offline = true }
}

func WithSessions(s session.Store) Option {
	return func(o *options) { o.sessions = s }
}

func New(conf *core.Config, logger core.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kv := o.kv
	if kv == nil {
		var err error
		if kv, err = local.OpenSQLite(conf.Local.Path); err != nil {
			return nil, errors.Wrap(err, "opening local store")
		}
	}
	store := local.NewStore(kv, logger)

	client, err := newRemote(conf, o)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	sessions := o.sessions
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}

	fetcher := o.fetcher
	if fetcher == nil && !o.offline && conf.Seed.URL != "" {
		fetcher = bootstrap.NewHTTPFetcher(conf.Seed.URL, conf.Seed.Timeout)
	}

	app := &App{
		Local:    store,
		Remote:   client,
		Sessions: sessions,
		Initializer: bootstrap.New(bootstrap.Deps{
			Store:   store,
			Fetcher: fetcher,
			Logger:  logger,
			Version: conf.Seed.Version,
		}),
		logger: logger,
	}
	app.Adapter = adapter.New(adapter.Deps{
		Local:        store,
		Remote:       client,
		Sessions:     sessions,
		Logger:       logger,
		ProbeTimeout: conf.Remote.ProbeTimeout,
	})
	if client != nil && conf.Remote.HealthInterval > 0 {
		app.Monitor = monitor.New(app.Adapter, logger, conf.Remote.HealthInterval)
	}
	return app, nil
}

// newRemote returns nil when the remote store is not configured.
func newRemote(conf *core.Config, o options) (remote.Client, error) {
	switch {
	case o.noRemote:
		return nil, nil
	case o.remote != nil:
		return o.remote, nil
	case !conf.RemoteConfigured():
		return nil, nil
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening remote store")
	}
	return postgres.New(db, []byte(conf.Remote.Key), conf.Remote.TokenTTL), nil
}

// Start seeds the local store when needed, then decides the operating mode.
func (app *App) Start(ctx context.Context) (core.Mode, error) {
	if err := app.Local.EnsureDefaults(); err != nil {
		return core.ModeUndecided, err
	}
	if _, err := app.Initializer.Initialize(ctx); err != nil {
		return core.ModeUndecided, errors.Wrap(err, "bootstrapping local store")
	}
	mode, err := app.Adapter.Initialize(ctx)
	if err != nil {
		return mode, err
	}
	if app.Monitor != nil {
		if err = app.Monitor.Start(); err != nil {
			app.logger.Warn("remote health monitor not started", err)
		}
	}
	return mode, nil
}

func (app *App) Close() error {
	if app.Monitor != nil {
		app.Monitor.Stop()
	}
	app.Adapter.Close()
	var err error
	if app.Remote != nil {
		err = app.Remote.Close()
	}
	if lerr := app.Local.Close(); lerr != nil && err == nil {
		err = lerr
	}
	return err
}
