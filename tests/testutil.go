// Package testutil builds started QuizMaster apps over in-memory stores for tests outside
// the data layer packages.
package testutil

import (
	"context"
	"testing"

	quizmaster "github.com/mistrzwujo098/quiz-sub001"
	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/adapter"
	"github.com/mistrzwujo098/quiz-sub001/core/quiz"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
	logsvc "github.com/mistrzwujo098/quiz-sub001/services/logger"
	"github.com/mistrzwujo098/quiz-sub001/storage/local"
	"github.com/mistrzwujo098/quiz-sub001/storage/remote"
)

const SeedVersion = "2.0"

func Config() *core.Config {
	conf := &core.Config{TestMode: true}
	conf.Seed.Version = SeedVersion
	return conf
}

// KeepOpen wraps kv so that closing an app leaves it usable by the next one.
func KeepOpen(kv local.KV) local.KV {
	return keepOpenKV{kv}
}

type keepOpenKV struct{ local.KV }

func (keepOpenKV) Close() error { return nil }

// NewApp starts an app over kv, without a remote store and seeded from the fallback
// dataset on first use. A nil kv gets a fresh in-memory one closed on cleanup.
func NewApp(t testing.TB, kv local.KV, opts ...quizmaster.Option) *quizmaster.App {
	t.Helper()
	app, err := OpenApp(kv, opts...)
	if err != nil {
		t.Fatalf("OpenApp() failed: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func OpenApp(kv local.KV, opts ...quizmaster.Option) (*quizmaster.App, error) {
	if kv == nil {
		kv = local.NewMemoryKV()
	}
	opts = append([]quizmaster.Option{quizmaster.WithKV(kv), quizmaster.WithoutRemote(), quizmaster.Offline()}, opts...)
	app, err := quizmaster.New(Config(), logsvc.NewDiscardLogger(), opts...)
	if err != nil {
		return nil, err
	}
	if _, err = app.Start(context.Background()); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func CreateUser(t testing.TB, app *quizmaster.App, uname, role, pwd string) *user.User {
	t.Helper()
	usr, err := app.Adapter.CreateUser(context.Background(), &user.NewUser{
		Username:    uname,
		Password:    pwd,
		Role:        role,
		DisplayName: "Test " + role,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateQuiz(t testing.TB, app *quizmaster.App, title, subject, createdBy string) *quiz.Quiz {
	t.Helper()
	q, err := app.Adapter.CreateQuiz(context.Background(), &quiz.NewQuiz{
		Title:     title,
		Subject:   subject,
		CreatedBy: createdBy,
	})
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return q
}

func Logger(testing.TB) core.Logger {
	return logsvc.NewDiscardLogger()
}

// NewLocalStore returns a local store over a fresh in-memory KV holding empty collections.
func NewLocalStore(t testing.TB) *local.Store {
	t.Helper()
	store := local.NewStore(local.NewMemoryKV(), Logger(t))
	if err := store.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// NewAdapter returns a data adapter with its mode decided. A nil client settles on local.
func NewAdapter(t testing.TB, client remote.Client) *adapter.Adapter {
	t.Helper()
	a := adapter.New(adapter.Deps{
		Local:  NewLocalStore(t),
		Remote: client,
		Logger: Logger(t),
	})
	if _, err := a.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}
