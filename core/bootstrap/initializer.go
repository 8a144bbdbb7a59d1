// Package bootstrap guarantees that the local store holds a seeded dataset before any
// data is read: either one left by a previous run or one installed exactly once from the
// seed endpoint or, failing that, from the embedded fallback dataset.
package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/quiz"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
	"github.com/mistrzwujo098/quiz-sub001/storage/local"
)

type Source string

// Sources
const (
	SourceAlready  Source = "already"
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

const flightKey = "bootstrap"

var errOffline = errors.New("no seed source configured")

var nowFunc = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) } // mockable

// Result reports the outcome of a bootstrap pass.
type Result struct {
	Source  Source
	Version string
	Users   int
	Quizzes int
}

type Deps struct {
	Store   *local.Store
	Fetcher Fetcher // nil: offline, install the fallback dataset
	Logger  core.Logger
	Version string
}

type Initializer struct {
	store   *local.Store
	fetcher Fetcher
	logger  core.Logger
	version string

	group singleflight.Group
	mu    sync.Mutex // one pass at a time, forced or not
}

func New(deps Deps) *Initializer {
	return &Initializer{
		store:   deps.Store,
		fetcher: deps.Fetcher,
		logger:  deps.Logger,
		version: deps.Version,
	}
}

func (in *Initializer) Version() string { return in.version }

// Initialize seeds the local store unless the Initialization Marker already holds the
// expected version. Concurrent callers share one pass. Abandoning ctx does not stop it.
func (in *Initializer) Initialize(ctx context.Context) (Result, error) {
	ch := in.group.DoChan(flightKey, func() (interface{}, error) {
		return in.run(context.WithoutCancel(ctx), false)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// ForceReinitialize clears the marker and seeds again, overwriting users and quizzes
// wholesale.
func (in *Initializer) ForceReinitialize(ctx context.Context) (Result, error) {
	return in.run(ctx, true)
}

func (in *Initializer) run(ctx context.Context, force bool) (Result, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if force {
		if err := in.store.ClearInitVersion(); err != nil {
			return Result{}, err
		}
	} else {
		res, done, err := in.already()
		if err != nil || done {
			return res, err
		}
	}

	src := SourceRemote
	users, quizzes, err := in.fetch(ctx)
	if err != nil {
		in.logger.Warn("seed data unavailable, installing fallback dataset", err)
		src = SourceFallback
		if users, quizzes, err = fallbackRecords(); err != nil {
			return Result{}, err
		}
	}
	if err = in.install(users, quizzes); err != nil {
		in.logger.Error("bootstrap failed, local store is not seeded", err)
		return Result{}, err
	}
	in.logger.Info("local store seeded from " + string(src))
	return Result{Source: src, Version: in.version, Users: len(users), Quizzes: len(quizzes)}, nil
}

func (in *Initializer) already() (Result, bool, error) {
	ver, ok, err := in.store.InitVersion()
	if err != nil {
		return Result{}, false, err
	}
	if !ok || ver != in.version {
		return Result{}, false, nil
	}
	users, err := in.store.Users()
	if err != nil {
		return Result{}, false, err
	}
	quizzes, err := in.store.Quizzes()
	if err != nil {
		return Result{}, false, err
	}
	return Result{Source: SourceAlready, Version: ver, Users: len(users), Quizzes: len(quizzes)}, true, nil
}

// fetch returns the records of the fetched dataset. A dataset that does not convert
// into valid records counts as a failed fetch.
func (in *Initializer) fetch(ctx context.Context) ([]user.User, []quiz.Quiz, error) {
	if in.fetcher == nil {
		return nil, nil, errOffline
	}
	ds, err := in.fetcher.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ds.Records(nowFunc())
}

func fallbackRecords() ([]user.User, []quiz.Quiz, error) {
	ds, err := FallbackDataset()
	if err != nil {
		return nil, nil, err
	}
	return ds.Records(nowFunc())
}

// install overwrites both collections, then sets the marker.
func (in *Initializer) install(users []user.User, quizzes []quiz.Quiz) error {
	if err := in.store.ReplaceAll(users, quizzes); err != nil {
		return err
	}
	return in.store.SetInitVersion(in.version)
}
