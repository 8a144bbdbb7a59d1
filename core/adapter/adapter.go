// Package adapter is the Mode Selector / Data Adapter: one data-access API for
// authentication and entity CRUD, routed to the local or the remote store according to
// an operating mode probed once at startup.
package adapter

import (
	"context"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/quiz"
	"github.com/mistrzwujo098/quiz-sub001/core/session"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
	"github.com/mistrzwujo098/quiz-sub001/storage/local"
	"github.com/mistrzwujo098/quiz-sub001/storage/remote"
)

const (
	probeKey            = "probe"
	reprobeKey          = "reprobe"
	defaultProbeTimeout = 3 * time.Second
)

var (
	// mockable
	nowFunc = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	newID   = func() string { return uuid.New().String() }
)

type Deps struct {
	Local    *local.Store
	Remote   remote.Client // nil when the remote store is not configured
	Sessions session.Store
	Logger   core.Logger

	// optional
	Validate     *validator.Validate
	Translator   ut.Translator
	ProbeTimeout time.Duration
}

type Adapter struct {
	local    *localBackend
	remote   *remoteBackend
	client   remote.Client
	sessions session.Store
	logger   core.Logger

	validate   *validator.Validate
	translator ut.Translator

	probeTimeout time.Duration
	group        singleflight.Group

	mu        sync.RWMutex
	mode      core.Mode
	probes    int // probes started, newer outcomes win
	ready     chan struct{}
	readyOnce sync.Once

	unsubscribe func()
}

func New(deps Deps) *Adapter {
	a := &Adapter{
		local:        newLocalBackend(deps.Local),
		client:       deps.Remote,
		sessions:     deps.Sessions,
		logger:       deps.Logger,
		validate:     deps.Validate,
		translator:   deps.Translator,
		probeTimeout: deps.ProbeTimeout,
		ready:        make(chan struct{}),
	}
	if a.sessions == nil {
		a.sessions = session.NewMemoryStore()
	}
	if a.probeTimeout <= 0 {
		a.probeTimeout = defaultProbeTimeout
	}
	if a.validate == nil {
		a.validate, a.translator = NewValidator()
	}
	if a.client != nil {
		a.remote = &remoteBackend{client: a.client}
		a.unsubscribe = a.client.Auth().OnAuthStateChange(a.onAuthStateChange)
	}
	return a
}

// NewValidator returns a validator with every QuizMaster tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	return validate, translator
}

// Close detaches the adapter from the remote auth events. It does not close the stores.
func (a *Adapter) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// onAuthStateChange drops the session when the remote side signs out (token expiry or
// revocation) while the adapter runs in remote mode.
func (a *Adapter) onAuthStateChange(event remote.AuthEvent, _ *remote.AuthSession) {
	if event == remote.SignedOut && a.Mode() == core.ModeRemote {
		a.sessions.Clear()
	}
}

// ========================================
// mode selection

func (a *Adapter) Mode() core.Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// Ready is closed once a mode has been decided.
func (a *Adapter) Ready() <-chan struct{} {
	return a.ready
}

// Initialize decides the operating mode. The first call probes the remote store;
// concurrent callers share that probe and later callers get the decided mode. The
// probe is bounded by the probe timeout and keeps running if ctx is abandoned.
func (a *Adapter) Initialize(ctx context.Context) (core.Mode, error) {
	if mode := a.Mode(); mode != core.ModeUndecided {
		return mode, nil
	}
	return a.decide(ctx, false)
}

// Reprobe forces a new probe and switches to its outcome.
func (a *Adapter) Reprobe(ctx context.Context) (core.Mode, error) {
	return a.decide(ctx, true)
}

// decide runs a probe flight. Forced probes fly apart from unforced ones so a Reprobe never
// settles for the outcome of a probe started before it.
func (a *Adapter) decide(ctx context.Context, force bool) (core.Mode, error) {
	key := probeKey
	if force {
		key = reprobeKey
	}
	ch := a.group.DoChan(key, func() (interface{}, error) {
		// a probe may have completed between the caller's check and this flight
		if mode := a.Mode(); !force && mode != core.ModeUndecided {
			return mode, nil
		}
		seq := a.startProbe()
		return a.setMode(a.probe(), seq), nil
	})
	select {
	case res := <-ch:
		return res.Val.(core.Mode), nil
	case <-ctx.Done():
		return a.Mode(), ctx.Err()
	}
}

func (a *Adapter) startProbe() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.probes++
	return a.probes
}

// setMode records the outcome of probe seq unless a later probe has started, and returns
// the mode in effect.
func (a *Adapter) setMode(mode core.Mode, seq int) core.Mode {
	a.mu.Lock()
	prev := a.mode
	if seq == a.probes || prev == core.ModeUndecided {
		a.mode = mode
	}
	curr := a.mode
	a.mu.Unlock()

	a.readyOnce.Do(func() { close(a.ready) })
	if prev != curr {
		a.logger.Info("data adapter mode: " + curr.String())
	}
	return curr
}

// probe picks remote when the remote store answers a one-row query against users with
// a row or the empty-result error, local otherwise.
func (a *Adapter) probe() core.Mode {
	if a.client == nil {
		a.logger.Info("remote store not configured, using local storage")
		return core.ModeLocal
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.probeTimeout)
	defer cancel()
	if err := a.ping(ctx); err != nil {
		a.logger.Warn("remote store probe failed, using local storage", err)
		return core.ModeLocal
	}
	return core.ModeRemote
}

func (a *Adapter) ping(ctx context.Context) error {
	if a.client == nil {
		return errNotConfigured
	}
	_, err := a.client.Single(ctx, remote.TableUsers, nil, remote.Columns("id"), remote.Limit(1))
	if err == nil || remote.IsNoRows(err) {
		return nil
	}
	return err
}

// Ping checks remote reachability without affecting the mode.
func (a *Adapter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()
	if err := a.ping(ctx); err != nil {
		return core.NewStoreError(core.Unavailable, "ping", err)
	}
	return nil
}

// backend returns the store serving the current mode; local until a mode is decided.
func (a *Adapter) backend() backend {
	if a.Mode() == core.ModeRemote && a.remote != nil {
		return a.remote
	}
	return a.local
}

// ========================================
// helpers

func newSession(usr *user.User, id, token string) session.Session {
	return session.Session{
		ID:          id,
		UserID:      usr.ID,
		Username:    usr.Username,
		Role:        usr.Role,
		DisplayName: usr.DisplayName,
		LoginTime:   nowFunc(),
		AccessToken: token,
	}
}

func (a *Adapter) validatePayload(v interface {
	Validate(*validator.Validate, ut.Translator) error
}) error {
	if err := v.Validate(a.validate, a.translator); err != nil {
		if core.IsValidationError(err) {
			return err
		}
		return errors.Wrap(err, "validating payload")
	}
	return nil
}
