package adapter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/session"
	logsvc "github.com/mistrzwujo098/quiz-sub001/services/logger"
	"github.com/mistrzwujo098/quiz-sub001/storage/local"
	"github.com/mistrzwujo098/quiz-sub001/storage/remote"
)

func init() {
	remote.BcryptCost = bcrypt.MinCost
}

var errConn = remote.NewError(remote.CodeConnection, "connection refused", nil)

type fixture struct {
	store    *local.Store
	client   *remote.MemoryClient
	sessions session.Store
	adapter  *Adapter
}

// newFixture builds an adapter over an in-memory local store. withRemote attaches an
// in-memory remote client; the mode is left undecided.
func newFixture(t *testing.T, withRemote bool) *fixture {
	t.Helper()
	f := &fixture{
		store:    local.NewStore(local.NewMemoryKV(), logsvc.NewDiscardLogger()),
		sessions: session.NewMemoryStore(),
	}
	require.NoError(t, f.store.EnsureDefaults())
	deps := Deps{
		Local:        f.store,
		Sessions:     f.sessions,
		Logger:       logsvc.NewDiscardLogger(),
		ProbeTimeout: time.Second,
	}
	if withRemote {
		f.client = remote.NewMemoryClient([]byte("test-secret"))
		deps.Remote = f.client
	}
	f.adapter = New(deps)
	t.Cleanup(f.adapter.Close)
	return f
}

// initialized is newFixture followed by a successful Initialize.
func initialized(t *testing.T, withRemote bool) *fixture {
	t.Helper()
	f := newFixture(t, withRemote)
	_, err := f.adapter.Initialize(context.Background())
	require.NoError(t, err)
	return f
}

func TestAdapter_Initialize(t *testing.T) {
	tests := []struct {
		name       string
		withRemote bool
		setup      func(c *remote.MemoryClient)
		want       core.Mode
	}{
		{name: "not configured", withRemote: false, want: core.ModeLocal},
		{name: "empty users table", withRemote: true, want: core.ModeRemote},
		{
			name:       "one user",
			withRemote: true,
			setup: func(c *remote.MemoryClient) {
				_, err := c.Insert(context.Background(), remote.TableUsers, remote.Row{"username": "anna"})
				require.NoError(t, err)
			},
			want: core.ModeRemote,
		},
		{
			name:       "unreachable",
			withRemote: true,
			setup:      func(c *remote.MemoryClient) { c.SetFailure(errConn) },
			want:       core.ModeLocal,
		},
		{
			name:       "missing schema",
			withRemote: true,
			setup:      func(c *remote.MemoryClient) { c.DropTable(remote.TableUsers) },
			want:       core.ModeLocal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.withRemote)
			if tt.setup != nil {
				tt.setup(f.client)
			}
			assert.Equal(t, core.ModeUndecided, f.adapter.Mode())

			mode, err := f.adapter.Initialize(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
			assert.Equal(t, tt.want, f.adapter.Mode())

			select {
			case <-f.adapter.Ready():
			default:
				t.Fatal("Ready() must be closed once a mode is decided")
			}
		})
	}
}

func TestAdapter_Initialize_singleProbe(t *testing.T) {
	f := newFixture(t, true)

	var wg sync.WaitGroup
	modes := make([]core.Mode, 20)
	for i := range modes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mode, err := f.adapter.Initialize(context.Background())
			assert.NoError(t, err)
			modes[i] = mode
		}(i)
	}
	wg.Wait()

	for _, mode := range modes {
		assert.Equal(t, core.ModeRemote, mode)
	}
	assert.Equal(t, 1, f.client.Calls(), "concurrent callers must share one probe")

	// later callers reuse the decision
	mode, err := f.adapter.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.ModeRemote, mode)
	assert.Equal(t, 1, f.client.Calls())
}

func TestAdapter_Initialize_canceled(t *testing.T) {
	f := newFixture(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.adapter.Initialize(ctx)
	// the caller may observe the cancellation or the already completed probe
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	<-f.adapter.Ready()
	assert.Equal(t, core.ModeRemote, f.adapter.Mode(), "the probe must not inherit the caller context")
}

func TestAdapter_modeStability(t *testing.T) {
	f := initialized(t, true)
	require.Equal(t, core.ModeRemote, f.adapter.Mode())

	f.client.FailNext(1, errConn)
	_, err := f.adapter.ListQuizzes(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.Unavailable), "got %v", err)
	assert.Equal(t, core.ModeRemote, f.adapter.Mode(), "a failed operation must not switch modes")

	quizzes, err := f.adapter.ListQuizzes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, quizzes)
}

func TestAdapter_Reprobe(t *testing.T) {
	f := newFixture(t, true)
	f.client.SetFailure(errConn)
	mode, err := f.adapter.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.ModeLocal, mode)

	f.client.ClearFailure()
	mode, err = f.adapter.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.ModeLocal, mode, "Initialize must not reprobe")

	mode, err = f.adapter.Reprobe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.ModeRemote, mode)
	assert.Equal(t, core.ModeRemote, f.adapter.Mode())
}

// gatedClient holds the first users lookup until gate closes, then fails it.
type gatedClient struct {
	remote.Client
	once    sync.Once
	entered chan struct{}
	gate    chan struct{}
}

func (c *gatedClient) Single(ctx context.Context, table string, eq remote.Eq, opts ...remote.SelectOption) (remote.Row, error) {
	first := false
	c.once.Do(func() { first = true })
	if first {
		close(c.entered)
		<-c.gate
		return nil, errConn
	}
	return c.Client.Single(ctx, table, eq, opts...)
}

func TestAdapter_Reprobe_duringInitialize(t *testing.T) {
	client := &gatedClient{
		Client:  remote.NewMemoryClient([]byte("test-secret")),
		entered: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	store := local.NewStore(local.NewMemoryKV(), logsvc.NewDiscardLogger())
	require.NoError(t, store.EnsureDefaults())
	a := New(Deps{
		Local:        store,
		Remote:       client,
		Sessions:     session.NewMemoryStore(),
		Logger:       logsvc.NewDiscardLogger(),
		ProbeTimeout: time.Second,
	})
	t.Cleanup(a.Close)

	var initMode core.Mode
	done := make(chan struct{})
	go func() {
		defer close(done)
		initMode, _ = a.Initialize(context.Background())
	}()
	<-client.entered

	mode, err := a.Reprobe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.ModeRemote, mode, "Reprobe must run its own check")

	close(client.gate)
	<-done
	assert.Equal(t, core.ModeRemote, initMode, "a stale outcome must not win")
	assert.Equal(t, core.ModeRemote, a.Mode())
}

func TestAdapter_Ping(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := initialized(t, false)
		err := f.adapter.Ping(context.Background())
		assert.True(t, core.IsKind(err, core.Unavailable))
	})

	t.Run("remote", func(t *testing.T) {
		f := initialized(t, true)
		assert.NoError(t, f.adapter.Ping(context.Background()))

		f.client.SetFailure(errConn)
		err := f.adapter.Ping(context.Background())
		assert.True(t, core.IsKind(err, core.Unavailable))
		assert.Equal(t, core.ModeRemote, f.adapter.Mode(), "Ping must not change the mode")
	})
}

func TestAdapter_undecidedUsesLocal(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.adapter.CreateQuiz(context.Background(), newQuiz("T1", "math", "u1"))
	require.NoError(t, err)

	quizzes, err := f.store.Quizzes()
	require.NoError(t, err)
	assert.Len(t, quizzes, 1)
	assert.Empty(t, f.client.Rows(remote.TableQuizzes))
}
