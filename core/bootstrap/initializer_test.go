package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistrzwujo098/quiz-sub001/core/user"
	logsvc "github.com/mistrzwujo098/quiz-sub001/services/logger"
	"github.com/mistrzwujo098/quiz-sub001/storage/local"
)

const version = "2.0"

// seedServer answers like the default-data endpoint with ds, or with status when it is
// not 200. It counts requests.
func seedServer(t *testing.T, status int, ds *Dataset, delay time.Duration) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(delay)
		if status != http.StatusOK {
			http.Error(w, "boom", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Envelope{Success: true, Data: ds})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func remoteDataset() *Dataset {
	return &Dataset{
		Users: []SeedUser{
			{ID: "t1", Username: "anowak", Password: "Matma-2024!", Role: user.RoleTeacher, FullName: "Anna Nowak"},
			{ID: "s1", Username: "jkowal", Password: "Uczen-2024!", Role: user.RoleStudent, Class: "3A"},
		},
		Quizzes: []SeedQuiz{{ID: "q1", Title: "T1", Subject: "math", CreatedBy: "anowak"}},
	}
}

func newInitializer(t *testing.T, url string) (*Initializer, *local.Store) {
	t.Helper()
	store := local.NewStore(local.NewMemoryKV(), logsvc.NewDiscardLogger())
	var fetcher Fetcher
	if url != "" {
		fetcher = NewHTTPFetcher(url, 2*time.Second)
	}
	return New(Deps{Store: store, Fetcher: fetcher, Logger: logsvc.NewDiscardLogger(), Version: version}), store
}

func hasTeacher(t *testing.T, store *local.Store) bool {
	users, err := store.Users()
	require.NoError(t, err)
	for _, u := range users {
		if u.IsTeacher() {
			return true
		}
	}
	return false
}

func TestInitializer_sources(t *testing.T) {
	okSrv, _ := seedServer(t, http.StatusOK, remoteDataset(), 0)
	failSrv, _ := seedServer(t, http.StatusInternalServerError, nil, 0)
	rejected := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Envelope{Success: false, Info: map[string]interface{}{"message": "maintenance"}})
	}))
	defer rejected.Close()
	withInfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"users":[` +
			`{"id":"teacher-1","username":"anowak","password":"Matma-2024!","role":"teacher","fullName":"Anna Nowak"},` +
			`{"id":"student-1","username":"jkowal","password":"Uczen-2024!","role":"student","fullName":"Jan Kowal","class":"3A"}],` +
			`"quizzes":[{"id":"quiz-1","title":"T1","subject":"math","createdBy":"anowak","questions":[]}]},` +
			`"info":{"version":"1.0","lastUpdated":"2024-09-01","description":"default data"}}`))
	}))
	defer withInfo.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer garbage.Close()

	tests := []struct {
		name        string
		url         string
		wantSource  Source
		wantUsers   int
		wantQuizzes int
	}{
		{name: "seed endpoint", url: okSrv.URL, wantSource: SourceRemote, wantUsers: 2, wantQuizzes: 1},
		{name: "info object", url: withInfo.URL, wantSource: SourceRemote, wantUsers: 2, wantQuizzes: 1},
		{name: "http 500", url: failSrv.URL, wantSource: SourceFallback, wantUsers: 2},
		{name: "rejected payload", url: rejected.URL, wantSource: SourceFallback, wantUsers: 2},
		{name: "malformed payload", url: garbage.URL, wantSource: SourceFallback, wantUsers: 2},
		{name: "unreachable", url: "http://127.0.0.1:1/api/default-data", wantSource: SourceFallback, wantUsers: 2},
		{name: "offline", wantSource: SourceFallback, wantUsers: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, store := newInitializer(t, tt.url)
			res, err := in.Initialize(context.Background())
			require.NoError(t, err)
			assert.Equal(t, Result{Source: tt.wantSource, Version: version, Users: tt.wantUsers, Quizzes: tt.wantQuizzes}, res)

			ver, ok, err := store.InitVersion()
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, version, ver)
			assert.True(t, hasTeacher(t, store), "at least one teacher must be seeded")

			again, err := in.Initialize(context.Background())
			require.NoError(t, err)
			assert.Equal(t, SourceAlready, again.Source)
			assert.Equal(t, tt.wantUsers, again.Users)
		})
	}
}

func TestInitializer_concurrent(t *testing.T) {
	srv, hits := seedServer(t, http.StatusOK, remoteDataset(), 50*time.Millisecond)
	in, _ := newInitializer(t, srv.URL)

	var wg sync.WaitGroup
	results := make([]Result, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := in.Initialize(context.Background())
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(hits), "seeding must run once")
	var seeded int
	for _, res := range results {
		assert.Equal(t, version, res.Version)
		if res.Source == SourceRemote {
			seeded++
		}
	}
	assert.GreaterOrEqual(t, seeded, 1)
}

func TestInitializer_versionUpgrade(t *testing.T) {
	srv, hits := seedServer(t, http.StatusOK, remoteDataset(), 0)
	in, store := newInitializer(t, srv.URL)
	require.NoError(t, store.SetInitVersion("1.0"))

	res, err := in.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestInitializer_ForceReinitialize(t *testing.T) {
	srv, hits := seedServer(t, http.StatusOK, remoteDataset(), 0)
	in, store := newInitializer(t, srv.URL)
	_, err := in.Initialize(context.Background())
	require.NoError(t, err)

	// a record created after seeding is superseded, not merged
	require.NoError(t, store.UpdateUsers(func(users []user.User) ([]user.User, error) {
		return append(users, user.User{ID: "extra", Username: "extra", Role: user.RoleStudent}), nil
	}))

	res, err := in.ForceReinitialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	assert.EqualValues(t, 2, atomic.LoadInt32(hits))

	users, err := store.Users()
	require.NoError(t, err)
	assert.Len(t, users, 2)
	for _, u := range users {
		assert.NotEqual(t, "extra", u.ID)
	}
}

// readOnlyKV accepts reads and rejects every write.
type readOnlyKV struct {
	local.KV
}

func (readOnlyKV) Put(string, string, int64) (int64, error) { return 0, errors.New("quota exceeded") }

func TestInitializer_persistFailure(t *testing.T) {
	store := local.NewStore(readOnlyKV{local.NewMemoryKV()}, logsvc.NewDiscardLogger())
	in := New(Deps{Store: store, Logger: logsvc.NewDiscardLogger(), Version: version})

	_, err := in.Initialize(context.Background())
	require.Error(t, err, "failing to persist the fallback dataset is fatal")
	_, ok, err := store.InitVersion()
	require.NoError(t, err)
	assert.False(t, ok, "the marker must not be set")

	t.Run("closed store", func(t *testing.T) {
		in, store := newInitializer(t, "")
		require.NoError(t, store.Close())
		_, err := in.Initialize(context.Background())
		assert.Error(t, err)
	})
}

func TestInitializer_canceled(t *testing.T) {
	srv, _ := seedServer(t, http.StatusOK, remoteDataset(), 100*time.Millisecond)
	in, store := newInitializer(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := in.Initialize(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the pass keeps running and its outcome is shared with the next caller
	res, err := in.Initialize(context.Background())
	require.NoError(t, err)
	assert.Contains(t, []Source{SourceRemote, SourceAlready}, res.Source)
	assert.True(t, hasTeacher(t, store))
}
