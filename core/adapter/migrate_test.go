package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/password"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
	"github.com/mistrzwujo098/quiz-sub001/storage/remote"
)

func seededUser(id, uname, pwd string) user.User {
	return user.User{
		ID:           id,
		Username:     uname,
		PasswordHash: password.Hash(pwd),
		Role:         user.RoleTeacher,
		DisplayName:  "Seeded " + uname,
		CreatedAt:    time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
	}
}

// insertProfile writes a bare profile row the way a seed import does: no auth account.
func insertProfile(t *testing.T, c *remote.MemoryClient, usr user.User) {
	t.Helper()
	row, err := userToRow(&usr)
	require.NoError(t, err)
	_, err = c.Insert(context.Background(), remote.TableUsers, row)
	require.NoError(t, err)
}

func TestAdapter_PushUsers(t *testing.T) {
	tests := []struct {
		name   string
		local  []user.User
		remote []user.User
		want   MigrationResult
		logins []string // usernames expected to sign in remotely with pwd
	}{
		{
			name:   "local only",
			local:  []user.User{seededUser("fallback-teacher", "anowak", annaPwd)},
			want:   MigrationResult{Copied: 1, Accounts: 1},
			logins: []string{"anowak"},
		},
		{
			name:   "remote profile without account",
			local:  []user.User{seededUser("teacher-1", "anowak", annaPwd)},
			remote: []user.User{seededUser("teacher-1", "anowak", annaPwd)},
			want:   MigrationResult{Skipped: 1, Accounts: 1},
			logins: []string{"anowak"},
		},
		{
			name: "mixed",
			local: []user.User{
				seededUser("teacher-1", "anowak", annaPwd),
				seededUser("student-1", "jkowal", annaPwd),
			},
			remote: []user.User{
				seededUser("teacher-1", "anowak", annaPwd),
				seededUser("teacher-2", "pzielin", annaPwd),
			},
			want:   MigrationResult{Copied: 1, Skipped: 1, Accounts: 3},
			logins: []string{"anowak", "jkowal", "pzielin"},
		},
		{name: "nothing to do", want: MigrationResult{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			ctx := context.Background()
			require.NoError(t, f.store.UpdateUsers(func([]user.User) ([]user.User, error) {
				return tt.local, nil
			}))
			for _, usr := range tt.remote {
				insertProfile(t, f.client, usr)
			}

			res, err := f.adapter.PushUsers(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)

			// a second run finds every account in place
			again, err := f.adapter.PushUsers(ctx)
			require.NoError(t, err)
			assert.Zero(t, again.Copied)
			assert.Zero(t, again.Accounts)

			_, err = f.adapter.Initialize(ctx)
			require.NoError(t, err)
			require.Equal(t, core.ModeRemote, f.adapter.Mode())
			for _, uname := range tt.logins {
				f.sessions.Clear()
				sess, err := f.adapter.Login(ctx, uname, annaPwd)
				require.NoError(t, err, uname)
				assert.Equal(t, uname, sess.Username)
				assert.NotEmpty(t, sess.AccessToken)
			}
		})
	}
}

func TestAdapter_PullUsers(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.store.UpdateUsers(func([]user.User) ([]user.User, error) {
		return []user.User{seededUser("teacher-1", "anowak", annaPwd)}, nil
	}))
	insertProfile(t, f.client, seededUser("teacher-1", "anowak", annaPwd))
	insertProfile(t, f.client, seededUser("student-1", "jkowal", "Kq7!mzP#2"))

	f.client.SetFailure(errConn)
	_, err := f.adapter.Initialize(ctx)
	require.NoError(t, err)
	require.Equal(t, core.ModeLocal, f.adapter.Mode())

	_, err = f.adapter.PullUsers(ctx)
	assert.True(t, core.IsKind(err, core.Unavailable), "got %v", err)

	f.client.ClearFailure()
	res, err := f.adapter.PullUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, MigrationResult{Copied: 1, Skipped: 1}, res)

	users, err := f.store.Users()
	require.NoError(t, err)
	assert.Len(t, users, 2)

	sess, err := f.adapter.Login(ctx, "jkowal", "Kq7!mzP#2")
	require.NoError(t, err)
	assert.Equal(t, "student-1", sess.Identifier())
	assert.Empty(t, sess.AccessToken)

	res, err = f.adapter.PullUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, MigrationResult{Skipped: 2}, res)
}

func TestAdapter_migrateNotConfigured(t *testing.T) {
	f := initialized(t, false)
	_, err := f.adapter.PushUsers(context.Background())
	assert.True(t, core.IsKind(err, core.Unavailable), "got %v", err)
	_, err = f.adapter.PullUsers(context.Background())
	assert.True(t, core.IsKind(err, core.Unavailable), "got %v", err)
}
