package remote

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	BcryptCost = bcrypt.MinCost
}

type eventLog struct {
	sync.Mutex
	events []AuthEvent
}

func (l *eventLog) listen(event AuthEvent, _ *AuthSession) {
	l.Lock()
	defer l.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) all() []AuthEvent {
	l.Lock()
	defer l.Unlock()
	return append([]AuthEvent(nil), l.events...)
}

func TestAuth_signInWithPassword(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient([]byte("secret"))
	auth := c.Auth()
	_, err := auth.SignUp(ctx, "Anna@Example.com", "s3cret!", "u1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantCode string
	}{
		{name: "valid", email: "anna@example.com", password: "s3cret!"},
		{name: "email case and spaces", email: "  ANNA@example.com ", password: "s3cret!"},
		{name: "wrong password", email: "anna@example.com", password: "nope", wantCode: CodeInvalidCredentials},
		{name: "unknown email", email: "ghost@example.com", password: "s3cret!", wantCode: CodeInvalidCredentials},
		{name: "empty email", email: "", password: "s3cret!", wantCode: CodeInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := auth.SignInWithPassword(ctx, tt.email, tt.password)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", sess.User.UserID)
			assert.Equal(t, "anna@example.com", sess.User.Email)
			assert.NotEmpty(t, sess.AccessToken)
		})
	}
}

func TestAuth_sessionLifecycle(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient([]byte("secret"))
	auth := c.Auth()
	events := &eventLog{}
	unsubscribe := auth.OnAuthStateChange(events.listen)

	_, ok := auth.GetSession(ctx)
	assert.False(t, ok)

	_, err := auth.SignUp(ctx, "anna@example.com", "s3cret!", "u1")
	require.NoError(t, err)
	_, ok = auth.GetSession(ctx)
	assert.False(t, ok, "sign up must not sign in")

	sess, err := auth.SignInWithPassword(ctx, "anna@example.com", "s3cret!")
	require.NoError(t, err)
	got, ok := auth.GetSession(ctx)
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)

	require.NoError(t, auth.SignOut(ctx))
	_, ok = auth.GetSession(ctx)
	assert.False(t, ok)
	assert.Equal(t, []AuthEvent{UserSignedUp, SignedIn, SignedOut}, events.all())

	sessions := c.Rows(TableSessions)
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		if String(s["id"]) == sess.ID {
			assert.NotNil(t, s["revoked_at"])
		}
	}

	unsubscribe()
	require.NoError(t, auth.SignOut(ctx), "signing out twice is a no-op")
	assert.Len(t, events.all(), 3)
}

func TestAuth_expiredToken(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient([]byte("secret"))
	auth := NewAuth(c, []byte("secret"), time.Minute)
	_, err := auth.SignUp(ctx, "anna@example.com", "s3cret!", "u1")
	require.NoError(t, err)

	NowFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	defer func() { NowFunc = time.Now }()
	_, err = auth.SignInWithPassword(ctx, "anna@example.com", "s3cret!")
	require.NoError(t, err)
	NowFunc = time.Now

	events := &eventLog{}
	auth.OnAuthStateChange(events.listen)
	_, ok := auth.GetSession(ctx)
	assert.False(t, ok, "expired token must not yield a session")
	assert.Equal(t, []AuthEvent{SignedOut}, events.all())
}

func TestAuth_lookupFailure(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(nil)
	c.SetFailure(NewError(CodeConnection, "connection refused", nil))
	_, err := c.Auth().SignInWithPassword(ctx, "anna@example.com", "x")
	assert.Equal(t, CodeConnection, CodeOf(err), "infrastructure errors are not credential errors")
}

func TestAuth_createAccount(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient([]byte("secret"))
	auth := c.Auth()
	events := &eventLog{}
	auth.OnAuthStateChange(events.listen)

	usr, err := auth.CreateAccount(ctx, " Anna@Example.com", "digest", "u1")
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", usr.Email)
	assert.Equal(t, "u1", usr.UserID)
	assert.Empty(t, events.all(), "creating an account signs nobody in")
	assert.Empty(t, c.Rows(TableSessions))

	_, err = auth.CreateAccount(ctx, "anna@example.com", "other", "u2")
	assert.Equal(t, CodeUniqueViolation, CodeOf(err))
	_, err = auth.CreateAccount(ctx, "bob@example.com", "", "u2")
	assert.Equal(t, CodeNotNull, CodeOf(err))

	sess, err := auth.SignInWithPassword(ctx, "anna@example.com", "digest")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.User.UserID)
}

func TestAuth_updatePassword(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient([]byte("secret"))
	auth := c.Auth()
	_, err := auth.CreateAccount(ctx, "anna@example.com", "old-digest", "u1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		userID   string
		password string
		want     int
		wantCode string
	}{
		{name: "rekey", userID: "u1", password: "new-digest", want: 1},
		{name: "no account", userID: "u2", password: "new-digest", want: 0},
		{name: "empty password", userID: "u1", wantCode: CodeNotNull},
		{name: "empty user", password: "new-digest", wantCode: CodeNotNull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := auth.UpdatePassword(ctx, tt.userID, tt.password)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}

	_, err = auth.SignInWithPassword(ctx, "anna@example.com", "old-digest")
	assert.Equal(t, CodeInvalidCredentials, CodeOf(err))
	_, err = auth.SignInWithPassword(ctx, "anna@example.com", "new-digest")
	assert.NoError(t, err)
}
