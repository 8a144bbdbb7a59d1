package adapter

import (
	"context"

	"github.com/mistrzwujo098/quiz-sub001/core/session"
)

// Login authenticates against the active store and records the session. Every failure to
// match credentials returns core.ErrInvalidCredentials.
func (a *Adapter) Login(ctx context.Context, username, password string) (session.Session, error) {
	sess, err := a.backend().authenticate(ctx, username, password)
	if err != nil {
		return session.Session{}, err
	}
	a.sessions.Save(sess)
	return sess, nil
}

// Logout clears the session and, in remote mode, revokes the remote token. The local
// session is cleared even when revocation fails.
func (a *Adapter) Logout(ctx context.Context) error {
	a.sessions.Clear()
	return a.backend().signOut(ctx)
}

// CurrentUser returns the session of the authenticated actor. It never does I/O.
func (a *Adapter) CurrentUser() (session.Session, bool) {
	return a.sessions.Current()
}
