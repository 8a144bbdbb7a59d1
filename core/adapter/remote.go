package adapter

import (
	"context"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/password"
	"github.com/mistrzwujo098/quiz-sub001/core/quiz"
	"github.com/mistrzwujo098/quiz-sub001/core/session"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
	"github.com/mistrzwujo098/quiz-sub001/storage/remote"
)

// remoteBackend composes relational queries against the remote store.
type remoteBackend struct {
	client remote.Client
}

var _ backend = (*remoteBackend)(nil) // interface compliance check

func (b *remoteBackend) mode() core.Mode { return core.ModeRemote }

// authenticate always performs the username lookup and one sign-in call, so unknown
// usernames and wrong passwords cost the same round trips. Auth accounts are keyed by the
// shared password digest, so a profile migrated from the local store signs in unchanged.
func (b *remoteBackend) authenticate(ctx context.Context, username, pwd string) (session.Session, error) {
	uname := core.CleanString(username, true /* lower */)
	res, err := b.client.RPC(ctx, remote.FnEmailByUsername, uname)
	if err != nil {
		return session.Session{}, core.NewStoreError(core.Unavailable, "login", err)
	}
	email := remote.String(res)

	authSess, err := b.client.Auth().SignInWithPassword(ctx, email, password.Hash(pwd))
	switch {
	case remote.CodeOf(err) == remote.CodeInvalidCredentials:
		return session.Session{}, core.ErrInvalidCredentials
	case err != nil:
		return session.Session{}, core.NewStoreError(core.Unavailable, "login", err)
	}

	row, err := b.client.Single(ctx, remote.TableUsers, remote.Eq{"id": authSess.User.UserID})
	if err != nil || authSess.User.UserID == "" {
		_ = b.client.Auth().SignOut(ctx)
		if err == nil || remote.IsNoRows(err) {
			return session.Session{}, core.ErrInvalidCredentials
		}
		return session.Session{}, core.NewStoreError(core.Unavailable, "login", err)
	}
	usr, err := userFromRow(row)
	if err != nil {
		_ = b.client.Auth().SignOut(ctx)
		return session.Session{}, err
	}
	return newSession(usr, authSess.ID, authSess.AccessToken), nil
}

func (b *remoteBackend) signOut(ctx context.Context) error {
	return storeError("logout", b.client.Auth().SignOut(ctx))
}

// ========================================
// users

func (b *remoteBackend) listUsers(ctx context.Context, filters core.Filters) ([]user.User, error) {
	eq, err := filtersToEq(filters, userColumns)
	if err != nil {
		return nil, err
	}
	var opts []remote.SelectOption
	if filters.Ordered() {
		opts = append(opts, remote.OrderBy(core.NewestFirst))
	}
	rows, err := b.client.Select(ctx, remote.TableUsers, eq, opts...)
	if err != nil {
		if noMatch(err) {
			return []user.User{}, nil
		}
		return nil, storeError("list users", err)
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		usr, err := userFromRow(row)
		if err != nil {
			return nil, err
		}
		users = append(users, *usr)
	}
	return users, nil
}

func (b *remoteBackend) getUser(ctx context.Context, id string) (*user.User, error) {
	row, err := b.client.Single(ctx, remote.TableUsers, remote.Eq{"id": id})
	if err != nil {
		if kind := remoteKind(remote.CodeOf(err)); kind == core.NotFound {
			return nil, notFound("get user", core.KindUser, id)
		}
		return nil, storeError("get user", err)
	}
	return userFromRow(row)
}

// accountDomain names auth accounts of users registered without an email.
const accountDomain = "accounts.quizmaster.invalid"

func accountEmail(usr *user.User) string {
	if usr.Email != "" {
		return usr.Email
	}
	return usr.Username + "@" + accountDomain
}

// createUser inserts the profile row and the auth account remote sign-in goes through,
// leaving the current sign-in alone. The profile is removed again if the account cannot
// be created.
func (b *remoteBackend) createUser(ctx context.Context, usr *user.User) (*user.User, error) {
	row, err := userToRow(usr)
	if err != nil {
		return nil, err
	}
	inserted, err := b.client.Insert(ctx, remote.TableUsers, row)
	if err != nil {
		if remote.CodeOf(err) == remote.CodeUniqueViolation {
			return nil, core.NewStoreError(core.Conflict, "create user", errUsernameTaken)
		}
		return nil, storeError("create user", err)
	}
	created, err := userFromRow(inserted)
	if err != nil {
		return nil, err
	}

	if created.PasswordHash != "" {
		if _, err = b.client.Auth().CreateAccount(ctx, accountEmail(created), created.PasswordHash, created.ID); err != nil {
			_ = b.client.Delete(ctx, remote.TableUsers, remote.Eq{"id": created.ID})
			return nil, storeError("create user account", err)
		}
	}
	return created, nil
}

func (b *remoteBackend) updateUser(ctx context.Context, usr *user.User) (*user.User, error) {
	row, err := userToRow(usr)
	if err != nil {
		return nil, err
	}
	delete(row, "id")
	delete(row, "created_at")
	rows, err := b.client.Update(ctx, remote.TableUsers, row, remote.Eq{"id": usr.ID})
	if err != nil {
		if remote.CodeOf(err) == remote.CodeUniqueViolation {
			return nil, core.NewStoreError(core.Conflict, "update user", errUsernameTaken)
		}
		return nil, storeError("update user", err)
	}
	if len(rows) == 0 {
		return nil, notFound("update user", core.KindUser, usr.ID)
	}
	return userFromRow(rows[0])
}

// passwordChanged rekeys the auth account with the new digest. A profile without an
// account gets one, as PushUsers would give it.
func (b *remoteBackend) passwordChanged(ctx context.Context, usr *user.User) error {
	n, err := b.client.Auth().UpdatePassword(ctx, usr.ID, usr.PasswordHash)
	if err != nil {
		return storeError("update user account", err)
	}
	if n == 0 {
		_, err = b.ensureAccount(ctx, usr)
	}
	return err
}

func (b *remoteBackend) deleteUser(ctx context.Context, id string) error {
	return storeError("delete user", b.client.Delete(ctx, remote.TableUsers, remote.Eq{"id": id}))
}

// ========================================
// quizzes

func (b *remoteBackend) listQuizzes(ctx context.Context, filters core.Filters) ([]quiz.Quiz, error) {
	eq, err := filtersToEq(filters, quizColumns)
	if err != nil {
		return nil, err
	}
	opts := []remote.SelectOption{remote.Join(creatorJoin)}
	if filters.Ordered() {
		opts = append(opts, remote.OrderBy(core.NewestFirst))
	}
	rows, err := b.client.Select(ctx, remote.TableQuizzes, eq, opts...)
	if err != nil {
		if noMatch(err) {
			return []quiz.Quiz{}, nil
		}
		return nil, storeError("list quizzes", err)
	}
	quizzes := make([]quiz.Quiz, 0, len(rows))
	for _, row := range rows {
		q, err := quizFromRow(row)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *q)
	}
	return quizzes, nil
}

func (b *remoteBackend) getQuiz(ctx context.Context, id string) (*quiz.Quiz, error) {
	row, err := b.client.Single(ctx, remote.TableQuizzes, remote.Eq{"id": id}, remote.Join(creatorJoin))
	if err != nil {
		if kind := remoteKind(remote.CodeOf(err)); kind == core.NotFound {
			return nil, notFound("get quiz", core.KindQuiz, id)
		}
		return nil, storeError("get quiz", err)
	}
	return quizFromRow(row)
}

func (b *remoteBackend) createQuiz(ctx context.Context, q *quiz.Quiz) (*quiz.Quiz, error) {
	row, err := quizToRow(q)
	if err != nil {
		return nil, err
	}
	if _, err = b.client.Insert(ctx, remote.TableQuizzes, row); err != nil {
		return nil, storeError("create quiz", err)
	}
	// read back through the join so the creator name is filled
	return b.getQuiz(ctx, q.ID)
}

func (b *remoteBackend) updateQuiz(ctx context.Context, q *quiz.Quiz) (*quiz.Quiz, error) {
	row, err := quizToRow(q)
	if err != nil {
		return nil, err
	}
	delete(row, "id")
	delete(row, "created_at")
	rows, err := b.client.Update(ctx, remote.TableQuizzes, row, remote.Eq{"id": q.ID})
	if err != nil {
		return nil, storeError("update quiz", err)
	}
	if len(rows) == 0 {
		return nil, notFound("update quiz", core.KindQuiz, q.ID)
	}
	return b.getQuiz(ctx, q.ID)
}

func (b *remoteBackend) deleteQuiz(ctx context.Context, id string) error {
	return storeError("delete quiz", b.client.Delete(ctx, remote.TableQuizzes, remote.Eq{"id": id}))
}
