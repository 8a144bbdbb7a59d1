package adapter

import (
	"context"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/password"
	"github.com/mistrzwujo098/quiz-sub001/core/quiz"
	"github.com/mistrzwujo098/quiz-sub001/core/session"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
	"github.com/mistrzwujo098/quiz-sub001/storage/local"
)

// localBackend filters in-memory collections loaded from the local store. Every write
// persists the whole collection before returning.
type localBackend struct {
	store *local.Store
	dummy string // compared against when the username is unknown
}

var _ backend = (*localBackend)(nil) // interface compliance check

func newLocalBackend(store *local.Store) *localBackend {
	return &localBackend{store: store, dummy: password.Hash("quizmaster:unknown-user")}
}

func (b *localBackend) mode() core.Mode { return core.ModeLocal }

func (b *localBackend) authenticate(_ context.Context, username, pwd string) (session.Session, error) {
	users, err := b.store.Users()
	if err != nil {
		return session.Session{}, err
	}

	// one digest and one constant-time comparison whether the user exists or not
	uname := core.CleanString(username, true /* lower */)
	digest := password.Hash(pwd)
	target := b.dummy
	var found *user.User
	for i := range users {
		if users[i].Username == uname {
			found = &users[i]
			target = found.PasswordHash
			break
		}
	}
	match := password.Equal(digest, target)
	if found == nil || !match {
		return session.Session{}, core.ErrInvalidCredentials
	}
	return newSession(found, newID(), ""), nil
}

func (b *localBackend) signOut(context.Context) error { return nil }

// selectRecords returns the items matching filters, newest first when requested.
func selectRecords[T any, PT interface {
	*T
	core.Entity
}](items []T, filters core.Filters) []T {
	matched := make([]core.Entity, 0, len(items))
	for i := range items {
		if e := PT(&items[i]); filters.Match(e) {
			matched = append(matched, e)
		}
	}
	if filters.Ordered() {
		core.SortNewestFirst(matched)
	}
	out := make([]T, 0, len(matched))
	for _, e := range matched {
		out = append(out, *e.(PT))
	}
	return out
}

// ========================================
// users

func (b *localBackend) listUsers(_ context.Context, filters core.Filters) ([]user.User, error) {
	if err := filters.Validate(user.FilterFields...); err != nil {
		return nil, err
	}
	users, err := b.store.Users()
	if err != nil {
		return nil, err
	}
	return selectRecords(users, filters), nil
}

func (b *localBackend) getUser(_ context.Context, id string) (*user.User, error) {
	users, err := b.store.Users()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, notFound("get user", core.KindUser, id)
}

func (b *localBackend) createUser(_ context.Context, usr *user.User) (*user.User, error) {
	err := b.store.UpdateUsers(func(users []user.User) ([]user.User, error) {
		for _, u := range users {
			if u.Username == usr.Username {
				return nil, core.NewStoreError(core.Conflict, "create user", errUsernameTaken)
			}
		}
		return append(users, *usr), nil
	})
	if err != nil {
		return nil, err
	}
	return usr, nil
}

func (b *localBackend) updateUser(_ context.Context, usr *user.User) (*user.User, error) {
	err := b.store.UpdateUsers(func(users []user.User) ([]user.User, error) {
		idx := -1
		for i, u := range users {
			switch {
			case u.ID == usr.ID:
				idx = i
			case u.Username == usr.Username:
				return nil, core.NewStoreError(core.Conflict, "update user", errUsernameTaken)
			}
		}
		if idx < 0 {
			return nil, notFound("update user", core.KindUser, usr.ID)
		}
		users[idx] = *usr
		return users, nil
	})
	if err != nil {
		return nil, err
	}
	return usr, nil
}

// local sign-in reads the profile digest
func (b *localBackend) passwordChanged(context.Context, *user.User) error { return nil }

func (b *localBackend) deleteUser(_ context.Context, id string) error {
	return b.store.UpdateUsers(func(users []user.User) ([]user.User, error) {
		kept := make([]user.User, 0, len(users))
		for _, u := range users {
			if u.ID != id {
				kept = append(kept, u)
			}
		}
		if len(kept) == len(users) {
			return nil, notFound("delete user", core.KindUser, id)
		}
		return kept, nil
	})
}

// ========================================
// quizzes

// withCreators fills the derived creator name the way the remote join does.
func (b *localBackend) withCreators(quizzes []quiz.Quiz) ([]quiz.Quiz, error) {
	if len(quizzes) == 0 {
		return quizzes, nil
	}
	users, err := b.store.Users()
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}
	for i := range quizzes {
		quizzes[i].CreatorName = names[quizzes[i].CreatedBy]
	}
	return quizzes, nil
}

func (b *localBackend) listQuizzes(_ context.Context, filters core.Filters) ([]quiz.Quiz, error) {
	if err := filters.Validate(quiz.FilterFields...); err != nil {
		return nil, err
	}
	quizzes, err := b.store.Quizzes()
	if err != nil {
		return nil, err
	}
	return b.withCreators(selectRecords(quizzes, filters))
}

func (b *localBackend) getQuiz(_ context.Context, id string) (*quiz.Quiz, error) {
	quizzes, err := b.store.Quizzes()
	if err != nil {
		return nil, err
	}
	for _, q := range quizzes {
		if q.ID == id {
			found, err := b.withCreators([]quiz.Quiz{q})
			if err != nil {
				return nil, err
			}
			return &found[0], nil
		}
	}
	return nil, notFound("get quiz", core.KindQuiz, id)
}

func (b *localBackend) createQuiz(_ context.Context, q *quiz.Quiz) (*quiz.Quiz, error) {
	stored := *q
	stored.CreatorName = ""
	err := b.store.UpdateQuizzes(func(quizzes []quiz.Quiz) ([]quiz.Quiz, error) {
		for _, existing := range quizzes {
			if existing.ID == stored.ID {
				return nil, core.NewStoreError(core.Conflict, "create quiz", errDuplicateID)
			}
		}
		return append(quizzes, stored), nil
	})
	if err != nil {
		return nil, err
	}
	found, err := b.withCreators([]quiz.Quiz{stored})
	if err != nil {
		return nil, err
	}
	return &found[0], nil
}

func (b *localBackend) updateQuiz(_ context.Context, q *quiz.Quiz) (*quiz.Quiz, error) {
	stored := *q
	stored.CreatorName = ""
	err := b.store.UpdateQuizzes(func(quizzes []quiz.Quiz) ([]quiz.Quiz, error) {
		for i := range quizzes {
			if quizzes[i].ID == stored.ID {
				quizzes[i] = stored
				return quizzes, nil
			}
		}
		return nil, notFound("update quiz", core.KindQuiz, stored.ID)
	})
	if err != nil {
		return nil, err
	}
	found, err := b.withCreators([]quiz.Quiz{stored})
	if err != nil {
		return nil, err
	}
	return &found[0], nil
}

func (b *localBackend) deleteQuiz(_ context.Context, id string) error {
	return b.store.UpdateQuizzes(func(quizzes []quiz.Quiz) ([]quiz.Quiz, error) {
		kept := make([]quiz.Quiz, 0, len(quizzes))
		for _, q := range quizzes {
			if q.ID != id {
				kept = append(kept, q)
			}
		}
		if len(kept) == len(quizzes) {
			return nil, notFound("delete quiz", core.KindQuiz, id)
		}
		return kept, nil
	})
}
