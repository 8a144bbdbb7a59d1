package adapter

import (
	"context"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/quiz"
	"github.com/mistrzwujo098/quiz-sub001/core/session"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
)

// backend is what one backing store has to provide. Records crossing it are canonical;
// every store-specific shape stays inside the implementation.
type backend interface {
	mode() core.Mode

	authenticate(ctx context.Context, username, password string) (session.Session, error)
	signOut(ctx context.Context) error

	listUsers(ctx context.Context, filters core.Filters) ([]user.User, error)
	getUser(ctx context.Context, id string) (*user.User, error)
	// createUser stores usr with its PasswordHash already set.
	createUser(ctx context.Context, usr *user.User) (*user.User, error)
	updateUser(ctx context.Context, usr *user.User) (*user.User, error)
	// passwordChanged runs after an update replaced the digest of usr.
	passwordChanged(ctx context.Context, usr *user.User) error
	deleteUser(ctx context.Context, id string) error

	listQuizzes(ctx context.Context, filters core.Filters) ([]quiz.Quiz, error)
	getQuiz(ctx context.Context, id string) (*quiz.Quiz, error)
	createQuiz(ctx context.Context, q *quiz.Quiz) (*quiz.Quiz, error)
	updateQuiz(ctx context.Context, q *quiz.Quiz) (*quiz.Quiz, error)
	deleteQuiz(ctx context.Context, id string) error
}
