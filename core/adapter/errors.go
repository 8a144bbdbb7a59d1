package adapter

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/storage/remote"
)

var (
	errNotConfigured = errors.New("remote store is not configured")
	errSessionRole   = errors.New("only teachers can create quizzes")
	errNotOwner      = errors.New("only the creator can modify this record")
	errUsernameTaken = errors.New("a user with this username already exists")
	errDuplicateID   = errors.New("a record with this id already exists")
)

func notFound(op string, kind core.EntityKind, id string) error {
	return core.NewStoreError(core.NotFound, op, errors.Errorf("%s %q not found", kind, id))
}

// remoteKind maps a normalized remote error code to a store error kind.
func remoteKind(code string) core.ErrorKind {
	switch {
	case code == remote.CodeNoRows, code == remote.CodeInvalidText:
		return core.NotFound
	case strings.HasPrefix(code, "23"): // integrity constraint violations
		return core.Conflict
	case code == remote.CodePrivilege, code == remote.CodeInvalidToken:
		return core.PermissionDenied
	case code == remote.CodeInvalidCredentials:
		return core.InvalidCredentials
	}
	// connection, timeout, misconfigured schema and anything unrecognized
	return core.Unavailable
}

// noMatch reports a filter value the column type cannot hold (isActive=maybe): no row
// can match it, as in the local store.
func noMatch(err error) bool {
	return remote.CodeOf(err) == remote.CodeInvalidText
}

// storeError converts a remote client failure into a *core.StoreError. Errors that
// already carry a kind pass through.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := core.KindOf(err); ok {
		return err
	}
	return core.NewStoreError(remoteKind(remote.CodeOf(err)), op, err)
}
