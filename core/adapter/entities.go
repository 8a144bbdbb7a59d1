package adapter

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/password"
	"github.com/mistrzwujo098/quiz-sub001/core/quiz"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
)

var errPayloadKind = errors.New("payload does not match the entity kind")

func unknownKind(kind core.EntityKind) error {
	return core.NewValidationError(
		errors.Wrapf(core.ErrUnknownKind, "%q", kind),
		core.FieldError{Field: "kind", Error: core.ErrUnknownKind.Error()},
	)
}

func payloadMismatch(kind core.EntityKind) error {
	return core.NewValidationError(
		errors.Wrapf(errPayloadKind, "%s", kind),
		core.FieldError{Field: "payload", Error: errPayloadKind.Error()},
	)
}

// ListEntities returns the records of kind matching the equality filters. The order is
// unspecified unless filters hold core.OrderByKey, which selects newest first.
func (a *Adapter) ListEntities(ctx context.Context, kind core.EntityKind, filters core.Filters) ([]core.Entity, error) {
	switch kind {
	case core.KindUser:
		users, err := a.ListUsers(ctx, filters)
		if err != nil {
			return nil, err
		}
		out := make([]core.Entity, len(users))
		for i := range users {
			out[i] = &users[i]
		}
		return out, nil
	case core.KindQuiz:
		quizzes, err := a.ListQuizzes(ctx, filters)
		if err != nil {
			return nil, err
		}
		out := make([]core.Entity, len(quizzes))
		for i := range quizzes {
			out[i] = &quizzes[i]
		}
		return out, nil
	}
	return nil, unknownKind(kind)
}

// CreateEntity creates a record from a *user.NewUser or *quiz.NewQuiz payload.
func (a *Adapter) CreateEntity(ctx context.Context, kind core.EntityKind, payload core.Entity) (core.Entity, error) {
	switch kind {
	case core.KindUser:
		nu, ok := payload.(*user.NewUser)
		if !ok {
			return nil, payloadMismatch(kind)
		}
		return a.CreateUser(ctx, nu)
	case core.KindQuiz:
		nq, ok := payload.(*quiz.NewQuiz)
		if !ok {
			return nil, payloadMismatch(kind)
		}
		return a.CreateQuiz(ctx, nq)
	}
	return nil, unknownKind(kind)
}

func (a *Adapter) GetEntity(ctx context.Context, kind core.EntityKind, id string) (core.Entity, error) {
	switch kind {
	case core.KindUser:
		return a.GetUser(ctx, id)
	case core.KindQuiz:
		return a.GetQuiz(ctx, id)
	}
	return nil, unknownKind(kind)
}

// UpdateEntity replaces the record id with a *user.User or *quiz.Quiz payload. Identity,
// creation time and quiz ownership are kept from the stored record.
func (a *Adapter) UpdateEntity(ctx context.Context, kind core.EntityKind, id string, payload core.Entity) (core.Entity, error) {
	switch kind {
	case core.KindUser:
		usr, ok := payload.(*user.User)
		if !ok {
			return nil, payloadMismatch(kind)
		}
		upd := *usr
		upd.ID = id
		return a.UpdateUser(ctx, &upd)
	case core.KindQuiz:
		q, ok := payload.(*quiz.Quiz)
		if !ok {
			return nil, payloadMismatch(kind)
		}
		upd := *q
		upd.ID = id
		return a.UpdateQuiz(ctx, &upd)
	}
	return nil, unknownKind(kind)
}

func (a *Adapter) DeleteEntity(ctx context.Context, kind core.EntityKind, id string) error {
	switch kind {
	case core.KindUser:
		return a.DeleteUser(ctx, id)
	case core.KindQuiz:
		return a.DeleteQuiz(ctx, id)
	}
	return unknownKind(kind)
}

// ========================================
// users

func (a *Adapter) ListUsers(ctx context.Context, filters core.Filters) ([]user.User, error) {
	return a.backend().listUsers(ctx, filters)
}

func (a *Adapter) GetUser(ctx context.Context, id string) (*user.User, error) {
	return a.backend().getUser(ctx, id)
}

// CreateUser validates nu and stores it with its password hashed.
func (a *Adapter) CreateUser(ctx context.Context, nu *user.NewUser) (*user.User, error) {
	if err := a.validatePayload(nu); err != nil {
		return nil, err
	}
	usr := nu.User(newID(), nowFunc())
	usr.PasswordHash = password.Hash(nu.Password)
	return a.backend().createUser(ctx, usr)
}

// UpdateUser replaces a user record. Only the user itself, or a caller without a session,
// may do so. An empty PasswordHash keeps the stored one.
func (a *Adapter) UpdateUser(ctx context.Context, usr *user.User) (*user.User, error) {
	be := a.backend()
	existing, err := be.getUser(ctx, usr.ID)
	if err != nil {
		return nil, err
	}
	if sess, ok := a.sessions.Current(); ok && sess.UserID != existing.ID {
		return nil, core.NewStoreError(core.PermissionDenied, "update user", errNotOwner)
	}

	upd := *usr
	upd.Normalize()
	if err = checkUser(&upd); err != nil {
		return nil, err
	}
	if upd.PasswordHash == "" {
		upd.PasswordHash = existing.PasswordHash
	}
	upd.CreatedAt = existing.CreatedAt
	upd.UpdatedAt = nowFunc()
	updated, err := be.updateUser(ctx, &upd)
	if err != nil {
		return nil, err
	}
	if updated.PasswordHash != existing.PasswordHash {
		if err = be.passwordChanged(ctx, updated); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

func checkUser(usr *user.User) error {
	var flds []core.FieldError
	if usr.Username == "" {
		flds = append(flds, core.FieldError{Field: "username", Error: "this field is required"})
	}
	if !user.IsValidRole(usr.Role) {
		flds = append(flds, core.FieldError{Field: "role", Error: "invalid role"})
	}
	if usr.PasswordHash != "" && !password.IsDigest(usr.PasswordHash) {
		flds = append(flds, core.FieldError{Field: "passwordHash", Error: "must be a password digest"})
	}
	if len(usr.LinkedChildren) > 0 && !usr.IsParent() {
		flds = append(flds, core.FieldError{Field: "linkedChildren", Error: "only parents can be linked to children"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid payload"), flds...)
	}
	return nil
}

func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	be := a.backend()
	if _, err := be.getUser(ctx, id); err != nil {
		return err
	}
	if sess, ok := a.sessions.Current(); ok && sess.UserID != id {
		return core.NewStoreError(core.PermissionDenied, "delete user", errNotOwner)
	}
	return be.deleteUser(ctx, id)
}

// ========================================
// quizzes

func (a *Adapter) ListQuizzes(ctx context.Context, filters core.Filters) ([]quiz.Quiz, error) {
	return a.backend().listQuizzes(ctx, filters)
}

func (a *Adapter) GetQuiz(ctx context.Context, id string) (*quiz.Quiz, error) {
	return a.backend().getQuiz(ctx, id)
}

// CreateQuiz validates nq and stores the new quiz. With a session, only teachers may
// create quizzes and the creator defaults to the session user.
func (a *Adapter) CreateQuiz(ctx context.Context, nq *quiz.NewQuiz) (*quiz.Quiz, error) {
	if sess, ok := a.sessions.Current(); ok {
		if sess.Role != user.RoleTeacher {
			return nil, core.NewStoreError(core.PermissionDenied, "create quiz", errSessionRole)
		}
		if nq.CreatedBy == "" {
			nq.CreatedBy = sess.UserID
		}
	}
	if err := a.validatePayload(nq); err != nil {
		return nil, err
	}
	return a.backend().createQuiz(ctx, nq.Quiz(newID(), nowFunc()))
}

// UpdateQuiz replaces a quiz. Only its creator, or a caller without a session, may do so.
func (a *Adapter) UpdateQuiz(ctx context.Context, q *quiz.Quiz) (*quiz.Quiz, error) {
	be := a.backend()
	existing, err := be.getQuiz(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	if err = a.checkOwner("update quiz", existing); err != nil {
		return nil, err
	}

	uq := quiz.UpdateFrom(q)
	if err = a.validatePayload(uq); err != nil {
		return nil, err
	}
	upd := uq.Apply(existing, nowFunc())
	return be.updateQuiz(ctx, upd)
}

func (a *Adapter) DeleteQuiz(ctx context.Context, id string) error {
	be := a.backend()
	existing, err := be.getQuiz(ctx, id)
	if err != nil {
		return err
	}
	if err = a.checkOwner("delete quiz", existing); err != nil {
		return err
	}
	return be.deleteQuiz(ctx, id)
}

func (a *Adapter) checkOwner(op string, q *quiz.Quiz) error {
	if sess, ok := a.sessions.Current(); ok && sess.UserID != q.CreatedBy {
		return core.NewStoreError(core.PermissionDenied, op, errNotOwner)
	}
	return nil
}
