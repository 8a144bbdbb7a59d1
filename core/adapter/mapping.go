package adapter

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/quiz"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
	"github.com/mistrzwujo098/quiz-sub001/storage/remote"
)

// canonical filter field -> remote column
var (
	userColumns = map[string]string{
		"id":          "id",
		"username":    "username",
		"role":        "role",
		"displayName": "full_name",
		"email":       "email",
		"class":       "class_name",
		"grade":       "grade",
	}
	quizColumns = map[string]string{
		"id":        "id",
		"title":     "title",
		"subject":   "subject",
		"class":     "target_class",
		"createdBy": "created_by",
		"isActive":  "is_active",
	}

	creatorJoin = remote.JoinSpec{
		Table:         remote.TableUsers,
		LocalColumn:   "created_by",
		ForeignColumn: "id",
		Columns:       map[string]string{"creator_name": "full_name"},
	}
)

// filtersToEq validates filters against the canonical fields and maps them to columns.
func filtersToEq(filters core.Filters, columns map[string]string) (remote.Eq, error) {
	allowed := make([]string, 0, len(columns))
	for k := range columns {
		allowed = append(allowed, k)
	}
	if err := filters.Validate(allowed...); err != nil {
		return nil, err
	}
	eq := make(remote.Eq)
	for k, v := range filters.Predicates() {
		eq[columns[k]] = v
	}
	return eq, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func userToRow(u *user.User) (remote.Row, error) {
	children := u.LinkedChildren
	if children == nil {
		children = []string{}
	}
	raw, err := json.Marshal(children)
	if err != nil {
		return nil, core.NewStoreError(core.SerializationError, "encoding linked children", err)
	}
	row := remote.Row{
		"id":              u.ID,
		"username":        u.Username,
		"password_hash":   u.PasswordHash,
		"role":            u.Role,
		"full_name":       u.DisplayName,
		"email":           nullable(u.Email),
		"class_name":      u.Class,
		"grade":           u.Grade,
		"linked_children": string(raw),
		"created_at":      u.CreatedAt,
	}
	if !u.UpdatedAt.IsZero() {
		row["updated_at"] = u.UpdatedAt
	}
	return row, nil
}

func userFromRow(row remote.Row) (*user.User, error) {
	u := &user.User{
		ID:           remote.String(row["id"]),
		Username:     remote.String(row["username"]),
		PasswordHash: remote.String(row["password_hash"]),
		Role:         remote.String(row["role"]),
		DisplayName:  remote.String(row["full_name"]),
		Email:        remote.String(row["email"]),
		Class:        remote.String(row["class_name"]),
		Grade:        remote.String(row["grade"]),
		CreatedAt:    remote.Time(row["created_at"]),
		UpdatedAt:    remote.Time(row["updated_at"]),
	}
	if raw := remote.String(row["linked_children"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &u.LinkedChildren); err != nil {
			return nil, core.NewStoreError(core.SerializationError, "decoding linked children", errors.Wrap(err, u.ID))
		}
		if len(u.LinkedChildren) == 0 {
			u.LinkedChildren = nil
		}
	}
	return u, nil
}

func quizToRow(q *quiz.Quiz) (remote.Row, error) {
	questions := q.Questions
	if questions == nil {
		questions = []quiz.Question{}
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return nil, core.NewStoreError(core.SerializationError, "encoding questions", err)
	}
	row := remote.Row{
		"id":           q.ID,
		"title":        q.Title,
		"subject":      q.Subject,
		"target_class": q.Class,
		"created_by":   nullable(q.CreatedBy),
		"questions":    string(raw),
		"is_active":    q.IsActive,
		"time_limit":   q.TimeLimit,
		"created_at":   q.CreatedAt,
	}
	if !q.UpdatedAt.IsZero() {
		row["updated_at"] = q.UpdatedAt
	}
	return row, nil
}

func quizFromRow(row remote.Row) (*quiz.Quiz, error) {
	q := &quiz.Quiz{
		ID:          remote.String(row["id"]),
		Title:       remote.String(row["title"]),
		Subject:     remote.String(row["subject"]),
		Class:       remote.String(row["target_class"]),
		CreatedBy:   remote.String(row["created_by"]),
		CreatorName: remote.String(row["creator_name"]),
		IsActive:    remote.Bool(row["is_active"]),
		TimeLimit:   remote.Int(row["time_limit"]),
		CreatedAt:   remote.Time(row["created_at"]),
		UpdatedAt:   remote.Time(row["updated_at"]),
	}
	if raw := remote.String(row["questions"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &q.Questions); err != nil {
			return nil, core.NewStoreError(core.SerializationError, "decoding questions", errors.Wrap(err, q.ID))
		}
	}
	if q.Questions == nil {
		q.Questions = []quiz.Question{}
	}
	return q, nil
}
