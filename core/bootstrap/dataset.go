package bootstrap

import (
	"embed"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/password"
	"github.com/mistrzwujo098/quiz-sub001/core/quiz"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
)

//go:embed data/*.yaml
var datasets embed.FS

// Seed-data DTOs. They mirror the canonical records, except that a user may carry a
// plaintext password instead of its digest and a quiz may name its creator by username.
type (
	SeedUser struct {
		ID             string    `json:"id,omitempty" yaml:"id"`
		Username       string    `json:"username" yaml:"username"`
		Password       string    `json:"password,omitempty" yaml:"password"`
		PasswordHash   string    `json:"passwordHash,omitempty" yaml:"passwordHash"`
		Role           string    `json:"role" yaml:"role"`
		FullName       string    `json:"fullName" yaml:"fullName"`
		Email          string    `json:"email,omitempty" yaml:"email"`
		Class          string    `json:"class,omitempty" yaml:"class"`
		Grade          string    `json:"grade,omitempty" yaml:"grade"`
		LinkedChildren []string  `json:"linkedChildren,omitempty" yaml:"linkedChildren"`
		CreatedAt      time.Time `json:"createdAt,omitempty" yaml:"createdAt"`
	}

	SeedQuiz struct {
		ID        string          `json:"id,omitempty" yaml:"id"`
		Title     string          `json:"title" yaml:"title"`
		Subject   string          `json:"subject" yaml:"subject"`
		Class     string          `json:"class,omitempty" yaml:"class"`
		CreatedBy string          `json:"createdBy" yaml:"createdBy"`
		Questions []quiz.Question `json:"questions" yaml:"questions"`
		IsActive  *bool           `json:"isActive,omitempty" yaml:"isActive"`
		TimeLimit int             `json:"timeLimit,omitempty" yaml:"timeLimit"`
		CreatedAt time.Time       `json:"createdAt,omitempty" yaml:"createdAt"`
	}

	Dataset struct {
		Users   []SeedUser `json:"users" yaml:"users"`
		Quizzes []SeedQuiz `json:"quizzes" yaml:"quizzes"`
	}
)

// DefaultDataset is the seed data served by the default-data endpoint.
func DefaultDataset() (*Dataset, error) {
	return embedded("data/default.yaml")
}

// FallbackDataset is the minimal dataset installed when no seed source answers. It holds
// one teacher and one student.
func FallbackDataset() (*Dataset, error) {
	return embedded("data/fallback.yaml")
}

func embedded(name string) (*Dataset, error) {
	raw, err := datasets.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	return ParseDataset(raw)
}

// LoadDataset reads a YAML (or JSON) dataset file.
func LoadDataset(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return ParseDataset(raw)
}

func ParseDataset(raw []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return nil, errors.Wrap(err, "decoding dataset")
	}
	return &ds, nil
}

// Records converts the dataset into canonical records. Plaintext passwords are hashed,
// missing identifiers are generated and quizzes naming their creator by username are
// linked to that user's identifier.
func (ds *Dataset) Records(now time.Time) ([]user.User, []quiz.Quiz, error) {
	users := make([]user.User, 0, len(ds.Users))
	idsByUsername := make(map[string]string, len(ds.Users))
	for i, su := range ds.Users {
		usr, err := su.record(now)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "users[%d]", i)
		}
		if _, dup := idsByUsername[usr.Username]; dup {
			return nil, nil, errors.Errorf("users[%d]: duplicate username %q", i, usr.Username)
		}
		idsByUsername[usr.Username] = usr.ID
		users = append(users, *usr)
	}

	quizzes := make([]quiz.Quiz, 0, len(ds.Quizzes))
	for i, sq := range ds.Quizzes {
		if sq.Title == "" {
			return nil, nil, errors.Errorf("quizzes[%d]: missing title", i)
		}
		createdBy := sq.CreatedBy
		if id, ok := idsByUsername[core.CleanString(createdBy, true /* lower */)]; ok {
			createdBy = id
		}
		nq := quiz.NewQuiz{
			Title:     sq.Title,
			Subject:   sq.Subject,
			Class:     sq.Class,
			CreatedBy: createdBy,
			Questions: sq.Questions,
			IsActive:  sq.IsActive,
			TimeLimit: sq.TimeLimit,
		}
		nq.Clean()
		q := nq.Quiz(orNewID(sq.ID), orNow(sq.CreatedAt, now))
		quizzes = append(quizzes, *q)
	}
	return users, quizzes, nil
}

func (su SeedUser) record(now time.Time) (*user.User, error) {
	created := orNow(su.CreatedAt, now)
	nu := user.NewUser{
		Username:       su.Username,
		Role:           su.Role,
		DisplayName:    su.FullName,
		Email:          su.Email,
		Class:          su.Class,
		Grade:          su.Grade,
		LinkedChildren: su.LinkedChildren,
	}
	nu.Clean()
	if nu.Username == "" {
		return nil, errors.New("missing username")
	}
	if !user.IsValidRole(nu.Role) {
		return nil, errors.Errorf("invalid role %q", su.Role)
	}

	usr := nu.User(orNewID(su.ID), created)
	switch {
	case su.PasswordHash != "":
		if !password.IsDigest(su.PasswordHash) {
			return nil, errors.Errorf("%s: passwordHash is not a digest", nu.Username)
		}
		usr.PasswordHash = su.PasswordHash
	case su.Password != "":
		usr.PasswordHash = password.Hash(su.Password)
	default:
		return nil, errors.Errorf("%s: missing password", nu.Username)
	}
	return usr, nil
}

func orNewID(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t.UTC()
}

// Hashed returns a copy of ds whose users carry digests instead of plaintext passwords.
// It is the form served to clients.
func (ds *Dataset) Hashed() *Dataset {
	out := &Dataset{Users: make([]SeedUser, len(ds.Users)), Quizzes: ds.Quizzes}
	for i, su := range ds.Users {
		if su.Password != "" {
			su.PasswordHash = password.Hash(su.Password)
			su.Password = ""
		}
		out.Users[i] = su
	}
	return out
}
