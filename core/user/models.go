package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"

	"github.com/mistrzwujo098/quiz-sub001/core"
)

// Roles
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleParent  = "parent"
)

var AllRoles = []string{RoleTeacher, RoleStudent, RoleParent}

// Fields usable as equality filters.
var FilterFields = []string{"id", "username", "role", "displayName", "email", "class", "grade"}

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"passwordHash"`
	Role           string    `json:"role"`
	DisplayName    string    `json:"displayName"`
	Email          string    `json:"email,omitempty"`
	Class          string    `json:"class,omitempty"`          // student
	Grade          string    `json:"grade,omitempty"`          // student
	LinkedChildren []string  `json:"linkedChildren,omitempty"` // parent
	CreatedAt      time.Time `json:"createdAt"`                // UTC
	UpdatedAt      time.Time `json:"updatedAt"`                // UTC
}

var _ core.Entity = (*User)(nil) // interface compliance check

func (u *User) EntityKind() core.EntityKind { return core.KindUser }
func (u *User) EntityID() string            { return u.ID }
func (u *User) Created() time.Time          { return u.CreatedAt }

func (u *User) FieldValue(name string) (string, bool) {
	switch name {
	case "id":
		return u.ID, true
	case "username":
		return u.Username, true
	case "role":
		return u.Role, true
	case "displayName":
		return u.DisplayName, true
	case "email":
		return u.Email, true
	case "class":
		return u.Class, true
	case "grade":
		return u.Grade, true
	}
	return "", false
}

func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }
func (u *User) IsParent() bool  { return u.Role == RoleParent }

// HasChild reports whether the parent is linked to the student childID.
func (u *User) HasChild(childID string) bool {
	for _, id := range u.LinkedChildren {
		if id == childID {
			return true
		}
	}
	return false
}

// NewUser contains information needed to create a new User. Password is plaintext and
// never leaves this struct.
type NewUser struct {
	Username       string   `json:"username" validate:"required,min=3,alphanum_"`
	Password       string   `json:"password" validate:"required"`
	Role           string   `json:"role" validate:"required,role"`
	DisplayName    string   `json:"displayName" validate:"required"`
	Email          string   `json:"email" validate:"omitempty,email"`
	Class          string   `json:"class"`
	Grade          string   `json:"grade"`
	LinkedChildren []string `json:"linkedChildren"`
}

var _ core.Entity = (*NewUser)(nil)

func (nu *NewUser) EntityKind() core.EntityKind { return core.KindUser }
func (nu *NewUser) EntityID() string            { return "" }
func (nu *NewUser) Created() time.Time          { return time.Time{} }

func (nu *NewUser) FieldValue(name string) (string, bool) {
	return nu.User("", time.Time{}).FieldValue(name)
}

// Clean normalizes the payload in place.
func (nu *NewUser) Clean() {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.DisplayName = core.CleanString(nu.DisplayName)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.Class = core.CleanString(nu.Class)
	nu.Grade = core.CleanString(nu.Grade)
	if nu.DisplayName == "" {
		nu.DisplayName = nu.Username
	}
}

func (nu *NewUser) Validate(validate *validator.Validate, translator ut.Translator) error {
	nu.Clean()
	return core.ValidateStruct(validate, translator, nu)
}

// User builds the User record. The caller is responsible for setting PasswordHash.
func (nu *NewUser) User(id string, now time.Time) *User {
	return &User{
		ID:             id,
		Username:       nu.Username,
		Role:           nu.Role,
		DisplayName:    nu.DisplayName,
		Email:          nu.Email,
		Class:          nu.Class,
		Grade:          nu.Grade,
		LinkedChildren: nu.LinkedChildren,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Normalize cleans identifying fields of an existing record.
func (u *User) Normalize() {
	u.Username = core.CleanString(u.Username, true /* lower */)
	u.Email = core.CleanString(u.Email, true /* lower */)
	u.Role = strings.ToLower(strings.TrimSpace(u.Role))
	u.DisplayName = core.CleanString(u.DisplayName)
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}
}
