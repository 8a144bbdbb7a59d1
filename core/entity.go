package core

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type EntityKind string

const (
	KindUser EntityKind = "user"
	KindQuiz EntityKind = "quiz"
)

var ErrUnknownKind = errors.New("unknown entity kind")

// ParseEntityKind accepts the singular kind plus the collection names used by UI code.
func ParseEntityKind(s string) (EntityKind, error) {
	switch CleanString(s, true /* lower */) {
	case "user", "users":
		return KindUser, nil
	case "quiz", "quizzes", "exam", "exams":
		return KindQuiz, nil
	}
	return "", NewValidationError(ErrUnknownKind, FieldError{Field: "kind", Error: ErrUnknownKind.Error()})
}

// Entity is implemented by every canonical record the data adapter serves.
type Entity interface {
	EntityKind() EntityKind
	EntityID() string
	// FieldValue returns the string form of a canonical field for equality filtering.
	FieldValue(name string) (string, bool)
	Created() time.Time
}

// OrderByKey in Filters requests newest-first ordering by creation time.
const OrderByKey = "__orderBy"

// Filters is a flat equality-only mapping of canonical field names to values.
type Filters map[string]string

// Ordered reports whether newest-first ordering was requested.
func (f Filters) Ordered() bool {
	_, ok := f[OrderByKey]
	return ok
}

// Predicates returns the equality predicates without the ordering key.
func (f Filters) Predicates() map[string]string {
	preds := make(map[string]string, len(f))
	for k, v := range f {
		if k == OrderByKey {
			continue
		}
		preds[k] = v
	}
	return preds
}

// Validate checks that every predicate names one of the allowed fields.
func (f Filters) Validate(allowed ...string) error {
	var flds []FieldError
	for k := range f.Predicates() {
		found := false
		for _, a := range allowed {
			if k == a {
				found = true
				break
			}
		}
		if !found {
			flds = append(flds, FieldError{Field: k, Error: "unknown filter field"})
		}
	}
	if len(flds) == 0 {
		return nil
	}
	sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
	names := make([]string, 0, len(flds))
	for _, fe := range flds {
		names = append(names, fe.Field)
	}
	return NewValidationError(errors.Errorf("unknown filter fields: %s", strings.Join(names, ", ")), flds...)
}

// Match reports whether e satisfies every equality predicate.
func (f Filters) Match(e Entity) bool {
	for k, want := range f.Predicates() {
		got, ok := e.FieldValue(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// SortNewestFirst orders entities by descending creation time, ties broken by ID.
func SortNewestFirst(entities []Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		ci, cj := entities[i].Created(), entities[j].Created()
		if ci.Equal(cj) {
			return entities[i].EntityID() > entities[j].EntityID()
		}
		return ci.After(cj)
	})
}

// Mode is the backing store selected for the current session.
type Mode string

const (
	ModeUndecided Mode = ""
	ModeLocal     Mode = "local"
	ModeRemote    Mode = "remote"
)

func (m Mode) String() string {
	if m == ModeUndecided {
		return "undecided"
	}
	return string(m)
}
