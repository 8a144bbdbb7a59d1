package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	id      string
	fields  map[string]string
	created time.Time
}

func (r record) EntityKind() EntityKind { return KindQuiz }
func (r record) EntityID() string       { return r.id }
func (r record) Created() time.Time     { return r.created }
func (r record) FieldValue(name string) (string, bool) {
	v, ok := r.fields[name]
	return v, ok
}

func TestParseEntityKind(t *testing.T) {
	tests := []struct {
		in      string
		want    EntityKind
		wantErr bool
	}{
		{in: "user", want: KindUser},
		{in: " Users ", want: KindUser},
		{in: "quizzes", want: KindQuiz},
		{in: "EXAMS", want: KindQuiz},
		{in: "lessons", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEntityKind(tt.in)
			if tt.wantErr {
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilters(t *testing.T) {
	rec := record{id: "q1", fields: map[string]string{"subject": "math", "class": "1A"}}

	tests := []struct {
		name      string
		filters   Filters
		wantMatch bool
		ordered   bool
	}{
		{name: "empty", filters: Filters{}, wantMatch: true},
		{name: "nil", filters: nil, wantMatch: true},
		{name: "one field", filters: Filters{"subject": "math"}, wantMatch: true},
		{name: "all fields", filters: Filters{"subject": "math", "class": "1A"}, wantMatch: true},
		{name: "mismatch", filters: Filters{"subject": "history"}, wantMatch: false},
		{name: "case sensitive", filters: Filters{"subject": "Math"}, wantMatch: false},
		{name: "unknown field", filters: Filters{"title": "x"}, wantMatch: false},
		{name: "ordered", filters: Filters{OrderByKey: "created_at", "subject": "math"}, wantMatch: true, ordered: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMatch, tt.filters.Match(rec))
			assert.Equal(t, tt.ordered, tt.filters.Ordered())
			assert.NotContains(t, tt.filters.Predicates(), OrderByKey)
		})
	}
}

func TestFilters_Validate(t *testing.T) {
	allowed := []string{"subject", "class"}
	assert.NoError(t, Filters{"subject": "math", OrderByKey: ""}.Validate(allowed...))

	err := Filters{"zeta": "1", "alpha": "2", "class": "1A"}.Validate(allowed...)
	require.Error(t, err)
	assert.EqualError(t, err, "unknown filter fields: alpha, zeta")
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, []FieldError{
		{Field: "alpha", Error: "unknown filter field"},
		{Field: "zeta", Error: "unknown filter field"},
	}, verr.Fields)
}

func TestSortNewestFirst(t *testing.T) {
	t0 := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	entities := []Entity{
		record{id: "a", created: t0},
		record{id: "c", created: t0.Add(time.Hour)},
		record{id: "b", created: t0},
		record{id: "d", created: t0.Add(-time.Hour)},
	}
	SortNewestFirst(entities)

	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.EntityID()
	}
	assert.Equal(t, []string{"c", "b", "a", "d"}, ids)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "undecided", ModeUndecided.String())
	assert.Equal(t, "local", ModeLocal.String())
	assert.Equal(t, "remote", ModeRemote.String())
}
