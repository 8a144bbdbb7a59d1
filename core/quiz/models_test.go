package quiz

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistrzwujo098/quiz-sub001/core"
)

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate, translator
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "error = %v", err)
	got := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		got[f.Field] = f.Error
	}
	return got
}

func TestNewQuiz_Validate(t *testing.T) {
	validate, translator := newValidator()
	valid := func() NewQuiz {
		return NewQuiz{
			Title:     "Fractions",
			Subject:   "math",
			CreatedBy: "t1",
			Questions: []Question{
				{Type: TypeSingleChoice, Text: "1/2 + 1/4?", Options: []string{"3/4", "2/6"}, Answer: "3/4", Points: 2},
				{Type: TypeOpen, Text: "Explain.", Points: 3},
			},
		}
	}

	tests := []struct {
		name       string
		mutate     func(nq *NewQuiz)
		wantFields map[string]string
	}{
		{name: "valid", mutate: func(*NewQuiz) {}},
		{name: "no questions", mutate: func(nq *NewQuiz) { nq.Questions = nil }},
		{
			name:       "blank title",
			mutate:     func(nq *NewQuiz) { nq.Title = "   " },
			wantFields: map[string]string{"title": "this field is required"},
		},
		{
			name:       "no creator",
			mutate:     func(nq *NewQuiz) { nq.CreatedBy = "" },
			wantFields: map[string]string{"createdBy": "this field is required"},
		},
		{
			name:       "negative time limit",
			mutate:     func(nq *NewQuiz) { nq.TimeLimit = -1 },
			wantFields: map[string]string{"timeLimit": "timeLimit must be 0 or greater"},
		},
		{
			name:       "unknown question type",
			mutate:     func(nq *NewQuiz) { nq.Questions[1].Type = "essay" },
			wantFields: map[string]string{"type": "question type must be one of: single, multiple, open, truefalse"},
		},
		{
			name: "single choice without options",
			mutate: func(nq *NewQuiz) {
				nq.Questions[0].Options = []string{"3/4"}
				nq.Questions[0].Points = -1
			},
			wantFields: map[string]string{
				"options": "choice questions need at least 2 options",
				"points":  "points cannot be negative",
			},
		},
		{
			name:       "question without text",
			mutate:     func(nq *NewQuiz) { nq.Questions[1].Text = " " },
			wantFields: map[string]string{"text": "question text is required"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nq := valid()
			tt.mutate(&nq)
			err := nq.Validate(validate, translator)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantFields, fieldErrors(t, err))
		})
	}
}

func TestNewQuiz_Quiz(t *testing.T) {
	now := time.Date(2024, 9, 10, 10, 0, 0, 0, time.UTC)
	inactive := false

	tests := []struct {
		name       string
		nq         NewQuiz
		wantActive bool
		wantIDs    []string
	}{
		{
			name:       "active by default",
			nq:         NewQuiz{Title: "T", Subject: "s", CreatedBy: "t1", Questions: []Question{{Text: "a"}, {ID: "custom", Text: "b"}, {Text: "c"}}},
			wantActive: true,
			wantIDs:    []string{"q1", "custom", "q3"},
		},
		{
			name:       "explicitly inactive",
			nq:         NewQuiz{Title: "T", Subject: "s", CreatedBy: "t1", IsActive: &inactive},
			wantActive: false,
			wantIDs:    []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.nq.Quiz("quiz-1", now)
			assert.Equal(t, "quiz-1", q.ID)
			assert.Equal(t, tt.wantActive, q.IsActive)
			assert.Equal(t, now, q.CreatedAt)
			assert.Equal(t, now, q.UpdatedAt)
			ids := make([]string, len(q.Questions))
			for i, qs := range q.Questions {
				ids[i] = qs.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
			if len(tt.nq.Questions) > 0 {
				assert.Empty(t, tt.nq.Questions[0].ID, "the payload questions are not modified")
			}
		})
	}
}

func TestUpdateQuiz_Apply(t *testing.T) {
	validate, translator := newValidator()
	created := time.Date(2024, 9, 10, 10, 0, 0, 0, time.UTC)
	existing := &Quiz{
		ID:          "quiz-1",
		Title:       "Fractions",
		Subject:     "math",
		CreatedBy:   "t1",
		CreatorName: "Anna Nowak",
		Questions:   []Question{{ID: "q1", Type: TypeOpen, Text: "?", Points: 2}},
		IsActive:    true,
		CreatedAt:   created,
		UpdatedAt:   created,
	}

	edited := *existing
	edited.Title = " Fractions II "
	edited.CreatedBy = "t2"
	edited.CreatedAt = time.Time{}
	edited.IsActive = false
	edited.Questions = append(edited.Questions, Question{Type: TypeTrueFalse, Text: "1/2 > 1/3", Answer: "true", Points: 1})

	uq := UpdateFrom(&edited)
	require.NoError(t, uq.Validate(validate, translator))

	later := created.Add(time.Hour)
	upd := uq.Apply(existing, later)
	assert.Equal(t, "quiz-1", upd.ID)
	assert.Equal(t, "Fractions II", upd.Title)
	assert.Equal(t, "t1", upd.CreatedBy, "ownership never changes")
	assert.Equal(t, created, upd.CreatedAt)
	assert.Equal(t, later, upd.UpdatedAt)
	assert.False(t, upd.IsActive)
	assert.Equal(t, 3, upd.TotalPoints())
	assert.Equal(t, "q2", upd.Questions[1].ID)

	uq.Subject = ""
	assert.Equal(t, map[string]string{"subject": "this field is required"}, fieldErrors(t, uq.Validate(validate, translator)))
}

func TestQuiz_FieldValue(t *testing.T) {
	q := Quiz{ID: "quiz-1", Title: "T", Subject: "math", Class: "1A", CreatedBy: "t1", IsActive: false}
	for _, fld := range FilterFields {
		_, ok := q.FieldValue(fld)
		assert.True(t, ok, fld)
	}
	v, _ := q.FieldValue("isActive")
	assert.Equal(t, "false", v)
	_, ok := q.FieldValue("questions")
	assert.False(t, ok)
}
