package quiz

import (
	"strconv"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mistrzwujo098/quiz-sub001/core"
)

// Question types
const (
	TypeSingleChoice = "single"
	TypeMultiChoice  = "multiple"
	TypeOpen         = "open"
	TypeTrueFalse    = "truefalse"
)

var AllQuestionTypes = []string{TypeSingleChoice, TypeMultiChoice, TypeOpen, TypeTrueFalse}

// Fields usable as equality filters.
var FilterFields = []string{"id", "title", "subject", "class", "createdBy", "isActive"}

type Question struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer,omitempty"`
	Points  int      `json:"points"`
}

type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Subject     string     `json:"subject"`
	Class       string     `json:"class,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	CreatorName string     `json:"creatorName,omitempty"`
	Questions   []Question `json:"questions"`
	IsActive    bool       `json:"isActive"`
	TimeLimit   int        `json:"timeLimit,omitempty"` // minutes, 0: unlimited
	CreatedAt   time.Time  `json:"createdAt"`           // UTC
	UpdatedAt   time.Time  `json:"updatedAt"`           // UTC
}

var _ core.Entity = (*Quiz)(nil) // interface compliance check

func (q *Quiz) EntityKind() core.EntityKind { return core.KindQuiz }
func (q *Quiz) EntityID() string            { return q.ID }
func (q *Quiz) Created() time.Time          { return q.CreatedAt }

func (q *Quiz) FieldValue(name string) (string, bool) {
	switch name {
	case "id":
		return q.ID, true
	case "title":
		return q.Title, true
	case "subject":
		return q.Subject, true
	case "class":
		return q.Class, true
	case "createdBy":
		return q.CreatedBy, true
	case "isActive":
		return strconv.FormatBool(q.IsActive), true
	}
	return "", false
}

// TotalPoints sums the points of every question.
func (q *Quiz) TotalPoints() int {
	var total int
	for _, qs := range q.Questions {
		total += qs.Points
	}
	return total
}

// NewQuiz contains information needed to create a new Quiz.
type NewQuiz struct {
	Title     string     `json:"title" validate:"required"`
	Subject   string     `json:"subject" validate:"required"`
	Class     string     `json:"class"`
	CreatedBy string     `json:"createdBy" validate:"required"`
	Questions []Question `json:"questions" validate:"dive"`
	IsActive  *bool      `json:"isActive"`
	TimeLimit int        `json:"timeLimit" validate:"gte=0"`
}

var _ core.Entity = (*NewQuiz)(nil)

func (nq *NewQuiz) EntityKind() core.EntityKind { return core.KindQuiz }
func (nq *NewQuiz) EntityID() string            { return "" }
func (nq *NewQuiz) Created() time.Time          { return time.Time{} }

func (nq *NewQuiz) FieldValue(name string) (string, bool) {
	return nq.Quiz("", time.Time{}).FieldValue(name)
}

func (nq *NewQuiz) Clean() {
	nq.Title = core.CleanString(nq.Title)
	nq.Subject = core.CleanString(nq.Subject)
	nq.Class = core.CleanString(nq.Class)
	nq.CreatedBy = core.CleanString(nq.CreatedBy)
}

func (nq *NewQuiz) Validate(validate *validator.Validate, translator ut.Translator) error {
	nq.Clean()
	return core.ValidateStruct(validate, translator, nq)
}

// Quiz builds the Quiz record, numbering questions without an ID.
func (nq *NewQuiz) Quiz(id string, now time.Time) *Quiz {
	active := true
	if nq.IsActive != nil {
		active = *nq.IsActive
	}
	questions := make([]Question, len(nq.Questions))
	copy(questions, nq.Questions)
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = "q" + strconv.Itoa(i+1)
		}
	}
	return &Quiz{
		ID:        id,
		Title:     nq.Title,
		Subject:   nq.Subject,
		Class:     nq.Class,
		CreatedBy: nq.CreatedBy,
		Questions: questions,
		IsActive:  active,
		TimeLimit: nq.TimeLimit,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateQuiz contains the mutable fields of a Quiz. Ownership and creation time never
// change.
type UpdateQuiz struct {
	Title     string     `json:"title" validate:"required"`
	Subject   string     `json:"subject" validate:"required"`
	Class     string     `json:"class"`
	Questions []Question `json:"questions" validate:"dive"`
	IsActive  bool       `json:"isActive"`
	TimeLimit int        `json:"timeLimit" validate:"gte=0"`
}

// UpdateFrom returns the mutable fields of q.
func UpdateFrom(q *Quiz) *UpdateQuiz {
	return &UpdateQuiz{
		Title:     q.Title,
		Subject:   q.Subject,
		Class:     q.Class,
		Questions: q.Questions,
		IsActive:  q.IsActive,
		TimeLimit: q.TimeLimit,
	}
}

func (uq *UpdateQuiz) Clean() {
	uq.Title = core.CleanString(uq.Title)
	uq.Subject = core.CleanString(uq.Subject)
	uq.Class = core.CleanString(uq.Class)
}

func (uq *UpdateQuiz) Validate(validate *validator.Validate, translator ut.Translator) error {
	uq.Clean()
	return core.ValidateStruct(validate, translator, uq)
}

// Apply returns a copy of q carrying the updated fields.
func (uq *UpdateQuiz) Apply(q *Quiz, now time.Time) *Quiz {
	nq := NewQuiz{
		Title:     uq.Title,
		Subject:   uq.Subject,
		Class:     uq.Class,
		CreatedBy: q.CreatedBy,
		Questions: uq.Questions,
		IsActive:  &uq.IsActive,
		TimeLimit: uq.TimeLimit,
	}
	upd := nq.Quiz(q.ID, q.CreatedAt)
	upd.UpdatedAt = now
	return upd
}
