package quiz

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mistrzwujo098/quiz-sub001/core"
)

var (
	questionTypeTag  = "qtype"
	questionTypeText = fmt.Sprintf("question type must be one of: %s", strings.Join(AllQuestionTypes, ", "))

	questionTextTag  = "qtext"
	questionTextText = "question text is required"

	questionOptionsTag  = "qoptions"
	questionOptionsText = "choice questions need at least 2 options"

	questionPointsTag  = "qpoints"
	questionPointsText = "points cannot be negative"
)

// InitValidators registers the quiz validators & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(questionStructValidation, Question{})
	core.RegisterCustomTranslation(validate, translator, questionTypeTag, questionTypeText)
	core.RegisterCustomTranslation(validate, translator, questionTextTag, questionTextText)
	core.RegisterCustomTranslation(validate, translator, questionOptionsTag, questionOptionsText)
	core.RegisterCustomTranslation(validate, translator, questionPointsTag, questionPointsText)
}

func questionStructValidation(sl validator.StructLevel) {
	q, ok := sl.Current().Interface().(Question)
	if !ok {
		return
	}
	known := false
	for _, t := range AllQuestionTypes {
		if q.Type == t {
			known = true
			break
		}
	}
	if !known {
		sl.ReportError(q.Type, "type", "Type", questionTypeTag, "")
	}
	if strings.TrimSpace(q.Text) == "" {
		sl.ReportError(q.Text, "text", "Text", questionTextTag, "")
	}
	if (q.Type == TypeSingleChoice || q.Type == TypeMultiChoice) && len(q.Options) < 2 {
		sl.ReportError(q.Options, "options", "Options", questionOptionsTag, "")
	}
	if q.Points < 0 {
		sl.ReportError(q.Points, "points", "Points", questionPointsTag, "")
	}
}
