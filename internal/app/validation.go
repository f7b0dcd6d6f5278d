package app

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"classroom-assessment-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json-ish names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if i := strings.IndexByte(name, ','); i >= 0 {
			name = name[:i]
		}
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// NewAssessment is the input for CreateAssessment.
type NewAssessment struct {
	ClassroomID        string                `json:"classroomId" validate:"required"`
	Title              string                `json:"title" validate:"required,max=200"`
	Kind               domain.AssessmentKind `json:"kind" validate:"required,oneof=LIVE HOMEWORK"`
	SecondsPerQuestion int                   `json:"secondsPerQuestion" validate:"gte=0,max=86400"`
	StartTime          *time.Time            `json:"startTime"`
	EndTime            *time.Time            `json:"endTime"`
}

// NewQuestion is the input for CreateQuestion.
type NewQuestion struct {
	Prompt        string   `json:"prompt" validate:"required"`
	Options       []string `json:"options" validate:"min=2,dive,required"`
	CorrectOption string   `json:"correctOption" validate:"required"`
	Topic         string   `json:"topic"`
	Difficulty    string   `json:"difficulty" validate:"omitempty,oneof=Easy Medium Hard"`
	Order         int      `json:"order" validate:"gte=0"`
}

// NewPractice is the input for CreatePractice.
type NewPractice struct {
	Title       string   `json:"title" validate:"max=200"`
	QuestionIDs []string `json:"questionIds" validate:"dive,required"`
	Minutes     *int     `json:"minutes" validate:"omitempty,max=1440"`
}

func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make([]domain.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		fields = append(fields, domain.FieldError{Field: fe.Field(), Error: msg})
	}
	return domain.NewValidationError(fields...)
}
