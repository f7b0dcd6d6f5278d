package domain

import (
	"errors"
	"strings"
)

// Error kinds. Every error returned by the service unwraps to one of these.
var (
	ErrUnauthorized = errors.New("not authorized")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
)

// Error is a concrete failure tagged with its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	// ErrAssessmentNotFound is returned when an assessment id does not resolve.
	ErrAssessmentNotFound = newError(ErrNotFound, "assessment not found")
	// ErrQuestionNotFound indicates a referenced question is not in the bank.
	ErrQuestionNotFound = newError(ErrNotFound, "question not found")
	// ErrAttemptNotFound covers both missing attempts and attempts owned by someone else.
	ErrAttemptNotFound = newError(ErrNotFound, "attempt not found")
	// ErrClassroomNotFound indicates the classroom id does not resolve.
	ErrClassroomNotFound = newError(ErrNotFound, "classroom not found")
	ErrUserNotFound      = newError(ErrNotFound, "user not found")

	ErrNotAssessmentOwner  = newError(ErrUnauthorized, "not authorized for this assessment")
	ErrNotClassroomOwner   = newError(ErrUnauthorized, "not authorized to create assessment for this classroom")
	ErrNotClassroomMember  = newError(ErrUnauthorized, "not a member of this classroom")
	ErrAttemptSubmitted    = newError(ErrUnauthorized, "assessment already submitted")
	ErrAssessmentNotDraft  = newError(ErrInvalidState, "cannot modify live or closed assessment")
	ErrAssessmentNotLive   = newError(ErrInvalidState, "assessment is not live")
	ErrAssessmentNotOpen   = newError(ErrInvalidState, "assessment not started yet")
	ErrAssessmentExpired   = newError(ErrInvalidState, "assessment expired")
	ErrAttemptClosed       = newError(ErrInvalidState, "attempt already submitted")
	ErrQuestionAlreadyUsed = newError(ErrInvalidState, "question already linked to assessment")
	ErrOrderTaken          = newError(ErrInvalidState, "question order already in use")
	// ErrAttemptExists is reported by stores when the (assessment, student) pair is taken.
	ErrAttemptExists = newError(ErrInvalidState, "attempt already exists")

	ErrEmptyPractice = newError(ErrValidation, "practice requires at least one question")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError carries per-field failures for malformed input.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError from field failures.
func NewValidationError(fields ...FieldError) error {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Error)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
